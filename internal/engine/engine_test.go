package engine_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/hilvik/vivum-demo-v1/internal/engine"
	"github.com/hilvik/vivum-demo-v1/internal/model"
	"github.com/hilvik/vivum-demo-v1/internal/resolver"
	"github.com/hilvik/vivum-demo-v1/internal/reveal"
	"github.com/hilvik/vivum-demo-v1/internal/reveal/revealtest"
	"github.com/hilvik/vivum-demo-v1/pkg/logger"
)

const tick = 100 * time.Millisecond

func newEngine(t *testing.T, r engine.AnswerResolver, opts ...engine.Option) (*engine.Engine, *revealtest.Clock) {
	t.Helper()
	clock := revealtest.New()
	base := []engine.Option{
		engine.WithID("session-1"),
		engine.WithLogger(logger.NewNop()),
		engine.WithScheduler(reveal.NewScheduler(reveal.WithClock(clock), reveal.WithInterval(tick))),
	}
	e := engine.New(r, append(base, opts...)...)
	t.Cleanup(e.Close)
	return e, clock
}

func fixed(answer string) engine.AnswerResolver {
	return engine.ResolverFunc(func(context.Context, string) (string, error) {
		return answer, nil
	})
}

// gate blocks every resolution until released.
type gate struct {
	calls   chan string
	release chan struct{}
	answer  string
}

func newGate(answer string) *gate {
	return &gate{calls: make(chan string, 8), release: make(chan struct{}), answer: answer}
}

func (g *gate) Resolve(ctx context.Context, query string) (string, error) {
	g.calls <- query
	select {
	case <-g.release:
		return g.answer, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, time.Millisecond)
}

// waitForReveal waits until the assistant turn for the pending query exists
// and its first tick is scheduled.
func waitForReveal(t *testing.T, e *engine.Engine, clock *revealtest.Clock, turns int) {
	t.Helper()
	waitFor(t, func() bool { return len(e.Turns()) == turns && clock.Pending() > 0 })
}

func TestNew_SeedsWelcomeTurn(t *testing.T) {
	e, _ := newEngine(t, fixed("x"))

	turns := e.Turns()
	require.Len(t, turns, 1)
	assert.Equal(t, model.RoleAssistant, turns[0].Role)
	assert.Equal(t, engine.WelcomeMessage, turns[0].Content)
	assert.Equal(t, turns[0].Content, turns[0].Revealed, "welcome is revealed instantly")
	assert.NotEmpty(t, turns[0].ID)
	assert.False(t, e.Busy())
	assert.Equal(t, "session-1", e.ID())
}

func TestNew_WithoutWelcome(t *testing.T) {
	e, _ := newEngine(t, fixed("x"), engine.WithWelcome(""))
	assert.Empty(t, e.Turns())
}

func TestSubmit_RejectsBlankQueries(t *testing.T) {
	e, _ := newEngine(t, fixed("x"))

	for _, q := range []string{"", " ", "\t\n "} {
		assert.ErrorIs(t, e.Submit(q), engine.ErrEmptySubmission)
	}
	assert.Len(t, e.Turns(), 1)
	assert.False(t, e.Busy())
}

func TestSubmit_RevealsAnswerToCompletion(t *testing.T) {
	answer := "# Result\n\nline one\nline two"
	e, clock := newEngine(t, fixed(answer))

	require.NoError(t, e.Submit("what is new?"))
	assert.True(t, e.Busy())

	waitForReveal(t, e, clock, 3)
	turns := e.Turns()
	assert.Equal(t, model.RoleUser, turns[1].Role)
	assert.Equal(t, "what is new?", turns[1].Content)
	assert.Equal(t, turns[1].Content, turns[1].Revealed)
	assert.Equal(t, model.RoleAssistant, turns[2].Role)
	assert.Equal(t, answer, turns[2].Content)
	assert.Empty(t, turns[2].Revealed)

	var seen []string
	for e.Busy() {
		clock.Advance(tick)
		seen = append(seen, e.Turns()[2].Revealed)
	}

	assert.Equal(t, []string{"# Result", "# Result\n\nline one", answer}, seen)
	assert.Equal(t, answer, e.Turns()[2].Revealed)
	assert.Len(t, e.Turns(), 3)
}

func TestSubmit_DroppedWhileBusy(t *testing.T) {
	e, clock := newEngine(t, fixed("a\nb\nc"))

	require.NoError(t, e.Submit("first"))
	waitForReveal(t, e, clock, 3)
	clock.Advance(tick)

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, e.Submit("diabetes"), engine.ErrBusy)
	}
	assert.Len(t, e.Turns(), 3)

	clock.Advance(time.Second)
	require.False(t, e.Busy())

	require.NoError(t, e.Submit("diabetes"))
	waitForReveal(t, e, clock, 5)
	assert.Equal(t, "diabetes", e.Turns()[3].Content)
}

func TestSubmit_DroppedWhileResolving(t *testing.T) {
	g := newGate("answer")
	e, clock := newEngine(t, g)

	require.NoError(t, e.Submit("first"))
	<-g.calls
	assert.ErrorIs(t, e.Submit("second"), engine.ErrBusy)
	assert.Len(t, e.Turns(), 2)

	close(g.release)
	waitForReveal(t, e, clock, 3)
	clock.Advance(tick)
	assert.False(t, e.Busy())
}

func TestSubmit_ResolverFailureAddsErrorTurn(t *testing.T) {
	e, clock := newEngine(t, engine.ResolverFunc(func(context.Context, string) (string, error) {
		return "", errors.New("index offline")
	}))

	require.NoError(t, e.Submit("anything"))
	waitFor(t, func() bool { return !e.Busy() })

	turns := e.Turns()
	require.Len(t, turns, 3)
	assert.Equal(t, model.RoleAssistant, turns[2].Role)
	assert.Equal(t, engine.ErrorMessage, turns[2].Content)
	assert.Equal(t, turns[2].Content, turns[2].Revealed)
	assert.Equal(t, 0, clock.Pending())

	require.NoError(t, e.Submit("again"), "engine must not stay busy after a failure")
}

func TestSubmit_ResolveTimeoutAddsErrorTurn(t *testing.T) {
	g := newGate("never")
	e, _ := newEngine(t, g, engine.WithResolveTimeout(10*time.Millisecond), engine.WithErrorMessage("timed out"))

	require.NoError(t, e.Submit("slow"))
	waitFor(t, func() bool { return !e.Busy() })

	turns := e.Turns()
	require.Len(t, turns, 3)
	assert.Equal(t, "timed out", turns[2].Content)
}

func TestSubmit_EmptyAnswerFinishesImmediately(t *testing.T) {
	e, clock := newEngine(t, fixed("\n\n"))

	require.NoError(t, e.Submit("q"))
	waitFor(t, func() bool { return !e.Busy() })

	turns := e.Turns()
	require.Len(t, turns, 3)
	assert.Equal(t, "\n\n", turns[2].Revealed)
	assert.Equal(t, 0, clock.Pending())
}

func TestReset_MidReveal(t *testing.T) {
	e, clock := newEngine(t, fixed("a\nb\nc"))

	require.NoError(t, e.Submit("q"))
	waitForReveal(t, e, clock, 3)
	clock.Advance(tick)
	require.Equal(t, "a", e.Turns()[2].Revealed)

	e.Reset()

	assert.False(t, e.Busy())
	turns := e.Turns()
	require.Len(t, turns, 1)
	assert.Equal(t, engine.WelcomeMessage, turns[0].Content)
	assert.Equal(t, 0, clock.Pending())

	clock.Advance(time.Second)
	assert.Equal(t, turns, e.Turns(), "no tick from the cancelled reveal applies")
	assert.Equal(t, uint64(1), e.Snapshot().Generation)
}

// recordSpans returns an engine option that records resolution spans. A
// span ends only after the engine has finished handling its answer.
func recordSpans() (engine.Option, *tracetest.SpanRecorder) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	return engine.WithTracer(tp.Tracer("engine_test")), recorder
}

func isStale(span sdktrace.ReadOnlySpan) bool {
	for _, attr := range span.Attributes() {
		if attr.Key == "stale" {
			return attr.Value.AsBool()
		}
	}
	return false
}

func TestReset_DiscardsLateAnswer(t *testing.T) {
	g := newGate("late answer")
	tracing, spans := recordSpans()
	e, clock := newEngine(t, g, tracing)

	require.NoError(t, e.Submit("q"))
	<-g.calls

	e.Reset()
	assert.False(t, e.Busy())

	// The cancelled context already unblocked the resolver; releasing is a no-op.
	close(g.release)
	waitFor(t, func() bool { return len(spans.Ended()) == 1 })
	assert.True(t, isStale(spans.Ended()[0]))

	assert.Len(t, e.Turns(), 1)
	assert.Equal(t, 0, clock.Pending())

	require.NoError(t, e.Submit("fresh"))
	waitForReveal(t, e, clock, 3)
	assert.Equal(t, "late answer", e.Turns()[2].Content)
}

func TestReset_LateAnswerLeavesNewerRevealRunning(t *testing.T) {
	release := make(chan struct{})
	resolver := engine.ResolverFunc(func(ctx context.Context, query string) (string, error) {
		if query == "first" {
			// Ignores cancellation so its answer arrives after the reset.
			<-release
			return "old1\nold2", nil
		}
		return "new1\nnew2", nil
	})
	tracing, spans := recordSpans()
	e, clock := newEngine(t, resolver, tracing)

	require.NoError(t, e.Submit("first"))
	e.Reset()
	require.NoError(t, e.Submit("second"))
	waitForReveal(t, e, clock, 3)
	clock.Advance(tick)
	require.Equal(t, "new1", e.Turns()[2].Revealed)

	close(release)
	waitFor(t, func() bool { return len(spans.Ended()) == 2 })

	clock.Advance(10 * tick)

	assert.False(t, e.Busy())
	turns := e.Turns()
	require.Len(t, turns, 3)
	assert.Equal(t, "new1\nnew2", turns[2].Revealed)
	assert.Equal(t, 0, clock.Pending())
	require.NoError(t, e.Submit("third"))
}

func TestReset_WhenIdleIsHarmless(t *testing.T) {
	e, _ := newEngine(t, fixed("x"))
	e.Reset()
	e.Reset()
	assert.Len(t, e.Turns(), 1)
	assert.False(t, e.Busy())
}

func TestSubscribe_EventSequence(t *testing.T) {
	e, clock := newEngine(t, fixed("a\nb"))
	events, unsub := e.Subscribe()
	defer unsub()

	require.NoError(t, e.Submit("q"))
	waitForReveal(t, e, clock, 3)
	clock.Advance(time.Second)
	require.False(t, e.Busy())

	var types []model.EventType
	var revealed []string
	for len(events) > 0 {
		ev := <-events
		assert.Equal(t, "session-1", ev.SessionID)
		types = append(types, ev.Type)
		if ev.Type == model.EventTypeTurnRevealed {
			revealed = append(revealed, ev.Revealed)
		}
	}

	assert.Equal(t, []model.EventType{
		model.EventTypeTurnAppended,
		model.EventTypeBusyChanged,
		model.EventTypeTurnAppended,
		model.EventTypeTurnRevealed,
		model.EventTypeTurnRevealed,
		model.EventTypeRevealCompleted,
		model.EventTypeBusyChanged,
	}, types)
	assert.Equal(t, []string{"a", "a\nb"}, revealed)
}

func TestSubscribe_RevealedIsPrefixConsistent(t *testing.T) {
	answer := "# Title\n\npara one\n\n- x\n- y\n"
	e, clock := newEngine(t, fixed(answer))
	events, unsub := e.Subscribe()
	defer unsub()

	require.NoError(t, e.Submit("q"))
	waitForReveal(t, e, clock, 3)
	clock.Advance(time.Second)

	last := ""
	for len(events) > 0 {
		ev := <-events
		if ev.Type != model.EventTypeTurnRevealed && ev.Type != model.EventTypeRevealCompleted {
			continue
		}
		assert.True(t, strings.HasPrefix(ev.Revealed, last))
		last = ev.Revealed
	}
	assert.Equal(t, answer, last)
}

func TestSubscribeWithSnapshot(t *testing.T) {
	e, _ := newEngine(t, fixed("x"))

	snap, events, unsub := e.SubscribeWithSnapshot()
	defer unsub()

	assert.Equal(t, "session-1", snap.SessionID)
	assert.Len(t, snap.Turns, 1)
	assert.Equal(t, 1, e.Subscribers())

	e.Reset()
	ev := <-events
	assert.Equal(t, model.EventTypeReset, ev.Type)
	ev = <-events
	assert.Equal(t, model.EventTypeTurnAppended, ev.Type)
	require.NotNil(t, ev.Turn)
	assert.Equal(t, engine.WelcomeMessage, ev.Turn.Content)
}

func TestClose_EndsSubscriptionsAndRejects(t *testing.T) {
	e, _ := newEngine(t, fixed("x"))
	events, _ := e.Subscribe()

	e.Close()

	_, ok := <-events
	assert.False(t, ok)
	assert.ErrorIs(t, e.Submit("q"), engine.ErrClosed)
	assert.Equal(t, 0, e.Subscribers())
}

func TestScenario_CancerQueryRevealsCannedDocument(t *testing.T) {
	canned := resolver.NewCanned(resolver.WithDelay(0))
	e, clock := newEngine(t, canned)

	require.NoError(t, e.Submit("cancer research"))
	waitForReveal(t, e, clock, 3)
	for e.Busy() {
		clock.Advance(tick)
	}

	turns := e.Turns()
	require.Len(t, turns, 3)
	assert.Equal(t, resolver.CancerReview, turns[2].Content)
	assert.Equal(t, resolver.CancerReview, turns[2].Revealed)
	assert.False(t, e.Busy())
}
