// Package engine runs one research conversation: it accepts a query, resolves
// an answer for it and reveals that answer to observers segment by segment.
//
// Only one query may be in flight per engine. While an answer is being
// resolved or revealed the engine is busy and further submissions are
// dropped. Reset abandons whatever is in flight; results that arrive for an
// abandoned round trip are discarded by comparing generation numbers.
package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/hilvik/vivum-demo-v1/internal/model"
	"github.com/hilvik/vivum-demo-v1/internal/reveal"
	"github.com/hilvik/vivum-demo-v1/pkg/logger"
	"github.com/hilvik/vivum-demo-v1/pkg/metrics"
)

// DefaultResolveTimeout bounds a single answer resolution.
const DefaultResolveTimeout = time.Minute

var (
	// ErrEmptySubmission is returned for blank queries. Nothing changes.
	ErrEmptySubmission = errors.New("empty submission")
	// ErrBusy is returned while a previous query is still in flight. The
	// submission is dropped, not queued.
	ErrBusy = errors.New("a response is already in progress")
	// ErrClosed is returned by a closed engine.
	ErrClosed = errors.New("engine closed")
)

// AnswerResolver produces the full answer text for a query.
type AnswerResolver interface {
	Resolve(ctx context.Context, query string) (string, error)
}

// ResolverFunc adapts a function to AnswerResolver.
type ResolverFunc func(ctx context.Context, query string) (string, error)

// Resolve calls f.
func (f ResolverFunc) Resolve(ctx context.Context, query string) (string, error) {
	return f(ctx, query)
}

// Engine owns one conversation.
type Engine struct {
	id             string
	resolver       AnswerResolver
	resolverName   string
	scheduler      *reveal.Scheduler
	events         *broadcaster
	logger         *logger.Logger
	tracer         trace.Tracer
	now            func() time.Time
	welcome        string
	errorMessage   string
	resolveTimeout time.Duration

	mu            sync.Mutex
	turns         []model.Turn
	busy          bool
	generation    uint64
	cancelResolve context.CancelFunc
	reveal        *reveal.Session
	closed        bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithID sets the session id stamped on events.
func WithID(id string) Option {
	return func(e *Engine) { e.id = id }
}

// WithLogger sets the logger.
func WithLogger(log *logger.Logger) Option {
	return func(e *Engine) {
		if log != nil {
			e.logger = log
		}
	}
}

// WithScheduler sets the reveal scheduler.
func WithScheduler(s *reveal.Scheduler) Option {
	return func(e *Engine) {
		if s != nil {
			e.scheduler = s
		}
	}
}

// WithWelcome replaces the welcome message. An empty message starts
// conversations empty.
func WithWelcome(msg string) Option {
	return func(e *Engine) { e.welcome = msg }
}

// WithErrorMessage replaces the message shown when resolution fails.
func WithErrorMessage(msg string) Option {
	return func(e *Engine) {
		if msg != "" {
			e.errorMessage = msg
		}
	}
}

// WithResolveTimeout bounds each resolution.
func WithResolveTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.resolveTimeout = d
		}
	}
}

// WithResolverName sets the resolver label used in metrics.
func WithResolverName(name string) Option {
	return func(e *Engine) {
		if name != "" {
			e.resolverName = name
		}
	}
}

// WithTracer sets the tracer used for resolution spans.
func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) {
		if t != nil {
			e.tracer = t
		}
	}
}

// WithNow sets the time source for turn timestamps.
func WithNow(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// New creates an engine seeded with the welcome turn.
func New(resolver AnswerResolver, opts ...Option) *Engine {
	e := &Engine{
		resolver:       resolver,
		resolverName:   "custom",
		scheduler:      reveal.NewScheduler(),
		events:         newBroadcaster(),
		logger:         logger.Global(),
		tracer:         otel.Tracer("github.com/hilvik/vivum-demo-v1/internal/engine"),
		now:            time.Now,
		welcome:        WelcomeMessage,
		errorMessage:   ErrorMessage,
		resolveTimeout: DefaultResolveTimeout,
	}
	if named, ok := resolver.(interface{ Name() string }); ok {
		e.resolverName = named.Name()
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With(zap.String("session_id", e.id))

	e.seedLocked()
	return e
}

// ID returns the session id the engine was created with.
func (e *Engine) ID() string {
	return e.id
}

// Submit starts a round trip for query. Blank queries and queries arriving
// while the engine is busy are rejected without any state change.
func (e *Engine) Submit(query string) error {
	if strings.TrimSpace(query) == "" {
		metrics.SubmissionsTotal.WithLabelValues(metrics.OutcomeEmpty).Inc()
		return ErrEmptySubmission
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	if e.busy {
		e.mu.Unlock()
		metrics.SubmissionsTotal.WithLabelValues(metrics.OutcomeBusy).Inc()
		return ErrBusy
	}

	e.appendLocked(e.newTurn(model.RoleUser, query, query))
	e.setBusyLocked(true)

	gen := e.generation
	ctx, cancel := context.WithTimeout(context.Background(), e.resolveTimeout)
	e.cancelResolve = cancel
	e.mu.Unlock()

	metrics.SubmissionsTotal.WithLabelValues(metrics.OutcomeAccepted).Inc()
	e.logger.Debug("query accepted", zap.Int("query_length", len(query)), zap.Uint64("generation", gen))

	go e.resolve(ctx, cancel, gen, query)
	return nil
}

func (e *Engine) resolve(ctx context.Context, cancel context.CancelFunc, gen uint64, query string) {
	defer cancel()

	ctx, span := e.tracer.Start(ctx, "engine.resolve", trace.WithAttributes(
		attribute.String("session.id", e.id),
		attribute.String("resolver", e.resolverName),
		attribute.Int("query.length", len(query)),
	))
	defer span.End()

	start := time.Now()
	answer, err := e.resolver.Resolve(ctx, query)
	status := "ok"
	if err != nil {
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	metrics.RecordResolve(e.resolverName, status, time.Since(start).Seconds())

	e.mu.Lock()
	defer e.mu.Unlock()

	if gen != e.generation || e.closed {
		span.SetAttributes(attribute.Bool("stale", true))
		e.logger.Debug("discarding stale answer", zap.Uint64("generation", gen))
		return
	}
	e.cancelResolve = nil

	if err != nil {
		e.logger.Warn("answer resolution failed", zap.Error(err))
		e.appendLocked(e.newTurn(model.RoleAssistant, e.errorMessage, e.errorMessage))
		e.setBusyLocked(false)
		return
	}

	span.SetAttributes(attribute.Int("answer.length", len(answer)))
	index := e.appendLocked(e.newTurn(model.RoleAssistant, answer, ""))

	// The generation check above and starting the reveal happen under one
	// hold of e.mu, so a reveal is never started for an abandoned round trip.
	if len(reveal.Split(answer)) == 0 {
		e.finishLocked(index)
		return
	}

	metrics.RecordRevealStarted()
	e.reveal = e.scheduler.Start(answer,
		func(prefix string) { e.onProgress(gen, index, prefix) },
		func() { e.onDone(gen, index) },
	)
	e.logger.Debug("reveal started",
		zap.Int("segments", e.reveal.Len()),
		zap.Duration("interval", e.scheduler.Interval()),
	)
}

func (e *Engine) onProgress(gen uint64, index int, prefix string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if gen != e.generation || index >= len(e.turns) {
		return
	}
	turn := &e.turns[index]
	turn.Revealed = prefix

	metrics.RevealSegmentsTotal.Inc()
	e.publishLocked(model.Event{
		Type:     model.EventTypeTurnRevealed,
		Index:    index,
		TurnID:   turn.ID,
		Revealed: prefix,
	})
}

func (e *Engine) onDone(gen uint64, index int) {
	metrics.RecordRevealFinished(metrics.RevealCompleted)

	e.mu.Lock()
	defer e.mu.Unlock()

	if gen != e.generation || index >= len(e.turns) {
		return
	}
	e.reveal = nil
	e.finishLocked(index)
}

// finishLocked marks the turn at index fully revealed and ends the round trip.
func (e *Engine) finishLocked(index int) {
	turn := &e.turns[index]
	turn.Revealed = turn.Content

	e.publishLocked(model.Event{
		Type:     model.EventTypeRevealCompleted,
		Index:    index,
		TurnID:   turn.ID,
		Revealed: turn.Revealed,
	})
	e.setBusyLocked(false)
}

// Reset abandons any in-flight round trip, clears the conversation and
// reseeds it with the welcome turn.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}
	e.abandonLocked()
	e.turns = nil
	e.busy = false
	e.publishLocked(model.Event{Type: model.EventTypeReset})
	e.seedLocked()

	e.logger.Debug("conversation reset", zap.Uint64("generation", e.generation))
}

// Close abandons in-flight work and ends every subscription. A closed engine
// rejects submissions.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}
	e.abandonLocked()
	e.busy = false
	e.closed = true
	e.events.close()
}

// abandonLocked moves to a new generation so late results are ignored, and
// cancels the pending resolution and reveal.
func (e *Engine) abandonLocked() {
	e.generation++
	if e.cancelResolve != nil {
		e.cancelResolve()
		e.cancelResolve = nil
	}
	if e.reveal != nil && e.reveal.Cancel() {
		metrics.RecordRevealFinished(metrics.RevealCancelled)
		e.logger.Debug("reveal cancelled",
			zap.Int("delivered", e.reveal.Delivered()),
			zap.Int("segments", e.reveal.Len()),
		)
	}
	e.reveal = nil
}

// Closed reports whether Close has been called.
func (e *Engine) Closed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// Busy reports whether a round trip is in flight.
func (e *Engine) Busy() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.busy
}

// Turns returns a copy of the conversation.
func (e *Engine) Turns() []model.Turn {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.turnsLocked()
}

// Snapshot returns the current state of the conversation.
func (e *Engine) Snapshot() model.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// Subscribe returns a channel of conversation events and a function that
// ends the subscription. A subscriber that falls too far behind has its
// channel closed and should resubscribe.
func (e *Engine) Subscribe() (<-chan model.Event, func()) {
	return e.events.subscribe()
}

// SubscribeWithSnapshot is Subscribe plus the state the first event applies
// to, taken atomically.
func (e *Engine) SubscribeWithSnapshot() (model.Snapshot, <-chan model.Event, func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ch, unsub := e.events.subscribe()
	return e.snapshotLocked(), ch, unsub
}

// Subscribers returns the number of live subscriptions.
func (e *Engine) Subscribers() int {
	return e.events.count()
}

func (e *Engine) seedLocked() {
	if e.welcome == "" {
		return
	}
	e.appendLocked(e.newTurn(model.RoleAssistant, e.welcome, e.welcome))
}

func (e *Engine) newTurn(role model.Role, content, revealed string) model.Turn {
	return model.Turn{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Role:      role,
		Content:   content,
		Revealed:  revealed,
		CreatedAt: e.now(),
	}
}

func (e *Engine) appendLocked(turn model.Turn) int {
	e.turns = append(e.turns, turn)
	index := len(e.turns) - 1
	e.publishLocked(model.Event{
		Type:   model.EventTypeTurnAppended,
		Index:  index,
		Turn:   &turn,
		TurnID: turn.ID,
	})
	return index
}

func (e *Engine) setBusyLocked(busy bool) {
	if e.busy == busy {
		return
	}
	e.busy = busy
	e.publishLocked(model.Event{Type: model.EventTypeBusyChanged})
}

// publishLocked stamps ev with the current state and fans it out. Holding
// e.mu keeps events in the order the changes were made.
func (e *Engine) publishLocked(ev model.Event) {
	ev.SessionID = e.id
	ev.Generation = e.generation
	ev.Busy = e.busy
	ev.CreatedAt = e.now()
	e.events.send(ev)
}

func (e *Engine) turnsLocked() []model.Turn {
	out := make([]model.Turn, len(e.turns))
	copy(out, e.turns)
	return out
}

func (e *Engine) snapshotLocked() model.Snapshot {
	return model.Snapshot{
		SessionID:  e.id,
		Generation: e.generation,
		Busy:       e.busy,
		Turns:      e.turnsLocked(),
	}
}
