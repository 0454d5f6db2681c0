package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hilvik/vivum-demo-v1/internal/engine"
	"github.com/hilvik/vivum-demo-v1/pkg/logger"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Add(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingSink struct {
	mu       sync.Mutex
	attached []string
}

func (r *recordingSink) Attach(id string, _ *engine.Engine) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attached = append(r.attached, id)
}

func newService(t *testing.T, opts ...Option) (*SessionService, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)}
	factory := func(id string) *engine.Engine {
		return engine.New(engine.ResolverFunc(func(context.Context, string) (string, error) {
			return "answer", nil
		}), engine.WithID(id), engine.WithLogger(logger.NewNop()))
	}
	svc := NewSessionService(factory, logger.NewNop(), append([]Option{WithClock(clock.Now)}, opts...)...)
	t.Cleanup(svc.Close)
	return svc, clock
}

func TestSessionService_CreateAndGet(t *testing.T) {
	sink := &recordingSink{}
	svc, _ := newService(t, WithEventSink(sink))
	ctx := context.Background()

	sess, err := svc.Create(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", sess.UserID)
	assert.Equal(t, sess.ID, sess.Engine.ID())
	assert.Len(t, sess.Engine.Turns(), 1)
	assert.Equal(t, []string{sess.ID}, sink.attached)

	got, err := svc.Get(ctx, "user-1", sess.ID)
	require.NoError(t, err)
	assert.Same(t, sess, got)

	_, err = svc.Get(ctx, "user-2", sess.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, err = svc.Get(ctx, "user-1", "missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionService_List(t *testing.T) {
	svc, clock := newService(t)
	ctx := context.Background()

	first, err := svc.Create(ctx, "user-1")
	require.NoError(t, err)
	clock.Add(time.Minute)
	second, err := svc.Create(ctx, "user-1")
	require.NoError(t, err)
	_, err = svc.Create(ctx, "user-2")
	require.NoError(t, err)

	resp := svc.List(ctx, "user-1")
	require.Equal(t, 2, resp.Total)
	assert.Equal(t, first.ID, resp.Sessions[0].ID)
	assert.Equal(t, second.ID, resp.Sessions[1].ID)
	assert.Equal(t, 1, resp.Sessions[0].TurnCount)

	assert.Equal(t, 0, svc.List(ctx, "nobody").Total)
}

func TestSessionService_Delete(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	sess, err := svc.Create(ctx, "user-1")
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Delete(ctx, "user-2", sess.ID), ErrSessionNotFound)
	require.NoError(t, svc.Delete(ctx, "user-1", sess.ID))
	assert.ErrorIs(t, svc.Delete(ctx, "user-1", sess.ID), ErrSessionNotFound)

	assert.ErrorIs(t, sess.Engine.Submit("q"), engine.ErrClosed)
	assert.Equal(t, 0, svc.Count())
}

func TestSessionService_MaxSessions(t *testing.T) {
	svc, _ := newService(t, WithMaxSessions(2))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := svc.Create(ctx, "user-1")
		require.NoError(t, err)
	}
	_, err := svc.Create(ctx, "user-1")
	assert.ErrorIs(t, err, ErrTooManySessions)
}

func TestSessionService_EvictIdle(t *testing.T) {
	svc, clock := newService(t, WithIdleTimeout(10*time.Minute))
	ctx := context.Background()

	stale, err := svc.Create(ctx, "user-1")
	require.NoError(t, err)
	watched, err := svc.Create(ctx, "user-1")
	require.NoError(t, err)
	_, unsub := watched.Engine.Subscribe()
	defer unsub()

	clock.Add(8 * time.Minute)
	fresh, err := svc.Create(ctx, "user-1")
	require.NoError(t, err)

	clock.Add(5 * time.Minute)
	evicted := svc.EvictIdle(clock.Now())

	assert.Equal(t, 1, evicted)
	_, err = svc.Get(ctx, "user-1", stale.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = svc.Get(ctx, "user-1", watched.ID)
	assert.NoError(t, err, "sessions with subscribers are kept")
	_, err = svc.Get(ctx, "user-1", fresh.ID)
	assert.NoError(t, err)
}

func TestSessionService_GetRefreshesActivity(t *testing.T) {
	svc, clock := newService(t, WithIdleTimeout(10*time.Minute))
	ctx := context.Background()

	sess, err := svc.Create(ctx, "user-1")
	require.NoError(t, err)

	clock.Add(9 * time.Minute)
	_, err = svc.Get(ctx, "user-1", sess.ID)
	require.NoError(t, err)

	clock.Add(9 * time.Minute)
	assert.Equal(t, 0, svc.EvictIdle(clock.Now()))
}

func TestSessionService_RunStopsWithContext(t *testing.T) {
	svc, _ := newService(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		svc.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

type subscribingSink struct{}

func (subscribingSink) Attach(_ string, e *engine.Engine) {
	e.Subscribe()
}

func TestSessionService_EvictIdleIgnoresSinkSubscription(t *testing.T) {
	svc, clock := newService(t, WithEventSink(subscribingSink{}), WithIdleTimeout(time.Minute))
	ctx := context.Background()

	sess, err := svc.Create(ctx, "user-1")
	require.NoError(t, err)
	require.Equal(t, 1, sess.Engine.Subscribers())

	clock.Add(2 * time.Minute)
	assert.Equal(t, 1, svc.EvictIdle(clock.Now()))
}
