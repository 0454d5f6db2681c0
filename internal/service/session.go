// Package service manages the chat sessions behind the API.
package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hilvik/vivum-demo-v1/internal/engine"
	"github.com/hilvik/vivum-demo-v1/internal/model"
	"github.com/hilvik/vivum-demo-v1/pkg/logger"
	"github.com/hilvik/vivum-demo-v1/pkg/metrics"
)

var (
	// ErrSessionNotFound is returned for unknown sessions and for sessions
	// owned by another user.
	ErrSessionNotFound = errors.New("session not found")
	// ErrTooManySessions is returned when the session limit is reached.
	ErrTooManySessions = errors.New("too many sessions")
)

// EngineFactory builds the engine for a new session.
type EngineFactory func(sessionID string) *engine.Engine

// EventSink receives every new session's engine so it can observe it.
type EventSink interface {
	Attach(sessionID string, e *engine.Engine)
}

// Session is one user's conversation.
type Session struct {
	ID        string
	UserID    string
	CreatedAt time.Time
	Engine    *engine.Engine

	// sinkSubscribers is how many engine subscriptions belong to the event
	// sink rather than to clients.
	sinkSubscribers int

	mu         sync.Mutex
	lastActive time.Time
}

// watched reports whether a client is subscribed to the session.
func (s *Session) watched() bool {
	return s.Engine.Subscribers() > s.sinkSubscribers
}

// Touch records activity at now.
func (s *Session) Touch(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if now.After(s.lastActive) {
		s.lastActive = now
	}
}

// LastActive returns the time of the latest activity.
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// Info summarises the session.
func (s *Session) Info() model.SessionInfo {
	snap := s.Engine.Snapshot()
	return model.SessionInfo{
		ID:           s.ID,
		CreatedAt:    s.CreatedAt,
		LastActiveAt: s.LastActive(),
		TurnCount:    len(snap.Turns),
		Busy:         snap.Busy,
	}
}

// SessionService handles session operations.
type SessionService struct {
	newEngine   EngineFactory
	sink        EventSink
	logger      *logger.Logger
	idleTimeout time.Duration
	maxSessions int
	now         func() time.Time

	// In-memory only: conversations do not outlive the process.
	sessions map[string]*Session
	mu       sync.RWMutex
}

// Option configures a SessionService.
type Option func(*SessionService)

// WithEventSink attaches sink to every new session.
func WithEventSink(sink EventSink) Option {
	return func(s *SessionService) { s.sink = sink }
}

// WithIdleTimeout sets how long a session may sit idle before eviction.
func WithIdleTimeout(d time.Duration) Option {
	return func(s *SessionService) {
		if d > 0 {
			s.idleTimeout = d
		}
	}
}

// WithMaxSessions caps the number of live sessions.
func WithMaxSessions(n int) Option {
	return func(s *SessionService) {
		if n > 0 {
			s.maxSessions = n
		}
	}
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(s *SessionService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewSessionService creates a new session service.
func NewSessionService(newEngine EngineFactory, log *logger.Logger, opts ...Option) *SessionService {
	s := &SessionService{
		newEngine:   newEngine,
		logger:      log,
		idleTimeout: 30 * time.Minute,
		maxSessions: 1000,
		now:         time.Now,
		sessions:    make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create starts a new session for userID.
func (s *SessionService) Create(ctx context.Context, userID string) (*Session, error) {
	now := s.now()
	id := uuid.Must(uuid.NewV7()).String()

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.sessions) >= s.maxSessions {
		return nil, ErrTooManySessions
	}
	sess := &Session{
		ID:         id,
		UserID:     userID,
		CreatedAt:  now,
		Engine:     s.newEngine(id),
		lastActive: now,
	}
	if s.sink != nil {
		s.sink.Attach(id, sess.Engine)
		sess.sinkSubscribers = sess.Engine.Subscribers()
	}
	s.sessions[id] = sess

	metrics.SessionsActive.Inc()

	s.logger.Info("session created",
		zap.String("session_id", id),
		zap.String("user_id", userID),
	)

	return sess, nil
}

// Get retrieves a session by ID and marks it active.
func (s *SessionService) Get(ctx context.Context, userID, sessionID string) (*Session, error) {
	s.mu.RLock()
	sess, exists := s.sessions[sessionID]
	s.mu.RUnlock()

	if !exists || sess.UserID != userID {
		return nil, ErrSessionNotFound
	}

	sess.Touch(s.now())
	return sess, nil
}

// List returns userID's sessions, oldest first.
func (s *SessionService) List(ctx context.Context, userID string) *model.ListSessionsResponse {
	s.mu.RLock()
	var owned []*Session
	for _, sess := range s.sessions {
		if sess.UserID == userID {
			owned = append(owned, sess)
		}
	}
	s.mu.RUnlock()

	sort.Slice(owned, func(i, j int) bool {
		if owned[i].CreatedAt.Equal(owned[j].CreatedAt) {
			return owned[i].ID < owned[j].ID
		}
		return owned[i].CreatedAt.Before(owned[j].CreatedAt)
	})

	infos := make([]model.SessionInfo, len(owned))
	for i, sess := range owned {
		infos[i] = sess.Info()
	}

	return &model.ListSessionsResponse{
		Sessions: infos,
		Total:    len(infos),
	}
}

// Delete removes a session and closes its engine.
func (s *SessionService) Delete(ctx context.Context, userID, sessionID string) error {
	s.mu.Lock()
	sess, exists := s.sessions[sessionID]
	if !exists || sess.UserID != userID {
		s.mu.Unlock()
		return ErrSessionNotFound
	}
	delete(s.sessions, sessionID)
	s.mu.Unlock()

	sess.Engine.Close()
	metrics.SessionsActive.Dec()

	s.logger.Info("session deleted", zap.String("session_id", sessionID))
	return nil
}

// Count returns the number of live sessions.
func (s *SessionService) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// EvictIdle closes sessions idle for longer than the idle timeout. Busy
// sessions and sessions with live subscribers are kept.
func (s *SessionService) EvictIdle(now time.Time) int {
	cutoff := now.Add(-s.idleTimeout)

	s.mu.Lock()
	var evicted []*Session
	for id, sess := range s.sessions {
		if sess.LastActive().After(cutoff) || sess.Engine.Busy() || sess.watched() {
			continue
		}
		delete(s.sessions, id)
		evicted = append(evicted, sess)
	}
	s.mu.Unlock()

	for _, sess := range evicted {
		sess.Engine.Close()
		metrics.SessionsActive.Dec()
	}
	if len(evicted) > 0 {
		s.logger.Info("evicted idle sessions", zap.Int("count", len(evicted)))
	}
	return len(evicted)
}

// Run evicts idle sessions periodically until ctx is done.
func (s *SessionService) Run(ctx context.Context) {
	interval := s.idleTimeout / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.EvictIdle(s.now())
		}
	}
}

// Close closes every session.
func (s *SessionService) Close() {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[string]*Session)
	s.mu.Unlock()

	for _, sess := range sessions {
		sess.Engine.Close()
		metrics.SessionsActive.Dec()
	}
}
