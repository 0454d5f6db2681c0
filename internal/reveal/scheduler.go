// Package reveal turns finished text into a timed sequence of growing
// prefixes, one line-delimited segment per tick.
//
// A Session delivers its prefixes to an onProgress callback in order, each a
// prefix of the next, and calls onDone after the last one. Cancelling a
// session stops delivery; a Scheduler never lets two of its sessions run at
// once.
package reveal

import (
	"sync"
	"time"
)

// DefaultInterval is the pause between two segments.
const DefaultInterval = 100 * time.Millisecond

// ProgressFunc receives the currently revealed prefix.
type ProgressFunc func(prefix string)

// Scheduler starts reveal sessions. Starting a session cancels the one
// started before it.
type Scheduler struct {
	clock    Clock
	interval time.Duration

	mu     sync.Mutex
	active *Session
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock sets the clock ticks are scheduled on.
func WithClock(c Clock) Option {
	return func(s *Scheduler) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithInterval sets the pause between segments.
func WithInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

// NewScheduler creates a scheduler on the wall clock with DefaultInterval.
func NewScheduler(opts ...Option) *Scheduler {
	s := &Scheduler{
		clock:    RealClock,
		interval: DefaultInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Interval returns the pause between segments.
func (s *Scheduler) Interval() time.Duration {
	return s.interval
}

// Start begins revealing text. Empty text, or text made only of delimiters,
// calls onDone before Start returns and schedules nothing. Any session
// previously started on s is cancelled first.
func (s *Scheduler) Start(text string, onProgress ProgressFunc, onDone func()) *Session {
	if onProgress == nil {
		onProgress = func(string) {}
	}
	if onDone == nil {
		onDone = func() {}
	}

	sess := &Session{
		text:       text,
		segments:   Split(text),
		interval:   s.interval,
		clock:      s.clock,
		onProgress: onProgress,
		onDone:     onDone,
	}

	s.mu.Lock()
	prev := s.active
	s.active = sess
	s.mu.Unlock()

	if prev != nil {
		prev.Cancel()
	}

	sess.begin()
	return sess
}

// Cancel cancels the most recently started session, if it is still running.
func (s *Scheduler) Cancel() bool {
	s.mu.Lock()
	sess := s.active
	s.active = nil
	s.mu.Unlock()

	if sess == nil {
		return false
	}
	return sess.Cancel()
}

// Session is one reveal of one text.
type Session struct {
	text       string
	segments   []Segment
	interval   time.Duration
	clock      Clock
	onProgress ProgressFunc
	onDone     func()

	mu        sync.Mutex
	cursor    int
	timer     Timer
	cancelled bool
	finished  bool
}

func (s *Session) begin() {
	if len(s.segments) == 0 {
		s.mu.Lock()
		s.finished = true
		s.mu.Unlock()
		s.onDone()
		return
	}

	s.mu.Lock()
	s.timer = s.clock.AfterFunc(s.interval, s.tick)
	s.mu.Unlock()
}

// tick delivers one segment. The next tick is only scheduled after the
// callback returns, so deliveries for a session never overlap.
func (s *Session) tick() {
	s.mu.Lock()
	if s.cancelled || s.finished {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	seg := s.segments[s.cursor]
	s.cursor++
	last := s.cursor == len(s.segments)
	prefix := s.text[:seg.End]
	if last {
		prefix = s.text
	}
	s.mu.Unlock()

	s.onProgress(prefix)

	s.mu.Lock()
	if s.cancelled {
		s.mu.Unlock()
		return
	}
	if last {
		s.finished = true
		s.mu.Unlock()
		s.onDone()
		return
	}
	s.timer = s.clock.AfterFunc(s.interval, s.tick)
	s.mu.Unlock()
}

// Cancel stops the session. It reports whether the session was still
// running; cancelling a finished or cancelled session does nothing.
//
// Cancel does not wait for a delivery already running on another goroutine:
// that one onProgress call may still happen after Cancel returns, but nothing
// is delivered after it and onDone is never called. Callers that must ignore
// such a late delivery tag their callbacks, as the engine does with
// generations. A Cancel made from inside onProgress stops everything after
// that call.
func (s *Session) Cancel() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancelled || s.finished {
		return false
	}
	s.cancelled = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	return true
}

// Len returns the number of segments the session reveals.
func (s *Session) Len() int {
	return len(s.segments)
}

// Delivered returns how many segments have been delivered so far.
func (s *Session) Delivered() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

// Finished reports whether onDone has been (or is being) called.
func (s *Session) Finished() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finished
}

// Cancelled reports whether the session was cancelled before finishing.
func (s *Session) Cancelled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelled
}
