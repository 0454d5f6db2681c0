package model

import (
	"time"
)

// EventType represents the type of conversation event.
type EventType string

const (
	EventTypeTurnAppended    EventType = "turn_appended"
	EventTypeTurnRevealed    EventType = "turn_revealed"
	EventTypeRevealCompleted EventType = "reveal_completed"
	EventTypeBusyChanged     EventType = "busy_changed"
	EventTypeReset           EventType = "reset"
)

// Event notifies observers of a conversation change. Events carry current
// values only; a subscriber that misses one can recover from a Snapshot.
type Event struct {
	Type       EventType `json:"type"`
	SessionID  string    `json:"session_id,omitempty"`
	Generation uint64    `json:"generation"`
	Index      int       `json:"index"`
	Turn       *Turn     `json:"turn,omitempty"`
	TurnID     string    `json:"turn_id,omitempty"`
	Revealed   string    `json:"revealed_content,omitempty"`
	Busy       bool      `json:"busy"`
	CreatedAt  time.Time `json:"created_at"`
}

// ErrorEvent represents an error event on the stream.
type ErrorEvent struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// HeartbeatEvent represents a heartbeat event.
type HeartbeatEvent struct {
	Timestamp time.Time `json:"timestamp"`
}
