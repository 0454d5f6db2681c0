// Package model defines data structures for the research chat.
package model

import (
	"time"
)

// Role represents the role of a turn's author.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one entry of a conversation.
//
// Content is final once the turn exists. Revealed is the visible prefix of
// Content and only grows until it equals Content.
type Turn struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Revealed  string    `json:"revealed_content"`
	CreatedAt time.Time `json:"created_at"`
}

// Revealing reports whether the turn is still being revealed.
func (t Turn) Revealing() bool {
	return t.Revealed != t.Content
}

// Snapshot is the current state of one conversation.
type Snapshot struct {
	SessionID  string `json:"session_id"`
	Generation uint64 `json:"generation"`
	Busy       bool   `json:"busy"`
	Turns      []Turn `json:"turns"`
}
