package model

import (
	"time"
)

// ActivateRequest carries an invitation code.
type ActivateRequest struct {
	Code string `json:"code"`
}

// TokenResponse is returned after a successful activation.
type TokenResponse struct {
	Token     string    `json:"token"`
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SessionInfo describes a chat session owned by a user.
type SessionInfo struct {
	ID           string    `json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	LastActiveAt time.Time `json:"last_active_at"`
	TurnCount    int       `json:"turn_count"`
	Busy         bool      `json:"busy"`
}

// CreateSessionResponse is the response to creating a session.
type CreateSessionResponse struct {
	Session  SessionInfo `json:"session"`
	Snapshot Snapshot    `json:"snapshot"`
}

// ListSessionsResponse is the response for listing sessions.
type ListSessionsResponse struct {
	Sessions []SessionInfo `json:"sessions"`
	Total    int           `json:"total"`
}

// SubmitRequest is the request to submit a query.
type SubmitRequest struct {
	Content string `json:"content"`
}

// SubmitResponse reports whether a submission was taken. Rejections are not
// errors; Reason says why one was dropped.
type SubmitResponse struct {
	Accepted bool   `json:"accepted"`
	Reason   string `json:"reason,omitempty"`
}
