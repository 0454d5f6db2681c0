package middleware

import (
	"errors"
	"unicode/utf8"

	"github.com/google/uuid"
)

// MaxMessageLength bounds a submitted query in bytes.
const MaxMessageLength = 10000

// ValidateMessageContent validates message content. Blank content is left to
// the engine, which rejects it without error.
func ValidateMessageContent(content string) error {
	if len(content) > MaxMessageLength {
		return errors.New("content exceeds maximum length")
	}
	if !utf8.ValidString(content) {
		return errors.New("content must be valid UTF-8")
	}
	return nil
}

// ValidateSessionID validates a session ID.
func ValidateSessionID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return errors.New("invalid session ID format")
	}
	return nil
}

// ValidateInviteCode validates the shape of an invitation code.
func ValidateInviteCode(code string) error {
	if len(code) == 0 {
		return errors.New("code cannot be empty")
	}
	if len(code) > 64 {
		return errors.New("code exceeds maximum length")
	}
	return nil
}
