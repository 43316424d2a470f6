package domain

import "time"

// SessionSummary is a read-only snapshot of a session.
type SessionSummary struct {
	SessionID    string    `json:"session_id"`
	Character    string    `json:"character,omitempty"`
	Provider     string    `json:"provider,omitempty"`
	MessageCount int       `json:"message_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	IsCurrent    bool      `json:"is_current"`
}
