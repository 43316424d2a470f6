package domain

import (
	"time"

	"github.com/google/uuid"
)

// MetadataSystemFolded marks a user message that already carries the folded system prompt.
const MetadataSystemFolded = "system_folded"

// Message is a single entry of a session's chat history.
//
// ID is an opaque token unique within the process; it identifies a message for
// rollback so that equal-by-value duplicates are never confused.
type Message struct {
	ID        string         `json:"id,omitempty"`
	Role      Role           `json:"role"`
	Content   string         `json:"content"`
	Timestamp time.Time      `json:"timestamp,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// NewMessageID returns a fresh opaque message id.
func NewMessageID() string {
	return "msg_" + uuid.New().String()
}

// NewMessage builds a message stamped with a fresh id and the current time.
func NewMessage(role Role, content string) Message {
	return Message{
		ID:        NewMessageID(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// Folded reports whether the system prompt has been folded into this message.
func (m Message) Folded() bool {
	v, ok := m.Metadata[MetadataSystemFolded].(bool)
	return ok && v
}

// CloneMessages returns a copy of msgs whose metadata maps are not shared with the input.
func CloneMessages(msgs []Message) []Message {
	if msgs == nil {
		return nil
	}
	out := make([]Message, len(msgs))
	for i, m := range msgs {
		out[i] = m
		if m.Metadata != nil {
			md := make(map[string]any, len(m.Metadata))
			for k, v := range m.Metadata {
				md[k] = v
			}
			out[i].Metadata = md
		}
	}
	return out
}
