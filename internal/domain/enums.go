// Package domain defines the core domain models for the persona chat engine.
package domain

// Role is the speaker of a message in a conversation.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// EventType represents the type of a journal event.
type EventType string

const (
	EventTypeSessionCreated  EventType = "session_created"
	EventTypeSessionDeleted  EventType = "session_deleted"
	EventTypeCharacterBound  EventType = "character_bound"
	EventTypeProviderBound   EventType = "provider_bound"
	EventTypeHistoryCleared  EventType = "history_cleared"
	EventTypeTurnStarted     EventType = "turn_started"
	EventTypeTurnCompleted   EventType = "turn_completed"
	EventTypeTurnFailed      EventType = "turn_failed"
	EventTypeTurnRolledBack  EventType = "turn_rolled_back"
	EventTypeTurnBlocked     EventType = "turn_blocked"
	// LLM call events
	EventTypeLLMCallStarted EventType = "llm_call_started"
	EventTypeLLMCallDone    EventType = "llm_call_done"
)

// Policy decisions returned by the turn admission policy.
const (
	DecisionAllow = "allow"
	DecisionBlock = "block"
)
