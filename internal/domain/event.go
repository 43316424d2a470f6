package domain

import "encoding/json"

// Event is a journal entry describing something that happened to a session.
type Event struct {
	EventID   string          `json:"event_id"`
	SessionID string          `json:"session_id"`
	Ts        int64           `json:"ts"` // Unix milliseconds
	Type      EventType       `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// TurnStartedPayload is the payload for turn_started event.
type TurnStartedPayload struct {
	TurnID    string `json:"turn_id"`
	Character string `json:"character"`
	Provider  string `json:"provider"`
	Stream    bool   `json:"stream"`
}

// TurnCompletedPayload is the payload for turn_completed event.
type TurnCompletedPayload struct {
	TurnID       string `json:"turn_id"`
	MessageID    string `json:"message_id"`
	ResponseLen  int    `json:"response_len"`
	MessageCount int    `json:"message_count"`
}

// TurnFailedPayload is the payload for turn_failed and turn_blocked events.
type TurnFailedPayload struct {
	TurnID  string `json:"turn_id,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// TurnRolledBackPayload is the payload for turn_rolled_back event.
type TurnRolledBackPayload struct {
	TurnID  string `json:"turn_id"`
	Removed bool   `json:"removed"`
}

// BindingPayload is the payload for character_bound and provider_bound events.
type BindingPayload struct {
	Name         string `json:"name"`
	MessageCount int    `json:"message_count"`
}

// LLMCallStartedPayload is the payload for llm_call_started event.
type LLMCallStartedPayload struct {
	RequestID string `json:"request_id"`
	Provider  string `json:"provider"`
	Model     string `json:"model,omitempty"`
	Stream    bool   `json:"stream"`
	Messages  int    `json:"messages"`
}

// LLMCallDonePayload is the payload for llm_call_done event.
type LLMCallDonePayload struct {
	RequestID string `json:"request_id"`
	Provider  string `json:"provider"`
	LatencyMs int64  `json:"latency_ms"`
	Fragments int    `json:"fragments,omitempty"`
	Error     string `json:"error,omitempty"`
}
