package ws

import "github.com/xiaot623/gogo/persona/internal/domain"

// Message types from client to server
const (
	TypeHello  = "hello"
	TypeTurn   = "turn"
	TypeCancel = "cancel"
)

// Message types from server to client
const (
	TypeHelloAck = "hello_ack"
	TypeDelta    = "delta"
	TypeDone     = "done"
	TypeError    = "error"
)

// Error codes specific to the websocket protocol. Turn failures reuse the
// domain error codes.
const (
	ErrorCodeInvalidMessage  = "invalid_message"
	ErrorCodeSessionRequired = "session_required"
	ErrorCodeTurnInProgress  = "turn_in_progress"
	ErrorCodeCanceled        = "canceled"
)

// BaseMessage contains common fields for all messages.
type BaseMessage struct {
	Type      string `json:"type"`
	Ts        int64  `json:"ts"`
	RequestID string `json:"request_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

// HelloMessage binds the connection to a session. An unknown or empty
// session id creates a new session.
type HelloMessage struct {
	BaseMessage
	Character string `json:"character,omitempty"`
	Provider  string `json:"provider,omitempty"`
	UserName  string `json:"user_name,omitempty"`
}

// HelloAckMessage confirms the session binding.
type HelloAckMessage struct {
	BaseMessage
	Character string `json:"character,omitempty"`
	Provider  string `json:"provider,omitempty"`
}

// TurnMessage runs one user turn on the bound session.
type TurnMessage struct {
	BaseMessage
	Content string                   `json:"content"`
	Vars    map[string]string        `json:"vars,omitempty"`
	Options domain.CompletionOptions `json:"options,omitempty"`
}

// CancelMessage aborts the running turn; the turn is rolled back.
type CancelMessage struct {
	BaseMessage
}

// DeltaMessage carries one reply fragment.
type DeltaMessage struct {
	BaseMessage
	Text string `json:"text"`
}

// DoneMessage ends a turn with the full reply.
type DoneMessage struct {
	BaseMessage
	Content string `json:"content"`
}

// ErrorMessage reports a failed request.
type ErrorMessage struct {
	BaseMessage
	Code    string `json:"code"`
	Message string `json:"message"`
}
