package domain

// CompletionOptions tunes a single provider call. Nil fields fall back to provider defaults.
type CompletionOptions struct {
	Model       string         `json:"model,omitempty"`
	MaxTokens   *int           `json:"max_tokens,omitempty"`
	Temperature *float64       `json:"temperature,omitempty"`
	TopP        *float64       `json:"top_p,omitempty"`
	ExtraBody   map[string]any `json:"extra_body,omitempty"`
}

// TurnRequest is one user turn against a session.
type TurnRequest struct {
	SessionID string            `json:"session_id,omitempty"`
	Input     string            `json:"input"`
	UserName  string            `json:"user_name,omitempty"`
	Vars      map[string]string `json:"vars,omitempty"`
	Options   CompletionOptions `json:"options,omitempty"`
}

// CreateSessionRequest is the body of POST /v1/sessions.
type CreateSessionRequest struct {
	SessionID string `json:"session_id,omitempty"`
}

// BindCharacterRequest is the body of PUT /v1/sessions/:session_id/character.
type BindCharacterRequest struct {
	Name string `json:"name"`
}

// BindProviderRequest is the body of PUT /v1/sessions/:session_id/provider.
type BindProviderRequest struct {
	Provider string `json:"provider"`
}

// TurnHTTPRequest is the body of POST /v1/sessions/:session_id/turns.
type TurnHTTPRequest struct {
	Input    string            `json:"input"`
	UserName string            `json:"user_name,omitempty"`
	Vars     map[string]string `json:"vars,omitempty"`
	Options  CompletionOptions `json:"options,omitempty"`
	Stream   bool              `json:"stream,omitempty"`
}

// TurnResponse is the non-streaming turn result.
type TurnResponse struct {
	SessionID string `json:"session_id"`
	Content   string `json:"content"`
}

// SetVariableRequest is the body of PUT /v1/variables/:key.
type SetVariableRequest struct {
	Value string `json:"value"`
}

// ProviderInfo describes a registered provider.
type ProviderInfo struct {
	Name   string   `json:"name"`
	Models []string `json:"models"`
}

// ErrorBody is the JSON error envelope returned by the HTTP API.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
