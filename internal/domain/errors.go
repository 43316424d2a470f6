package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNoSession is returned when no session id was given and none is current.
	ErrNoSession = errors.New("no current session")
	// ErrSessionNotFound is returned when a session id is not registered.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionExists is returned when creating a session whose id is taken.
	ErrSessionExists = errors.New("session already exists")
	// ErrCharacterNotBound is returned when a turn is attempted without a character.
	ErrCharacterNotBound = errors.New("character not bound")
	// ErrProviderNotBound is returned when a turn is attempted without a provider.
	ErrProviderNotBound = errors.New("provider not bound")
	// ErrCharacterNotFound is returned when a character name cannot be resolved.
	ErrCharacterNotFound = errors.New("character not found")
	// ErrProviderNotFound is returned when a provider name is not registered.
	ErrProviderNotFound = errors.New("provider not found")
	// ErrTurnBlocked is returned when the admission policy rejects a turn.
	ErrTurnBlocked = errors.New("turn blocked by policy")
)

// ResolutionError reports that the target session could not be resolved.
type ResolutionError struct {
	SessionID string
	Err       error
}

func (e *ResolutionError) Error() string {
	if e.SessionID == "" {
		return fmt.Sprintf("resolve session: %v", e.Err)
	}
	return fmt.Sprintf("resolve session %s: %v", e.SessionID, e.Err)
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// PreconditionError reports that a session is not ready for a turn.
type PreconditionError struct {
	SessionID string
	Err       error // ErrCharacterNotBound or ErrProviderNotBound
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("session %s: %v", e.SessionID, e.Err)
}

func (e *PreconditionError) Unwrap() error {
	return e.Err
}

// ProviderCallError wraps any transport or API failure from a provider.
type ProviderCallError struct {
	Provider string
	Op       string // "chat_completion" or "chat_completion_stream"
	Err      error
}

func (e *ProviderCallError) Error() string {
	return fmt.Sprintf("provider %s %s failed: %v", e.Provider, e.Op, e.Err)
}

func (e *ProviderCallError) Unwrap() error {
	return e.Err
}

// PolicyError reports a turn rejected by the admission policy.
type PolicyError struct {
	SessionID string
	Reason    string
}

func (e *PolicyError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("session %s: %v", e.SessionID, ErrTurnBlocked)
	}
	return fmt.Sprintf("session %s: %v: %s", e.SessionID, ErrTurnBlocked, e.Reason)
}

func (e *PolicyError) Unwrap() error {
	return ErrTurnBlocked
}

// Error codes shared by the HTTP and websocket APIs.
const (
	CodeNoSession          = "no_session"
	CodeSessionNotFound    = "session_not_found"
	CodeSessionExists      = "session_exists"
	CodePreconditionFailed = "precondition_failed"
	CodeTurnBlocked        = "turn_blocked"
	CodeProviderError      = "provider_error"
	CodeCharacterNotFound  = "character_not_found"
	CodeProviderNotFound   = "provider_not_found"
	CodeInternal           = "internal_error"
)

// ErrorCode classifies err into one of the Code constants.
func ErrorCode(err error) string {
	var (
		resErr  *ResolutionError
		preErr  *PreconditionError
		polErr  *PolicyError
		callErr *ProviderCallError
	)
	switch {
	case errors.As(err, &resErr):
		if errors.Is(err, ErrNoSession) {
			return CodeNoSession
		}
		return CodeSessionNotFound
	case errors.Is(err, ErrSessionExists):
		return CodeSessionExists
	case errors.As(err, &preErr):
		return CodePreconditionFailed
	case errors.As(err, &polErr):
		return CodeTurnBlocked
	case errors.As(err, &callErr):
		return CodeProviderError
	case errors.Is(err, ErrCharacterNotFound):
		return CodeCharacterNotFound
	case errors.Is(err, ErrProviderNotFound):
		return CodeProviderNotFound
	}
	return CodeInternal
}
