// Package service implements the session orchestrator: session registry,
// character and provider binding, and turn execution with rollback.
package service

import (
	"context"
	"sync"

	"github.com/xiaot623/gogo/persona/internal/domain"
	"github.com/xiaot623/gogo/persona/internal/policy"
	"github.com/xiaot623/gogo/persona/internal/prompt"
)

// CharacterLoader resolves characters by name; nil means not found.
type CharacterLoader interface {
	Load(ctx context.Context, name string) *domain.Character
}

// EventStore persists the turn event journal.
type EventStore interface {
	CreateEvent(ctx context.Context, event *domain.Event) error
	GetEvents(ctx context.Context, sessionID string, afterTs int64, types []string, limit int) ([]domain.Event, error)
}

// TurnPolicy admits or blocks turns.
type TurnPolicy interface {
	Evaluate(ctx context.Context, input policy.TurnInput) (policy.Decision, error)
}

// Service owns every session of the process.
type Service struct {
	characters    CharacterLoader
	renderer      *prompt.Renderer
	events        EventStore
	policyEngine  TurnPolicy
	maxInputChars int

	mu        sync.RWMutex
	sessions  map[string]*session
	currentID string
}

// New creates a Service. events and policyEngine may be nil; a nil renderer
// gets a fresh one.
func New(characters CharacterLoader, renderer *prompt.Renderer, events EventStore, policyEngine TurnPolicy, maxInputChars int) *Service {
	if renderer == nil {
		renderer = prompt.NewRenderer()
	}
	return &Service{
		characters:    characters,
		renderer:      renderer,
		events:        events,
		policyEngine:  policyEngine,
		maxInputChars: maxInputChars,
		sessions:      make(map[string]*session),
	}
}

// SetVariable sets a global template variable shared by every session.
func (s *Service) SetVariable(key, value string) {
	s.renderer.SetVariable(key, value)
}

// Variables returns a copy of the global template variables.
func (s *Service) Variables() map[string]string {
	return s.renderer.Variables()
}

type sessionIDKey struct{}

// WithSessionID returns a context that targets sessionID when an operation is
// given no explicit session id.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionIDKey{}, sessionID)
}

// SessionIDFromContext returns the session id stored by WithSessionID.
func SessionIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(sessionIDKey{}).(string)
	return id
}
