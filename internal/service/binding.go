package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/xiaot623/gogo/persona/internal/character"
	"github.com/xiaot623/gogo/persona/internal/domain"
	"github.com/xiaot623/gogo/persona/internal/provider"
)

// SwitchCharacter binds the named character and resets history to its
// example dialogs. An unknown name returns false and leaves the session
// untouched; errors are reserved for session resolution.
func (s *Service) SwitchCharacter(ctx context.Context, sessionID, name string) (bool, error) {
	ss, err := s.resolve(ctx, sessionID)
	if err != nil {
		return false, err
	}

	c := s.characters.Load(ctx, name)
	if c == nil {
		slog.Info("character not found", "session_id", ss.id, "name", name)
		return false, nil
	}

	ss.turnMu.Lock()
	defer ss.turnMu.Unlock()

	ss.mu.Lock()
	ss.character = c
	ss.history = character.ExampleHistory(c)
	ss.lastUserID = ""
	ss.updatedAt = time.Now()
	count := len(ss.history)
	ss.mu.Unlock()

	s.record(ctx, ss.id, domain.EventTypeCharacterBound, domain.BindingPayload{Name: c.Name, MessageCount: count})
	return true, nil
}

// SwitchProvider binds p to the session without touching history.
func (s *Service) SwitchProvider(ctx context.Context, sessionID string, p provider.Provider) (bool, error) {
	ss, err := s.resolve(ctx, sessionID)
	if err != nil {
		return false, err
	}
	if p == nil {
		return false, nil
	}

	ss.turnMu.Lock()
	defer ss.turnMu.Unlock()

	ss.mu.Lock()
	ss.provider = p
	ss.updatedAt = time.Now()
	count := len(ss.history)
	ss.mu.Unlock()

	s.record(ctx, ss.id, domain.EventTypeProviderBound, domain.BindingPayload{Name: p.Name(), MessageCount: count})
	return true, nil
}
