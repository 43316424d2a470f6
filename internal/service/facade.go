package service

import (
	"context"
	"iter"

	"github.com/xiaot623/gogo/persona/internal/domain"
	"github.com/xiaot623/gogo/persona/internal/provider"
)

// Chat binds every call to one session created at construction time. It is
// the single-conversation view of a Service.
type Chat struct {
	svc       *Service
	sessionID string
}

// NewChat creates a session on svc and returns a Chat bound to it.
func NewChat(ctx context.Context, svc *Service) (*Chat, error) {
	id, err := svc.CreateSession(ctx, "")
	if err != nil {
		return nil, err
	}
	return &Chat{svc: svc, sessionID: id}, nil
}

// SessionID returns the id of the underlying session.
func (c *Chat) SessionID() string { return c.sessionID }

func (c *Chat) SwitchCharacter(ctx context.Context, name string) (bool, error) {
	return c.svc.SwitchCharacter(ctx, c.sessionID, name)
}

func (c *Chat) SwitchProvider(ctx context.Context, p provider.Provider) (bool, error) {
	return c.svc.SwitchProvider(ctx, c.sessionID, p)
}

func (c *Chat) Character() (*domain.Character, error) {
	return c.svc.Character(c.sessionID)
}

func (c *Chat) Provider() (provider.Provider, error) {
	return c.svc.Provider(c.sessionID)
}

func (c *Chat) PrepareTurn(ctx context.Context, req domain.TurnRequest) (*PreparedTurn, error) {
	req.SessionID = c.sessionID
	return c.svc.PrepareTurn(ctx, req)
}

func (c *Chat) CompleteTurn(ctx context.Context, req domain.TurnRequest) (string, error) {
	req.SessionID = c.sessionID
	return c.svc.CompleteTurn(ctx, req)
}

func (c *Chat) CompleteTurnStream(ctx context.Context, req domain.TurnRequest) iter.Seq2[string, error] {
	req.SessionID = c.sessionID
	return c.svc.CompleteTurnStream(ctx, req)
}

func (c *Chat) History() ([]domain.Message, error) {
	return c.svc.History(c.sessionID)
}

func (c *Chat) ClearHistory(ctx context.Context) error {
	return c.svc.ClearHistory(ctx, c.sessionID)
}

// Summary describes the underlying session.
func (c *Chat) Summary() (domain.SessionSummary, bool) {
	return c.svc.SessionSummary(c.sessionID)
}
