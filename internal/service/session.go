package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/xiaot623/gogo/persona/internal/domain"
	"github.com/xiaot623/gogo/persona/internal/provider"
)

// sessionIDLayout formats generated session ids, e.g. session_20240101_120000_000042.
const sessionIDLayout = "20060102_150405.000000"

// session is one conversation. turnMu serializes turns and rebinding so a
// turn never observes a half-applied binding; mu guards the fields for
// snapshot reads while a turn is in flight.
type session struct {
	id string

	turnMu sync.Mutex

	mu         sync.RWMutex
	character  *domain.Character
	provider   provider.Provider
	history    []domain.Message
	lastUserID string
	createdAt  time.Time
	updatedAt  time.Time
}

func newSession(id string) *session {
	now := time.Now()
	return &session{id: id, createdAt: now, updatedAt: now}
}

func (ss *session) bindings() (*domain.Character, provider.Provider) {
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	return ss.character, ss.provider
}

func (ss *session) snapshot() []domain.Message {
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	return domain.CloneMessages(ss.history)
}

func (ss *session) summary(currentID string) domain.SessionSummary {
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	sum := domain.SessionSummary{
		SessionID:    ss.id,
		MessageCount: len(ss.history),
		CreatedAt:    ss.createdAt,
		UpdatedAt:    ss.updatedAt,
		IsCurrent:    ss.id == currentID,
	}
	if ss.character != nil {
		sum.Character = ss.character.Name
	}
	if ss.provider != nil {
		sum.Provider = ss.provider.Name()
	}
	return sum
}

// CreateSession registers a new session and makes it current. An empty id is
// replaced by a timestamp based one. An existing id is never overwritten.
func (s *Service) CreateSession(ctx context.Context, id string) (string, error) {
	s.mu.Lock()
	if id == "" {
		id = s.generateIDLocked()
	}
	if _, ok := s.sessions[id]; ok {
		s.mu.Unlock()
		return "", fmt.Errorf("%w: %s", domain.ErrSessionExists, id)
	}
	s.sessions[id] = newSession(id)
	s.currentID = id
	s.mu.Unlock()

	s.record(ctx, id, domain.EventTypeSessionCreated, map[string]string{"session_id": id})
	return id, nil
}

func (s *Service) generateIDLocked() string {
	now := time.Now()
	for {
		id := "session_" + strings.Replace(now.Format(sessionIDLayout), ".", "_", 1)
		if _, ok := s.sessions[id]; !ok {
			return id
		}
		now = now.Add(time.Microsecond)
	}
}

// SwitchSession makes id the current session. An unknown id fails with
// ErrSessionNotFound and leaves the current session unchanged.
func (s *Service) SwitchSession(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return false, &domain.ResolutionError{SessionID: id, Err: domain.ErrSessionNotFound}
	}
	s.currentID = id
	return true, nil
}

// DeleteSession removes a session; deleting the current session clears the
// current pointer.
func (s *Service) DeleteSession(ctx context.Context, id string) bool {
	s.mu.Lock()
	if _, ok := s.sessions[id]; !ok {
		s.mu.Unlock()
		return false
	}
	delete(s.sessions, id)
	if s.currentID == id {
		s.currentID = ""
	}
	s.mu.Unlock()

	s.record(ctx, id, domain.EventTypeSessionDeleted, map[string]string{"session_id": id})
	return true
}

// CurrentSessionID returns the current session id, or "".
func (s *Service) CurrentSessionID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentID
}

// ListSessions summarizes every session ordered by creation time.
func (s *Service) ListSessions() []domain.SessionSummary {
	s.mu.RLock()
	current := s.currentID
	sessions := make([]*session, 0, len(s.sessions))
	for _, ss := range s.sessions {
		sessions = append(sessions, ss)
	}
	s.mu.RUnlock()

	out := make([]domain.SessionSummary, 0, len(sessions))
	for _, ss := range sessions {
		out = append(out, ss.summary(current))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].SessionID < out[j].SessionID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// SessionSummary summarizes a session; an empty id means the current one.
func (s *Service) SessionSummary(sessionID string) (domain.SessionSummary, bool) {
	ss, err := s.resolve(context.Background(), sessionID)
	if err != nil {
		return domain.SessionSummary{}, false
	}
	return ss.summary(s.CurrentSessionID()), true
}

// History returns a copy of the session's chat history.
func (s *Service) History(sessionID string) ([]domain.Message, error) {
	ss, err := s.resolve(context.Background(), sessionID)
	if err != nil {
		return nil, err
	}
	return ss.snapshot(), nil
}

// ClearHistory empties the session's chat history and keeps its bindings.
func (s *Service) ClearHistory(ctx context.Context, sessionID string) error {
	ss, err := s.resolve(ctx, sessionID)
	if err != nil {
		return err
	}
	ss.turnMu.Lock()
	defer ss.turnMu.Unlock()

	ss.mu.Lock()
	ss.history = nil
	ss.lastUserID = ""
	ss.updatedAt = time.Now()
	ss.mu.Unlock()

	s.record(ctx, ss.id, domain.EventTypeHistoryCleared, map[string]string{"session_id": ss.id})
	return nil
}

// Character returns the character bound to the session, or nil.
func (s *Service) Character(sessionID string) (*domain.Character, error) {
	ss, err := s.resolve(context.Background(), sessionID)
	if err != nil {
		return nil, err
	}
	c, _ := ss.bindings()
	return c, nil
}

// Provider returns the provider bound to the session, or nil.
func (s *Service) Provider(sessionID string) (provider.Provider, error) {
	ss, err := s.resolve(context.Background(), sessionID)
	if err != nil {
		return nil, err
	}
	_, p := ss.bindings()
	return p, nil
}

// resolve finds the target session: explicit id, then the id carried by ctx,
// then the current session.
func (s *Service) resolve(ctx context.Context, id string) (*session, error) {
	if id == "" {
		id = SessionIDFromContext(ctx)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if id == "" {
		id = s.currentID
	}
	if id == "" {
		return nil, &domain.ResolutionError{Err: domain.ErrNoSession}
	}
	ss, ok := s.sessions[id]
	if !ok {
		return nil, &domain.ResolutionError{SessionID: id, Err: domain.ErrSessionNotFound}
	}
	return ss, nil
}
