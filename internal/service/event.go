package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/xiaot623/gogo/persona/internal/domain"
)

// recordEvent appends an event to the journal. It outlives cancellation of ctx
// so that failures caused by a cancelled request are still recorded.
func (s *Service) recordEvent(ctx context.Context, sessionID string, eventType domain.EventType, payload interface{}) error {
	if s.events == nil {
		return nil
	}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	event := &domain.Event{
		EventID:   "evt_" + uuid.New().String()[:8],
		SessionID: sessionID,
		Ts:        time.Now().UnixMilli(),
		Type:      eventType,
		Payload:   payloadBytes,
	}

	return s.events.CreateEvent(context.WithoutCancel(ctx), event)
}

// record is recordEvent for callers that only log failures.
func (s *Service) record(ctx context.Context, sessionID string, eventType domain.EventType, payload interface{}) {
	if err := s.recordEvent(ctx, sessionID, eventType, payload); err != nil {
		slog.Warn("failed to record event", "type", eventType, "session_id", sessionID, "err", err)
	}
}

// Events returns journal entries of a session. Deleted sessions keep their entries.
func (s *Service) Events(ctx context.Context, sessionID string, afterTs int64, types []string, limit int) ([]domain.Event, error) {
	if s.events == nil {
		return nil, nil
	}
	return s.events.GetEvents(ctx, sessionID, afterTs, types, limit)
}
