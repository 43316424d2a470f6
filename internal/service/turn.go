package service

import (
	"context"
	"errors"
	"iter"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/xiaot623/gogo/persona/internal/domain"
	"github.com/xiaot623/gogo/persona/internal/policy"
	"github.com/xiaot623/gogo/persona/internal/provider"
)

// ErrStreamConsumed is yielded when a turn stream is ranged over a second time.
var ErrStreamConsumed = errors.New("turn stream already consumed")

// errStreamAbandoned stops the provider when the consumer stops ranging.
var errStreamAbandoned = errors.New("stream abandoned by consumer")

// PreparedTurn is the state of a turn after the user message was appended.
type PreparedTurn struct {
	SessionID string
	// System is the rendered system prompt.
	System string
	// History is a snapshot of the session history including the user message.
	History []domain.Message
	// TurnID identifies the appended user message for rollback.
	TurnID    string
	Character *domain.Character
	Provider  provider.Provider
}

// PrepareTurn renders the input, appends it to the session history and lets
// the provider reshape the history. The user message stays in history.
func (s *Service) PrepareTurn(ctx context.Context, req domain.TurnRequest) (*PreparedTurn, error) {
	ss, err := s.resolve(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}
	ss.turnMu.Lock()
	defer ss.turnMu.Unlock()
	return s.prepareLocked(ctx, ss, req, false)
}

// CompleteTurn runs a full turn. On provider failure the user message is
// rolled back and the error returned.
func (s *Service) CompleteTurn(ctx context.Context, req domain.TurnRequest) (string, error) {
	ss, err := s.resolve(ctx, req.SessionID)
	if err != nil {
		return "", err
	}
	ss.turnMu.Lock()
	defer ss.turnMu.Unlock()

	pt, err := s.prepareLocked(ctx, ss, req, false)
	if err != nil {
		return "", err
	}

	content, err := s.invoke(ctx, pt, req.Options)
	if err != nil {
		s.failTurn(ctx, ss, pt, err)
		return "", err
	}

	s.appendAssistant(ctx, ss, pt, content)
	return content, nil
}

// CompleteTurnStream returns a single-use sequence of response fragments.
// Nothing happens until the sequence is ranged over. The assistant message is
// appended only after the provider finished; a provider error is yielded as
// the final element after rolling back the user message. Stopping the range
// early also rolls the user message back.
func (s *Service) CompleteTurnStream(ctx context.Context, req domain.TurnRequest) iter.Seq2[string, error] {
	var used atomic.Bool
	return func(yield func(string, error) bool) {
		if used.Swap(true) {
			yield("", ErrStreamConsumed)
			return
		}

		ss, err := s.resolve(ctx, req.SessionID)
		if err != nil {
			yield("", err)
			return
		}
		ss.turnMu.Lock()
		defer ss.turnMu.Unlock()

		pt, err := s.prepareLocked(ctx, ss, req, true)
		if err != nil {
			yield("", err)
			return
		}

		var full strings.Builder
		stopped := false
		err = s.invokeStream(ctx, pt, req.Options, func(fragment string) error {
			if stopped {
				return errStreamAbandoned
			}
			full.WriteString(fragment)
			if !yield(fragment, nil) {
				stopped = true
				return errStreamAbandoned
			}
			return nil
		})
		if stopped && err == nil {
			err = errStreamAbandoned
		}
		if err != nil {
			s.failTurn(ctx, ss, pt, err)
			if !stopped {
				yield("", err)
			}
			return
		}

		s.appendAssistant(ctx, ss, pt, full.String())
	}
}

func (s *Service) prepareLocked(ctx context.Context, ss *session, req domain.TurnRequest, stream bool) (*PreparedTurn, error) {
	char, prov := ss.bindings()
	if char == nil {
		return nil, &domain.PreconditionError{SessionID: ss.id, Err: domain.ErrCharacterNotBound}
	}
	if prov == nil {
		return nil, &domain.PreconditionError{SessionID: ss.id, Err: domain.ErrProviderNotBound}
	}

	if err := s.admit(ctx, ss.id, char, prov, req, stream); err != nil {
		return nil, err
	}

	content := s.renderer.Render(req.Input, char, req.UserName, req.Vars)
	system := s.renderer.RenderSystem(char, req.UserName, req.Vars)
	msg := domain.NewMessage(domain.RoleUser, content)

	ss.mu.Lock()
	ss.history = append(ss.history, msg)
	ss.lastUserID = msg.ID
	ss.history = prov.ResolveHistory(system, domain.CloneMessages(ss.history))
	ss.updatedAt = time.Now()
	history := domain.CloneMessages(ss.history)
	ss.mu.Unlock()

	s.record(ctx, ss.id, domain.EventTypeTurnStarted, domain.TurnStartedPayload{
		TurnID:    msg.ID,
		Character: char.Name,
		Provider:  prov.Name(),
		Stream:    stream,
	})

	return &PreparedTurn{
		SessionID: ss.id,
		System:    system,
		History:   history,
		TurnID:    msg.ID,
		Character: char,
		Provider:  prov,
	}, nil
}

// admit runs the turn policy. Evaluation errors are logged and the turn proceeds.
func (s *Service) admit(ctx context.Context, sessionID string, char *domain.Character, prov provider.Provider, req domain.TurnRequest, stream bool) error {
	if s.policyEngine == nil {
		return nil
	}
	decision, err := s.policyEngine.Evaluate(ctx, policy.TurnInput{
		SessionID:      sessionID,
		Character:      char.Name,
		Provider:       prov.Name(),
		UserName:       req.UserName,
		Input:          req.Input,
		InputLength:    utf8.RuneCountInString(req.Input),
		MaxInputLength: s.maxInputChars,
		Stream:         stream,
	})
	if err != nil {
		slog.Error("turn policy evaluation failed", "session_id", sessionID, "err", err)
		return nil
	}
	if decision.Allowed() {
		return nil
	}

	s.record(ctx, sessionID, domain.EventTypeTurnBlocked, domain.TurnFailedPayload{
		Code:    domain.DecisionBlock,
		Message: decision.Reason,
	})
	return &domain.PolicyError{SessionID: sessionID, Reason: decision.Reason}
}

func (s *Service) invoke(ctx context.Context, pt *PreparedTurn, opts domain.CompletionOptions) (string, error) {
	requestID := s.llmCallStarted(ctx, pt, opts, false)
	startTime := time.Now()

	content, err := pt.Provider.ChatCompletion(ctx, pt.System, pt.History, opts)
	err = providerError(pt.Provider, provider.OpChatCompletion, err)

	s.llmCallDone(ctx, pt, requestID, startTime, 0, err)
	return content, err
}

func (s *Service) invokeStream(ctx context.Context, pt *PreparedTurn, opts domain.CompletionOptions, fn provider.StreamFunc) error {
	requestID := s.llmCallStarted(ctx, pt, opts, true)
	startTime := time.Now()

	fragments := 0
	err := pt.Provider.ChatCompletionStream(ctx, pt.System, pt.History, opts, func(fragment string) error {
		fragments++
		return fn(fragment)
	})
	err = providerError(pt.Provider, provider.OpChatCompletionStream, err)

	s.llmCallDone(ctx, pt, requestID, startTime, fragments, err)
	return err
}

// providerError wraps a failure reported by p as a ProviderCallError unless it
// already is one or it stops an abandoned stream.
func providerError(p provider.Provider, op string, err error) error {
	if err == nil || errors.Is(err, errStreamAbandoned) {
		return err
	}
	var callErr *domain.ProviderCallError
	if errors.As(err, &callErr) {
		return err
	}
	return &domain.ProviderCallError{Provider: p.Name(), Op: op, Err: err}
}

func (s *Service) llmCallStarted(ctx context.Context, pt *PreparedTurn, opts domain.CompletionOptions, stream bool) string {
	requestID := "llm_" + uuid.New().String()[:8]
	s.record(ctx, pt.SessionID, domain.EventTypeLLMCallStarted, domain.LLMCallStartedPayload{
		RequestID: requestID,
		Provider:  pt.Provider.Name(),
		Model:     opts.Model,
		Stream:    stream,
		Messages:  len(pt.History),
	})
	return requestID
}

func (s *Service) llmCallDone(ctx context.Context, pt *PreparedTurn, requestID string, startTime time.Time, fragments int, err error) {
	payload := domain.LLMCallDonePayload{
		RequestID: requestID,
		Provider:  pt.Provider.Name(),
		LatencyMs: time.Since(startTime).Milliseconds(),
		Fragments: fragments,
	}
	if err != nil {
		payload.Error = err.Error()
	}
	s.record(ctx, pt.SessionID, domain.EventTypeLLMCallDone, payload)
}

func (s *Service) appendAssistant(ctx context.Context, ss *session, pt *PreparedTurn, content string) {
	msg := domain.NewMessage(domain.RoleAssistant, content)

	ss.mu.Lock()
	ss.history = append(ss.history, msg)
	ss.lastUserID = ""
	ss.updatedAt = time.Now()
	count := len(ss.history)
	ss.mu.Unlock()

	s.record(ctx, ss.id, domain.EventTypeTurnCompleted, domain.TurnCompletedPayload{
		TurnID:       pt.TurnID,
		MessageID:    msg.ID,
		ResponseLen:  len(content),
		MessageCount: count,
	})
}

// failTurn removes the turn's user message if it is still the tail of history.
func (s *Service) failTurn(ctx context.Context, ss *session, pt *PreparedTurn, cause error) {
	ss.mu.Lock()
	removed := false
	if n := len(ss.history); n > 0 && ss.history[n-1].ID == pt.TurnID {
		ss.history = ss.history[:n-1]
		removed = true
		ss.updatedAt = time.Now()
	}
	if ss.lastUserID == pt.TurnID {
		ss.lastUserID = ""
	}
	ss.mu.Unlock()

	code := "provider_error"
	if errors.Is(cause, errStreamAbandoned) {
		code = "abandoned"
		slog.Info("turn stream abandoned", "session_id", ss.id, "turn_id", pt.TurnID)
	} else {
		slog.Warn("turn failed", "session_id", ss.id, "turn_id", pt.TurnID, "err", cause)
	}

	s.record(ctx, ss.id, domain.EventTypeTurnFailed, domain.TurnFailedPayload{
		TurnID:  pt.TurnID,
		Code:    code,
		Message: cause.Error(),
	})
	s.record(ctx, ss.id, domain.EventTypeTurnRolledBack, domain.TurnRolledBackPayload{
		TurnID:  pt.TurnID,
		Removed: removed,
	})
}
