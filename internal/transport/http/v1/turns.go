package v1

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/gogo/persona/internal/domain"
)

// CreateTurn runs one user turn. With "stream": true the reply is sent as
// server-sent events: delta events, then a done or error event.
// POST /v1/sessions/:session_id/turns
func (h *Handler) CreateTurn(c echo.Context) error {
	var body domain.TurnHTTPRequest
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	if body.Input == "" {
		return badRequest(c, "input is required")
	}

	req := domain.TurnRequest{
		SessionID: c.Param("session_id"),
		Input:     body.Input,
		UserName:  body.UserName,
		Vars:      body.Vars,
		Options:   body.Options,
	}

	if body.Stream {
		return h.streamTurn(c, req)
	}

	content, err := h.service.CompleteTurn(c.Request().Context(), req)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, domain.TurnResponse{SessionID: req.SessionID, Content: content})
}

// streamTurn writes the turn as SSE. Errors raised before the first fragment
// are returned as regular JSON errors since no header has been written yet.
func (h *Handler) streamTurn(c echo.Context, req domain.TurnRequest) error {
	ctx := c.Request().Context()
	started := false
	var full strings.Builder

	for fragment, err := range h.service.CompleteTurnStream(ctx, req) {
		if err != nil {
			if !started {
				return writeError(c, err)
			}
			status, code := errorStatus(err)
			slog.Warn("turn stream failed", "session_id", req.SessionID, "status", status, "err", err)
			h.writeEvent(c, "error", domain.ErrorBody{Code: code, Message: err.Error()})
			return nil
		}

		if !started {
			c.Response().Header().Set("Content-Type", "text/event-stream")
			c.Response().Header().Set("Cache-Control", "no-cache")
			c.Response().Header().Set("Connection", "keep-alive")
			c.Response().WriteHeader(http.StatusOK)
			started = true
		}

		full.WriteString(fragment)
		if err := h.writeEvent(c, "delta", map[string]string{"text": fragment}); err != nil {
			// Client went away; stopping the range rolls the turn back.
			slog.Info("turn stream client disconnected", "session_id", req.SessionID, "err", err)
			return nil
		}
	}

	if !started {
		c.Response().Header().Set("Content-Type", "text/event-stream")
		c.Response().WriteHeader(http.StatusOK)
	}
	h.writeEvent(c, "done", domain.TurnResponse{SessionID: req.SessionID, Content: full.String()})
	return nil
}

func (h *Handler) writeEvent(c echo.Context, event string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(c.Response(), "event: %s\ndata: %s\n\n", event, data); err != nil {
		return err
	}
	c.Response().Flush()
	return nil
}
