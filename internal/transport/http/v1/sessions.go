package v1

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/gogo/persona/internal/domain"
)

// CreateSession creates a session and makes it current.
// POST /v1/sessions
func (h *Handler) CreateSession(c echo.Context) error {
	var req domain.CreateSessionRequest
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&req); err != nil {
			return badRequest(c, "invalid request body")
		}
	}

	id, err := h.service.CreateSession(c.Request().Context(), req.SessionID)
	if err != nil {
		return writeError(c, err)
	}
	summary, _ := h.service.SessionSummary(id)
	return c.JSON(http.StatusCreated, summary)
}

// ListSessions lists every session.
// GET /v1/sessions
func (h *Handler) ListSessions(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"sessions":           h.service.ListSessions(),
		"current_session_id": h.service.CurrentSessionID(),
	})
}

// GetSession returns a session summary.
// GET /v1/sessions/:session_id
func (h *Handler) GetSession(c echo.Context) error {
	sessionID := c.Param("session_id")
	summary, ok := h.service.SessionSummary(sessionID)
	if !ok {
		return writeError(c, &domain.ResolutionError{SessionID: sessionID, Err: domain.ErrSessionNotFound})
	}
	return c.JSON(http.StatusOK, summary)
}

// DeleteSession removes a session.
// DELETE /v1/sessions/:session_id
func (h *Handler) DeleteSession(c echo.Context) error {
	sessionID := c.Param("session_id")
	if !h.service.DeleteSession(c.Request().Context(), sessionID) {
		return writeError(c, &domain.ResolutionError{SessionID: sessionID, Err: domain.ErrSessionNotFound})
	}
	return c.NoContent(http.StatusNoContent)
}

// SwitchSession makes a session current.
// POST /v1/sessions/:session_id/switch
func (h *Handler) SwitchSession(c echo.Context) error {
	sessionID := c.Param("session_id")
	if _, err := h.service.SwitchSession(sessionID); err != nil {
		return writeError(c, err)
	}
	summary, _ := h.service.SessionSummary(sessionID)
	return c.JSON(http.StatusOK, summary)
}

// BindCharacter binds a character and resets history.
// PUT /v1/sessions/:session_id/character
func (h *Handler) BindCharacter(c echo.Context) error {
	var req domain.BindCharacterRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.Name == "" {
		return badRequest(c, "name is required")
	}

	sessionID := c.Param("session_id")
	ok, err := h.service.SwitchCharacter(c.Request().Context(), sessionID, req.Name)
	if err != nil {
		return writeError(c, err)
	}
	if !ok {
		return writeError(c, fmt.Errorf("%w: %s", domain.ErrCharacterNotFound, req.Name))
	}
	summary, _ := h.service.SessionSummary(sessionID)
	return c.JSON(http.StatusOK, summary)
}

// BindProvider binds a registered provider.
// PUT /v1/sessions/:session_id/provider
func (h *Handler) BindProvider(c echo.Context) error {
	var req domain.BindProviderRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.Provider == "" {
		return badRequest(c, "provider is required")
	}

	p, ok := h.providers.Get(req.Provider)
	if !ok {
		return writeError(c, fmt.Errorf("%w: %s", domain.ErrProviderNotFound, req.Provider))
	}

	sessionID := c.Param("session_id")
	if _, err := h.service.SwitchProvider(c.Request().Context(), sessionID, p); err != nil {
		return writeError(c, err)
	}
	summary, _ := h.service.SessionSummary(sessionID)
	return c.JSON(http.StatusOK, summary)
}

// GetMessages returns the chat history of a session.
// GET /v1/sessions/:session_id/messages
func (h *Handler) GetMessages(c echo.Context) error {
	sessionID := c.Param("session_id")
	messages, err := h.service.History(sessionID)
	if err != nil {
		return writeError(c, err)
	}
	if messages == nil {
		messages = []domain.Message{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"session_id": sessionID,
		"messages":   messages,
	})
}

// ClearMessages empties the chat history of a session.
// DELETE /v1/sessions/:session_id/messages
func (h *Handler) ClearMessages(c echo.Context) error {
	if err := h.service.ClearHistory(c.Request().Context(), c.Param("session_id")); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// GetSessionEvents returns the event journal of a session.
// GET /v1/sessions/:session_id/events
func (h *Handler) GetSessionEvents(c echo.Context) error {
	sessionID := c.Param("session_id")
	limit := 100
	if l := c.QueryParam("limit"); l != "" {
		if val, err := strconv.Atoi(l); err == nil {
			limit = val
		}
	}
	afterTs := int64(0)
	if t := c.QueryParam("after_ts"); t != "" {
		if val, err := strconv.ParseInt(t, 10, 64); err == nil {
			afterTs = val
		}
	}
	var types []string
	if t := c.QueryParam("types"); t != "" {
		for _, typ := range strings.Split(t, ",") {
			if typ = strings.TrimSpace(typ); typ != "" {
				types = append(types, typ)
			}
		}
	}

	events, err := h.service.Events(c.Request().Context(), sessionID, afterTs, types, limit)
	if err != nil {
		return writeError(c, err)
	}
	if events == nil {
		events = []domain.Event{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"events": events,
	})
}
