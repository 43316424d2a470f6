// Package v1 provides the HTTP handlers of the persona API.
package v1

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/gogo/persona/internal/character"
	"github.com/xiaot623/gogo/persona/internal/domain"
	"github.com/xiaot623/gogo/persona/internal/provider"
	"github.com/xiaot623/gogo/persona/internal/service"
)

// Handler handles HTTP requests.
type Handler struct {
	service    *service.Service
	characters *character.Manager
	providers  *provider.Registry
}

// NewHandler creates a new handler.
func NewHandler(service *service.Service, characters *character.Manager, providers *provider.Registry) *Handler {
	return &Handler{
		service:    service,
		characters: characters,
		providers:  providers,
	}
}

// RegisterRoutes registers routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	// Sessions
	e.POST("/v1/sessions", h.CreateSession)
	e.GET("/v1/sessions", h.ListSessions)
	e.GET("/v1/sessions/:session_id", h.GetSession)
	e.DELETE("/v1/sessions/:session_id", h.DeleteSession)
	e.POST("/v1/sessions/:session_id/switch", h.SwitchSession)
	e.PUT("/v1/sessions/:session_id/character", h.BindCharacter)
	e.PUT("/v1/sessions/:session_id/provider", h.BindProvider)
	e.GET("/v1/sessions/:session_id/messages", h.GetMessages)
	e.DELETE("/v1/sessions/:session_id/messages", h.ClearMessages)
	e.POST("/v1/sessions/:session_id/turns", h.CreateTurn)
	e.GET("/v1/sessions/:session_id/events", h.GetSessionEvents)

	// Characters
	e.GET("/v1/characters", h.ListCharacters)
	e.GET("/v1/characters/:name", h.GetCharacter)
	e.PUT("/v1/characters/:name", h.PutCharacter)
	e.DELETE("/v1/characters/:name", h.DeleteCharacter)

	// Providers and template variables
	e.GET("/v1/providers", h.ListProviders)
	e.PUT("/v1/variables/:key", h.SetVariable)

	e.GET("/health", h.Health)
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": "0.1.0",
	})
}

// errorStatus maps a domain error to an HTTP status and error code.
func errorStatus(err error) (int, string) {
	if errors.Is(err, character.ErrInvalidName) {
		return http.StatusBadRequest, "invalid_name"
	}
	code := domain.ErrorCode(err)
	switch code {
	case domain.CodeNoSession, domain.CodeSessionNotFound, domain.CodeCharacterNotFound, domain.CodeProviderNotFound:
		return http.StatusNotFound, code
	case domain.CodeSessionExists, domain.CodePreconditionFailed:
		return http.StatusConflict, code
	case domain.CodeTurnBlocked:
		return http.StatusForbidden, code
	case domain.CodeProviderError:
		return http.StatusBadGateway, code
	}
	return http.StatusInternalServerError, code
}

func writeError(c echo.Context, err error) error {
	status, code := errorStatus(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "path", c.Path(), "err", err)
	}
	return c.JSON(status, domain.ErrorBody{Code: code, Message: err.Error()})
}

func badRequest(c echo.Context, message string) error {
	return c.JSON(http.StatusBadRequest, domain.ErrorBody{Code: "invalid_request", Message: message})
}
