// Package http provides the HTTP server of the persona service.
package http

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/xiaot623/gogo/persona/internal/character"
	"github.com/xiaot623/gogo/persona/internal/provider"
	"github.com/xiaot623/gogo/persona/internal/service"
	v1 "github.com/xiaot623/gogo/persona/internal/transport/http/v1"
	"github.com/xiaot623/gogo/persona/internal/transport/ws"
)

// NewServer creates and configures the HTTP server: the JSON/SSE API under
// /v1 and the websocket chat endpoint at /ws.
func NewServer(svc *service.Service, characters *character.Manager, providers *provider.Registry) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	// Handlers
	v1Handler := v1.NewHandler(svc, characters, providers)
	wsHandler := ws.NewHandler(svc, providers)

	// Register Routes
	v1Handler.RegisterRoutes(e)
	wsHandler.RegisterRoutes(e)

	return e
}
