// Package ws provides the websocket chat endpoint. A client says hello to bind
// a session, then streams turns over the same connection.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/xiaot623/gogo/persona/internal/domain"
	"github.com/xiaot623/gogo/persona/internal/provider"
	"github.com/xiaot623/gogo/persona/internal/service"
)

// Handler handles websocket connections.
type Handler struct {
	service   *service.Service
	providers *provider.Registry
	upgrader  websocket.Upgrader
}

// NewHandler creates a new websocket handler.
func NewHandler(svc *service.Service, providers *provider.Registry) *Handler {
	return &Handler{
		service:   svc,
		providers: providers,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// RegisterRoutes registers the websocket route.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/ws", h.HandleWebSocket)
}

// HandleWebSocket upgrades the request and starts the connection pumps.
func (h *Handler) HandleWebSocket(c echo.Context) error {
	ws, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		slog.Warn("failed to upgrade websocket", "err", err)
		return err
	}
	ws.SetReadLimit(maxMessageSize)

	conn := newConnection(ws)
	slog.Info("websocket connected", "conn_id", conn.id, "remote", c.RealIP())

	go h.writePump(conn)
	go h.readPump(conn)
	return nil
}

func (h *Handler) readPump(conn *connection) {
	defer func() {
		conn.close()
		slog.Info("websocket disconnected", "conn_id", conn.id, "session_id", conn.session())
	}()

	conn.conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.conn.SetPongHandler(func(string) error {
		conn.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := conn.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Warn("websocket read failed", "conn_id", conn.id, "err", err)
			}
			return
		}
		h.handleMessage(conn, message)
	}
}

func (h *Handler) writePump(conn *connection) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.close()
		conn.conn.Close()
	}()

	for {
		select {
		case message := <-conn.send:
			conn.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				slog.Warn("websocket write failed", "conn_id", conn.id, "err", err)
				return
			}

		case <-ticker.C:
			conn.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-conn.done:
			conn.conn.SetWriteDeadline(time.Now().Add(writeWait))
			conn.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// handleMessage dispatches incoming messages to appropriate handlers.
func (h *Handler) handleMessage(conn *connection, data []byte) {
	var base BaseMessage
	if err := json.Unmarshal(data, &base); err != nil {
		conn.sendError("", ErrorCodeInvalidMessage, "invalid JSON message")
		return
	}

	switch base.Type {
	case TypeHello:
		h.handleHello(conn, data)
	case TypeTurn:
		h.handleTurn(conn, data)
	case TypeCancel:
		if !conn.cancelTurn(base.RequestID) {
			conn.sendError(base.RequestID, ErrorCodeInvalidMessage, "no running turn")
		}
	default:
		conn.sendError(base.RequestID, ErrorCodeInvalidMessage, "unknown message type: "+base.Type)
	}
}

// handleHello binds the connection to a session, creating it when needed, and
// binds the requested character and provider. Bindings that already match are
// left alone so a reconnecting client keeps its history.
func (h *Handler) handleHello(conn *connection, data []byte) {
	var msg HelloMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		conn.sendError("", ErrorCodeInvalidMessage, "invalid hello message")
		return
	}
	// Rebinding would wait for the running turn while cancel frames queue up.
	if conn.turnRunning() {
		conn.sendError(msg.RequestID, ErrorCodeTurnInProgress, "a turn is already running")
		return
	}
	ctx := conn.ctx

	sessionID := msg.SessionID
	created := false
	if _, ok := h.service.SessionSummary(sessionID); sessionID == "" || !ok {
		id, err := h.service.CreateSession(ctx, sessionID)
		if err != nil {
			conn.sendError(msg.RequestID, domain.ErrorCode(err), err.Error())
			return
		}
		sessionID = id
		created = true
	}

	fail := func(code, message string) {
		if created {
			h.service.DeleteSession(ctx, sessionID)
		}
		conn.sendError(msg.RequestID, code, message)
	}

	if msg.Character != "" {
		if err := h.bindCharacter(ctx, sessionID, msg.Character); err != nil {
			fail(domain.ErrorCode(err), err.Error())
			return
		}
	}
	if err := h.bindProvider(ctx, sessionID, msg.Provider); err != nil {
		fail(domain.ErrorCode(err), err.Error())
		return
	}

	conn.bind(sessionID, msg.UserName)
	summary, _ := h.service.SessionSummary(sessionID)
	conn.sendJSON(HelloAckMessage{
		BaseMessage: conn.base(TypeHelloAck, msg.RequestID),
		Character:   summary.Character,
		Provider:    summary.Provider,
	})
	slog.Info("hello handshake completed", "conn_id", conn.id, "session_id", sessionID, "created", created)
}

func (h *Handler) bindCharacter(ctx context.Context, sessionID, name string) error {
	current, err := h.service.Character(sessionID)
	if err != nil {
		return err
	}
	if current != nil && current.Name == name {
		return nil
	}
	ok, err := h.service.SwitchCharacter(ctx, sessionID, name)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrCharacterNotFound, name)
	}
	return nil
}

// bindProvider binds the named provider, or the registry default when name is
// empty and the session has none yet.
func (h *Handler) bindProvider(ctx context.Context, sessionID, name string) error {
	current, err := h.service.Provider(sessionID)
	if err != nil {
		return err
	}

	var p provider.Provider
	var ok bool
	if name == "" {
		if current != nil {
			return nil
		}
		p, ok = h.providers.Default()
		name = "default"
	} else {
		if current != nil && current.Name() == name {
			return nil
		}
		p, ok = h.providers.Get(name)
	}
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrProviderNotFound, name)
	}
	_, err = h.service.SwitchProvider(ctx, sessionID, p)
	return err
}

// handleTurn streams one turn. Deltas are sent as they arrive; the turn ends
// with done or error. A closed connection or a cancel message stops the
// stream, which rolls the turn back.
func (h *Handler) handleTurn(conn *connection, data []byte) {
	var msg TurnMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		conn.sendError("", ErrorCodeInvalidMessage, "invalid turn message")
		return
	}
	if msg.Content == "" {
		conn.sendError(msg.RequestID, ErrorCodeInvalidMessage, "content is required")
		return
	}

	sessionID := conn.session()
	if sessionID == "" {
		conn.sendError(msg.RequestID, ErrorCodeSessionRequired, "must send hello first")
		return
	}

	ctx, ok := conn.startTurn(msg.RequestID)
	if !ok {
		conn.sendError(msg.RequestID, ErrorCodeTurnInProgress, "a turn is already running")
		return
	}

	conn.mu.Lock()
	userName := conn.userName
	conn.mu.Unlock()

	req := domain.TurnRequest{
		SessionID: sessionID,
		Input:     msg.Content,
		UserName:  userName,
		Vars:      msg.Vars,
		Options:   msg.Options,
	}

	go func() {
		defer conn.finishTurn()
		h.streamTurn(ctx, conn, msg.RequestID, req)
	}()
}

func (h *Handler) streamTurn(ctx context.Context, conn *connection, requestID string, req domain.TurnRequest) {
	var full strings.Builder
	for fragment, err := range h.service.CompleteTurnStream(ctx, req) {
		if err != nil {
			code := domain.ErrorCode(err)
			if errors.Is(err, context.Canceled) {
				code = ErrorCodeCanceled
			}
			slog.Warn("websocket turn failed", "conn_id", conn.id, "session_id", req.SessionID, "code", code, "err", err)
			conn.sendError(requestID, code, err.Error())
			return
		}
		full.WriteString(fragment)
		if !conn.sendJSON(DeltaMessage{BaseMessage: conn.base(TypeDelta, requestID), Text: fragment}) {
			return
		}
	}
	conn.sendJSON(DoneMessage{BaseMessage: conn.base(TypeDone, requestID), Content: full.String()})
}
