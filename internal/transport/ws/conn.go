package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBuffer     = 64
)

// connection is one websocket client. It is bound to at most one session and
// runs at most one turn at a time.
type connection struct {
	id   string
	conn *websocket.Conn
	send chan []byte

	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once

	mu         sync.Mutex
	sessionID  string
	userName   string
	turnID     string
	turnCancel context.CancelFunc
}

func newConnection(ws *websocket.Conn) *connection {
	ctx, cancel := context.WithCancel(context.Background())
	return &connection{
		id:     "conn_" + uuid.New().String()[:8],
		conn:   ws,
		send:   make(chan []byte, sendBuffer),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// sendJSON queues v for the writer. It returns false once the connection is
// closed.
func (c *connection) sendJSON(v interface{}) bool {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("failed to marshal websocket message", "conn_id", c.id, "err", err)
		return false
	}
	select {
	case c.send <- data:
		return true
	case <-c.done:
		return false
	}
}

func (c *connection) sendError(requestID, code, message string) {
	c.sendJSON(ErrorMessage{
		BaseMessage: c.base(TypeError, requestID),
		Code:        code,
		Message:     message,
	})
}

func (c *connection) base(typ, requestID string) BaseMessage {
	return BaseMessage{
		Type:      typ,
		Ts:        time.Now().UnixMilli(),
		RequestID: requestID,
		SessionID: c.session(),
	}
}

func (c *connection) session() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

func (c *connection) bind(sessionID, userName string) {
	c.mu.Lock()
	c.sessionID = sessionID
	c.userName = userName
	c.mu.Unlock()
}

// startTurn reserves the turn slot. It fails while another turn runs.
func (c *connection) startTurn(requestID string) (context.Context, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.turnCancel != nil {
		return nil, false
	}
	ctx, cancel := context.WithCancel(c.ctx)
	c.turnID = requestID
	c.turnCancel = cancel
	return ctx, true
}

func (c *connection) turnRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.turnCancel != nil
}

func (c *connection) finishTurn() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.turnCancel != nil {
		c.turnCancel()
	}
	c.turnID = ""
	c.turnCancel = nil
}

// cancelTurn aborts the running turn. An empty requestID matches any turn.
func (c *connection) cancelTurn(requestID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.turnCancel == nil || (requestID != "" && requestID != c.turnID) {
		return false
	}
	c.turnCancel()
	return true
}

// close cancels the running turn and stops the writer.
func (c *connection) close() {
	c.closeOnce.Do(func() {
		c.cancel()
		close(c.done)
	})
}
