package ws

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/gogo/persona/internal/character"
	"github.com/xiaot623/gogo/persona/internal/domain"
	"github.com/xiaot623/gogo/persona/internal/provider"
	"github.com/xiaot623/gogo/persona/internal/service"
	"github.com/xiaot623/gogo/persona/tests/helpers"
)

type envelope struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id"`
	SessionID string `json:"session_id"`
	Character string `json:"character"`
	Provider  string `json:"provider"`
	Text      string `json:"text"`
	Content   string `json:"content"`
	Code      string `json:"code"`
	Message   string `json:"message"`
}

// blockingProvider sends one fragment and then waits for cancellation.
type blockingProvider struct{}

func (blockingProvider) Name() string              { return "blocking" }
func (blockingProvider) SupportedModels() []string { return nil }
func (blockingProvider) ResolveHistory(_ string, h []domain.Message) []domain.Message {
	return h
}

func (blockingProvider) ChatCompletion(ctx context.Context, _ string, _ []domain.Message, _ domain.CompletionOptions) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func (blockingProvider) ChatCompletionStream(ctx context.Context, _ string, _ []domain.Message, _ domain.CompletionOptions, fn provider.StreamFunc) error {
	if err := fn("part"); err != nil {
		return err
	}
	<-ctx.Done()
	return ctx.Err()
}

func newTestServer(t *testing.T) (*httptest.Server, *service.Service) {
	t.Helper()
	db := helpers.NewTestSQLiteStore(t)
	manager := character.NewManager(db)
	require.NoError(t, manager.Save(context.Background(), &domain.Character{
		Name:         "Luna",
		SystemPrompt: "You are {{character}}.",
		ExampleDialogs: []domain.ExampleDialog{
			{UserMessage: "Who are you?", CharacterResponse: "Luna."},
		},
	}))

	registry := provider.NewRegistry()
	registry.Register(provider.NewMock())
	registry.Register(blockingProvider{})

	svc := service.New(manager, nil, db, nil, 0)
	e := echo.New()
	NewHandler(svc, registry).RegisterRoutes(e)

	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)
	return srv, svc
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func read(t *testing.T, conn *websocket.Conn) envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg envelope
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func hello(t *testing.T, conn *websocket.Conn, sessionID string) envelope {
	t.Helper()
	require.NoError(t, conn.WriteJSON(map[string]string{
		"type":       TypeHello,
		"session_id": sessionID,
		"character":  "Luna",
		"user_name":  "Ann",
	}))
	return read(t, conn)
}

func TestHelloCreatesSession(t *testing.T) {
	srv, svc := newTestServer(t)
	conn := dial(t, srv)

	ack := hello(t, conn, "")
	require.Equal(t, TypeHelloAck, ack.Type)
	assert.NotEmpty(t, ack.SessionID)
	assert.Equal(t, "Luna", ack.Character)
	assert.Equal(t, "mock", ack.Provider)

	history, err := svc.History(ack.SessionID)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestTurnStreamsDeltasThenDone(t *testing.T) {
	srv, svc := newTestServer(t)
	conn := dial(t, srv)
	ack := hello(t, conn, "ws-1")
	require.Equal(t, "ws-1", ack.SessionID)

	require.NoError(t, conn.WriteJSON(map[string]string{
		"type":       TypeTurn,
		"request_id": "r1",
		"content":    "hello there",
	}))

	var deltas strings.Builder
	var done envelope
	for {
		msg := read(t, conn)
		require.NotEqual(t, TypeError, msg.Type, msg.Message)
		assert.Equal(t, "r1", msg.RequestID)
		if msg.Type == TypeDone {
			done = msg
			break
		}
		require.Equal(t, TypeDelta, msg.Type)
		deltas.WriteString(msg.Text)
	}

	assert.Equal(t, `[MOCK] Luna received your message: "hello there".`, done.Content)
	assert.Equal(t, done.Content, deltas.String())

	history, err := svc.History("ws-1")
	require.NoError(t, err)
	require.Len(t, history, 4)
	assert.Equal(t, "hello there", history[2].Content)
	assert.Equal(t, done.Content, history[3].Content)
}

func TestReconnectKeepsHistory(t *testing.T) {
	srv, svc := newTestServer(t)
	first := dial(t, srv)
	hello(t, first, "ws-2")
	require.NoError(t, first.WriteJSON(map[string]string{"type": TypeTurn, "content": "hi"}))
	for read(t, first).Type != TypeDone {
	}
	first.Close()

	second := dial(t, srv)
	ack := hello(t, second, "ws-2")
	require.Equal(t, TypeHelloAck, ack.Type)

	history, err := svc.History("ws-2")
	require.NoError(t, err)
	assert.Len(t, history, 4)
}

func TestTurnBeforeHello(t *testing.T) {
	srv, _ := newTestServer(t)
	conn := dial(t, srv)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": TypeTurn, "request_id": "r1", "content": "hi"}))
	msg := read(t, conn)
	assert.Equal(t, TypeError, msg.Type)
	assert.Equal(t, ErrorCodeSessionRequired, msg.Code)
	assert.Equal(t, "r1", msg.RequestID)
}

func TestHelloUnknownCharacter(t *testing.T) {
	srv, svc := newTestServer(t)
	conn := dial(t, srv)

	require.NoError(t, conn.WriteJSON(map[string]string{
		"type":       TypeHello,
		"session_id": "ws-3",
		"character":  "Nobody",
	}))
	msg := read(t, conn)
	assert.Equal(t, TypeError, msg.Type)
	assert.Equal(t, domain.CodeCharacterNotFound, msg.Code)

	_, ok := svc.SessionSummary("ws-3")
	assert.False(t, ok)
}

func TestHelloUnknownProvider(t *testing.T) {
	srv, _ := newTestServer(t)
	conn := dial(t, srv)

	require.NoError(t, conn.WriteJSON(map[string]string{
		"type":      TypeHello,
		"character": "Luna",
		"provider":  "nope",
	}))
	msg := read(t, conn)
	assert.Equal(t, TypeError, msg.Type)
	assert.Equal(t, domain.CodeProviderNotFound, msg.Code)
}

func TestInvalidMessages(t *testing.T) {
	srv, _ := newTestServer(t)
	conn := dial(t, srv)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	msg := read(t, conn)
	assert.Equal(t, ErrorCodeInvalidMessage, msg.Code)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "bogus"}))
	msg = read(t, conn)
	assert.Equal(t, ErrorCodeInvalidMessage, msg.Code)
	assert.Contains(t, msg.Message, "bogus")

	require.NoError(t, conn.WriteJSON(map[string]string{"type": TypeCancel}))
	msg = read(t, conn)
	assert.Equal(t, ErrorCodeInvalidMessage, msg.Code)

	hello(t, conn, "")
	require.NoError(t, conn.WriteJSON(map[string]string{"type": TypeTurn}))
	msg = read(t, conn)
	assert.Equal(t, ErrorCodeInvalidMessage, msg.Code)
}

func startBlockingTurn(t *testing.T, conn *websocket.Conn, sessionID, requestID string) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(map[string]string{
		"type":       TypeHello,
		"session_id": sessionID,
		"character":  "Luna",
		"provider":   "blocking",
	}))
	ack := read(t, conn)
	require.Equal(t, TypeHelloAck, ack.Type, ack.Message)
	require.Equal(t, "blocking", ack.Provider)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": TypeTurn, "request_id": requestID, "content": "hi"}))
	delta := read(t, conn)
	require.Equal(t, TypeDelta, delta.Type, delta.Message)
	require.Equal(t, "part", delta.Text)
}

func TestCancelRollsTurnBack(t *testing.T) {
	srv, svc := newTestServer(t)
	conn := dial(t, srv)
	startBlockingTurn(t, conn, "ws-cancel", "r1")

	history, err := svc.History("ws-cancel")
	require.NoError(t, err)
	assert.Len(t, history, 3)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": TypeTurn, "request_id": "r2", "content": "again"}))
	msg := read(t, conn)
	assert.Equal(t, TypeError, msg.Type)
	assert.Equal(t, ErrorCodeTurnInProgress, msg.Code)
	assert.Equal(t, "r2", msg.RequestID)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": TypeHello, "session_id": "ws-cancel", "character": "Luna"}))
	msg = read(t, conn)
	assert.Equal(t, TypeError, msg.Type)
	assert.Equal(t, ErrorCodeTurnInProgress, msg.Code)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": TypeCancel, "request_id": "r1"}))
	msg = read(t, conn)
	assert.Equal(t, TypeError, msg.Type)
	assert.Equal(t, ErrorCodeCanceled, msg.Code)
	assert.Equal(t, "r1", msg.RequestID)

	history, err = svc.History("ws-cancel")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "Luna.", history[1].Content)
}

func TestDisconnectCancelsTurn(t *testing.T) {
	srv, svc := newTestServer(t)
	conn := dial(t, srv)
	startBlockingTurn(t, conn, "ws-gone", "r1")
	require.NoError(t, conn.Close())

	assert.Eventually(t, func() bool {
		history, err := svc.History("ws-gone")
		return err == nil && len(history) == 2
	}, 5*time.Second, 10*time.Millisecond)
}
