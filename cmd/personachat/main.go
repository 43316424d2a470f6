// Package main provides a terminal chat client for the persona websocket endpoint.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/xiaot623/gogo/persona/internal/transport/ws"
)

// Client is a websocket chat client bound to one session.
type Client struct {
	conn      *websocket.Conn
	sessionID string
	character string
	provider  string

	writeMu sync.Mutex
	turnID  string
}

// NewClient connects to the server.
func NewClient(addr string) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.Dial(addr, nil)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	return &Client{conn: conn}, nil
}

// Close closes the client connection.
func (c *Client) Close() error {
	c.writeMu.Lock()
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()
	return c.conn.Close()
}

func (c *Client) write(v interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(v)
}

func (c *Client) base(typ, requestID string) ws.BaseMessage {
	return ws.BaseMessage{
		Type:      typ,
		Ts:        time.Now().UnixMilli(),
		RequestID: requestID,
		SessionID: c.sessionID,
	}
}

// SendHello sends a hello message and waits for hello_ack.
func (c *Client) SendHello(sessionID, character, provider, userName string) error {
	msg := ws.HelloMessage{
		BaseMessage: ws.BaseMessage{Type: ws.TypeHello, Ts: time.Now().UnixMilli(), SessionID: sessionID},
		Character:   character,
		Provider:    provider,
		UserName:    userName,
	}
	if err := c.write(msg); err != nil {
		return fmt.Errorf("write hello: %w", err)
	}

	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("read hello_ack: %w", err)
	}

	var base ws.BaseMessage
	if err := json.Unmarshal(data, &base); err != nil {
		return fmt.Errorf("unmarshal hello_ack: %w", err)
	}
	if base.Type == ws.TypeError {
		var errMsg ws.ErrorMessage
		json.Unmarshal(data, &errMsg)
		return fmt.Errorf("hello failed: %s - %s", errMsg.Code, errMsg.Message)
	}
	if base.Type != ws.TypeHelloAck {
		return fmt.Errorf("expected hello_ack, got: %s", base.Type)
	}

	var ack ws.HelloAckMessage
	if err := json.Unmarshal(data, &ack); err != nil {
		return fmt.Errorf("unmarshal hello_ack: %w", err)
	}
	c.sessionID = ack.SessionID
	c.character = ack.Character
	c.provider = ack.Provider
	return nil
}

// Turn sends one turn and prints the reply as it streams in.
func (c *Client) Turn(content string, vars map[string]string) error {
	requestID := fmt.Sprintf("req_%d", time.Now().UnixNano())
	c.writeMu.Lock()
	c.turnID = requestID
	c.writeMu.Unlock()
	defer func() {
		c.writeMu.Lock()
		c.turnID = ""
		c.writeMu.Unlock()
	}()

	msg := ws.TurnMessage{
		BaseMessage: c.base(ws.TypeTurn, requestID),
		Content:     content,
		Vars:        vars,
	}
	if err := c.write(msg); err != nil {
		return fmt.Errorf("write turn: %w", err)
	}

	fmt.Printf("%s: ", c.character)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}

		var base ws.BaseMessage
		if err := json.Unmarshal(data, &base); err != nil {
			log.Printf("Unmarshal error: %v", err)
			continue
		}
		if base.RequestID != requestID {
			continue
		}

		switch base.Type {
		case ws.TypeDelta:
			var delta ws.DeltaMessage
			json.Unmarshal(data, &delta)
			fmt.Print(delta.Text)
		case ws.TypeDone:
			fmt.Println()
			return nil
		case ws.TypeError:
			var errMsg ws.ErrorMessage
			json.Unmarshal(data, &errMsg)
			fmt.Println()
			return fmt.Errorf("%s - %s", errMsg.Code, errMsg.Message)
		}
	}
}

// Cancel aborts the running turn, if any.
func (c *Client) Cancel() bool {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.turnID == "" {
		return false
	}
	c.conn.WriteJSON(ws.CancelMessage{BaseMessage: c.base(ws.TypeCancel, c.turnID)})
	return true
}

// parseVar parses "key=value".
func parseVar(s string) (string, string, bool) {
	key, value, ok := strings.Cut(s, "=")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return "", "", false
	}
	return key, strings.TrimSpace(value), true
}

func main() {
	addr := flag.String("addr", "ws://localhost:8080/ws", "WebSocket server address")
	sessionID := flag.String("session", "", "Session ID to resume")
	character := flag.String("character", "", "Character to chat with")
	provider := flag.String("provider", "", "Provider name (server default when empty)")
	userName := flag.String("user", "User", "Your name in the conversation")
	flag.Parse()

	log.SetFlags(log.Ltime)

	fmt.Printf("Connecting to %s...\n", *addr)
	client, err := NewClient(*addr)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer client.Close()

	if err := client.SendHello(*sessionID, *character, *provider, *userName); err != nil {
		log.Fatalf("Hello failed: %v", err)
	}

	fmt.Printf("Session %s: %s via %s\n", client.sessionID, client.character, client.provider)
	fmt.Println("Type a message and press Enter to send.")
	fmt.Println("Commands: /var key=value, /quit to exit")

	// Ctrl+C cancels a running turn, otherwise exits.
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	go func() {
		for range interrupt {
			if !client.Cancel() {
				fmt.Println("\nInterrupted")
				client.Close()
				os.Exit(0)
			}
		}
	}()

	vars := make(map[string]string)
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}

		input := strings.TrimSpace(scanner.Text())
		switch {
		case input == "":
			continue
		case input == "/quit":
			fmt.Println("Bye!")
			return
		case strings.HasPrefix(input, "/var "):
			key, value, ok := parseVar(strings.TrimPrefix(input, "/var "))
			if !ok {
				fmt.Println("usage: /var key=value")
				continue
			}
			vars[key] = value
			continue
		}

		if err := client.Turn(input, vars); err != nil {
			log.Printf("Turn failed: %v", err)
		}
	}
}
