// Package testhelpers provides shared utilities for integration-testing the
// Roomcast server over live WebSocket connections.
//
// Outbound frames may coalesce several newline-separated envelopes, so the
// Conn wrapper maintains a decode queue and hands events back one at a time.
package testhelpers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/roomcast/roomcast/internal/server"
)

// Conn wraps a WebSocket connection with envelope-aware receive helpers.
type Conn struct {
	ws      *websocket.Conn
	pending []server.Envelope
}

// Dial connects to the server's /ws endpoint with a permitted Origin header.
func Dial(t *testing.T, serverURL string) *Conn {
	t.Helper()

	wsURL := "ws" + strings.TrimPrefix(serverURL, "http") + "/ws"
	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}

	headers := http.Header{}
	headers.Set("Origin", serverURL)

	ws, resp, err := dialer.Dial(wsURL, headers)
	if resp != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		t.Fatalf("Failed to dial %s: %v", wsURL, err)
	}

	t.Cleanup(func() { _ = ws.Close() })
	return &Conn{ws: ws}
}

// Close performs a graceful WebSocket close handshake.
func (c *Conn) Close() error {
	err := c.ws.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	if err != nil {
		return err
	}
	return c.ws.Close()
}

// SendEvent writes one envelope to the server.
func (c *Conn) SendEvent(t *testing.T, event string, data any) {
	t.Helper()

	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("Failed to marshal %s payload: %v", event, err)
	}
	if err := c.ws.WriteJSON(server.Envelope{Event: event, Data: raw}); err != nil {
		t.Fatalf("Failed to send %s event: %v", event, err)
	}
}

// Join sends a join event.
func (c *Conn) Join(t *testing.T, usuario, sala string) {
	t.Helper()
	c.SendEvent(t, server.EventJoin, server.JoinData{Usuario: usuario, Sala: sala})
}

// SendMessage sends a message event.
func (c *Conn) SendMessage(t *testing.T, mensaje, tipo string) {
	t.Helper()
	c.SendEvent(t, server.EventMessage, server.MessageData{Mensaje: mensaje, Tipo: tipo})
}

// NextEvent returns the next envelope, reading a new frame if the decode
// queue is empty.
func (c *Conn) NextEvent(t *testing.T, timeout time.Duration) server.Envelope {
	t.Helper()

	env, ok := c.nextEvent(t, timeout)
	if !ok {
		t.Fatalf("Timed out after %v waiting for an event", timeout)
	}
	return env
}

// WaitForEvent discards envelopes until one with the given event name
// arrives.
func (c *Conn) WaitForEvent(t *testing.T, event string, timeout time.Duration) server.Envelope {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			t.Fatalf("Timed out waiting for %s event", event)
		}
		env, ok := c.nextEvent(t, remaining)
		if !ok {
			t.Fatalf("Timed out waiting for %s event", event)
		}
		if env.Event == event {
			return env
		}
	}
}

// ExpectSilence fails the test if any event arrives within the window.
func (c *Conn) ExpectSilence(t *testing.T, window time.Duration) {
	t.Helper()

	if env, ok := c.nextEvent(t, window); ok {
		t.Fatalf("Expected no events, got %s: %s", env.Event, string(env.Data))
	}
}

func (c *Conn) nextEvent(t *testing.T, timeout time.Duration) (server.Envelope, bool) {
	t.Helper()

	if len(c.pending) > 0 {
		env := c.pending[0]
		c.pending = c.pending[1:]
		return env, true
	}

	if err := c.ws.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		t.Fatalf("Failed to set read deadline: %v", err)
	}

	_, frame, err := c.ws.ReadMessage()
	if err != nil {
		return server.Envelope{}, false
	}

	for _, line := range bytes.Split(frame, []byte{'\n'}) {
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var env server.Envelope
		if err := json.Unmarshal(line, &env); err != nil {
			t.Fatalf("Invalid envelope %q: %v", line, err)
		}
		c.pending = append(c.pending, env)
	}

	if len(c.pending) == 0 {
		return server.Envelope{}, false
	}
	env := c.pending[0]
	c.pending = c.pending[1:]
	return env, true
}

// DecodeStatus unmarshals a status payload.
func DecodeStatus(t *testing.T, env server.Envelope) server.StatusData {
	t.Helper()

	var status server.StatusData
	if err := json.Unmarshal(env.Data, &status); err != nil {
		t.Fatalf("Failed to decode status payload: %v", err)
	}
	return status
}

// DecodeUsers unmarshals an update_users payload.
func DecodeUsers(t *testing.T, env server.Envelope) []server.UserInfo {
	t.Helper()

	var users []server.UserInfo
	if err := json.Unmarshal(env.Data, &users); err != nil {
		t.Fatalf("Failed to decode update_users payload: %v", err)
	}
	return users
}

// DecodeChatMessage unmarshals a chat_message payload.
func DecodeChatMessage(t *testing.T, env server.Envelope) server.ChatMessageData {
	t.Helper()

	var msg server.ChatMessageData
	if err := json.Unmarshal(env.Data, &msg); err != nil {
		t.Fatalf("Failed to decode chat_message payload: %v", err)
	}
	return msg
}

// Usernames extracts the usuario field of each user, for order-insensitive
// membership assertions.
func Usernames(users []server.UserInfo) []string {
	names := make([]string, 0, len(users))
	for _, u := range users {
		names = append(names, u.Usuario)
	}
	return names
}
