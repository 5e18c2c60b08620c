// Package server manages individual WebSocket clients, handling read/write
// pumps, rate limiting, event routing, and lifecycle control per connection.
package server

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Client represents one WebSocket connection. The connection id is assigned
// at upgrade time and never reused while the process lives; it keys both the
// hub's client map and the presence registry.
type Client struct {
	id             string
	conn           *websocket.Conn
	send           chan []byte
	srv            *Server
	addr           string
	closed         bool
	maxMessageSize int64
	rateLimiter    *rateLimiter
	rateLimit      RateLimitConfig

	// stateMu guards departed; Presence serializes lifecycle transitions
	// per connection through it.
	stateMu  sync.Mutex
	departed bool
}

// NewClient creates a Client for the given connection with a fresh
// connection id. The send channel is buffered so fan-out never blocks on a
// slow reader.
func NewClient(conn *websocket.Conn, srv *Server, addr string) *Client {
	cfg := currentConfig()
	if conn != nil {
		conn.SetReadLimit(cfg.MaxMessageSize)
	}
	limiter := newRateLimiter(cfg.RateLimit.Burst, cfg.RateLimit.RefillInterval)

	return &Client{
		id:             uuid.NewString(),
		conn:           conn,
		send:           make(chan []byte, 256),
		srv:            srv,
		addr:           addr,
		closed:         false,
		maxMessageSize: cfg.MaxMessageSize,
		rateLimiter:    limiter,
		rateLimit:      cfg.RateLimit,
	}
}

// ID returns the connection id assigned at upgrade time.
func (c *Client) ID() string {
	return c.id
}

// setupReadConnection configures read deadlines and the pong handler.
func (c *Client) setupReadConnection() {
	if err := c.conn.SetReadDeadline(time.Now().Add(60 * time.Second)); err != nil {
		log.Printf("Error setting initial read deadline for %s: %v", c.id, err)
	}
	c.conn.SetPongHandler(func(string) error {
		if err := c.conn.SetReadDeadline(time.Now().Add(60 * time.Second)); err != nil {
			log.Printf("Error setting read deadline in pong handler for %s: %v", c.id, err)
		}
		return nil
	})
}

// handleReadError logs the error by category and returns true when the read
// loop should stop.
func (c *Client) handleReadError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, websocket.ErrReadLimit) {
		log.Printf("Message from %s exceeded maximum size of %d bytes", c.id, c.maxMessageSize)
		return true
	}

	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure) {
		log.Printf("Client %s closed the connection: %v", c.id, err)
		return true
	}

	if errors.Is(err, io.EOF) || isExpectedCloseError(err) {
		log.Printf("Client %s connection closed: %v", c.id, err)
		return true
	}

	if websocket.IsUnexpectedCloseError(err,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure,
		websocket.CloseMessageTooBig) {
		log.Printf("Unexpected WebSocket error from %s: %v", c.id, err)
		return true
	}

	log.Printf("WebSocket read error from %s: %v", c.id, err)
	return true
}

// checkRateLimit returns true when the inbound event may be processed.
func (c *Client) checkRateLimit() bool {
	if c.rateLimiter != nil && !c.rateLimiter.allow() {
		log.Printf("Rate limit exceeded for %s (%d events per %s); discarding event", c.id, c.rateLimit.Burst, c.rateLimit.RefillInterval)
		return false
	}
	return true
}

// processEvent decodes an inbound envelope and routes it. Malformed frames
// and unknown event names are logged and dropped; no inbound fault is ever
// fatal to the connection's pumps or the server.
func (c *Client) processEvent(raw []byte) {
	env, err := decodeEnvelope(raw)
	if err != nil {
		log.Printf("Invalid frame from %s: %v", c.id, err)
		return
	}

	switch env.Event {
	case EventJoin:
		var data JoinData
		if err := json.Unmarshal(env.Data, &data); err != nil {
			log.Printf("Invalid join payload from %s: %v", c.id, err)
			return
		}
		c.srv.presence.Join(c, data)

	case EventLeave:
		c.srv.presence.Leave(c)

	case EventMessage:
		var data MessageData
		if err := json.Unmarshal(env.Data, &data); err != nil {
			log.Printf("Invalid message payload from %s: %v", c.id, err)
			return
		}
		entry, ok := c.srv.registry.Get(c.id)
		if !ok {
			// Messages from unjoined connections have no room to go to.
			log.Printf("Dropping message from unjoined connection %s", c.id)
			return
		}
		c.srv.dispatcher.Submit(entry, data)

	default:
		log.Printf("Unknown event %q from %s", env.Event, c.id)
	}
}

func (c *Client) readPump() {
	if c.conn == nil {
		return
	}

	defer func() {
		c.srv.presence.Disconnect(c)
		c.srv.hub.Unregister(c)
		if err := c.conn.Close(); err != nil {
			if !isExpectedCloseError(err) {
				log.Printf("Error closing connection in readPump: %v", err)
			}
		}
	}()

	c.setupReadConnection()

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if c.handleReadError(err) {
				break
			}
		}

		if !c.checkRateLimit() {
			continue
		}

		c.processEvent(raw)
	}
}

func (c *Client) writePump() {
	if c.conn == nil {
		return
	}

	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.closeConnection()
	}()

	for c.processWriteEvent(ticker) {
	}
}

// processWriteEvent waits for the next write event and returns false when
// the pump should stop.
func (c *Client) processWriteEvent(ticker *time.Ticker) bool {
	select {
	case message, ok := <-c.send:
		return c.handleOutbound(message, ok)
	case <-ticker.C:
		return c.handlePing()
	}
}

// closeConnection closes the WebSocket connection, ignoring expected errors.
func (c *Client) closeConnection() {
	if err := c.conn.Close(); err != nil {
		if !isExpectedCloseError(err) {
			log.Printf("Error closing connection in writePump: %v", err)
		}
	}
}

// handleOutbound writes a queued payload, or a close frame if the send
// channel was closed, and returns false when the pump should stop.
func (c *Client) handleOutbound(message []byte, ok bool) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second)); err != nil {
		log.Printf("Error setting write deadline for %s: %v", c.id, err)
		return false
	}

	if !ok {
		return c.writeCloseMessage()
	}

	return c.writeTextMessage(message)
}

// writeCloseMessage sends a close frame to the client.
func (c *Client) writeCloseMessage() bool {
	if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
		if !isExpectedCloseError(err) {
			log.Printf("Error writing close message to %s: %v", c.id, err)
		}
	}
	return false
}

// writeTextMessage writes the payload plus anything already queued behind it.
func (c *Client) writeTextMessage(message []byte) bool {
	w, err := c.conn.NextWriter(websocket.TextMessage)
	if err != nil {
		log.Printf("Error creating writer for %s: %v", c.id, err)
		return false
	}

	if !c.writeMessageContent(w, message) {
		return false
	}

	if !c.writeQueuedMessages(w) {
		return false
	}

	return c.closeWriter(w)
}

func (c *Client) writeMessageContent(w io.WriteCloser, message []byte) bool {
	if _, err := w.Write(message); err != nil {
		log.Printf("Error writing message to %s: %v", c.id, err)
		return false
	}
	return true
}

func (c *Client) writeQueuedMessages(w io.WriteCloser) bool {
	n := len(c.send)
	for i := 0; i < n; i++ {
		if !c.writeQueuedMessage(w) {
			return false
		}
	}
	return true
}

// writeQueuedMessage appends one queued payload behind a newline separator.
func (c *Client) writeQueuedMessage(w io.WriteCloser) bool {
	if _, err := w.Write([]byte{'\n'}); err != nil {
		log.Printf("Error writing newline to %s: %v", c.id, err)
		return false
	}
	if _, err := w.Write(<-c.send); err != nil {
		log.Printf("Error writing queued message to %s: %v", c.id, err)
		return false
	}
	return true
}

func (c *Client) closeWriter(w io.WriteCloser) bool {
	if err := w.Close(); err != nil {
		log.Printf("Error closing writer for %s: %v", c.id, err)
		return false
	}
	return true
}

// handlePing sends a keepalive ping.
func (c *Client) handlePing() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second)); err != nil {
		log.Printf("Error setting write deadline for ping to %s: %v", c.id, err)
		return false
	}
	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		log.Printf("Error writing ping message to %s: %v", c.id, err)
		return false
	}
	return true
}
