// Package server coordinates client registration, room-scoped fan-out, and
// connection cleanup via the Hub type.
package server

import (
	"context"
	"log"
	"sync"
	"time"
)

// connSender delivers a payload to a set of connection ids. Delivery is
// best-effort per recipient: a failed send to one connection never affects
// the others.
type connSender interface {
	SendToConns(connIDs []string, payload []byte)
}

// Hub owns the set of live client connections, keyed by connection id.
// Registration and unregistration flow through channels consumed by Run;
// sends take a read lock only long enough to snapshot the targets.
type Hub struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	mutex      sync.RWMutex
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}
}

// NewHub creates a Hub ready to manage connections.
func NewHub() *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

// Register hands a client to the hub, which starts its pump goroutines.
// During shutdown the registration is dropped instead of blocking.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.ctx.Done():
	}
}

// Unregister removes a client from the hub and closes its send channel.
// Safe to call while the hub is shutting down.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.ctx.Done():
	}
}

// Run is the hub's main loop. It must be called in its own goroutine; it
// returns only when the hub shuts down.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.closeAllClients()
			return

		case client := <-h.register:
			if client == nil {
				log.Printf("Received nil client registration; skipping")
				continue
			}

			h.mutex.Lock()
			client.closed = false
			h.clients[client.id] = client
			clientCount := len(h.clients)
			h.mutex.Unlock()
			log.Printf("Client %s connected from %s. Total clients: %d", client.id, client.addr, clientCount)

			h.wg.Add(2)
			go func() {
				defer h.wg.Done()
				client.writePump()
			}()
			go func() {
				defer h.wg.Done()
				client.readPump()
			}()

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client.id]; ok {
				delete(h.clients, client.id)
				client.closed = true
				clientCount := len(h.clients)
				h.mutex.Unlock()
				// Close the channel after releasing the lock
				close(client.send)
				log.Printf("Client %s disconnected. Total clients: %d", client.id, clientCount)
			} else {
				h.mutex.Unlock()
			}
		}
	}
}

// SendToConns delivers payload to each listed connection. Connections whose
// send buffers are full are dropped and scheduled for removal; everyone else
// still receives the payload.
func (h *Hub) SendToConns(connIDs []string, payload []byte) {
	var failed []*Client

	for _, id := range connIDs {
		h.mutex.RLock()
		client, ok := h.clients[id]
		h.mutex.RUnlock()
		if !ok {
			// Recipient went away between snapshot and send.
			log.Printf("Skipping delivery to departed connection %s", id)
			continue
		}
		if !h.trySend(client, payload) {
			log.Printf("Dropping connection %s: send buffer full or closed", id)
			failed = append(failed, client)
		}
	}

	h.removeFailedClients(failed)
}

// trySend queues payload on the client's send channel without blocking.
func (h *Hub) trySend(client *Client, payload []byte) bool {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic sending to %s: %v", client.id, r)
		}
	}()

	h.mutex.RLock()
	defer h.mutex.RUnlock()

	if _, exists := h.clients[client.id]; !exists || client.closed {
		return false
	}

	select {
	case client.send <- payload:
		return true
	default:
		return false
	}
}

// removeFailedClients unregisters clients whose buffers could not accept a
// payload and closes their channels outside the lock.
func (h *Hub) removeFailedClients(failed []*Client) {
	if len(failed) == 0 {
		return
	}

	h.mutex.Lock()
	var channelsToClose []chan []byte
	for _, client := range failed {
		if _, exists := h.clients[client.id]; exists {
			delete(h.clients, client.id)
			client.closed = true
			channelsToClose = append(channelsToClose, client.send)
		}
	}
	h.mutex.Unlock()

	for _, ch := range channelsToClose {
		close(ch)
	}
}

// ClientCount returns the number of registered connections.
func (h *Hub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// closeAllClients closes every active connection during shutdown.
func (h *Hub) closeAllClients() {
	log.Println("Shutting down all client connections...")

	h.mutex.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for _, client := range h.clients {
		clients = append(clients, client)
	}
	h.mutex.Unlock()

	for _, client := range clients {
		if client.conn != nil {
			if err := client.conn.Close(); err != nil {
				if !isExpectedCloseError(err) {
					log.Printf("Error closing client connection %s: %v", client.id, err)
				}
			}
		}
	}

	log.Printf("Closed %d client connections", len(clients))
}

// Shutdown stops the hub and waits for pump goroutines to finish, or until
// the timeout elapses.
func (h *Hub) Shutdown(timeout time.Duration) error {
	log.Println("Initiating hub shutdown...")

	h.cancel()
	<-h.done

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("Hub shutdown completed")
		return nil
	case <-time.After(timeout):
		log.Println("Hub shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}
