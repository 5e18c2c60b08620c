package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startTestHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub()
	go hub.Run()
	t.Cleanup(func() {
		_ = hub.Shutdown(time.Second)
	})
	return hub
}

func registerTestClient(t *testing.T, hub *Hub, id string) *Client {
	t.Helper()
	client := &Client{id: id, send: make(chan []byte, 4)}
	hub.register <- client

	require.Eventually(t, func() bool {
		hub.mutex.RLock()
		_, ok := hub.clients[id]
		hub.mutex.RUnlock()
		return ok
	}, time.Second, 5*time.Millisecond)
	return client
}

func TestHubRegisterUnregister(t *testing.T) {
	hub := startTestHub(t)

	// Conn-less clients exercise the hub alone; their pump goroutines
	// exit immediately.
	client := registerTestClient(t, hub, "c1")
	assert.Equal(t, 1, hub.ClientCount())

	hub.unregister <- client
	require.Eventually(t, func() bool {
		return hub.ClientCount() == 0
	}, time.Second, 5*time.Millisecond)

	// The send channel is closed on unregister.
	_, open := <-client.send
	assert.False(t, open)
}

func TestHubSendToConns(t *testing.T) {
	hub := startTestHub(t)

	c1 := registerTestClient(t, hub, "c1")
	c2 := registerTestClient(t, hub, "c2")

	payload := []byte(`{"event":"status","data":{"msg":"hello","type":"info"}}`)
	hub.SendToConns([]string{"c1"}, payload)

	select {
	case got := <-c1.send:
		assert.Equal(t, payload, got)
	case <-time.After(time.Second):
		t.Fatal("c1 did not receive the payload")
	}

	select {
	case <-c2.send:
		t.Fatal("c2 received a payload addressed to c1 only")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubSendToUnknownConnIsSkipped(t *testing.T) {
	hub := startTestHub(t)
	c1 := registerTestClient(t, hub, "c1")

	// An id with no client must not affect delivery to the others.
	hub.SendToConns([]string{"ghost", "c1"}, []byte("payload"))

	select {
	case <-c1.send:
	case <-time.After(time.Second):
		t.Fatal("delivery to c1 was aborted by the unknown recipient")
	}
}

func TestHubDropsClientWithFullBuffer(t *testing.T) {
	hub := startTestHub(t)

	slow := &Client{id: "slow", send: make(chan []byte)} // unbuffered, never read
	hub.register <- slow
	require.Eventually(t, func() bool {
		return hub.ClientCount() == 1
	}, time.Second, 5*time.Millisecond)

	healthy := registerTestClient(t, hub, "healthy")

	hub.SendToConns([]string{"slow", "healthy"}, []byte("payload"))

	// The slow client is dropped; the healthy one still gets the payload.
	require.Eventually(t, func() bool {
		hub.mutex.RLock()
		_, ok := hub.clients["slow"]
		hub.mutex.RUnlock()
		return !ok
	}, time.Second, 5*time.Millisecond)

	select {
	case <-healthy.send:
	case <-time.After(time.Second):
		t.Fatal("healthy client did not receive the payload")
	}
}

func TestHubShutdownCompletes(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	require.NoError(t, hub.Shutdown(time.Second))
}
