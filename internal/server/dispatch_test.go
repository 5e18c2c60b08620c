package server

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDispatcher(t *testing.T, reg *Registry, sender connSender) *Dispatcher {
	t.Helper()
	d := NewDispatcher(reg, sender, 2, 16)
	d.Start()
	t.Cleanup(func() {
		_ = d.Stop(time.Second)
	})
	return d
}

func waitForDeliveries(t *testing.T, sender *recordingSender, n int) []delivery {
	t.Helper()
	require.Eventually(t, func() bool {
		return len(sender.all()) >= n
	}, 2*time.Second, 5*time.Millisecond, "expected %d deliveries", n)
	return sender.all()
}

func TestDispatcherBroadcastsToRoom(t *testing.T) {
	reg := NewRegistry()
	reg.Put(ConnectionEntry{ConnID: "a1", Usuario: "Alice", Sala: "general"})
	reg.Put(ConnectionEntry{ConnID: "a2", Usuario: "Bob", Sala: "general"})
	reg.Put(ConnectionEntry{ConnID: "b1", Usuario: "Carol", Sala: "random"})

	sender := &recordingSender{}
	d := newTestDispatcher(t, reg, sender)

	entry, _ := reg.Get("a2")
	d.Submit(entry, MessageData{Mensaje: "hi", Tipo: TipoTexto})

	deliveries := waitForDeliveries(t, sender, 1)
	require.Len(t, deliveries, 1)

	assert.Equal(t, EventChatMessage, deliveries[0].event)
	// Room isolation: the message went to room general only.
	assert.Equal(t, []string{"a1", "a2"}, deliveries[0].connIDs)

	var msg ChatMessageData
	require.NoError(t, json.Unmarshal(deliveries[0].data, &msg))
	assert.Equal(t, "Bob", msg.Usuario)
	assert.Equal(t, "hi", msg.Mensaje)
	assert.Equal(t, TipoTexto, msg.Tipo)
	assert.NotEmpty(t, msg.Tiempo, "timestamp is server-stamped")
}

func TestDispatcherWireTipos(t *testing.T) {
	tests := []struct {
		name     string
		data     MessageData
		wantTipo string
	}{
		{name: "text", data: MessageData{Mensaje: "hello there", Tipo: TipoTexto}, wantTipo: TipoTexto},
		{name: "emoji goes out as texto", data: MessageData{Mensaje: "😀"}, wantTipo: TipoTexto},
		{name: "image", data: MessageData{Mensaje: "data:image/png;base64,AAAA", Tipo: TipoImagen}, wantTipo: TipoImagen},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := NewRegistry()
			reg.Put(ConnectionEntry{ConnID: "c1", Usuario: "Alice", Sala: "general"})
			sender := &recordingSender{}
			d := newTestDispatcher(t, reg, sender)

			entry, _ := reg.Get("c1")
			d.Submit(entry, tt.data)

			deliveries := waitForDeliveries(t, sender, 1)
			var msg ChatMessageData
			require.NoError(t, json.Unmarshal(deliveries[0].data, &msg))
			assert.Equal(t, tt.wantTipo, msg.Tipo)
			assert.Equal(t, tt.data.Mensaje, msg.Mensaje)
		})
	}
}

// TestDispatcherSubmitDoesNotBlock floods a tiny queue with more tasks than
// it can hold; Submit must return promptly every time and no task may be
// lost.
func TestDispatcherSubmitDoesNotBlock(t *testing.T) {
	reg := NewRegistry()
	reg.Put(ConnectionEntry{ConnID: "c1", Usuario: "Alice", Sala: "general"})

	sender := &recordingSender{}
	d := NewDispatcher(reg, sender, 1, 1)
	d.Start()
	t.Cleanup(func() {
		_ = d.Stop(time.Second)
	})

	entry, _ := reg.Get("c1")

	const total = 50
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < total; i++ {
			d.Submit(entry, MessageData{Mensaje: fmt.Sprintf("message number %d", i)})
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Submit blocked the caller")
	}

	waitForDeliveries(t, sender, total)
}

func TestDispatcherEmptyRoom(t *testing.T) {
	reg := NewRegistry()
	sender := &recordingSender{}
	d := newTestDispatcher(t, reg, sender)

	// Sender left the room before the worker picked up the task.
	d.Submit(ConnectionEntry{ConnID: "gone", Usuario: "Alice", Sala: "general"}, MessageData{Mensaje: "hello there"})

	deliveries := waitForDeliveries(t, sender, 1)
	assert.Empty(t, deliveries[0].connIDs)
}

func TestDispatcherStopIsIdempotent(t *testing.T) {
	reg := NewRegistry()
	d := NewDispatcher(reg, &recordingSender{}, 2, 4)
	d.Start()

	require.NoError(t, d.Stop(time.Second))
	require.NoError(t, d.Stop(time.Second))
}
