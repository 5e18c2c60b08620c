// Package server defines the wire-level event types exchanged with clients.
// Field names follow the original chat protocol (usuario/sala/mensaje/tiempo).
package server

import (
	"encoding/json"
	"strings"
)

// Inbound event names.
const (
	EventJoin    = "join"
	EventLeave   = "leave"
	EventMessage = "message"
)

// Outbound event names.
const (
	EventStatus      = "status"
	EventUpdateUsers = "update_users"
	EventChatMessage = "chat_message"
)

// Declared message types on the wire.
const (
	TipoTexto  = "texto"
	TipoImagen = "imagen"
)

// Envelope frames every event in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// JoinData is the payload of an inbound join event.
type JoinData struct {
	Usuario string `json:"usuario"`
	Sala    string `json:"sala"`
	PeerID  string `json:"peerId,omitempty"`
}

// MessageData is the payload of an inbound message event. Usuario, Sala and
// Tiempo may be present on the wire but are ignored; the server derives the
// sender identity from the registry and stamps its own time.
type MessageData struct {
	Tipo    string `json:"tipo,omitempty"`
	Mensaje string `json:"mensaje"`
}

// StatusData announces a membership change to a room.
type StatusData struct {
	Msg  string `json:"msg"`
	Type string `json:"type"`
}

// UserInfo is one element of an update_users payload.
type UserInfo struct {
	Usuario string `json:"usuario"`
	Sala    string `json:"sala"`
	PeerID  string `json:"peerId,omitempty"`
}

// ChatMessageData is the payload delivered to every member of the sender's room.
type ChatMessageData struct {
	Usuario string `json:"usuario"`
	Mensaje string `json:"mensaje"`
	Tiempo  string `json:"tiempo"`
	Tipo    string `json:"tipo"`
}

func encodeEvent(event string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: raw})
}

func decodeEnvelope(raw []byte) (Envelope, error) {
	var env Envelope
	err := json.Unmarshal(raw, &env)
	env.Event = strings.TrimSpace(env.Event)
	return env, err
}
