// Package server orchestrates join/leave/disconnect transitions through the
// Presence type, which owns all registry mutations.
package server

import (
	"fmt"
	"log"
)

// Presence drives the per-connection lifecycle: Unjoined -> Joined ->
// (Left | Disconnected). Terminal states are absorbing; once a connection
// has departed, further events for it are ignored. All transitions happen
// under a single mutex so membership broadcasts always reflect a consistent
// registry state.
type Presence struct {
	registry *Registry
	sender   connSender
}

// NewPresence creates a presence handler over the given registry and sender.
func NewPresence(registry *Registry, sender connSender) *Presence {
	return &Presence{registry: registry, sender: sender}
}

// Join admits a connection to a room. Events with a missing usuario or sala
// are dropped without any state change or emission: the transport offers no
// reply channel for this event type, so validation fails closed and silent.
// A duplicate join for an already-joined or departed connection is a no-op.
func (p *Presence) Join(c *Client, data JoinData) {
	if data.Usuario == "" || data.Sala == "" {
		log.Printf("[join] rejected: missing usuario or sala (conn=%s)", c.id)
		return
	}

	c.stateMu.Lock()
	defer c.stateMu.Unlock()

	if c.departed {
		return
	}
	if _, ok := p.registry.Get(c.id); ok {
		// Already joined; rejoining with new values is not supported.
		return
	}

	p.registry.Put(ConnectionEntry{
		ConnID:  c.id,
		Usuario: data.Usuario,
		Sala:    data.Sala,
		PeerID:  data.PeerID,
	})

	log.Printf("[join] %s | sala=%s | conn=%s | peer=%s", data.Usuario, data.Sala, c.id, data.PeerID)

	p.broadcastMembership(data.Sala, StatusData{
		Msg:  fmt.Sprintf("%s has joined the room", data.Usuario),
		Type: "info",
	})
}

// Leave handles an explicit leave event from the client.
func (p *Presence) Leave(c *Client) {
	p.depart(c, "leave", "%s has left the room")
}

// Disconnect handles transport-level teardown. Its effect is identical to
// Leave apart from the status text.
func (p *Presence) Disconnect(c *Client) {
	p.depart(c, "disconnect", "%s disconnected")
}

// depart removes the connection's entry and notifies its room. Calling it
// for an untracked connection is a guaranteed no-op, which makes repeated
// leave/disconnect invocations safe and keeps membership broadcasts to
// exactly one per teardown.
func (p *Presence) depart(c *Client, event, msgFormat string) {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()

	entry, ok := p.registry.Get(c.id)
	if !ok {
		return
	}

	c.departed = true
	p.registry.Remove(c.id)

	log.Printf("[%s] %s | sala=%s | conn=%s", event, entry.Usuario, entry.Sala, c.id)

	p.broadcastMembership(entry.Sala, StatusData{
		Msg:  fmt.Sprintf(msgFormat, entry.Usuario),
		Type: "warning",
	})
}

// broadcastMembership sends a status event followed by the room's refreshed
// member list to every connection in sala.
func (p *Presence) broadcastMembership(sala string, status StatusData) {
	targets := p.registry.ConnIDsInRoom(sala)

	if payload, err := encodeEvent(EventStatus, status); err == nil {
		p.sender.SendToConns(targets, payload)
	} else {
		log.Printf("Error encoding status event for sala=%s: %v", sala, err)
	}

	members := p.registry.ValuesInRoom(sala)
	users := make([]UserInfo, 0, len(members))
	for _, m := range members {
		users = append(users, UserInfo{Usuario: m.Usuario, Sala: m.Sala, PeerID: m.PeerID})
	}

	if payload, err := encodeEvent(EventUpdateUsers, users); err == nil {
		p.sender.SendToConns(targets, payload)
	} else {
		log.Printf("Error encoding update_users event for sala=%s: %v", sala, err)
	}
}
