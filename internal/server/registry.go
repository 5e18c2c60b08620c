// Package server tracks live connections and their room membership through
// the Registry type, the single source of truth for presence state.
package server

import "sync"

// ConnectionEntry describes one joined connection. All fields are set at join
// time and never mutated afterwards; rooms exist only as the set of entries
// that share a Sala value.
type ConnectionEntry struct {
	ConnID  string
	Usuario string
	Sala    string
	PeerID  string
}

// Registry maps connection ids to their entries. It is safe for concurrent
// use; every read hands out copies so callers never observe in-flight
// mutations.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]ConnectionEntry
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]ConnectionEntry)}
}

// Put stores the entry under its connection id, overwriting any previous one.
func (r *Registry) Put(entry ConnectionEntry) {
	r.mu.Lock()
	r.entries[entry.ConnID] = entry
	r.mu.Unlock()
}

// Get returns the entry for connID and whether it exists.
func (r *Registry) Get(connID string) (ConnectionEntry, bool) {
	r.mu.RLock()
	entry, ok := r.entries[connID]
	r.mu.RUnlock()
	return entry, ok
}

// Remove deletes the entry for connID. Removing an absent id is a no-op.
func (r *Registry) Remove(connID string) {
	r.mu.Lock()
	delete(r.entries, connID)
	r.mu.Unlock()
}

// Len returns the number of tracked connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// ValuesInRoom returns a snapshot of every entry whose Sala equals sala.
// The snapshot is consistent at the instant of the call.
func (r *Registry) ValuesInRoom(sala string) []ConnectionEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var members []ConnectionEntry
	for _, entry := range r.entries {
		if entry.Sala == sala {
			members = append(members, entry)
		}
	}
	return members
}

// ConnIDsInRoom returns the connection ids currently in sala, for fan-out
// target resolution.
func (r *Registry) ConnIDsInRoom(sala string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var ids []string
	for id, entry := range r.entries {
		if entry.Sala == sala {
			ids = append(ids, id)
		}
	}
	return ids
}
