package session

import "sync"

// Registry maps live connections to user identities and, once paired, to the
// room of their active match. It is the only cross-room state besides the
// matchmaking queue; its lock is never held while a room lock is held.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]*Conn  // conn id -> connection
	rooms map[string]string // conn id -> active room id
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		conns: make(map[string]*Conn),
		rooms: make(map[string]string),
	}
}

// Add registers a connection.
func (r *Registry) Add(c *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[c.ID] = c
}

// Identify attaches a user identity to a connection.
func (r *Registry) Identify(connID string, user Identity) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conns[connID]
	if !ok {
		return false
	}
	c.User = user
	return true
}

// Get returns a connection by id.
func (r *Registry) Get(connID string) (*Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[connID]
	return c, ok
}

// BindRoom records the room a connection is playing in.
func (r *Registry) BindRoom(connID, roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conns[connID]; ok {
		r.rooms[connID] = roomID
	}
}

// UnbindRoom clears a connection's room binding.
func (r *Registry) UnbindRoom(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rooms, connID)
}

// LookupMatch returns the room id of the connection's active match.
func (r *Registry) LookupMatch(connID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	roomID, ok := r.rooms[connID]
	return roomID, ok
}

// Remove drops a connection and returns it together with any room binding so
// the caller can run forfeiture cleanup. Removing an unknown connection is a
// no-op, which makes double-disconnect handling idempotent.
func (r *Registry) Remove(connID string) (*Conn, string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conns[connID]
	if !ok {
		return nil, "", false
	}
	roomID := r.rooms[connID]
	delete(r.conns, connID)
	delete(r.rooms, connID)
	return c, roomID, true
}

// Len returns the number of live connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
