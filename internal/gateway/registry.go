package gateway

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Registry owns the authoritative map of connection id → connection state.
// Mutations serialize through one lock with bounded critical sections; no
// I/O happens while the lock is held — callers snapshot what they need and
// send outside it.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]*Conn
}

// NewRegistry creates an empty connection registry.
func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]*Conn)}
}

// Add creates a connection record for a freshly upgraded socket with a
// fresh unique id, an empty subscription set (held by the Index), and
// both timestamps set to now.
func (r *Registry) Add(ws *websocket.Conn) *Conn {
	now := time.Now().UTC()
	conn := &Conn{
		ID:           uuid.New().String(),
		CreatedAt:    now,
		ws:           ws,
		lastActivity: now,
	}

	r.mu.Lock()
	r.conns[conn.ID] = conn
	r.mu.Unlock()
	return conn
}

// Remove deletes the connection from the registry. Removing a missing id
// is a no-op: the second return value tells the caller whether teardown
// still needs to run.
func (r *Registry) Remove(id string) (*Conn, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	conn, ok := r.conns[id]
	if !ok {
		return nil, false
	}
	delete(r.conns, id)
	return conn, true
}

// Get looks up a connection by id.
func (r *Registry) Get(id string) (*Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.conns[id]
	return conn, ok
}

// Count returns the number of registered connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// IDs returns a snapshot of the registered connection ids.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.conns))
	for id := range r.conns {
		ids = append(ids, id)
	}
	return ids
}

// ConnInfo is a point-in-time view of one connection.
type ConnInfo struct {
	ID           string    `json:"id"`
	ConnectedAt  time.Time `json:"connected_at"`
	LastActivity time.Time `json:"last_activity"`
}

// List returns info about all registered connections.
func (r *Registry) List() []ConnInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]ConnInfo, 0, len(r.conns))
	for _, conn := range r.conns {
		result = append(result, ConnInfo{
			ID:           conn.ID,
			ConnectedAt:  conn.CreatedAt,
			LastActivity: conn.LastActivity(),
		})
	}
	return result
}
