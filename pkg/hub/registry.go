package hub

import (
	"sort"
	"sync"

	"github.com/spawnx1/REALTIMETRACKING/pkg/logger"
	"github.com/spawnx1/REALTIMETRACKING/pkg/protocol"
)

// Registry tracks every connected client and its last known state. All
// mutation happens on the hub dispatch goroutine; the lock serves the
// read-only HTTP views.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]*Client
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		conns: make(map[string]*Client),
	}
}

// Register adds a client. A new client always starts as a rider with no
// known location.
func (r *Registry) Register(c *Client) {
	r.mu.Lock()
	r.conns[c.id] = c
	r.mu.Unlock()
}

// Get returns a client by ID
func (r *Registry) Get(id string) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[id]
	return c, ok
}

// UpdateLocation sets the last reported location for a connection.
// Operations on unknown IDs are silently ignored; stale telemetry for a
// departed connection is expected, not an error.
func (r *Registry) UpdateLocation(id string, lat, lon float64) bool {
	c, ok := r.Get(id)
	if !ok {
		logger.Get().DebugWith("location update for unknown connection", "connID", id)
		return false
	}
	c.setLocation(lat, lon)
	return true
}

// Remove deletes a client. Returns false if the ID was not registered.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conns[id]; !ok {
		return false
	}
	delete(r.conns, id)
	return true
}

// All returns all connected clients
func (r *Registry) All() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	clients := make([]*Client, 0, len(r.conns))
	for _, c := range r.conns {
		clients = append(clients, c)
	}
	return clients
}

// Count returns the number of connected clients
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// Snapshot returns the state of every registered connection, ordered by
// connect time so late joiners render peers deterministically
func (r *Registry) Snapshot() []protocol.ConnectionInfo {
	clients := r.All()
	sort.Slice(clients, func(i, j int) bool {
		if clients[i].connectedAt.Equal(clients[j].connectedAt) {
			return clients[i].id < clients[j].id
		}
		return clients[i].connectedAt.Before(clients[j].connectedAt)
	})

	infos := make([]protocol.ConnectionInfo, 0, len(clients))
	for _, c := range clients {
		infos = append(infos, c.Info())
	}
	return infos
}
