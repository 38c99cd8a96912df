package network

import (
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// ConnectionInfo is a point-in-time view of a registered connection.
type ConnectionInfo struct {
	Slot         int       `json:"slot"`
	Name         string    `json:"name"`
	Remote       string    `json:"remote"`
	Compression  bool      `json:"compression"`
	Threshold    int       `json:"threshold"`
	ConnectedAt  time.Time `json:"connected_at"`
	LastActivity time.Time `json:"last_activity"`
}

// ConnectionRegistry tracks the live connection of every fleet slot.
type ConnectionRegistry struct {
	mu    sync.RWMutex
	conns map[int]*Connection // slot -> connection
}

// NewConnectionRegistry creates a new ConnectionRegistry.
func NewConnectionRegistry() *ConnectionRegistry {
	return &ConnectionRegistry{
		conns: make(map[int]*Connection),
	}
}

// Register adds a connection for a slot, closing any connection the slot
// still held.
func (r *ConnectionRegistry) Register(slot int, conn *Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.conns[slot]; ok && existing != conn {
		existing.Close()
	}

	r.conns[slot] = conn
	log.Debug().Int("slot", slot).Str("clanker", conn.Name()).Msg("connection registered")
}

// Unregister removes and closes the connection of a slot.
func (r *ConnectionRegistry) Unregister(slot int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if conn, ok := r.conns[slot]; ok {
		conn.Close()
		delete(r.conns, slot)
		log.Debug().Int("slot", slot).Msg("connection unregistered")
	}
}

// Get returns the connection for a slot.
func (r *ConnectionRegistry) Get(slot int) (*Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.conns[slot]
	return conn, ok
}

// Count returns the number of registered connections.
func (r *ConnectionRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// Snapshot returns one ConnectionInfo per registered slot, ordered by slot.
func (r *ConnectionRegistry) Snapshot() []ConnectionInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]ConnectionInfo, 0, len(r.conns))
	for slot, conn := range r.conns {
		c := conn.Compression()
		infos = append(infos, ConnectionInfo{
			Slot:         slot,
			Name:         conn.Name(),
			Remote:       conn.RemoteAddr().String(),
			Compression:  c.Enabled,
			Threshold:    c.Threshold,
			ConnectedAt:  conn.ConnectedAt(),
			LastActivity: conn.LastActivity(),
		})
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].Slot < infos[j].Slot })
	return infos
}

// CloseAll closes and forgets every registered connection.
func (r *ConnectionRegistry) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for slot, conn := range r.conns {
		conn.Close()
		delete(r.conns, slot)
	}

	log.Info().Msg("all connections closed")
}
