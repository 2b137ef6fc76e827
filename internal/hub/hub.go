// Package hub tracks connected device WebSockets and broadcasts update
// envelopes to all of them.
package hub

import (
	"encoding/json"
	"sync"

	"golang.org/x/net/websocket"
)

// Hub is a registry of live device connections. Devices are read-only
// receivers; the hub only ever writes to them.
type Hub struct {
	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

// New returns an empty hub.
func New() *Hub {
	return &Hub{conns: make(map[*websocket.Conn]struct{})}
}

// Add registers a connection.
func (h *Hub) Add(ws *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[ws] = struct{}{}
}

// Remove unregisters a connection. Removing an unknown connection is a no-op.
func (h *Hub) Remove(ws *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, ws)
}

// Count returns the number of connected devices.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// Broadcast sends v (JSON-encoded once) to every connection. Connections
// that fail to accept the write are closed and evicted. Returns the number
// of successful deliveries.
func (h *Hub) Broadcast(v any) int {
	payload, err := json.Marshal(v)
	if err != nil {
		return 0
	}

	// Snapshot under lock, send outside it: a stuck peer must not block
	// registration of new connections.
	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.conns))
	for ws := range h.conns {
		conns = append(conns, ws)
	}
	h.mu.Unlock()

	delivered := 0
	var dead []*websocket.Conn
	for _, ws := range conns {
		if err := websocket.Message.Send(ws, string(payload)); err != nil {
			dead = append(dead, ws)
			continue
		}
		delivered++
	}

	if len(dead) > 0 {
		h.mu.Lock()
		for _, ws := range dead {
			delete(h.conns, ws)
		}
		h.mu.Unlock()
		for _, ws := range dead {
			ws.Close()
		}
	}

	return delivered
}
