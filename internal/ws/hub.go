// Package ws pushes a user's notifications to any websocket clients they
// have connected. Delivery is best-effort; a dead socket is dropped.
package ws

import (
	"sync"

	"github.com/gorilla/websocket"
)

type Hub struct {
	mu    sync.Mutex
	conns map[string]map[*websocket.Conn]struct{}
}

func NewHub() *Hub {
	return &Hub{conns: make(map[string]map[*websocket.Conn]struct{})}
}

func (h *Hub) Add(userID string, c *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.conns[userID]
	if !ok {
		set = make(map[*websocket.Conn]struct{})
		h.conns[userID] = set
	}
	set[c] = struct{}{}
}

func (h *Hub) Remove(userID string, c *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.conns[userID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.conns, userID)
		}
	}
	_ = c.Close()
}

// Publish writes v as JSON to every connection registered for the user.
// Connections that fail to write are closed and dropped.
func (h *Hub) Publish(userID string, v any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.conns[userID]
	for c := range set {
		if err := c.WriteJSON(v); err != nil {
			_ = c.Close()
			delete(set, c)
		}
	}
	if len(set) == 0 {
		delete(h.conns, userID)
	}
}
