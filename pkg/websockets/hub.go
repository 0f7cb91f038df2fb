package websockets

import (
	"context"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"
)

// Hub tracks locally upgraded gorilla connections by user and publishes to them directly.
// It serves the local development server, where there is no API Gateway in front.
type Hub struct {
	mu    sync.Mutex
	conns map[string]map[string]*websocket.Conn
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{conns: make(map[string]map[string]*websocket.Conn)}
}

// Make sure we conform to the interface
var _ Publisher = (*Hub)(nil)

// Register adds a connection for userID.
func (h *Hub) Register(userID, connectionID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.conns[userID] == nil {
		h.conns[userID] = make(map[string]*websocket.Conn)
	}
	h.conns[userID][connectionID] = conn
}

// Unregister removes a connection.
func (h *Hub) Unregister(userID, connectionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.conns[userID], connectionID)
	if len(h.conns[userID]) == 0 {
		delete(h.conns, userID)
	}
}

// Publish writes the message to every local connection of the user.
func (h *Hub) Publish(ctx context.Context, userID string, message Message) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	for connectionID, conn := range h.conns[userID] {
		if err := conn.WriteJSON(message); err != nil {
			slog.Error("failed to write to local connection", "connectionId", connectionID, "error", err)
		}
	}
	return nil
}
