// Package push delivers coach messages to connected clients over
// WebSocket. Delivery is best-effort; a user with no open connection
// simply misses the push and reads the reply from the HTTP response
// or chat history instead.
package push

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const writeTimeout = 10 * time.Second

// Message is one pushed event.
type Message struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// Hub tracks open connections per user.
type Hub struct {
	mu     sync.Mutex
	conns  map[string][]*websocket.Conn
	logger *slog.Logger
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		conns:  make(map[string][]*websocket.Conn),
		logger: logger.With("component", "push"),
	}
}

// Register adds a connection for a user. The caller owns the read
// side; the hub only writes.
func (h *Hub) Register(userID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[userID] = append(h.conns[userID], conn)
	h.logger.Debug("client connected", "user_id", userID, "connections", len(h.conns[userID]))
}

// Unregister removes a connection and closes it.
func (h *Hub) Unregister(userID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns := h.conns[userID]
	for i, c := range conns {
		if c == conn {
			h.conns[userID] = append(conns[:i], conns[i+1:]...)
			break
		}
	}
	if len(h.conns[userID]) == 0 {
		delete(h.conns, userID)
	}
	conn.Close()
}

// Send pushes a message to every connection the user has open.
// Failed connections are dropped; Send never returns an error because
// callers must not fail on delivery problems.
func (h *Hub) Send(userID string, msg *Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Warn("marshal push failed", "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	conns := h.conns[userID]
	var live []*websocket.Conn
	for _, conn := range conns {
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.logger.Debug("push write failed, dropping connection", "user_id", userID, "error", err)
			conn.Close()
			continue
		}
		live = append(live, conn)
	}
	if len(live) == 0 {
		delete(h.conns, userID)
	} else {
		h.conns[userID] = live
	}
}

// Connections reports how many connections a user has open.
func (h *Hub) Connections(userID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns[userID])
}
