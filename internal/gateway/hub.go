package gateway

import (
	"sync"
	"time"

	"admin-realtime-service/internal/domain/event"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const hubWriteWait = 10 * time.Second

// Hub tracks connected websocket clients and fans envelopes out to all of
// them. The dev gateway has no per-user routing: every admin client sees
// every event.
type Hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]bool
	logger  *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients: make(map[*websocket.Conn]bool),
		logger:  logger,
	}
}

func (h *Hub) register(conn *websocket.Conn) {
	h.mu.Lock()
	h.clients[conn] = true
	total := len(h.clients)
	h.mu.Unlock()
	h.logger.Info("websocket client connected", zap.Int("total", total))
}

func (h *Hub) unregister(conn *websocket.Conn) {
	h.mu.Lock()
	if _, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		conn.Close()
	}
	total := len(h.clients)
	h.mu.Unlock()
	h.logger.Info("websocket client disconnected", zap.Int("total", total))
}

// Broadcast sends an envelope to every connected client. Write failures drop
// the client; its read loop will unregister it.
func (h *Hub) Broadcast(env *event.Envelope) {
	data, err := env.ToJSON()
	if err != nil {
		h.logger.Error("failed to marshal envelope", zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		conn.SetWriteDeadline(time.Now().Add(hubWriteWait))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.logger.Warn("broadcast write failed, dropping client", zap.Error(err))
			conn.Close()
			delete(h.clients, conn)
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Shutdown closes every client connection.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		conn.Close()
		delete(h.clients, conn)
	}
}
