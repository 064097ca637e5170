// Package ws pushes live tracking events to connected dashboard clients.
package ws

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/palletworks/palletwatch/internal/monitoring"
)

const readDeadline = 60 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub fans JSON events out to every connected client. Clients that fail a
// write are dropped.
type Hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]bool
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[*websocket.Conn]bool)}
}

// Broadcast marshals v and writes it to every client.
func (h *Hub) Broadcast(v interface{}) {
	msg, err := json.Marshal(v)
	if err != nil {
		monitoring.Logf("ws: marshal broadcast: %v", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			monitoring.Logf("ws: write to client: %v", err)
			delete(h.clients, conn)
			conn.Close()
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) register(conn *websocket.Conn) {
	h.mu.Lock()
	h.clients[conn] = true
	n := len(h.clients)
	h.mu.Unlock()
	monitoring.Logf("ws: client connected, total %d", n)
}

func (h *Hub) unregister(conn *websocket.Conn) {
	h.mu.Lock()
	if _, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		conn.Close()
	}
	n := len(h.clients)
	h.mu.Unlock()
	monitoring.Logf("ws: client disconnected, total %d", n)
}

// ServeHTTP upgrades the request and keeps the connection registered until
// the client goes away. Clients only listen; inbound frames are drained to
// service pings.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		monitoring.Logf("ws: upgrade: %v", err)
		return
	}
	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(readDeadline))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(readDeadline))
		return nil
	})

	h.register(conn)
	defer h.unregister(conn)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
