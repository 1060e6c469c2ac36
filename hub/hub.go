// Package hub is the group-addressed real-time transport. Every dashboard
// viewer and every worker holds one persistent websocket connection;
// outbound events are either broadcast to all clients or scoped to a
// per-build viewer group.
package hub

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/unibuild/controller/message"
)

// Handler receives the persistence RPCs a connected client may invoke.
// Callers get no error detail beyond the RPC failing; failures are logged
// here and workers are expected to resend on their own.
type Handler interface {
	UpdateStatus(buildID, status, errorMessage string) error
	AddLog(buildID, level, message, stage string) error
	CompleteBuild(buildID string, success bool, outputPath string, buildSize int64) error
	UpdateCommitHash(buildID, commitHash string) error
}

type Hub struct {
	handler  Handler
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*Client]bool
}

func New(handler Handler) *Hub {
	return &Hub{
		handler: handler,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// Dashboards are served from a different origin.
				return true
			},
		},
		clients: make(map[*Client]bool),
	}
}

// SetHandler wires the RPC handler. Must happen before the hub starts
// accepting connections; the hub and the queue service reference each other,
// so one side is set after construction.
func (h *Hub) SetHandler(handler Handler) {
	h.handler = handler
}

// HandleWebSocket upgrades the connection and serves it until the client
// disconnects. Connect and disconnect only log; a vanished worker does not
// fail its build, the build simply stops receiving updates.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println("Error: Failed to upgrade connection:", err)
		return
	}

	client := &Client{
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		groups: make(map[string]bool),
	}

	h.mu.Lock()
	h.clients[client] = true
	h.mu.Unlock()
	log.Printf("Client connected from %s (%d connected)", conn.RemoteAddr(), h.ClientCount())

	go client.writePump()
	client.readPump()
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
	log.Printf("Client %s disconnected (%d connected)", c.conn.RemoteAddr(), h.ClientCount())
}

// BroadcastAll sends the envelope to every connected client.
func (h *Hub) BroadcastAll(envelope message.Envelope) {
	h.broadcast(envelope, func(*Client) bool { return true })
}

// BroadcastGroup sends the envelope to clients that joined the group.
func (h *Hub) BroadcastGroup(group string, envelope message.Envelope) {
	h.broadcast(envelope, func(c *Client) bool { return c.inGroup(group) })
}

func (h *Hub) broadcastExcept(except *Client, envelope message.Envelope) {
	h.broadcast(envelope, func(c *Client) bool { return c != except })
}

func (h *Hub) broadcast(envelope message.Envelope, eligible func(*Client) bool) {
	data, err := json.Marshal(envelope)
	if err != nil {
		log.Println("Error: Failed to marshal broadcast envelope:", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if eligible(c) {
			c.trySend(envelope.Type, data)
		}
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// GroupCount is the number of clients that joined the group.
func (h *Hub) GroupCount(group string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for c := range h.clients {
		if c.inGroup(group) {
			n++
		}
	}
	return n
}

// WorkerCount is the size of the worker group.
func (h *Hub) WorkerCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for c := range h.clients {
		if c.isWorker() {
			n++
		}
	}
	return n
}
