// Package websocket fans server events out to connected WebSocket clients.
package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

const broadcastBuffer = 256

// ErrBroadcastFull is returned when the hub cannot accept another message
var ErrBroadcastFull = errors.New("websocket: broadcast queue full")

var (
	connectedClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "threatwatch_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	droppedClients = promauto.NewCounter(prometheus.CounterOpts{
		Name: "threatwatch_websocket_slow_clients_dropped_total",
		Help: "Clients disconnected because their send buffer was full",
	})
)

// Message is the envelope written to clients
type Message struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

// Hub tracks connected clients and broadcasts to all of them
type Hub struct {
	clients    map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	done       chan struct{}
	logger     *zap.Logger

	mu sync.RWMutex
}

// NewHub creates a new hub
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, broadcastBuffer),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run serves registrations and broadcasts until ctx is cancelled, then
// disconnects every client
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				h.remove(c)
			}
			h.mu.Unlock()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			h.mu.Unlock()
			connectedClients.Inc()
			h.logger.Debug("WebSocket client connected", zap.String("client_id", c.ID))

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				h.remove(c)
			}
			h.mu.Unlock()

		case payload := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- payload:
				default:
					droppedClients.Inc()
					h.logger.Warn("Dropping slow WebSocket client", zap.String("client_id", c.ID))
					h.remove(c)
				}
			}
			h.mu.Unlock()
		}
	}
}

// remove must be called with mu held
func (h *Hub) remove(c *Client) {
	delete(h.clients, c)
	close(c.send)
	connectedClients.Dec()
}

// Register adds a client. It returns false once the hub has stopped.
func (h *Hub) Register(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes a client if the hub is still running
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// SendToAll queues a message for every connected client without blocking
func (h *Hub) SendToAll(msgType string, data interface{}) error {
	payload, err := json.Marshal(&Message{Type: msgType, Data: data, Timestamp: time.Now().UTC()})
	if err != nil {
		return err
	}

	select {
	case h.broadcast <- payload:
		return nil
	default:
		return ErrBroadcastFull
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
