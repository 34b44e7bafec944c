// Package websocket provides WebSocket connection management and booking
// event broadcasting.
package websocket

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

// sendBuffer is the per-client outbound queue length.
const sendBuffer = 256

type delivery struct {
	homestayID string
	data       []byte
}

// Hub maintains the set of active WebSocket clients and broadcasts messages.
type Hub struct {
	// Registered clients
	clients map[*Client]bool

	// Outbound messages tagged with the homestay they concern
	broadcast chan delivery

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Mutex for thread-safe client access
	mu sync.RWMutex

	logger logrus.FieldLogger
}

// NewHub creates a new WebSocket hub.
func NewHub(logger logrus.FieldLogger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan delivery, sendBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     logger,
	}
}

// Run starts the hub's main event loop and returns when ctx is done.
// This should be called in a goroutine.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Debugf("WebSocket client connected (total: %d)", total)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Debugf("WebSocket client disconnected (total: %d)", total)

		case msg := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				if !client.Wants(msg.homestayID) {
					continue
				}
				select {
				case client.send <- msg.data:
				default:
					// Client send buffer full, close connection
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Broadcast queues a message for every client interested in homestayID.
// An empty homestayID reaches every client. It never blocks.
func (h *Hub) Broadcast(homestayID string, message []byte) {
	select {
	case h.broadcast <- delivery{homestayID: homestayID, data: message}:
	default:
		h.logger.Warn("Broadcast channel full, dropping message")
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister removes a client from the hub.
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Client represents a WebSocket client connection. A client with no
// subscriptions receives events for every homestay.
type Client struct {
	hub  *Hub
	send chan []byte

	mu            sync.RWMutex
	subscriptions map[string]bool
}

// NewClient creates a new WebSocket client.
func NewClient(hub *Hub) *Client {
	return &Client{
		hub:           hub,
		send:          make(chan []byte, sendBuffer),
		subscriptions: make(map[string]bool),
	}
}

// Send returns the send channel for the client.
func (c *Client) Send() chan []byte {
	return c.send
}

// Subscribe limits the client to events of the given homestay (in addition
// to any existing subscriptions).
func (c *Client) Subscribe(homestayID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscriptions[homestayID] = true
}

// Unsubscribe drops a homestay subscription.
func (c *Client) Unsubscribe(homestayID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.subscriptions, homestayID)
}

// Wants reports whether a message about homestayID should reach the client.
func (c *Client) Wants(homestayID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return homestayID == "" || len(c.subscriptions) == 0 || c.subscriptions[homestayID]
}
