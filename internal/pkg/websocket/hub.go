package websocket

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// Hub maintains the set of active clients grouped by topic and pushes payloads to them.
// A topic is a recipient id, or a shared group such as the admin channel.
type Hub struct {
	// Registered clients organized by topic
	clients map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	publish    chan envelope

	mu     sync.RWMutex
	logger zerolog.Logger
}

type envelope struct {
	topic   string
	payload []byte
}

// NewHub creates a new Hub instance
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		publish:    make(chan envelope, 256),
		logger:     logger.With().Str("component", "ws-hub").Logger(),
	}
}

// Run handles registrations and deliveries until ctx is cancelled
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case client := <-h.register:
			h.registerClient(client)
		case client := <-h.unregister:
			h.unregisterClient(client)
		case env := <-h.publish:
			h.deliver(env)
		}
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, topic := range client.topics {
		if _, ok := h.clients[topic]; !ok {
			h.clients[topic] = make(map[*Client]bool)
		}
		h.clients[topic][client] = true
	}

	h.logger.Info().Strs("topics", client.topics).Msg("Client registered")
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	removed := false
	for _, topic := range client.topics {
		if set, ok := h.clients[topic]; ok {
			if _, ok := set[client]; ok {
				delete(set, client)
				removed = true
			}
			if len(set) == 0 {
				delete(h.clients, topic)
			}
		}
	}
	if removed {
		close(client.send)
		h.logger.Info().Strs("topics", client.topics).Msg("Client unregistered")
	}
}

// deliver drops clients whose send buffer is full
func (h *Hub) deliver(env envelope) {
	h.mu.RLock()
	var slow []*Client
	for client := range h.clients[env.topic] {
		select {
		case client.send <- env.payload:
		default:
			slow = append(slow, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range slow {
		h.unregisterClient(client)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	seen := make(map[*Client]bool)
	for _, set := range h.clients {
		for client := range set {
			if !seen[client] {
				seen[client] = true
				close(client.send)
			}
		}
	}
	h.clients = make(map[string]map[*Client]bool)
}

// Publish queues a payload for every client subscribed to topic.
// It reports false when the hub is saturated and the payload was dropped.
func (h *Hub) Publish(topic string, payload []byte) bool {
	select {
	case h.publish <- envelope{topic: topic, payload: payload}:
		return true
	default:
		h.logger.Warn().Str("topic", topic).Msg("Hub publish queue full, dropping payload")
		return false
	}
}

// ClientCount returns the number of connected clients for a topic
func (h *Hub) ClientCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[topic])
}
