package sse

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Message is one named event as delivered to a subscriber.
type Message struct {
	Event     string          `json:"event"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

// Client is a live subscriber. Messages arrive on C in publish order until
// the client is unsubscribed or pruned, at which point C is closed.
type Client struct {
	ID uuid.UUID
	C  chan *Message
}

// Hub is the broadcast bus: a dynamic set of subscribers each backed by a
// buffered channel. Publishing never blocks; a subscriber that cannot keep
// up is dropped on the failing send rather than stalling the publisher.
type Hub struct {
	logger  zerolog.Logger
	bufSize int

	mu      sync.Mutex
	clients map[uuid.UUID]*Client
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		logger:  logger.With().Str("component", "sse_hub").Logger(),
		bufSize: 64,
		clients: make(map[uuid.UUID]*Client),
	}
}

// Subscribe registers a new subscriber. It receives only events published
// after this call; callers reconstruct current state from a status snapshot.
func (h *Hub) Subscribe() *Client {
	c := &Client{
		ID: uuid.New(),
		C:  make(chan *Message, h.bufSize),
	}
	h.mu.Lock()
	h.clients[c.ID] = c
	h.mu.Unlock()
	return c
}

// Unsubscribe removes a subscriber and closes its channel. Idempotent.
func (h *Hub) Unsubscribe(id uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.clients[id]; ok {
		delete(h.clients, id)
		close(c.C)
	}
}

// ClientCount returns the number of live subscribers.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Publish serializes the payload once and delivers it to every subscriber.
// A subscriber whose buffer is full is unsubscribed instead of blocking the
// publisher, preserving per-subscriber ordering for everyone else.
func (h *Hub) Publish(event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error().Err(err).Str("event", event).Msg("failed to marshal event payload")
		return
	}
	msg := &Message{Event: event, Data: data, Timestamp: time.Now().UTC()}

	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		select {
		case c.C <- msg:
		default:
			delete(h.clients, id)
			close(c.C)
			h.logger.Warn().Str("client_id", id.String()).Msg("dropped slow subscriber")
		}
	}
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		delete(h.clients, id)
		close(c.C)
	}
}
