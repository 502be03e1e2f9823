// Package live streams check-in events to staff dashboards over WebSocket.
// Rooms are keyed by conference slug; Redis pub/sub bridges instances.
package live

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

const (
	// Heartbeat seconds.
	pingInterval = 30
	pongWait     = 60
)

// Message is the WebSocket envelope sent to dashboards.
type Message struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Publisher publishes conference events to other instances.
type Publisher interface {
	PublishConferenceEvent(slug, event string, payload []byte) error
}

// Subscriber subscribes to a conference channel and invokes handler for
// incoming events. Returns a cancel func.
type Subscriber interface {
	SubscribeConference(slug string, handler func(event string, payload []byte)) (cancel func(), err error)
}

// Hub maintains conference slug -> set of dashboard connections.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[string]map[string]*Client
	subs   map[string]func()
	pub    Publisher
	sub    Subscriber
	logger *zap.Logger
}

// NewHub creates a hub. pub and sub may be nil for single-instance runs.
func NewHub(pub Publisher, sub Subscriber, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		rooms:  make(map[string]map[string]*Client),
		subs:   make(map[string]func()),
		pub:    pub,
		sub:    sub,
		logger: logger,
	}
}

// register adds a client to its conference room, starting the Redis
// subscription when the first client arrives.
func (h *Hub) register(c *Client) {
	h.mu.Lock()
	if h.rooms[c.slug] == nil {
		h.rooms[c.slug] = make(map[string]*Client)
		if h.sub != nil {
			slug := c.slug
			cancel, err := h.sub.SubscribeConference(slug, func(event string, payload []byte) {
				h.broadcastLocal(slug, event, json.RawMessage(payload))
			})
			if err == nil {
				h.subs[slug] = cancel
			} else {
				h.logger.Warn("conference subscription failed", zap.String("conference", slug), zap.Error(err))
			}
		}
	}
	h.rooms[c.slug][c.id] = c
	h.mu.Unlock()
	h.logger.Debug("dashboard connected", zap.String("client_id", c.id), zap.String("conference", c.slug))
}

// unregister removes a client, cancelling the Redis subscription when the
// last one leaves.
func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	if m, ok := h.rooms[c.slug]; ok {
		delete(m, c.id)
		if len(m) == 0 {
			delete(h.rooms, c.slug)
			if cancel, ok := h.subs[c.slug]; ok {
				cancel()
				delete(h.subs, c.slug)
			}
		}
	}
	h.mu.Unlock()
	h.logger.Debug("dashboard disconnected", zap.String("client_id", c.id), zap.String("conference", c.slug))
}

// Broadcast sends an event to every dashboard watching the conference.
// Implements the check-in engine's feed. With the pub/sub bridge wired the
// event goes through the channel only; this instance's own subscription
// delivers it locally exactly once alongside every other instance. Without a
// bridge, or when the publish fails, delivery falls back to local fan-out.
func (h *Hub) Broadcast(slug, event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("broadcast marshal failed", zap.String("event", event), zap.Error(err))
		return
	}
	if h.pub != nil {
		err := h.pub.PublishConferenceEvent(slug, event, data)
		if err == nil {
			return
		}
		h.logger.Warn("broadcast publish failed, delivering locally", zap.String("event", event), zap.Error(err))
	}
	h.broadcastLocal(slug, event, json.RawMessage(data))
}

func (h *Hub) broadcastLocal(slug, event string, data json.RawMessage) {
	msg := Message{Event: event, Data: data}

	h.mu.RLock()
	clients := h.rooms[slug]
	h.mu.RUnlock()

	for _, c := range clients {
		select {
		case c.send <- msg:
		default:
			// slow consumer, drop
		}
	}
}

// ClientCount returns the number of connected dashboards for a conference.
func (h *Hub) ClientCount(slug string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[slug])
}
