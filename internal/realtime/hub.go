package realtime

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

const (
	// PingInterval and PongWait are used for heartbeat (seconds).
	PingInterval = 30
	PongWait     = 60
)

// Feed event names broadcast to connected admin dashboards.
const (
	EventPromoRedeemed  = "promo_redeemed"
	EventBonusAwarded   = "bonus_awarded"
	EventLedgerAdjusted = "ledger_adjusted"
	EventCreditsExpired = "credits_expired"
)

// RedisPublisher publishes feed events to Redis for cross-instance broadcast.
type RedisPublisher interface {
	PublishFeedEvent(event string, payload []byte) error
}

// RedisSubscriber subscribes to the feed channel and invokes handler for
// incoming events.
type RedisSubscriber interface {
	SubscribeFeed(handler func(event string, payload []byte)) (cancel func(), err error)
}

// Hub maintains the set of connected admin dashboard clients and fans feed
// events out to them. Events are published through Redis so every API instance
// delivers them, and the subscriber callback performs the single local
// broadcast (avoiding duplicate delivery on the publishing instance).
type Hub struct {
	clients map[string]*Client
	mu      sync.RWMutex
	logger  *zap.Logger
	pub     RedisPublisher
	cancel  func()
}

// NewHub creates the admin feed hub and starts the Redis subscription when a
// subscriber is provided.
func NewHub(logger *zap.Logger, pub RedisPublisher, sub RedisSubscriber) *Hub {
	h := &Hub{
		clients: make(map[string]*Client),
		logger:  logger,
		pub:     pub,
	}
	if sub != nil {
		cancel, err := sub.SubscribeFeed(func(event string, payload []byte) {
			h.broadcastLocal(event, json.RawMessage(payload))
		})
		if err != nil {
			logger.Warn("feed subscription failed, local-only broadcast", zap.Error(err))
		} else {
			h.cancel = cancel
		}
	}
	return h
}

// Close stops the Redis subscription.
func (h *Hub) Close() {
	if h.cancel != nil {
		h.cancel()
	}
}

// Register adds a dashboard client to the feed.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c.ID] = c
	h.mu.Unlock()
	h.logger.Debug("dashboard client connected", zap.String("client_id", c.ID))
}

// Unregister removes a dashboard client.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	delete(h.clients, c.ID)
	h.mu.Unlock()
	h.logger.Debug("dashboard client disconnected", zap.String("client_id", c.ID))
}

// Broadcast publishes a feed event. With Redis attached, delivery happens via
// the subscription callback; otherwise it goes straight to local clients.
func (h *Hub) Broadcast(event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	if h.pub != nil {
		if err := h.pub.PublishFeedEvent(event, data); err == nil {
			return
		}
	}
	h.broadcastLocal(event, json.RawMessage(data))
}

func (h *Hub) broadcastLocal(event string, data json.RawMessage) {
	msg := WSMessage{Event: event, Data: data}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		select {
		case c.send <- msg:
		default:
			// buffer full, skip
		}
	}
}

// ClientCount returns the number of connected dashboard clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
