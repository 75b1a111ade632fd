// Package notify fans report events out to live subscribers.
package notify

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/umarkhanovv/roadwatch/internal/logging"
	"github.com/umarkhanovv/roadwatch/internal/metrics"
)

// Subscriber is one live client channel.
type Subscriber interface {
	Send(msg []byte) error
}

// Hub holds the current subscriber set. Delivery is best effort: a
// subscriber whose Send fails is dropped and nothing is retried or replayed.
type Hub struct {
	mu     sync.RWMutex
	subs   map[Subscriber]struct{}
	logger *logging.Logger
}

// NewHub creates an empty hub.
func NewHub(logger *logging.Logger) *Hub {
	return &Hub{
		subs:   make(map[Subscriber]struct{}),
		logger: logger,
	}
}

// Subscribe registers s.
func (h *Hub) Subscribe(s Subscriber) {
	h.mu.Lock()
	h.subs[s] = struct{}{}
	n := len(h.subs)
	h.mu.Unlock()

	metrics.WSSubscribers.Set(float64(n))
	h.logger.Debug("Subscriber connected", logging.WithField("subscribers", n))
}

// Unsubscribe removes s. Removing an unknown subscriber is a no-op.
func (h *Hub) Unsubscribe(s Subscriber) {
	h.mu.Lock()
	_, ok := h.subs[s]
	delete(h.subs, s)
	n := len(h.subs)
	h.mu.Unlock()

	if ok {
		metrics.WSSubscribers.Set(float64(n))
		h.logger.Debug("Subscriber disconnected", logging.WithField("subscribers", n))
	}
}

// Len returns the number of registered subscribers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Broadcast encodes event once and sends it to every subscriber. Failed
// subscribers are removed; the rest still receive the message. Only an
// encoding failure is returned.
func (h *Hub) Broadcast(event interface{}) error {
	msg, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	h.mu.RLock()
	targets := make([]Subscriber, 0, len(h.subs))
	for s := range h.subs {
		targets = append(targets, s)
	}
	h.mu.RUnlock()

	var failed []Subscriber
	for _, s := range targets {
		if err := s.Send(msg); err != nil {
			h.logger.Warn("Dropping subscriber after failed send", logging.WithField("error", err.Error()))
			failed = append(failed, s)
		}
	}

	for _, s := range failed {
		h.Unsubscribe(s)
		metrics.BroadcastDrops.Inc()
	}

	h.logger.Debug("Broadcast event", logging.WithFields(map[string]interface{}{
		"delivered": len(targets) - len(failed),
		"dropped":   len(failed),
	}))
	return nil
}
