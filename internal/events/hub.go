// Package events fans transaction lifecycle events out to the message broker
// and to live queue-stream subscribers.
package events

import (
	"log/slog"
	"sync"

	"github.com/aryan0dhankhar/paymentsportal/internal/domain"
)

// DefaultBuffer is the per-subscriber backlog before events are dropped.
const DefaultBuffer = 32

// Hub broadcasts events to in-process subscribers. A subscriber that falls
// behind loses events rather than stalling the publisher.
type Hub struct {
	mu     sync.RWMutex
	subs   map[*subscription]struct{}
	buffer int
	closed bool
	logger *slog.Logger
}

type subscription struct {
	ch   chan domain.TransactionEvent
	once sync.Once
}

func (s *subscription) close() {
	s.once.Do(func() { close(s.ch) })
}

func NewHub(buffer int, logger *slog.Logger) *Hub {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{subs: make(map[*subscription]struct{}), buffer: buffer, logger: logger}
}

// Subscribe registers a new listener. The returned cancel func unregisters it
// and closes the channel; calling it more than once is safe.
func (h *Hub) Subscribe() (<-chan domain.TransactionEvent, func()) {
	sub := &subscription{ch: make(chan domain.TransactionEvent, h.buffer)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		sub.close()
		return sub.ch, func() {}
	}
	h.subs[sub] = struct{}{}
	h.mu.Unlock()

	return sub.ch, func() {
		h.mu.Lock()
		delete(h.subs, sub)
		h.mu.Unlock()
		sub.close()
	}
}

// Broadcast delivers event to every subscriber with room in its buffer and
// returns how many received it.
func (h *Hub) Broadcast(event domain.TransactionEvent) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for sub := range h.subs {
		select {
		case sub.ch <- event:
			delivered++
		default:
			h.logger.Warn("queue stream subscriber lagging; event dropped",
				slog.String("event", event.Type),
				slog.String("transaction_id", event.TransactionID),
			)
		}
	}
	return delivered
}

// Subscribers returns the number of registered listeners.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for sub := range h.subs {
		sub.close()
		delete(h.subs, sub)
	}
}
