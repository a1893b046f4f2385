package stream

import (
	"sync"

	"github.com/orbital/passwatch/internal/propagation"
)

const subscriberBuffer = 4

// Hub fans tracker snapshots out to connected stream clients. The tracker
// publishes into the hub; each SSE connection subscribes and reads its own
// channel. A slow client that falls more than subscriberBuffer snapshots
// behind misses snapshots rather than stalling the tracker.
type Hub struct {
	mu   sync.Mutex
	subs map[chan *propagation.Snapshot]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[chan *propagation.Snapshot]struct{})}
}

// Publish delivers a snapshot to every subscriber without blocking.
func (h *Hub) Publish(snap *propagation.Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for ch := range h.subs {
		select {
		case ch <- snap:
		default:
		}
	}
}

// Subscribe registers a new snapshot channel. The returned cancel function
// must be called when the subscriber disconnects.
func (h *Hub) Subscribe() (<-chan *propagation.Snapshot, func()) {
	ch := make(chan *propagation.Snapshot, subscriberBuffer)

	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		delete(h.subs, ch)
		h.mu.Unlock()
	}
	return ch, cancel
}

// Subscribers returns the number of connected subscribers.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
