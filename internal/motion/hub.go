package motion

import (
	"errors"
	"sync"
	"time"
)

// Hub is a push-driven Sampler: samples arrive from outside (an HTTP client,
// a replay file, a test) through Push and are delivered synchronously to every
// live subscriber.
type Hub struct {
	mu       sync.Mutex
	nextID   uint64
	subs     map[uint64]*hubSubscription
	interval time.Duration
}

// NewHub constructs an empty Hub.
func NewHub() *Hub {
	return &Hub{
		subs:     make(map[uint64]*hubSubscription),
		interval: DefaultInterval,
	}
}

// SetSampleInterval records the interval requested by the consumer. Producers
// can read it back with Interval to pace their pushes.
func (h *Hub) SetSampleInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	h.mu.Lock()
	h.interval = d
	h.mu.Unlock()
}

// Interval reports the most recently requested sample interval.
func (h *Hub) Interval() time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.interval
}

// Subscribe registers fn for future pushes.
func (h *Hub) Subscribe(fn func(Sample)) (Subscription, error) {
	if fn == nil {
		return nil, errors.New("motion: nil sample callback")
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	sub := &hubSubscription{hub: h, id: h.nextID, fn: fn, active: true}
	h.subs[sub.id] = sub
	return sub, nil
}

// Subscribers reports the number of live subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Push delivers s to every live subscriber and reports how many received it.
func (h *Hub) Push(s Sample) int {
	h.mu.Lock()
	subs := make([]*hubSubscription, 0, len(h.subs))
	for _, sub := range h.subs {
		subs = append(subs, sub)
	}
	h.mu.Unlock()

	delivered := 0
	for _, sub := range subs {
		if sub.deliver(s) {
			delivered++
		}
	}
	return delivered
}

type hubSubscription struct {
	hub *Hub
	id  uint64
	fn  func(Sample)

	mu     sync.Mutex
	active bool
}

func (s *hubSubscription) deliver(sample Sample) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return false
	}
	s.fn(sample)
	return true
}

func (s *hubSubscription) Cancel() {
	s.mu.Lock()
	s.active = false
	s.mu.Unlock()

	s.hub.mu.Lock()
	delete(s.hub.subs, s.id)
	s.hub.mu.Unlock()
}
