package sse

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// ErrHubClosed is returned by Subscribe after Close.
var ErrHubClosed = errors.New("sse: hub closed")

const DefaultBufferSize = 32

// Subscriber is one live stream connection. Its queue is drained by a
// single writer; done is closed when the hub lets go of it.
type Subscriber struct {
	ID    string
	queue chan []byte
	done  chan struct{}
	once  sync.Once
}

// Messages yields the encoded payloads published to this subscriber.
func (s *Subscriber) Messages() <-chan []byte {
	return s.queue
}

// Done is closed once the subscriber has been removed from the hub.
func (s *Subscriber) Done() <-chan struct{} {
	return s.done
}

// Hub fans published events out to every subscriber. Publish never blocks:
// a subscriber whose queue is full is dropped.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[*Subscriber]struct{}
	closed      bool
	bufferSize  int
	nextID      atomic.Uint64

	// OnDrop, when set, is called for every subscriber pruned by Publish.
	OnDrop func(sub *Subscriber)
}

func NewHub(bufferSize int) *Hub {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Hub{
		subscribers: make(map[*Subscriber]struct{}),
		bufferSize:  bufferSize,
	}
}

// Subscribe registers a new subscriber.
func (h *Hub) Subscribe() (*Subscriber, error) {
	sub := &Subscriber{
		ID:    fmt.Sprintf("sub-%d", h.nextID.Add(1)),
		queue: make(chan []byte, h.bufferSize),
		done:  make(chan struct{}),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, ErrHubClosed
	}
	h.subscribers[sub] = struct{}{}
	return sub, nil
}

// Publish encodes payload once and enqueues it for every subscriber.
// It returns the number of subscribers that were dropped.
func (h *Hub) Publish(payload any) (int, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("encoding broadcast payload: %w", err)
	}

	var slow []*Subscriber
	h.mu.RLock()
	for sub := range h.subscribers {
		select {
		case sub.queue <- data:
		default:
			slow = append(slow, sub)
		}
	}
	h.mu.RUnlock()

	for _, sub := range slow {
		if h.Remove(sub) && h.OnDrop != nil {
			h.OnDrop(sub)
		}
	}
	return len(slow), nil
}

// Remove unregisters sub and closes its done channel. It reports whether
// this call did the removal; removing twice is a no-op.
func (h *Hub) Remove(sub *Subscriber) bool {
	if sub == nil {
		return false
	}

	h.mu.Lock()
	_, ok := h.subscribers[sub]
	delete(h.subscribers, sub)
	h.mu.Unlock()

	sub.once.Do(func() { close(sub.done) })
	return ok
}

// Count returns the number of connected subscribers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// Close removes every subscriber and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	subs := make([]*Subscriber, 0, len(h.subscribers))
	for sub := range h.subscribers {
		subs = append(subs, sub)
	}
	h.subscribers = make(map[*Subscriber]struct{})
	h.mu.Unlock()

	for _, sub := range subs {
		sub.once.Do(func() { close(sub.done) })
	}
}
