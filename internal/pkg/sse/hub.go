// Package sse fans events out to the live subscribers of a recipient.
package sse

import (
	"sync"
	"sync/atomic"
)

const subscriberBuffer = 16

// Hub delivers values of type T to every subscriber of a recipient. Slow
// subscribers lose events instead of blocking publishers.
type Hub[T any] struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan T]struct{}
	dropped     atomic.Int64
}

func NewHub[T any]() *Hub[T] {
	return &Hub[T]{
		subscribers: make(map[string]map[chan T]struct{}),
	}
}

// Subscribe registers a subscriber and returns its channel and the function
// that unregisters and closes it.
func (h *Hub[T]) Subscribe(recipientID string) (<-chan T, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan T, subscriberBuffer)
	if h.subscribers[recipientID] == nil {
		h.subscribers[recipientID] = make(map[chan T]struct{})
	}
	h.subscribers[recipientID][ch] = struct{}{}

	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subscribers[recipientID], ch)
			close(ch)
			if len(h.subscribers[recipientID]) == 0 {
				delete(h.subscribers, recipientID)
			}
		})
	}

	return ch, cleanup
}

func (h *Hub[T]) Publish(recipientID string, event T) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.subscribers[recipientID] {
		select {
		case ch <- event:
		default:
			h.dropped.Add(1)
		}
	}
}

func (h *Hub[T]) PublishToMany(recipientIDs []string, event T) {
	for _, id := range recipientIDs {
		h.Publish(id, event)
	}
}

func (h *Hub[T]) SubscriberCount(recipientID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[recipientID])
}

// Dropped is the number of events discarded because a subscriber was full.
func (h *Hub[T]) Dropped() int64 {
	return h.dropped.Load()
}
