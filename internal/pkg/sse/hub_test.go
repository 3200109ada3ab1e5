package sse

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHubDeliversToRecipientOnly(t *testing.T) {
	hub := NewHub[string]()
	a, cancelA := hub.Subscribe("a")
	b, cancelB := hub.Subscribe("b")
	defer cancelA()
	defer cancelB()

	hub.Publish("a", "hello")

	assert.Equal(t, "hello", <-a)
	assert.Empty(t, b)
}

func TestHubDropsWhenSubscriberIsFull(t *testing.T) {
	hub := NewHub[int]()
	_, cancel := hub.Subscribe("a")
	defer cancel()

	for i := 0; i < subscriberBuffer+3; i++ {
		hub.Publish("a", i)
	}
	assert.Equal(t, int64(3), hub.Dropped())
}

func TestHubCleanupIsIdempotent(t *testing.T) {
	hub := NewHub[int]()
	ch, cancel := hub.Subscribe("a")
	assert.Equal(t, 1, hub.SubscriberCount("a"))

	cancel()
	cancel()

	_, open := <-ch
	assert.False(t, open)
	assert.Equal(t, 0, hub.SubscriberCount("a"))
	hub.Publish("a", 1)
}
