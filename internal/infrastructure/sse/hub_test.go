package sse

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubDeliversInPublishOrder(t *testing.T) {
	h := NewHub(zerolog.Nop())
	a := h.Subscribe()
	b := h.Subscribe()

	for i := 0; i < 5; i++ {
		h.Publish("tick", map[string]int{"n": i})
	}

	for _, c := range []*Client{a, b} {
		for i := 0; i < 5; i++ {
			msg := <-c.C
			require.Equal(t, "tick", msg.Event)
			var payload struct {
				N int `json:"n"`
			}
			require.NoError(t, json.Unmarshal(msg.Data, &payload))
			assert.Equal(t, i, payload.N)
		}
	}
}

func TestHubLateSubscriberMissesEarlierEvents(t *testing.T) {
	h := NewHub(zerolog.Nop())
	h.Publish("early", struct{}{})

	c := h.Subscribe()
	h.Publish("late", struct{}{})
	h.Unsubscribe(c.ID)

	msg := <-c.C
	assert.Equal(t, "late", msg.Event)
	_, open := <-c.C
	assert.False(t, open)
}

func TestHubUnsubscribeIdempotent(t *testing.T) {
	h := NewHub(zerolog.Nop())
	c := h.Subscribe()
	require.Equal(t, 1, h.ClientCount())

	h.Unsubscribe(c.ID)
	h.Unsubscribe(c.ID)
	assert.Equal(t, 0, h.ClientCount())
}

func TestHubPrunesSlowSubscriberWithoutBlocking(t *testing.T) {
	h := NewHub(zerolog.Nop())
	slow := h.Subscribe()

	// Never drained: one more publish than the buffer holds must prune
	// the slow client instead of blocking the publisher.
	for i := 0; i <= h.bufSize; i++ {
		h.Publish("flood", i)
	}

	assert.Equal(t, 0, h.ClientCount())

	// The slow client's channel is closed after its buffered backlog.
	drained := 0
	for range slow.C {
		drained++
	}
	assert.Equal(t, h.bufSize, drained)

	// Publishing still works for subscribers that keep up.
	fresh := h.Subscribe()
	h.Publish("after", "x")
	msg := <-fresh.C
	assert.Equal(t, "after", msg.Event)
}

func TestHubPublishUnmarshalablePayloadDropped(t *testing.T) {
	h := NewHub(zerolog.Nop())
	c := h.Subscribe()

	h.Publish("bad", make(chan int))
	h.Publish("good", "ok")

	msg := <-c.C
	assert.Equal(t, "good", msg.Event)
}

func TestHubCloseDisconnectsAll(t *testing.T) {
	h := NewHub(zerolog.Nop())
	clients := make([]*Client, 0, 3)
	for i := 0; i < 3; i++ {
		clients = append(clients, h.Subscribe())
	}

	h.Close()
	assert.Equal(t, 0, h.ClientCount())
	for i, c := range clients {
		_, open := <-c.C
		assert.False(t, open, fmt.Sprintf("client %d should be closed", i))
	}
}
