package ws

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func newTestHandler(uid string, queueSize int) *Handler {
	return &Handler{
		uid:      uid,
		dataChan: make(chan *ServerMsg, queueSize),
	}
}

func TestRegistryDeliver(t *testing.T) {
	r := NewRegistry()
	h := newTestHandler("alice", sendQueueSize)
	r.Register("alice", h)

	assert.Equal(t, 1, r.Len())

	msg := statusUpdatePayload("m1", "seen")
	assert.True(t, r.Deliver("alice", msg))
	assert.Equal(t, msg, <-h.dataChan)

	// no connection for bob
	assert.False(t, r.Deliver("bob", msg))
}

func TestRegistryReplace(t *testing.T) {
	r := NewRegistry()
	h1 := newTestHandler("alice", sendQueueSize)
	h2 := newTestHandler("alice", sendQueueSize)

	r.Register("alice", h1)
	r.Register("alice", h2)
	assert.Equal(t, 1, r.Len())

	assert.True(t, r.Deliver("alice", statusUpdatePayload("m1", "seen")))
	assert.Len(t, h2.dataChan, 1)
	assert.Len(t, h1.dataChan, 0)

	// the superseded handler must not evict the new one
	assert.False(t, r.Deregister("alice", h1))
	assert.Equal(t, 1, r.Len())

	assert.True(t, r.Deregister("alice", h2))
	assert.Equal(t, 0, r.Len())

	// second deregister is a no-op
	assert.False(t, r.Deregister("alice", h2))
}

func TestRegistryDeliverQueueFull(t *testing.T) {
	r := NewRegistry()
	h := newTestHandler("alice", 1)
	r.Register("alice", h)

	first := statusUpdatePayload("m1", "seen")
	assert.True(t, r.Deliver("alice", first))

	// queue is full: the payload is dropped but the user counts as online
	assert.True(t, r.Deliver("alice", statusUpdatePayload("m2", "seen")))
	assert.Len(t, h.dataChan, 1)
	assert.Equal(t, first, <-h.dataChan)
}

func TestRegistryDeliverClosing(t *testing.T) {
	r := NewRegistry()
	h := newTestHandler("alice", sendQueueSize)
	h.closing = true
	r.Register("alice", h)

	assert.True(t, r.Deliver("alice", statusUpdatePayload("m1", "seen")))
	assert.Len(t, h.dataChan, 0)
}
