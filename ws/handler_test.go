package ws

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// A handler torn down while its send queue is draining must not write the
// close frame concurrently with sendLoop; the peer just stops reading here so
// sendLoop is stuck mid-write when close fires.
func TestCloseDuringSend(t *testing.T) {
	msgs := &fakeMessageStore{}
	srv, hub := newTestServer(t, msgs)

	alice := dial(t, srv, "alice")

	var h *Handler
	require.Eventually(t, func() bool {
		hub.registry.RLock()
		h = hub.registry.conns["alice"]
		hub.registry.RUnlock()
		return h != nil
	}, time.Second, 10*time.Millisecond)

	// flood the queue while the client reads nothing, keeping sendLoop busy
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 500; i++ {
			hub.registry.Deliver("alice", statusUpdatePayload("m1", "seen"))
		}
	}()

	h.close(readError)
	<-done

	// the connection winds down; a concurrent-write panic would kill the
	// test process outright
	assert.False(t, hub.registry.Deliver("alice", statusUpdatePayload("m2", "seen")))

	alice.SetReadDeadline(time.Now().Add(writeWait + time.Second))
	for {
		if _, _, err := alice.ReadMessage(); err != nil {
			break
		}
	}
}

func TestCloseIdempotent(t *testing.T) {
	r := NewRegistry()
	h := newTestHandler("alice", 1)
	h.registry = r
	r.Register("alice", h)

	h.close(readError)
	h.close(writeError) // second close is a no-op, no double chan close

	_, ok := <-h.dataChan
	assert.False(t, ok)
	assert.Equal(t, 0, r.Len())
}
