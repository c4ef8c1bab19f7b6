package pushqueue

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegisterUnregister(t *testing.T) {
	r := NewRegistry()

	q, replaced := r.Register("alice")
	assert.False(t, replaced)
	assert.True(t, r.Connected("alice"))

	r.Unregister("alice", q)
	assert.False(t, r.Connected("alice"))
}

func TestRegisterReplacesExisting(t *testing.T) {
	r := NewRegistry()

	first, replaced := r.Register("alice")
	assert.False(t, replaced)

	second, replaced := r.Register("alice")
	assert.True(t, replaced)
	assert.NotSame(t, first, second)

	// The stale first queue's deferred cleanup must not remove the new one.
	r.Unregister("alice", first)
	assert.True(t, r.Connected("alice"))

	r.Unregister("alice", second)
	assert.False(t, r.Connected("alice"))
}

func TestEnqueueNoQueueIsBestEffort(t *testing.T) {
	r := NewRegistry()
	delivered := r.Enqueue("nobody", &Notification{InboundID: 1})
	assert.False(t, delivered)
}

func TestEnqueueDeliversToQueue(t *testing.T) {
	r := NewRegistry()
	q, _ := r.Register("alice")

	delivered := r.Enqueue("alice", &Notification{InboundID: 42, Content: []byte("hi")})
	assert.True(t, delivered)

	select {
	case n := <-q.C:
		assert.Equal(t, int64(42), n.InboundID)
	default:
		t.Fatal("expected notification on queue")
	}
}

func TestEnqueueIsUnboundedUnderSlowConsumer(t *testing.T) {
	r := NewRegistry()
	q, _ := r.Register("alice")

	const n = 1000
	for i := 0; i < n; i++ {
		delivered := r.Enqueue("alice", &Notification{InboundID: int64(i)})
		assert.True(t, delivered, "enqueue %d must never be dropped", i)
	}

	for i := 0; i < n; i++ {
		got := <-q.C
		assert.Equal(t, int64(i), got.InboundID, "notifications must stay in FIFO order")
	}
}
