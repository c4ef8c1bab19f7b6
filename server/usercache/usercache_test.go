package usercache

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dmrelay/dmrelay/pkg/storage"
)

func TestPutGet(t *testing.T) {
	c := New(2)
	c.Put(&storage.User{ID: "alice", DisplayName: "Alice"})

	got, ok := c.Get("alice")
	assert.True(t, ok)
	assert.Equal(t, "Alice", got.DisplayName)
}

func TestGetMissing(t *testing.T) {
	c := New(2)
	_, ok := c.Get("nobody")
	assert.False(t, ok)
}

func TestEvictsLeastRecentlyUsed(t *testing.T) {
	c := New(2)
	c.Put(&storage.User{ID: "alice"})
	c.Put(&storage.User{ID: "bob"})
	c.Put(&storage.User{ID: "carol"})

	_, ok := c.Get("alice")
	assert.False(t, ok, "alice should have been evicted")

	_, ok = c.Get("bob")
	assert.True(t, ok)
	_, ok = c.Get("carol")
	assert.True(t, ok)
}

func TestGetRefreshesRecency(t *testing.T) {
	c := New(2)
	c.Put(&storage.User{ID: "alice"})
	c.Put(&storage.User{ID: "bob"})

	c.Get("alice") // alice is now most-recently-used
	c.Put(&storage.User{ID: "carol"})

	_, ok := c.Get("bob")
	assert.False(t, ok, "bob should have been evicted, not alice")
	_, ok = c.Get("alice")
	assert.True(t, ok)
}

func TestInvalidate(t *testing.T) {
	c := New(2)
	c.Put(&storage.User{ID: "alice"})
	c.Invalidate("alice")

	_, ok := c.Get("alice")
	assert.False(t, ok)
}
