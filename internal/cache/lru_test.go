package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestLRUCache_ExpiresEntries(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)}
	var evicted []string
	c := NewLRUCache(10, time.Minute,
		WithClock[string](clock.now),
		WithEvictHook(func(key, _ string) { evicted = append(evicted, key) }))

	c.Set("a", "alpha")
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, "alpha", v)

	clock.advance(2 * time.Minute)
	_, ok = c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, []string{"a"}, evicted)
	assert.Equal(t, 0, c.Size())
}

func TestLRUCache_TouchExtendsTTL(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)}
	c := NewLRUCache(10, time.Minute, WithClock[int](clock.now))

	c.Set("k", 1)
	clock.advance(50 * time.Second)
	assert.True(t, c.Touch("k"))
	clock.advance(50 * time.Second)

	v, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, 1, v)
	assert.False(t, c.Touch("missing"))
}

func TestLRUCache_EvictsLeastRecentlyUsed(t *testing.T) {
	var evicted []string
	c := NewLRUCache(2, time.Hour, WithEvictHook(func(key string, _ int) { evicted = append(evicted, key) }))

	c.Set("a", 1)
	c.Set("b", 2)
	_, _ = c.Get("a")
	c.Set("c", 3)

	_, ok := c.Get("b")
	assert.False(t, ok)
	_, ok = c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, []string{"b"}, evicted)
}

func TestLRUCache_DeleteSkipsHook(t *testing.T) {
	called := false
	c := NewLRUCache(2, time.Hour, WithEvictHook(func(string, int) { called = true }))
	c.Set("a", 1)
	c.Delete("a")
	assert.False(t, called)
	assert.Equal(t, 0, c.Size())
}

func TestManager_Sweep(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)}
	c := NewLRUCache(10, time.Minute, WithClock[int](clock.now))
	c.Set("a", 1)
	c.Set("b", 2)

	m := NewManager(nil)
	m.Register(c)
	clock.advance(time.Hour)

	assert.Equal(t, 2, m.Sweep())
	assert.Equal(t, 0, c.Size())

	m.StartCleanup(time.Hour)
	m.Stop()
	m.Stop()
}
