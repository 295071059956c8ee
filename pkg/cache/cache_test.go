package cache_test

import (
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/courier/pkg/cache"
)

func TestCache_Basic(t *testing.T) {
	t.Parallel()

	t.Run("put and get", func(t *testing.T) {
		c := cache.New[string, int](3, time.Minute)
		c.Put("a", 1)
		c.Put("b", 2)

		val, ok := c.Get("a")
		assert.True(t, ok)
		assert.Equal(t, 1, val)
		assert.Equal(t, 2, c.Len())
	})

	t.Run("get non-existent", func(t *testing.T) {
		c := cache.New[string, int](3, time.Minute)
		val, ok := c.Get("missing")
		assert.False(t, ok)
		assert.Equal(t, 0, val)
	})

	t.Run("remove and clear", func(t *testing.T) {
		c := cache.New[string, int](3, time.Minute)
		c.Put("a", 1)
		c.Put("b", 2)

		assert.True(t, c.Remove("a"))
		assert.False(t, c.Remove("a"))
		c.Clear()
		assert.Equal(t, 0, c.Len())
	})

	t.Run("invalid arguments panic", func(t *testing.T) {
		assert.Panics(t, func() { cache.New[string, int](0, time.Minute) })
		assert.Panics(t, func() { cache.New[string, int](1, 0) })
	})
}

func TestCache_Expiry(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := cache.New[string, string](10, 5*time.Minute, cache.WithClock(func() time.Time { return now }))

	c.Put("user-1", "alice@example.com")

	now = now.Add(4 * time.Minute)
	val, ok := c.Get("user-1")
	assert.True(t, ok)
	assert.Equal(t, "alice@example.com", val)

	now = now.Add(time.Minute)
	_, ok = c.Get("user-1")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())

	c.Put("user-1", "new@example.com")
	now = now.Add(4 * time.Minute)
	c.Put("user-1", "newer@example.com")
	now = now.Add(4 * time.Minute)
	val, ok = c.Get("user-1")
	assert.True(t, ok, "put refreshes ttl")
	assert.Equal(t, "newer@example.com", val)
}

func TestCache_Eviction(t *testing.T) {
	t.Parallel()

	c := cache.New[string, int](2, time.Minute)
	c.Put("a", 1)
	c.Put("b", 2)
	c.Get("a")
	c.Put("c", 3)

	_, ok := c.Get("b")
	assert.False(t, ok)
	_, ok = c.Get("a")
	assert.True(t, ok)
	_, ok = c.Get("c")
	assert.True(t, ok)
}

func TestCache_Concurrent(t *testing.T) {
	t.Parallel()

	c := cache.New[string, int](50, time.Minute)
	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := range 100 {
				key := strconv.Itoa((i + j) % 80)
				c.Put(key, j)
				c.Get(key)
			}
		}(i)
	}
	wg.Wait()

	assert.LessOrEqual(t, c.Len(), 50)
}
