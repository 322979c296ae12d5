package fsdb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCachePutGet(t *testing.T) {
	t.Parallel()

	c := NewCache(0)
	c.Put("a", 1)
	c.Put("b", "two")

	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	v, ok = c.Get("b")
	require.True(t, ok)
	assert.Equal(t, "two", v)

	_, ok = c.Get("missing")
	assert.False(t, ok)
}

func TestCacheDelete(t *testing.T) {
	t.Parallel()

	c := NewCache(0)
	c.Put("a", 1)
	c.Delete("a")

	_, ok := c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestCacheClear(t *testing.T) {
	t.Parallel()

	c := NewCache(0)
	c.Put("a", 1)
	c.Put("b", 2)
	c.Clear()

	assert.Equal(t, 0, c.Len())
	_, ok := c.Get("a")
	assert.False(t, ok)
}

func TestCacheGetPromotesRecency(t *testing.T) {
	t.Parallel()

	c := NewCache(0)
	c.SizeFunc = func(any) int { return 1 }
	c.SetCacheSize(2, 2)

	c.Put("a", 1)
	c.Put("b", 2)
	c.Get("a") // promote a to most-recently-used; b is now the oldest

	c.Put("c", 3) // should evict b, not a

	_, ok := c.Get("b")
	assert.False(t, ok, "b should have been evicted as least-recently-used")

	_, ok = c.Get("a")
	assert.True(t, ok, "a should survive since it was promoted")

	_, ok = c.Get("c")
	assert.True(t, ok)
}

func TestCacheEvictsWhenOverLimit(t *testing.T) {
	t.Parallel()

	c := NewCache(0)
	c.SizeFunc = func(any) int { return 1 }
	c.SetCacheSize(2, 3)

	c.Put("a", 1)
	c.Put("b", 2)
	c.Put("c", 3) // currentSize=3, at cacheSizeLimit, no eviction yet
	assert.Equal(t, 3, c.Len())

	c.Put("d", 4) // currentSize=4 > limit(3): evict down to <= cacheSize(2)
	assert.Equal(t, 2, c.Len())

	_, ok := c.Get("a")
	assert.False(t, ok)
	_, ok = c.Get("b")
	assert.False(t, ok)
}

func TestCacheRejectsOversizedEntry(t *testing.T) {
	t.Parallel()

	c := NewCache(0)
	c.SizeFunc = func(any) int { return 100 }
	c.SetCacheSize(10, 20)

	c.Put("too-big", "value")
	_, ok := c.Get("too-big")
	assert.False(t, ok, "an entry larger than cacheSize is never stored")
}

func TestCacheSetCacheSizeDefaultsLimit(t *testing.T) {
	t.Parallel()

	c := NewCache(1000)
	size, limit := c.GetCacheSize()
	assert.Equal(t, 1000, size)
	assert.Equal(t, int(1000*defaultCacheSizeLimitFactor), limit)
}

func TestCacheSetCacheSizeZeroUsesDefault(t *testing.T) {
	t.Parallel()

	c := NewCache(0)
	size, _ := c.GetCacheSize()
	assert.Equal(t, DefaultCacheSize, size)
}
