package fsdb

import "encoding/json"

// DefaultCacheSize is the default cache budget in (estimated) bytes: 100 MiB.
const DefaultCacheSize = 100 * 1024 * 1024

// defaultCacheSizeLimitFactor is applied to CacheSize when no explicit
// limit is supplied, matching the original's 1.5x default.
const defaultCacheSizeLimitFactor = 1.5

// Cache is a size-bounded, least-recently-used cache over opaque string
// keys. It is not internally synchronized: spec.md assumes a single
// process accessing the engine, with concurrency guarded by the caller.
//
// Unlike the original implementation (which measured the size of the whole
// backing map via a language-level sizeof), size accounting here is a
// running sum of each entry's estimated weight, computed by SizeFunc. This
// is the "consistent size estimator" spec.md §9 calls for: the eviction
// decision tracks the data actually held, not container bookkeeping.
type Cache struct {
	entries        map[string]any
	order          []string // recency order, LRU at index 0, MRU at the end
	cacheSize      int
	cacheSizeLimit int
	currentSize    int

	// SizeFunc estimates the weight of a cached value. Defaults to the
	// length of its JSON serialization.
	SizeFunc func(value any) int
}

// NewCache creates a cache with the given target size. If cacheSize is 0,
// DefaultCacheSize is used. The size limit defaults to 1.5x the size.
func NewCache(cacheSize int) *Cache {
	c := &Cache{
		entries:  make(map[string]any),
		SizeFunc: defaultSizeFunc,
	}
	c.SetCacheSize(cacheSize, 0)
	return c
}

func defaultSizeFunc(value any) int {
	b, err := json.Marshal(value)
	if err != nil {
		// Values json.Marshal can't handle are sized by a fixed estimate
		// rather than rejected outright.
		return 64
	}
	return len(b)
}

// SetCacheSize sets the cache's target size and, optionally, its eviction
// high-water mark. If cacheSizeLimit is 0 (or less than cacheSize), the
// limit defaults to 1.5x cacheSize.
func (c *Cache) SetCacheSize(cacheSize, cacheSizeLimit int) {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	c.cacheSize = cacheSize
	if cacheSizeLimit >= cacheSize {
		c.cacheSizeLimit = cacheSizeLimit
	} else {
		c.cacheSizeLimit = int(float64(cacheSize) * defaultCacheSizeLimitFactor)
	}
}

// GetCacheSize returns the cache's current (size, sizeLimit).
func (c *Cache) GetCacheSize() (int, int) {
	return c.cacheSize, c.cacheSizeLimit
}

// Put inserts or replaces key's value and promotes it to most-recently-used.
// An entry whose estimated size exceeds cacheSize is rejected silently (the
// cache simply won't hold it). If the running total then exceeds
// cacheSizeLimit, entries are evicted from the least-recently-used end
// until the total is at or under cacheSize or there is nothing left to
// evict.
func (c *Cache) Put(key string, value any) {
	size := c.SizeFunc(value)
	if size > c.cacheSize {
		return
	}

	if _, exists := c.entries[key]; exists {
		c.currentSize -= c.SizeFunc(c.entries[key])
		c.removeFromOrder(key)
	}

	c.entries[key] = value
	c.currentSize += size
	c.order = append(c.order, key)

	if c.currentSize > c.cacheSizeLimit {
		for c.currentSize > c.cacheSize && len(c.order) > 0 {
			c.evictOldest()
		}
	}
}

// Get returns the cached value for key and promotes it to most-recently-used
// on a hit. The second return value is false on a miss.
func (c *Cache) Get(key string) (any, bool) {
	value, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	c.removeFromOrder(key)
	c.order = append(c.order, key)
	return value, true
}

// Delete removes key's entry and its recency position, if present.
func (c *Cache) Delete(key string) {
	if value, ok := c.entries[key]; ok {
		c.currentSize -= c.SizeFunc(value)
		delete(c.entries, key)
		c.removeFromOrder(key)
	}
}

// Clear empties the cache.
func (c *Cache) Clear() {
	c.entries = make(map[string]any)
	c.order = nil
	c.currentSize = 0
}

// Len returns the number of entries currently cached.
func (c *Cache) Len() int {
	return len(c.entries)
}

func (c *Cache) evictOldest() {
	if len(c.order) == 0 {
		return
	}
	oldest := c.order[0]
	c.order = c.order[1:]
	if value, ok := c.entries[oldest]; ok {
		c.currentSize -= c.SizeFunc(value)
		delete(c.entries, oldest)
	}
}

func (c *Cache) removeFromOrder(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}
