package analyzer

import (
	"fmt"
	"sync"

	"github.com/cespare/xxhash/v2"

	"verdict/hasher"
)

// DefaultCacheEntries bounds the digest cache when the caller does not.
const DefaultCacheEntries = 4096

type cacheEntry struct {
	digests hasher.DigestSet
	entropy float64
}

// DigestCache memoizes digest results keyed by path identity (path, size,
// mtime), so re-scans of unchanged trees skip the hashing pass. It is
// bounded, evicts oldest-first, and is owned by the caller rather than being
// process-global; concurrent batch runs that want isolation use separate
// caches. A nil *DigestCache is valid and never hits.
type DigestCache struct {
	mu      sync.Mutex
	max     int
	order   []uint64
	entries map[uint64]cacheEntry
}

func NewDigestCache(maxEntries int) *DigestCache {
	if maxEntries <= 0 {
		maxEntries = DefaultCacheEntries
	}
	return &DigestCache{
		max:     maxEntries,
		entries: make(map[uint64]cacheEntry, maxEntries),
	}
}

func cacheKey(path string, size int64, mtimeNanos int64) uint64 {
	return xxhash.Sum64String(fmt.Sprintf("%s|%d|%d", path, size, mtimeNanos))
}

func (c *DigestCache) get(key uint64) (cacheEntry, bool) {
	if c == nil {
		return cacheEntry{}, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	return entry, ok
}

func (c *DigestCache) put(key uint64, entry cacheEntry) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[key]; exists {
		c.entries[key] = entry
		return
	}
	if len(c.order) >= c.max {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
	c.order = append(c.order, key)
	c.entries[key] = entry
}

// Len reports the number of cached entries.
func (c *DigestCache) Len() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
