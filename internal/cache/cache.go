// Package cache provides a namespaced in-memory key/value store with a
// fixed per-instance TTL, used to memoize expensive query and analysis
// results.
package cache

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// nowFn is overridable in tests to advance the clock deterministically.
var nowFn = time.Now

// DefaultTTL is used when a cache is constructed with a non-positive TTL.
const DefaultTTL = 5 * time.Minute

type entry[V any] struct {
	value    V
	storedAt time.Time
}

// Cache is a TTL-bounded store scoped by (namespace, key). An entry is
// visible only while now - storedAt <= ttl; expired entries are treated
// as absent and purged lazily. All operations are safe for concurrent
// use; operations on one key are linearized by the cache lock.
type Cache[V any] struct {
	mu         sync.RWMutex
	entries    map[string]entry[V]
	ttl        time.Duration
	maxEntries int // 0 means unbounded

	hits   uint64
	misses uint64
}

// New creates a cache with the given TTL and no capacity bound.
func New[V any](ttl time.Duration) *Cache[V] {
	return NewWithCapacity[V](ttl, 0)
}

// NewWithCapacity creates a cache that additionally evicts the oldest
// stored entry once maxEntries is exceeded.
func NewWithCapacity[V any](ttl time.Duration, maxEntries int) *Cache[V] {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache[V]{
		entries:    make(map[string]entry[V]),
		ttl:        ttl,
		maxEntries: maxEntries,
	}
}

// compositeKey joins namespace and key. The NUL separator cannot occur
// in either half by convention, so distinct pairs never collide.
func compositeKey(namespace, key string) string {
	return namespace + "\x00" + key
}

// Get returns the value stored under (namespace, key) if present and
// unexpired. A miss is not an error.
func (c *Cache[V]) Get(namespace, key string) (V, bool) {
	ck := compositeKey(namespace, key)

	c.mu.RLock()
	e, ok := c.entries[ck]
	c.mu.RUnlock()

	if ok && nowFn().Sub(e.storedAt) <= c.ttl {
		c.mu.Lock()
		c.hits++
		c.mu.Unlock()
		return e.value, true
	}

	c.mu.Lock()
	// Re-check under the write lock before purging: a concurrent Set may
	// have refreshed the entry.
	if e2, ok2 := c.entries[ck]; ok2 && nowFn().Sub(e2.storedAt) > c.ttl {
		delete(c.entries, ck)
	}
	c.misses++
	c.mu.Unlock()

	var zero V
	return zero, false
}

// Set stores value under (namespace, key), replacing any prior entry.
func (c *Cache[V]) Set(namespace, key string, value V) {
	ck := compositeKey(namespace, key)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[ck] = entry[V]{value: value, storedAt: nowFn()}

	if c.maxEntries > 0 && len(c.entries) > c.maxEntries {
		c.evictOldestLocked()
	}
}

// evictOldestLocked removes the entry with the earliest storedAt.
// Caller must hold the write lock.
func (c *Cache[V]) evictOldestLocked() {
	var oldestKey string
	var oldestAt time.Time
	first := true
	for k, e := range c.entries {
		if first || e.storedAt.Before(oldestAt) {
			oldestKey = k
			oldestAt = e.storedAt
			first = false
		}
	}
	if !first {
		delete(c.entries, oldestKey)
		log.Debug().Str("key", oldestKey).Msg("evicted oldest cache entry at capacity")
	}
}

// Purge removes all expired entries and returns how many were removed.
// There is no background sweep; callers may run this on a timer.
func (c *Cache[V]) Purge() int {
	now := nowFn()

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for k, e := range c.entries {
		if now.Sub(e.storedAt) > c.ttl {
			delete(c.entries, k)
			removed++
		}
	}
	if removed > 0 {
		log.Debug().Int("removed", removed).Msg("purged expired cache entries")
	}
	return removed
}

// Len returns the number of stored entries, expired or not.
func (c *Cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats holds cache hit/miss counters.
type Stats struct {
	Hits    uint64
	Misses  uint64
	Entries int
}

// Stats returns a snapshot of the hit/miss counters.
func (c *Cache[V]) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Stats{Hits: c.hits, Misses: c.misses, Entries: len(c.entries)}
}
