// Package cache provides the small in-process caches used by the API
// server: a bounded LRU for immutable values such as stored run
// reports, and a single-value loader cache for the translator
// registry.
package cache

import (
	"container/list"
	"sync"
	"time"
)

// LRU is a bounded cache that evicts the least recently used entry
// when it runs out of room. Entries may also carry a time-to-live;
// stale entries are dropped on access.
type LRU[K comparable, V any] struct {
	mu      sync.Mutex
	max     int
	ttl     time.Duration
	order   *list.List
	entries map[K]*list.Element

	hits      int64
	misses    int64
	evictions int64
}

// LRUStats is a snapshot of cache effectiveness counters.
type LRUStats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Size      int
	MaxSize   int
}

type lruEntry[K comparable, V any] struct {
	key     K
	value   V
	expires time.Time
}

// NewLRU creates a cache holding at most max entries. A max of zero or
// less means unbounded. A ttl of zero disables expiry.
func NewLRU[K comparable, V any](max int, ttl time.Duration) *LRU[K, V] {
	return &LRU[K, V]{
		max:     max,
		ttl:     ttl,
		order:   list.New(),
		entries: make(map[K]*list.Element),
	}
}

// Get retrieves a value and marks it most recently used.
func (c *LRU[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		c.misses++
		var zero V
		return zero, false
	}

	ent := el.Value.(*lruEntry[K, V])
	if c.ttl > 0 && time.Now().After(ent.expires) {
		c.remove(el)
		c.misses++
		var zero V
		return zero, false
	}

	c.order.MoveToFront(el)
	c.hits++
	return ent.value, true
}

// Put stores a value, evicting the least recently used entry when the
// cache is full.
func (c *LRU[K, V]) Put(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		c.order.MoveToFront(el)
		ent := el.Value.(*lruEntry[K, V])
		ent.value = value
		if c.ttl > 0 {
			ent.expires = time.Now().Add(c.ttl)
		}
		return
	}

	ent := &lruEntry[K, V]{key: key, value: value}
	if c.ttl > 0 {
		ent.expires = time.Now().Add(c.ttl)
	}
	c.entries[key] = c.order.PushFront(ent)

	if c.max > 0 && c.order.Len() > c.max {
		if oldest := c.order.Back(); oldest != nil {
			c.remove(oldest)
			c.evictions++
		}
	}
}

// Remove drops a single entry if present.
func (c *LRU[K, V]) Remove(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		c.remove(el)
	}
}

// Len returns the number of cached entries, counting stale ones that
// have not been touched since expiring.
func (c *LRU[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Stats returns a snapshot of the cache counters.
func (c *LRU[K, V]) Stats() LRUStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return LRUStats{
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
		Size:      c.order.Len(),
		MaxSize:   c.max,
	}
}

func (c *LRU[K, V]) remove(el *list.Element) {
	c.order.Remove(el)
	delete(c.entries, el.Value.(*lruEntry[K, V]).key)
}
