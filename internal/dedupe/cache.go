// ABOUTME: TTL cache of recently seen content fingerprints
// ABOUTME: Expiry is lazy on access; no background cleanup goroutine runs

package dedupe

import (
	"container/list"
	"sync"
	"time"
)

type entry struct {
	addedAt time.Time
	element *list.Element
}

// Cache tracks recently seen keys with a TTL and a size cap. Insertion
// order lives in a doubly-linked list (oldest at front) so eviction is
// O(1). Expired entries are dropped when next touched instead of by a
// timer; the store this backs runs no background work.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*entry
	order   *list.List
	ttl     time.Duration
	maxSize int
}

// New creates a cache that holds keys for ttl, capped at maxSize entries.
func New(ttl time.Duration, maxSize int) *Cache {
	return &Cache{
		entries: make(map[string]*entry),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
	}
}

// Seen reports whether the key is present and unexpired. An expired key is
// removed on the way out.
func (c *Cache) Seen(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return false
	}
	if time.Since(e.addedAt) >= c.ttl {
		c.removeLocked(key, e)
		return false
	}
	return true
}

// Remember records the key, refreshing it if already present. At capacity,
// expired entries are pruned first, then the oldest entry is evicted.
func (c *Cache) Remember(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.addedAt = time.Now()
		c.order.MoveToBack(e.element)
		return
	}

	if len(c.entries) >= c.maxSize {
		c.pruneExpiredLocked()
	}
	for len(c.entries) >= c.maxSize {
		c.evictOldestLocked()
	}

	elem := c.order.PushBack(key)
	c.entries[key] = &entry{addedAt: time.Now(), element: elem}
}

// Forget drops the key if present.
func (c *Cache) Forget(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		c.removeLocked(key, e)
	}
}

// Len returns the number of entries currently held, counting expired ones
// not yet swept.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// removeLocked must be called with mu held.
func (c *Cache) removeLocked(key string, e *entry) {
	c.order.Remove(e.element)
	delete(c.entries, key)
}

// pruneExpiredLocked drops expired entries from the front of the list.
// Remember refreshes a key's position, so the list stays ordered oldest
// first. Must be called with mu held.
func (c *Cache) pruneExpiredLocked() {
	now := time.Now()
	for {
		front := c.order.Front()
		if front == nil {
			return
		}
		key, _ := front.Value.(string)
		e := c.entries[key]
		if e == nil {
			c.order.Remove(front)
			continue
		}
		if now.Sub(e.addedAt) < c.ttl {
			return
		}
		c.order.Remove(front)
		delete(c.entries, key)
	}
}

// evictOldestLocked removes the oldest entry. Must be called with mu held.
func (c *Cache) evictOldestLocked() {
	front := c.order.Front()
	if front == nil {
		return
	}
	key, _ := front.Value.(string)
	c.order.Remove(front)
	delete(c.entries, key)
}
