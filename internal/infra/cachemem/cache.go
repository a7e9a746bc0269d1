// Package cachemem memoizes derived identity keys. Derivation is
// deterministic within a master-secret generation, so entries stay valid
// until the generation moves or the TTL lapses.
package cachemem

import (
	"sync"
	"time"

	"quantapay/internal/domain"
)

type Cache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	value     domain.IdentityPrivateKey
	expiresAt time.Time
	hasExpiry bool
}

func New() *Cache {
	return &Cache{
		entries: make(map[string]cacheEntry),
	}
}

func (c *Cache) Get(identity string, generation uint32) (*domain.IdentityPrivateKey, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[identity]
	if !ok {
		return nil, false
	}
	if entry.value.Generation != generation {
		delete(c.entries, identity)
		return nil, false
	}
	if entry.hasExpiry && time.Now().After(entry.expiresAt) {
		delete(c.entries, identity)
		return nil, false
	}
	value := entry.value
	return &value, true
}

func (c *Cache) Put(key domain.IdentityPrivateKey, ttl time.Duration) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	entry := cacheEntry{value: key}
	if ttl > 0 {
		entry.hasExpiry = true
		entry.expiresAt = time.Now().Add(ttl)
	}
	c.entries[key.Identity] = entry
}
