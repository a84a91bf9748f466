// Package memcache provides the in-memory TTL caches shared by concurrent
// resolution requests. Values are idempotent re-derivations of upstream data,
// so last-writer-wins on racing Puts is acceptable.
package memcache

import (
	"crypto/md5"
	"encoding/hex"
	"sync"
	"time"
)

type entry struct {
	value     any
	createdAt time.Time
}

// Cache is a TTL-bounded map. Expired entries are removed lazily on the next
// Get; there is no background sweeper.
type Cache struct {
	mu  sync.Mutex
	ttl time.Duration
	now func() time.Time

	entries map[string]entry
}

// New constructs a cache with the given TTL.
func New(ttl time.Duration) *Cache {
	return &Cache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]entry),
	}
}

// NewWithClock is New with an injected clock, for tests.
func NewWithClock(ttl time.Duration, now func() time.Time) *Cache {
	c := New(ttl)
	c.now = now
	return c
}

// Get returns the cached value for key, or ok=false if absent or expired.
// An expired entry is deleted on the way out.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	// Valid strictly while age < TTL; an entry read at exactly age == TTL
	// is already expired.
	if c.now().Sub(e.createdAt) >= c.ttl {
		delete(c.entries, key)
		return nil, false
	}
	return e.value, true
}

// Put stores value under key, resetting its age.
func (c *Cache) Put(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry{value: value, createdAt: c.now()}
}

// Len reports the number of stored entries, including any not yet lazily
// expired.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Key derives a stable cache key from its parts.
func Key(parts ...string) string {
	h := md5.New()
	for i, p := range parts {
		if i > 0 {
			h.Write([]byte{':'})
		}
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))
}
