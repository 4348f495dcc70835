// Package resultcache is a small TTL-on-top-of-LRU cache used for
// normalized platform results. Every entry carries its own expiry so
// writers can hand degraded results a shorter lifetime than complete
// ones.
package resultcache

import (
	"sync"
	"time"

	"socialscope-backend/lib/timezone"

	lru "github.com/hashicorp/golang-lru/v2"
)

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

type Cache[V any] struct {
	mu      sync.Mutex
	lru     *lru.Cache[string, entry[V]]
	maxSize int
}

type Stats struct {
	Size        int     `json:"size"`
	MaxSize     int     `json:"max_size"`
	Utilization float64 `json:"utilization"`
}

func New[V any](maxSize int) (*Cache[V], error) {
	inner, err := lru.New[string, entry[V]](maxSize)
	if err != nil {
		return nil, err
	}
	return &Cache[V]{lru: inner, maxSize: maxSize}, nil
}

// Get reports absent for entries past their expiry and removes them,
// a stale result is never returned.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	e, ok := c.lru.Get(key)
	if !ok {
		return zero, false
	}
	if timezone.Now().After(e.expiresAt) {
		c.lru.Remove(key)
		return zero, false
	}
	return e.value, true
}

func (c *Cache[V]) Set(key string, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lru.Add(key, entry[V]{
		value:     value,
		expiresAt: timezone.Now().Add(ttl),
	})
}

func (c *Cache[V]) Remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Remove(key)
}

// Stats sweeps entries past their expiry first, so size and utilization
// reflect live entries even after a quiet period with no reads.
func (c *Cache[V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := timezone.Now()
	for _, key := range c.lru.Keys() {
		e, ok := c.lru.Peek(key)
		if ok && now.After(e.expiresAt) {
			c.lru.Remove(key)
		}
	}

	size := c.lru.Len()
	return Stats{
		Size:        size,
		MaxSize:     c.maxSize,
		Utilization: float64(size) / float64(c.maxSize),
	}
}
