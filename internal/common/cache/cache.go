package cache

import (
	"context"
	"time"

	"github.com/puzpuzpuz/xsync"
)

type entry[V any] struct {
	value   V
	expires time.Time
}

// TTL is an in-process cache whose entries expire after a fixed duration.
type TTL[V any] struct {
	ttl     time.Duration
	now     func() time.Time
	entries *xsync.MapOf[string, entry[V]]
}

func NewTTL[V any](ttl time.Duration) *TTL[V] {
	return &TTL[V]{ttl: ttl, now: time.Now, entries: xsync.NewMapOf[entry[V]]()}
}

// Get returns a live value.
func (c *TTL[V]) Get(key string) (V, bool) {
	e, ok := c.entries.Load(key)
	if !ok || c.now().After(e.expires) {
		var zero V
		return zero, false
	}
	return e.value, true
}

func (c *TTL[V]) Set(key string, value V) {
	c.entries.Store(key, entry[V]{value: value, expires: c.now().Add(c.ttl)})
}

// GetOrSet returns the cached value or calls setter and caches its result.
// Setter errors are returned and nothing is cached.
func (c *TTL[V]) GetOrSet(ctx context.Context, key string, setter func(ctx context.Context) (V, error)) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}
	v, err := setter(ctx)
	if err != nil {
		return v, err
	}
	c.Set(key, v)
	return v, nil
}

// Purge drops expired entries and returns how many were removed.
func (c *TTL[V]) Purge() int {
	now := c.now()
	removed := 0
	c.entries.Range(func(key string, e entry[V]) bool {
		if now.After(e.expires) {
			c.entries.Delete(key)
			removed++
		}
		return true
	})
	return removed
}
