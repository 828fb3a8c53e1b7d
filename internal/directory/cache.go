// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package directory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// DefaultPresenceTTL is how long a looked-up account is trusted.
const DefaultPresenceTTL = 30 * time.Second

type cacheEntry struct {
	account Account
	expires time.Time
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithCacheClock replaces time.Now.
func WithCacheClock(now func() time.Time) CacheOption {
	return func(c *Cache) {
		c.now = now
	}
}

// Cache fronts a Directory with a TTL cache. Online status goes stale at
// the TTL, so callers see presence at most ttl old.
type Cache struct {
	backend Directory
	ttl     time.Duration
	now     func() time.Time

	mu      sync.Mutex
	entries map[ulid.ULID]cacheEntry
}

var _ Directory = (*Cache)(nil)

// NewCache wraps backend. A non-positive ttl uses DefaultPresenceTTL.
func NewCache(backend Directory, ttl time.Duration, opts ...CacheOption) *Cache {
	if ttl <= 0 {
		ttl = DefaultPresenceTTL
	}
	c := &Cache{
		backend: backend,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[ulid.ULID]cacheEntry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// LookupAgent returns a cached account or asks the backend. Misses are not
// cached.
func (c *Cache) LookupAgent(ctx context.Context, id ulid.ULID) (Account, error) {
	if a, ok := c.Peek(id); ok {
		cacheLookups.WithLabelValues("hit").Inc()
		return a, nil
	}
	cacheLookups.WithLabelValues("miss").Inc()

	a, err := c.backend.LookupAgent(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			c.Invalidate(id)
		}
		return Account{}, err
	}

	c.mu.Lock()
	c.entries[id] = cacheEntry{account: a, expires: c.now().Add(c.ttl)}
	c.mu.Unlock()
	return a, nil
}

// Peek returns a live cached account without touching the backend.
func (c *Cache) Peek(id ulid.ULID) (Account, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[id]
	if !ok {
		return Account{}, false
	}
	if !c.now().Before(e.expires) {
		delete(c.entries, id)
		return Account{}, false
	}
	return e.account, true
}

// Invalidate drops id from the cache.
func (c *Cache) Invalidate(id ulid.ULID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, id)
}

// Prune removes expired entries and returns how many were removed.
func (c *Cache) Prune() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	n := 0
	for id, e := range c.entries {
		if !now.Before(e.expires) {
			delete(c.entries, id)
			n++
		}
	}
	return n
}

// Len returns the number of cached entries, live or expired.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
