package memory

import (
	"context"
	"sync"
	"time"

	"github.com/elevare/server/internal/port/outbound"
)

type cacheItem struct {
	value     []byte
	expiresAt time.Time
}

func (i cacheItem) expired(now time.Time) bool {
	return !i.expiresAt.IsZero() && !now.Before(i.expiresAt)
}

// AggregateCache is a process-local outbound.AggregateCachePort used when
// Redis is not configured.
type AggregateCache struct {
	mu    sync.Mutex
	items map[string]cacheItem
	stats outbound.CacheStats
	now   func() time.Time
}

// NewAggregateCache creates an empty cache.
func NewAggregateCache() *AggregateCache {
	return &AggregateCache{
		items: make(map[string]cacheItem),
		now:   time.Now,
	}
}

func (c *AggregateCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, ok := c.items[key]
	if !ok || item.expired(c.now()) {
		if ok {
			delete(c.items, key)
		}
		c.stats.Misses++
		return nil, outbound.ErrCacheMiss
	}
	c.stats.Hits++

	out := make([]byte, len(item.value))
	copy(out, item.value)
	return out, nil
}

func (c *AggregateCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	item := cacheItem{value: append([]byte(nil), value...)}
	if ttl > 0 {
		item.expiresAt = c.now().Add(ttl)
	}
	c.items[key] = item
	c.stats.Sets++
	return nil
}

func (c *AggregateCache) Delete(ctx context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, ok := c.items[key]
	if !ok {
		return false, nil
	}
	delete(c.items, key)
	if item.expired(c.now()) {
		return false, nil
	}
	c.stats.Deletes++
	return true, nil
}

// DeletePattern removes keys matching a glob pattern, with the same rules
// Redis applies to SCAN MATCH.
func (c *AggregateCache) DeletePattern(ctx context.Context, pattern string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	var removed int64
	for key, item := range c.items {
		if !matchGlob(pattern, key) {
			continue
		}
		delete(c.items, key)
		if !item.expired(now) {
			removed++
		}
	}
	c.stats.Deletes += removed
	return removed, nil
}

func (c *AggregateCache) Clear(ctx context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	var removed int64
	for _, item := range c.items {
		if !item.expired(now) {
			removed++
		}
	}
	c.items = make(map[string]cacheItem)
	c.stats.Deletes += removed
	return removed, nil
}

func (c *AggregateCache) Stats(ctx context.Context) (*outbound.CacheStats, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := c.stats
	now := c.now()
	for _, item := range c.items {
		if !item.expired(now) {
			stats.Keys++
		}
	}
	return &stats, nil
}

func (c *AggregateCache) ResetStats(ctx context.Context) error {
	c.mu.Lock()
	c.stats = outbound.CacheStats{}
	c.mu.Unlock()
	return nil
}

// Compile-time check
var _ outbound.AggregateCachePort = (*AggregateCache)(nil)
