package redis

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/elevare/server/internal/port/outbound"
	"github.com/redis/go-redis/v9"
)

const (
	aggregateKeyPrefix = "elevare:agg:"
	aggregateStatsKey  = "elevare:aggstats"
	scanBatch          = 200
)

// aggregateCache implements outbound.AggregateCachePort.
// Counters live in a hash next to the cached keys so every instance shares them.
type aggregateCache struct {
	client *redis.Client
}

// NewAggregateCache creates a new aggregate cache adapter.
func NewAggregateCache(client *redis.Client) outbound.AggregateCachePort {
	return &aggregateCache{client: client}
}

func (c *aggregateCache) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := c.client.Get(ctx, aggregateKeyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			c.client.HIncrBy(ctx, aggregateStatsKey, "misses", 1)
			return nil, outbound.ErrCacheMiss
		}
		return nil, err
	}
	c.client.HIncrBy(ctx, aggregateStatsKey, "hits", 1)
	return val, nil
}

func (c *aggregateCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	pipe := c.client.TxPipeline()
	pipe.Set(ctx, aggregateKeyPrefix+key, value, ttl)
	pipe.HIncrBy(ctx, aggregateStatsKey, "sets", 1)
	_, err := pipe.Exec(ctx)
	return err
}

func (c *aggregateCache) Delete(ctx context.Context, key string) (bool, error) {
	n, err := c.client.Del(ctx, aggregateKeyPrefix+key).Result()
	if err != nil {
		return false, err
	}
	if n > 0 {
		c.client.HIncrBy(ctx, aggregateStatsKey, "deletes", n)
	}
	return n > 0, nil
}

func (c *aggregateCache) DeletePattern(ctx context.Context, pattern string) (int64, error) {
	var (
		cursor  uint64
		removed int64
	)
	for {
		keys, next, err := c.client.Scan(ctx, cursor, aggregateKeyPrefix+pattern, scanBatch).Result()
		if err != nil {
			return removed, err
		}
		if len(keys) > 0 {
			n, err := c.client.Del(ctx, keys...).Result()
			if err != nil {
				return removed, err
			}
			removed += n
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}

	if removed > 0 {
		c.client.HIncrBy(ctx, aggregateStatsKey, "deletes", removed)
	}
	return removed, nil
}

func (c *aggregateCache) Clear(ctx context.Context) (int64, error) {
	return c.DeletePattern(ctx, "*")
}

func (c *aggregateCache) Stats(ctx context.Context) (*outbound.CacheStats, error) {
	fields, err := c.client.HGetAll(ctx, aggregateStatsKey).Result()
	if err != nil {
		return nil, err
	}

	stats := &outbound.CacheStats{
		Hits:    parseCounter(fields["hits"]),
		Misses:  parseCounter(fields["misses"]),
		Sets:    parseCounter(fields["sets"]),
		Deletes: parseCounter(fields["deletes"]),
	}

	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, aggregateKeyPrefix+"*", scanBatch).Result()
		if err != nil {
			return nil, err
		}
		stats.Keys += int64(len(keys))
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return stats, nil
}

func (c *aggregateCache) ResetStats(ctx context.Context) error {
	return c.client.Del(ctx, aggregateStatsKey).Err()
}

func parseCounter(s string) int64 {
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}

// Compile-time check
var _ outbound.AggregateCachePort = (*aggregateCache)(nil)
