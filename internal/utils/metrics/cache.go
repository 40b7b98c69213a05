package metrics

import (
	"context"
	"errors"

	"github.com/elevare/server/internal/port/outbound"
)

// instrumentedCache counts lookups on an aggregate cache.
type instrumentedCache struct {
	outbound.AggregateCachePort
	metrics *Metrics
}

// InstrumentCache wraps cache so every Get is counted as a hit or miss.
func InstrumentCache(cache outbound.AggregateCachePort, m *Metrics) outbound.AggregateCachePort {
	if m == nil {
		return cache
	}
	return &instrumentedCache{AggregateCachePort: cache, metrics: m}
}

func (c *instrumentedCache) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := c.AggregateCachePort.Get(ctx, key)
	switch {
	case err == nil:
		c.metrics.RecordCacheLookup(true)
	case errors.Is(err, outbound.ErrCacheMiss):
		c.metrics.RecordCacheLookup(false)
	}
	return data, err
}
