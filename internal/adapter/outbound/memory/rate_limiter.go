package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/elevare/server/internal/port/outbound"
	"golang.org/x/time/rate"
)

// sweepInterval bounds how often idle limiters are scanned for eviction.
const sweepInterval = time.Minute

type limiterEntry struct {
	limiter  *rate.Limiter
	window   time.Duration
	lastSeen time.Time
}

// RateLimiter is a process-local token bucket per key. A limit of N per
// window refills continuously at N/window with a burst of N. A bucket left
// untouched for a whole window is full again, so it is evicted and recreated
// on the next request.
type RateLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*limiterEntry
	lastSweep time.Time
	now       func() time.Time
}

// NewRateLimiter creates an empty limiter set.
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		limiters: make(map[string]*limiterEntry),
		now:      time.Now,
	}
}

func (r *RateLimiter) limiter(key string, limit int, window time.Duration) (*rate.Limiter, time.Time) {
	id := fmt.Sprintf("%s|%d|%s", key, limit, window)

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	r.sweepLocked(now)

	e, ok := r.limiters[id]
	if !ok {
		e = &limiterEntry{
			limiter: rate.NewLimiter(rate.Limit(float64(limit)/window.Seconds()), limit),
			window:  window,
		}
		r.limiters[id] = e
	}
	e.lastSeen = now
	return e.limiter, now
}

func (r *RateLimiter) sweepLocked(now time.Time) {
	if now.Sub(r.lastSweep) < sweepInterval {
		return
	}
	r.lastSweep = now
	for id, e := range r.limiters {
		if now.Sub(e.lastSeen) >= e.window {
			delete(r.limiters, id)
		}
	}
}

// Len returns the number of live buckets.
func (r *RateLimiter) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.limiters)
}

func (r *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if limit <= 0 || window <= 0 {
		return false, nil
	}
	l, now := r.limiter(key, limit, window)
	return l.AllowN(now, 1), nil
}

func (r *RateLimiter) GetRemaining(ctx context.Context, key string, limit int, window time.Duration) (int, error) {
	if limit <= 0 || window <= 0 {
		return 0, nil
	}
	l, now := r.limiter(key, limit, window)
	remaining := int(l.TokensAt(now))
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// Compile-time check
var _ outbound.RateLimiterPort = (*RateLimiter)(nil)
