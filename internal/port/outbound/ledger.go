package outbound

import (
	"context"
	"time"

	"github.com/elevare/server/internal/model"
)

// ChargeResult is the outcome of an atomic charge-and-record.
type ChargeResult struct {
	// Charged is false when the balance was insufficient; nothing was written.
	Charged bool
	// Remaining is the balance after the charge (-1 for unlimited plans).
	Remaining int64
}

// UsageLedgerDatabasePort defines ledger persistence operations.
type UsageLedgerDatabasePort interface {
	// ChargeAndAppend decrements the user's credits when the balance covers
	// entry.CreditsUsed and appends the entry, in one transaction. Unlimited
	// plans append without decrementing.
	ChargeAndAppend(ctx context.Context, entry *model.UsageLedgerEntry) (*ChargeResult, error)

	// SumByFeature aggregates a user's entries since the given time.
	SumByFeature(ctx context.Context, userID string, since time.Time) ([]*model.FeatureUsage, error)

	// ListByUser returns the most recent entries of a user.
	ListByUser(ctx context.Context, userID string, limit int) ([]*model.UsageLedgerEntry, error)
}

// CacheStats are the counters exposed by the admin cache endpoints.
type CacheStats struct {
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
	Sets    int64 `json:"sets"`
	Deletes int64 `json:"deletes"`
	Keys    int64 `json:"keys"`
}

// HitRate returns hits / (hits + misses), or 0 when there were no reads.
func (s CacheStats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// AggregateCachePort is the key-value cache holding ledger aggregates.
type AggregateCachePort interface {
	// Get returns ErrCacheMiss when the key is absent or expired.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete returns true when the key existed.
	Delete(ctx context.Context, key string) (bool, error)
	// DeletePattern removes every key matching a glob pattern and returns the count.
	DeletePattern(ctx context.Context, pattern string) (int64, error)
	// Clear removes every key owned by the cache.
	Clear(ctx context.Context) (int64, error)
	Stats(ctx context.Context) (*CacheStats, error)
	ResetStats(ctx context.Context) error
}
