package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/elevare/server/internal/domain/billing"
	"github.com/elevare/server/internal/model"
	"github.com/elevare/server/internal/port/outbound"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// RoleAdmin is the role allowed to run cache administration.
const RoleAdmin = "admin"

// Caller identifies who invokes an operation.
type Caller struct {
	UserID string
	Role   string
}

// IsAdmin reports whether the caller holds the admin role.
func (c Caller) IsAdmin() bool {
	return c.Role == RoleAdmin
}

// Config holds ledger settings.
type Config struct {
	SummaryTTL   time.Duration
	HistoryLimit int
}

// Summary aggregates a user's usage for the current month.
type Summary struct {
	Since            time.Time             `json:"since"`
	Features         []*model.FeatureUsage `json:"features"`
	TotalGenerations int64                 `json:"total_generations"`
	TotalCredits     int64                 `json:"total_credits"`
}

// Domain records credit usage and serves usage aggregates.
type Domain struct {
	db     outbound.UsageLedgerDatabasePort
	cache  outbound.AggregateCachePort
	config Config
	now    func() time.Time
	logger *zap.Logger
}

// NewLedgerDomain creates a new ledger domain. cache may be nil.
func NewLedgerDomain(
	db outbound.UsageLedgerDatabasePort,
	cache outbound.AggregateCachePort,
	cfg Config,
	logger *zap.Logger,
) *Domain {
	if cfg.SummaryTTL <= 0 {
		cfg.SummaryTTL = 5 * time.Minute
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 50
	}
	return &Domain{
		db:     db,
		cache:  cache,
		config: cfg,
		now:    time.Now,
		logger: logger,
	}
}

func summaryKey(userID string) string {
	return "usage:summary:" + userID
}

// RecordUsage atomically charges credits and appends a ledger entry.
// It returns the entry and the remaining balance. When the balance does not
// cover the charge nothing is written and an InsufficientCreditsError is
// returned.
func (d *Domain) RecordUsage(ctx context.Context, userID string, feature model.FeatureType, credits int64, requestID string) (*model.UsageLedgerEntry, int64, error) {
	if userID == "" {
		return nil, 0, fmt.Errorf("%w: empty user", ErrInvalidUsage)
	}
	if !feature.IsValid() {
		return nil, 0, fmt.Errorf("%w: unknown feature %q", ErrInvalidUsage, feature)
	}
	if credits <= 0 {
		return nil, 0, fmt.Errorf("%w: credits must be positive", ErrInvalidUsage)
	}

	now := d.now().UTC()
	entry := &model.UsageLedgerEntry{
		ID:          ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String(),
		UserID:      userID,
		Feature:     feature,
		CreditsUsed: credits,
		RequestID:   requestID,
		CreatedAt:   now,
	}

	res, err := d.db.ChargeAndAppend(ctx, entry)
	if err != nil {
		return nil, 0, fmt.Errorf("charge and append: %w", err)
	}
	if !res.Charged {
		d.logger.Info("charge rejected, insufficient balance",
			zap.String("user_id", userID),
			zap.String("feature", feature.String()),
			zap.Int64("required", credits),
			zap.Int64("remaining", res.Remaining),
		)
		return nil, res.Remaining, &billing.InsufficientCreditsError{
			Required:    credits,
			Remaining:   res.Remaining,
			Dismissible: res.Remaining > 0,
		}
	}

	d.invalidateSummary(ctx, userID)
	return entry, res.Remaining, nil
}

// Summary returns the user's usage since the start of the current month.
// Aggregates are served cache-aside.
func (d *Domain) Summary(ctx context.Context, userID string) (*Summary, error) {
	key := summaryKey(userID)
	if d.cache != nil {
		data, err := d.cache.Get(ctx, key)
		switch {
		case err == nil:
			var s Summary
			if jerr := json.Unmarshal(data, &s); jerr == nil {
				return &s, nil
			}
			d.logger.Warn("discarding undecodable cached summary", zap.String("key", key))
		case !errors.Is(err, outbound.ErrCacheMiss):
			d.logger.Warn("summary cache read failed", zap.String("key", key), zap.Error(err))
		}
	}

	since := monthStart(d.now())
	rows, err := d.db.SumByFeature(ctx, userID, since)
	if err != nil {
		return nil, fmt.Errorf("sum usage: %w", err)
	}

	s := &Summary{Since: since, Features: rows}
	for _, r := range rows {
		s.TotalGenerations += r.Generations
		s.TotalCredits += r.Credits
	}
	if s.Features == nil {
		s.Features = []*model.FeatureUsage{}
	}

	if d.cache != nil {
		if data, err := json.Marshal(s); err == nil {
			if err := d.cache.Set(ctx, key, data, d.config.SummaryTTL); err != nil {
				d.logger.Warn("summary cache write failed", zap.String("key", key), zap.Error(err))
			}
		}
	}
	return s, nil
}

// History returns the user's most recent ledger entries, newest first.
func (d *Domain) History(ctx context.Context, userID string, limit int) ([]*model.UsageLedgerEntry, error) {
	if limit <= 0 || limit > d.config.HistoryLimit {
		limit = d.config.HistoryLimit
	}
	entries, err := d.db.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list usage: %w", err)
	}
	return entries, nil
}

// --- Cache administration ---

func (d *Domain) authorize(caller Caller, op string) error {
	if !caller.IsAdmin() {
		d.logger.Warn("rejected cache administration",
			zap.String("op", op),
			zap.String("user_id", caller.UserID),
		)
		return &AuthorizationError{Op: op, UserID: caller.UserID}
	}
	return nil
}

// GetStats returns the cache counters.
func (d *Domain) GetStats(ctx context.Context, caller Caller) (*outbound.CacheStats, error) {
	if err := d.authorize(caller, "get stats"); err != nil {
		return nil, err
	}
	if d.cache == nil {
		return &outbound.CacheStats{}, nil
	}
	return d.cache.Stats(ctx)
}

// ResetStats zeroes the cache counters.
func (d *Domain) ResetStats(ctx context.Context, caller Caller) error {
	if err := d.authorize(caller, "reset stats"); err != nil {
		return err
	}
	if d.cache == nil {
		return nil
	}
	return d.cache.ResetStats(ctx)
}

// Clear removes every cached aggregate and returns how many keys were removed.
func (d *Domain) Clear(ctx context.Context, caller Caller) (int64, error) {
	if err := d.authorize(caller, "clear"); err != nil {
		return 0, err
	}
	if d.cache == nil {
		return 0, nil
	}
	n, err := d.cache.Clear(ctx)
	if err != nil {
		return 0, err
	}
	d.logger.Info("cache cleared", zap.String("user_id", caller.UserID), zap.Int64("keys", n))
	return n, nil
}

// DeleteKey removes one cached key and reports whether it existed.
func (d *Domain) DeleteKey(ctx context.Context, caller Caller, key string) (bool, error) {
	if err := d.authorize(caller, "delete key"); err != nil {
		return false, err
	}
	if strings.TrimSpace(key) == "" {
		return false, ErrInvalidKey
	}
	if d.cache == nil {
		return false, nil
	}
	return d.cache.Delete(ctx, key)
}

// DeletePattern removes every cached key matching a glob pattern.
func (d *Domain) DeletePattern(ctx context.Context, caller Caller, pattern string) (int64, error) {
	if err := d.authorize(caller, "delete pattern"); err != nil {
		return 0, err
	}
	if strings.TrimSpace(pattern) == "" {
		return 0, ErrInvalidPattern
	}
	if d.cache == nil {
		return 0, nil
	}
	n, err := d.cache.DeletePattern(ctx, pattern)
	if err != nil {
		return 0, err
	}
	d.logger.Info("cache keys deleted",
		zap.String("user_id", caller.UserID),
		zap.String("pattern", pattern),
		zap.Int64("keys", n),
	)
	return n, nil
}

func (d *Domain) invalidateSummary(ctx context.Context, userID string) {
	if d.cache == nil {
		return
	}
	if _, err := d.cache.Delete(ctx, summaryKey(userID)); err != nil {
		d.logger.Warn("summary cache invalidation failed", zap.String("user_id", userID), zap.Error(err))
	}
}

func monthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
