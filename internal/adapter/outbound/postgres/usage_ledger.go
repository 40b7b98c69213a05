package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/elevare/server/internal/model"
	"github.com/elevare/server/internal/port/outbound"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// usageLedgerAdapter implements outbound.UsageLedgerDatabasePort.
type usageLedgerAdapter struct {
	db *gorm.DB
}

// NewUsageLedgerAdapter creates a new usage ledger database adapter.
func NewUsageLedgerAdapter(db *gorm.DB) outbound.UsageLedgerDatabasePort {
	return &usageLedgerAdapter{db: db}
}

func (a *usageLedgerAdapter) ChargeAndAppend(ctx context.Context, entry *model.UsageLedgerEntry) (*outbound.ChargeResult, error) {
	var result outbound.ChargeResult

	err := a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var sub model.Subscription
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&sub, "user_id = ?", entry.UserID).Error
		if err != nil {
			return fmt.Errorf("lock subscription: %w", err)
		}

		if sub.Plan == model.PlanTypeProfissional || sub.CreditsRemaining == model.UnlimitedCredits {
			result.Remaining = model.UnlimitedCredits
		} else {
			res := tx.Model(&model.Subscription{}).
				Where("user_id = ? AND credits_remaining >= ?", entry.UserID, entry.CreditsUsed).
				UpdateColumn("credits_remaining", gorm.Expr("credits_remaining - ?", entry.CreditsUsed))
			if res.Error != nil {
				return fmt.Errorf("decrement credits: %w", res.Error)
			}
			if res.RowsAffected == 0 {
				result.Remaining = sub.CreditsRemaining
				return nil
			}
			result.Remaining = sub.CreditsRemaining - entry.CreditsUsed
		}

		if err := tx.Create(entry).Error; err != nil {
			return fmt.Errorf("append ledger entry: %w", err)
		}
		result.Charged = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (a *usageLedgerAdapter) SumByFeature(ctx context.Context, userID string, since time.Time) ([]*model.FeatureUsage, error) {
	var rows []*model.FeatureUsage
	err := a.db.WithContext(ctx).
		Model(&model.UsageLedgerEntry{}).
		Select("feature, COUNT(*) AS generations, COALESCE(SUM(credits_used), 0) AS credits").
		Where("user_id = ? AND created_at >= ?", userID, since).
		Group("feature").
		Order("feature ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (a *usageLedgerAdapter) ListByUser(ctx context.Context, userID string, limit int) ([]*model.UsageLedgerEntry, error) {
	var entries []*model.UsageLedgerEntry
	err := a.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Compile-time check
var _ outbound.UsageLedgerDatabasePort = (*usageLedgerAdapter)(nil)
