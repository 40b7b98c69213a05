package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/elevare/server/internal/model"
	"github.com/elevare/server/internal/port/outbound"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// subscriptionAdapter implements outbound.SubscriptionDatabasePort.
type subscriptionAdapter struct {
	db *gorm.DB
}

// NewSubscriptionAdapter creates a new subscription database adapter.
func NewSubscriptionAdapter(db *gorm.DB) outbound.SubscriptionDatabasePort {
	return &subscriptionAdapter{db: db}
}

func (a *subscriptionAdapter) Create(ctx context.Context, sub *model.Subscription) error {
	// Concurrent first requests of a new user race to provision the row.
	return a.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, DoNothing: true}).
		Create(sub).Error
}

func (a *subscriptionAdapter) GetByUserID(ctx context.Context, userID string) (*model.Subscription, error) {
	return a.first(ctx, "user_id = ?", userID)
}

func (a *subscriptionAdapter) GetByStripeSubscriptionID(ctx context.Context, stripeSubID string) (*model.Subscription, error) {
	if stripeSubID == "" {
		return nil, nil
	}
	return a.first(ctx, "stripe_subscription_id = ?", stripeSubID)
}

func (a *subscriptionAdapter) GetByStripeCustomerID(ctx context.Context, customerID string) (*model.Subscription, error) {
	if customerID == "" {
		return nil, nil
	}
	return a.first(ctx, "stripe_customer_id = ?", customerID)
}

func (a *subscriptionAdapter) UpdateContact(ctx context.Context, userID, email, name string) error {
	updates := make(map[string]any, 2)
	if email != "" {
		updates["email"] = email
	}
	if name != "" {
		updates["display_name"] = name
	}
	if len(updates) == 0 {
		return nil
	}
	return a.db.WithContext(ctx).
		Model(&model.Subscription{}).
		Where("user_id = ?", userID).
		UpdateColumns(updates).Error
}

func (a *subscriptionAdapter) Update(ctx context.Context, userID string, fn func(sub *model.Subscription) bool) (*model.Subscription, error) {
	var result *model.Subscription

	err := a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var sub model.Subscription
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&sub, "user_id = ?", userID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("lock subscription: %w", err)
		}

		if fn(&sub) {
			if err := tx.Save(&sub).Error; err != nil {
				return fmt.Errorf("save subscription: %w", err)
			}
		}
		result = &sub
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (a *subscriptionAdapter) first(ctx context.Context, query string, arg any) (*model.Subscription, error) {
	var sub model.Subscription
	err := a.db.WithContext(ctx).First(&sub, query, arg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &sub, nil
}

// Compile-time check
var _ outbound.SubscriptionDatabasePort = (*subscriptionAdapter)(nil)
