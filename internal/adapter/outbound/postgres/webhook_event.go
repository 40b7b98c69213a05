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

// webhookEventAdapter implements outbound.WebhookEventDatabasePort.
type webhookEventAdapter struct {
	db *gorm.DB
}

// NewWebhookEventAdapter creates a new webhook event database adapter.
func NewWebhookEventAdapter(db *gorm.DB) outbound.WebhookEventDatabasePort {
	return &webhookEventAdapter{db: db}
}

func (a *webhookEventAdapter) IsProcessed(ctx context.Context, eventID string) (bool, error) {
	var count int64
	err := a.db.WithContext(ctx).
		Model(&model.WebhookEvent{}).
		Where("id = ?", eventID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("check webhook event processed: %w", err)
	}
	return count > 0, nil
}

func (a *webhookEventAdapter) MarkProcessed(ctx context.Context, eventID, eventType string) error {
	event := &model.WebhookEvent{ID: eventID, Type: eventType, ProcessedAt: time.Now()}
	err := a.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(event).Error
	if err != nil {
		return fmt.Errorf("mark webhook event processed: %w", err)
	}
	return nil
}

// Compile-time check
var _ outbound.WebhookEventDatabasePort = (*webhookEventAdapter)(nil)
