package postgres

import (
	"context"

	"github.com/elevare/server/internal/model"
	"github.com/elevare/server/internal/port/outbound"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// planAdapter implements outbound.PlanDatabasePort.
type planAdapter struct {
	db *gorm.DB
}

// NewPlanAdapter creates a new plan database adapter.
func NewPlanAdapter(db *gorm.DB) outbound.PlanDatabasePort {
	return &planAdapter{db: db}
}

func (a *planAdapter) List(ctx context.Context) ([]*model.Plan, error) {
	var plans []*model.Plan
	err := a.db.WithContext(ctx).
		Order("display_order ASC").
		Find(&plans).Error
	if err != nil {
		return nil, err
	}
	return plans, nil
}

func (a *planAdapter) Upsert(ctx context.Context, plan *model.Plan) error {
	return a.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "monthly_credits", "stripe_price_id", "features", "display_order", "updated_at"}),
		}).
		Create(plan).Error
}

// Compile-time check
var _ outbound.PlanDatabasePort = (*planAdapter)(nil)
