package billing

import (
	"time"

	"github.com/elevare/server/internal/infra/events"
	"github.com/elevare/server/internal/model"
)

// Event types published by the billing domain.
const (
	EventSubscriptionActivated = "billing.subscription_activated"
	EventSubscriptionRenewed   = "billing.subscription_renewed"
	EventSubscriptionCancelled = "billing.subscription_cancelled"
)

// EventPublisher publishes domain events.
type EventPublisher interface {
	Publish(event events.Event)
}

// SubscriptionEvent describes a subscription lifecycle change.
type SubscriptionEvent struct {
	events.BaseEvent
	Email          string
	Name           string
	PlanName       string
	MonthlyCredits int64
	RenewalDate    time.Time
}

func newSubscriptionEvent(eventType string, row *model.Subscription, planName string) *SubscriptionEvent {
	return &SubscriptionEvent{
		BaseEvent:      events.NewBaseEvent(eventType, row.UserID),
		Email:          row.Email,
		Name:           row.DisplayName,
		PlanName:       planName,
		MonthlyCredits: row.MonthlyCreditsLimit,
		RenewalDate:    row.RenewalDate,
	}
}
