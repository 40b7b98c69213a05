package outbound

import (
	"context"
	"time"

	"github.com/elevare/server/internal/model"
)

// PlanDatabasePort defines plan catalogue persistence operations.
type PlanDatabasePort interface {
	// List returns every plan ordered for display.
	List(ctx context.Context) ([]*model.Plan, error)

	// Upsert creates or updates a plan.
	Upsert(ctx context.Context, plan *model.Plan) error
}

// SubscriptionDatabasePort defines subscription persistence operations.
type SubscriptionDatabasePort interface {
	// GetByUserID returns the subscription, or nil if the user has none.
	GetByUserID(ctx context.Context, userID string) (*model.Subscription, error)

	// GetByStripeSubscriptionID returns the subscription linked to a Stripe subscription.
	GetByStripeSubscriptionID(ctx context.Context, stripeSubID string) (*model.Subscription, error)

	// GetByStripeCustomerID returns the subscription linked to a Stripe customer.
	GetByStripeCustomerID(ctx context.Context, customerID string) (*model.Subscription, error)

	// Create inserts a subscription. Creating an existing user is a no-op.
	Create(ctx context.Context, sub *model.Subscription) error

	// UpdateContact sets the non-empty email and display name columns only.
	UpdateContact(ctx context.Context, userID, email, name string) error

	// Update locks the user's row, applies fn to the current values and
	// persists them in the same transaction when fn reports a change. It
	// returns the resulting row, or nil if the user has none. Balance changes
	// outside Update are made by UsageLedgerDatabasePort.ChargeAndAppend.
	Update(ctx context.Context, userID string, fn func(sub *model.Subscription) bool) (*model.Subscription, error)
}

// WebhookEventDatabasePort records processed webhook events.
type WebhookEventDatabasePort interface {
	// IsProcessed reports whether the event was already handled.
	IsProcessed(ctx context.Context, eventID string) (bool, error)

	// MarkProcessed records the event as handled.
	MarkProcessed(ctx context.Context, eventID, eventType string) error
}

// CheckoutSession is a hosted checkout created with the payment gateway.
type CheckoutSession struct {
	ID  string
	URL string
}

// CheckoutInput describes a subscription checkout.
type CheckoutInput struct {
	UserID     string
	Email      string
	CustomerID string
	PriceID    string
	Plan       model.PlanType
	SuccessURL string
	CancelURL  string
}

// Payment webhook event types handled by the billing domain.
const (
	PaymentEventCheckoutCompleted    = "checkout.session.completed"
	PaymentEventInvoicePaid          = "invoice.paid"
	PaymentEventInvoicePaymentFailed = "invoice.payment_failed"
	PaymentEventSubscriptionDeleted  = "customer.subscription.deleted"
)

// PaymentEvent is a verified payment webhook event.
type PaymentEvent struct {
	ID   string
	Type string

	UserID         string
	Plan           model.PlanType
	CustomerID     string
	SubscriptionID string
	PeriodEnd      time.Time
}

// PaymentGatewayPort defines the subscription payment provider.
type PaymentGatewayPort interface {
	// CreateCheckoutSession creates a hosted subscription checkout.
	CreateCheckoutSession(ctx context.Context, in *CheckoutInput) (*CheckoutSession, error)

	// ParseWebhook verifies the signature and decodes the event.
	ParseWebhook(payload []byte, signature string) (*PaymentEvent, error)
}
