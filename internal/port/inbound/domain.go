package inbound

import (
	"context"

	"github.com/elevare/server/internal/domain/billing"
	"github.com/elevare/server/internal/domain/credential"
	"github.com/elevare/server/internal/domain/generation"
	"github.com/elevare/server/internal/domain/ledger"
	"github.com/elevare/server/internal/model"
	"github.com/elevare/server/internal/port/outbound"
)

// SubscriptionDomain is the billing surface used by the HTTP layer.
type SubscriptionDomain interface {
	// GetSubscription loads the authoritative subscription of a user.
	GetSubscription(ctx context.Context, userID string) (*billing.Subscription, error)

	// RefetchSubscription reloads the snapshot served to the credit guard.
	RefetchSubscription(ctx context.Context, userID string) (*billing.Subscription, error)

	// CheckCredits runs the credit guard without side effects.
	CheckCredits(ctx context.Context, userID string, opts billing.GuardOptions) billing.Decision

	// RegisterContact stores the notification address of a user.
	RegisterContact(ctx context.Context, userID, email, name string) error

	// ListPlans returns the plan catalogue.
	ListPlans(ctx context.Context) ([]billing.PlanSpec, error)

	// CreateCheckout opens a hosted checkout for a paid plan.
	CreateCheckout(ctx context.Context, userID, email, plan string) (*outbound.CheckoutSession, error)

	// HandleWebhook verifies and applies a payment provider event.
	HandleWebhook(ctx context.Context, payload []byte, signature string) error
}

// GenerationDomain is the generation workflow surface used by the HTTP layer.
type GenerationDomain interface {
	Generate(ctx context.Context, userID string, req *generation.Request) (*generation.Result, error)
	State(userID string, feature model.FeatureType) generation.Snapshot
	Cancel(userID string, feature model.FeatureType) bool
	CostOf(feature model.FeatureType) int64
}

// GenerationStream delivers machine transitions to live connections.
type GenerationStream interface {
	Subscribe(obs generation.Observer) func()
	Snapshots(userID string) []generation.Snapshot
}

// UsageDomain is the usage ledger surface used by the HTTP layer.
type UsageDomain interface {
	Summary(ctx context.Context, userID string) (*ledger.Summary, error)
	History(ctx context.Context, userID string, limit int) ([]*model.UsageLedgerEntry, error)

	// Cache administration. Non-admin callers get an AuthorizationError.
	GetStats(ctx context.Context, caller ledger.Caller) (*outbound.CacheStats, error)
	ResetStats(ctx context.Context, caller ledger.Caller) error
	Clear(ctx context.Context, caller ledger.Caller) (int64, error)
	DeleteKey(ctx context.Context, caller ledger.Caller, key string) (bool, error)
	DeletePattern(ctx context.Context, caller ledger.Caller, pattern string) (int64, error)
}

// CredentialDomain manages the user's provider API key.
type CredentialDomain interface {
	SetAPIKey(ctx context.Context, userID, apiKey string) (*credential.Status, error)
	DeleteAPIKey(ctx context.Context, userID string) error
	Status(ctx context.Context, userID string) (*credential.Status, error)
}
