package model

import (
	"time"

	"github.com/lib/pq"
)

// PlanType represents the subscription tier.
type PlanType string

const (
	PlanTypeFree         PlanType = "free"
	PlanTypeEssencial    PlanType = "essencial"
	PlanTypeProfissional PlanType = "profissional"
)

// String returns the string representation of the plan type.
func (p PlanType) String() string {
	return string(p)
}

// IsValid checks if the plan type is valid.
func (p PlanType) IsValid() bool {
	switch p {
	case PlanTypeFree, PlanTypeEssencial, PlanTypeProfissional:
		return true
	}
	return false
}

// ParsePlanType normalizes a plan name, accepting the marketing aliases
// "pro" and "master".
func ParsePlanType(s string) (PlanType, bool) {
	switch s {
	case "free", "gratis":
		return PlanTypeFree, true
	case "essencial", "pro":
		return PlanTypeEssencial, true
	case "profissional", "master":
		return PlanTypeProfissional, true
	}
	return "", false
}

// SubscriptionStatus represents the status of a subscription.
type SubscriptionStatus string

const (
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusInactive  SubscriptionStatus = "inactive"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
	SubscriptionStatusExpired   SubscriptionStatus = "expired"
)

// String returns the string representation of the status.
func (s SubscriptionStatus) String() string {
	return string(s)
}

// IsValid checks if the status is valid.
func (s SubscriptionStatus) IsValid() bool {
	switch s {
	case SubscriptionStatusActive, SubscriptionStatusInactive, SubscriptionStatusCancelled, SubscriptionStatusExpired:
		return true
	}
	return false
}

// IsActive returns true if the subscription is active.
func (s SubscriptionStatus) IsActive() bool {
	return s == SubscriptionStatusActive
}

// UnlimitedCredits is the sentinel stored in credits columns for unlimited plans.
const UnlimitedCredits int64 = -1

// Plan is the persisted plan catalogue entry shown on the pricing page.
type Plan struct {
	ID             PlanType       `json:"id" gorm:"primaryKey"`
	Name           string         `json:"name" gorm:"not null"`
	MonthlyCredits int64          `json:"monthly_credits" gorm:"not null"`
	StripePriceID  string         `json:"-" gorm:"column:stripe_price_id"`
	Features       pq.StringArray `json:"features" gorm:"type:text[]"`
	DisplayOrder   int            `json:"display_order" gorm:"default:0"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// TableName returns the table name for Plan.
func (Plan) TableName() string {
	return "plans"
}

// IsUnlimited returns true if the plan has no credit ceiling.
func (p *Plan) IsUnlimited() bool {
	return p.ID == PlanTypeProfissional || p.MonthlyCredits == UnlimitedCredits
}

// Subscription is the persisted per-user subscription row.
type Subscription struct {
	UserID               string             `json:"user_id" gorm:"primaryKey"`
	Email                string             `json:"email"`
	DisplayName          string             `json:"display_name"`
	Plan                 PlanType           `json:"plan" gorm:"not null;default:free"`
	Status               SubscriptionStatus `json:"status" gorm:"not null;default:active"`
	CreditsRemaining     int64              `json:"credits_remaining" gorm:"not null;default:0"`
	MonthlyCreditsLimit  int64              `json:"monthly_credits_limit" gorm:"not null;default:0"`
	RenewalDate          time.Time          `json:"renewal_date"`
	StripeCustomerID     string             `json:"-" gorm:"index"`
	StripeSubscriptionID string             `json:"-" gorm:"index"`
	CreatedAt            time.Time          `json:"created_at"`
	UpdatedAt            time.Time          `json:"updated_at"`
}

// TableName returns the table name for Subscription.
func (Subscription) TableName() string {
	return "subscriptions"
}

// FeatureType identifies a credit-consuming generation feature.
type FeatureType string

const (
	FeatureEbook  FeatureType = "ebook"
	FeatureAd     FeatureType = "ad"
	FeaturePost   FeatureType = "post"
	FeaturePrompt FeatureType = "prompt"
	FeatureVideo  FeatureType = "video"
	FeatureImage  FeatureType = "image"
)

// AllFeatures lists every feature in display order.
var AllFeatures = []FeatureType{FeatureEbook, FeatureAd, FeaturePost, FeaturePrompt, FeatureVideo, FeatureImage}

// String returns the string representation of the feature.
func (f FeatureType) String() string {
	return string(f)
}

// IsValid checks if the feature type is valid.
func (f FeatureType) IsValid() bool {
	switch f {
	case FeatureEbook, FeatureAd, FeaturePost, FeaturePrompt, FeatureVideo, FeatureImage:
		return true
	}
	return false
}

// UsageLedgerEntry is an append-only record of credits consumed by one generation.
type UsageLedgerEntry struct {
	ID          string      `json:"id" gorm:"primaryKey;type:char(26)"`
	UserID      string      `json:"user_id" gorm:"not null;index:idx_usage_ledger_user_created"`
	Feature     FeatureType `json:"feature" gorm:"not null"`
	CreditsUsed int64       `json:"credits_used" gorm:"not null"`
	RequestID   string      `json:"request_id,omitempty"`
	CreatedAt   time.Time   `json:"created_at" gorm:"not null;index:idx_usage_ledger_user_created"`
}

// TableName returns the table name for UsageLedgerEntry.
func (UsageLedgerEntry) TableName() string {
	return "usage_ledger"
}

// FeatureUsage is an aggregate row of ledger entries per feature.
type FeatureUsage struct {
	Feature     FeatureType `json:"feature"`
	Generations int64       `json:"generations"`
	Credits     int64       `json:"credits"`
}

// WebhookEvent records a processed payment webhook for idempotency.
type WebhookEvent struct {
	ID          string    `gorm:"primaryKey"`
	Type        string    `gorm:"not null"`
	ProcessedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for WebhookEvent.
func (WebhookEvent) TableName() string {
	return "webhook_events"
}

// ProviderCredential stores a user's own generation API key, encrypted.
type ProviderCredential struct {
	UserID       string    `gorm:"primaryKey"`
	Provider     string    `gorm:"primaryKey"`
	EncryptedKey string    `gorm:"not null"`
	KeyHint      string    `gorm:"size:8"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TableName returns the table name for ProviderCredential.
func (ProviderCredential) TableName() string {
	return "provider_credentials"
}
