package billing

import (
	"time"

	"github.com/elevare/server/internal/model"
)

// Subscription is an immutable snapshot of a user's plan and credit balance.
type Subscription struct {
	userID              string
	plan                model.PlanType
	status              model.SubscriptionStatus
	creditsRemaining    int64
	monthlyCreditsLimit int64
	renewalDate         time.Time
}

// NewSubscription creates a snapshot from its attributes.
func NewSubscription(
	userID string,
	plan model.PlanType,
	status model.SubscriptionStatus,
	creditsRemaining, monthlyCreditsLimit int64,
	renewalDate time.Time,
) *Subscription {
	return &Subscription{
		userID:              userID,
		plan:                plan,
		status:              status,
		creditsRemaining:    creditsRemaining,
		monthlyCreditsLimit: monthlyCreditsLimit,
		renewalDate:         renewalDate,
	}
}

// FromModel converts a persisted row into a snapshot.
func FromModel(m *model.Subscription) *Subscription {
	if m == nil {
		return nil
	}
	return NewSubscription(m.UserID, m.Plan, m.Status, m.CreditsRemaining, m.MonthlyCreditsLimit, m.RenewalDate)
}

// --- Getters ---

func (s *Subscription) UserID() string                   { return s.userID }
func (s *Subscription) Plan() model.PlanType             { return s.plan }
func (s *Subscription) Status() model.SubscriptionStatus { return s.status }
func (s *Subscription) CreditsRemaining() int64          { return s.creditsRemaining }
func (s *Subscription) MonthlyCreditsLimit() int64       { return s.monthlyCreditsLimit }
func (s *Subscription) RenewalDate() time.Time           { return s.renewalDate }

// IsUnlimited returns true for the profissional plan or the -1 credit sentinel,
// whatever the stored balance.
func (s *Subscription) IsUnlimited() bool {
	return s.plan == model.PlanTypeProfissional || s.creditsRemaining == model.UnlimitedCredits
}

// HasSufficientCredits checks if the balance covers the amount.
func (s *Subscription) HasSufficientCredits(amount int64) bool {
	return s.IsUnlimited() || s.creditsRemaining >= amount
}

// WithCreditsRemaining returns a copy with a new balance.
func (s *Subscription) WithCreditsRemaining(credits int64) *Subscription {
	cp := *s
	cp.creditsRemaining = credits
	return &cp
}

// nextRenewal returns the renewal date one month after from.
func nextRenewal(from time.Time) time.Time {
	return from.AddDate(0, 1, 0)
}
