package billing

import (
	"errors"
	"fmt"
)

// Domain errors for billing.
var (
	// Plan errors
	ErrPlanNotFound    = errors.New("plan not found")
	ErrInvalidPlan     = errors.New("invalid plan")
	ErrPlanNotPurchase = errors.New("plan cannot be purchased")

	// Subscription errors
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrInvalidUserID        = errors.New("user ID cannot be empty")
	ErrSamePlan             = errors.New("already subscribed to this plan")

	// Credits errors
	ErrInsufficientCredits = errors.New("insufficient credits")

	// Payment errors
	ErrPaymentNotConfigured = errors.New("payment gateway not configured")
	ErrInvalidWebhook       = errors.New("invalid webhook")
)

// InsufficientCreditsError is returned when a credit-consuming action is
// blocked before any provider call.
type InsufficientCreditsError struct {
	Required  int64
	Remaining int64
	// Dismissible is true when some credits remain; the upgrade prompt may
	// then be closed by the user.
	Dismissible bool
	Message     string
}

func (e *InsufficientCreditsError) Error() string {
	return fmt.Sprintf("insufficient credits: have %d, need %d", e.Remaining, e.Required)
}

// Is makes errors.Is(err, ErrInsufficientCredits) match.
func (e *InsufficientCreditsError) Is(target error) bool {
	return target == ErrInsufficientCredits
}
