package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/elevare/server/internal/model"
	"github.com/elevare/server/internal/port/outbound"
	"go.uber.org/zap"
)

// HandleWebhook verifies and applies a payment webhook. Events are applied
// at most once; unknown event types are acknowledged and ignored.
func (d *Domain) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	if d.gateway == nil {
		return ErrPaymentNotConfigured
	}

	event, err := d.gateway.ParseWebhook(payload, signature)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidWebhook, err)
	}

	processed, err := d.webhookDB.IsProcessed(ctx, event.ID)
	if err != nil {
		return fmt.Errorf("check webhook event: %w", err)
	}
	if processed {
		d.logger.Debug("webhook event already processed", zap.String("event_id", event.ID))
		return nil
	}

	switch event.Type {
	case outbound.PaymentEventCheckoutCompleted:
		err = d.activate(ctx, event)
	case outbound.PaymentEventInvoicePaid:
		err = d.renew(ctx, event)
	case outbound.PaymentEventInvoicePaymentFailed:
		err = d.markInactive(ctx, event)
	case outbound.PaymentEventSubscriptionDeleted:
		err = d.cancel(ctx, event)
	default:
		d.logger.Debug("unhandled webhook event", zap.String("type", event.Type))
	}
	if err != nil {
		return fmt.Errorf("handle %s: %w", event.Type, err)
	}

	return d.webhookDB.MarkProcessed(ctx, event.ID, event.Type)
}

// activate applies a completed checkout: the plan is set and credits reset
// to its monthly allowance.
func (d *Domain) activate(ctx context.Context, event *outbound.PaymentEvent) error {
	if event.UserID == "" {
		return fmt.Errorf("checkout without user reference")
	}
	spec, ok := d.catalogue.Get(event.Plan)
	if !ok || !spec.IsPaid() {
		return fmt.Errorf("%w: %q", ErrInvalidPlan, event.Plan)
	}

	if _, err := d.loadOrProvision(ctx, event.UserID, "", ""); err != nil {
		return err
	}

	row, err := d.update(ctx, event.UserID, func(sub *model.Subscription) {
		sub.Plan = spec.Type
		sub.Status = model.SubscriptionStatusActive
		sub.MonthlyCreditsLimit = spec.MonthlyCredits
		sub.CreditsRemaining = spec.MonthlyCredits
		sub.RenewalDate = d.periodEnd(event)
		if event.CustomerID != "" {
			sub.StripeCustomerID = event.CustomerID
		}
		if event.SubscriptionID != "" {
			sub.StripeSubscriptionID = event.SubscriptionID
		}
	})
	if err != nil {
		return err
	}

	d.logger.Info("subscription activated",
		zap.String("user_id", row.UserID),
		zap.String("plan", row.Plan.String()),
	)
	d.publish(EventSubscriptionActivated, row)
	return nil
}

// renew resets credits to the monthly allowance after a successful payment.
func (d *Domain) renew(ctx context.Context, event *outbound.PaymentEvent) error {
	found, err := d.findByPaymentRefs(ctx, event)
	if err != nil || found == nil {
		return err
	}

	row, err := d.update(ctx, found.UserID, func(sub *model.Subscription) {
		sub.Status = model.SubscriptionStatusActive
		sub.MonthlyCreditsLimit = d.catalogue.MonthlyCredits(sub.Plan)
		sub.CreditsRemaining = sub.MonthlyCreditsLimit
		sub.RenewalDate = d.periodEnd(event)
	})
	if err != nil {
		return err
	}

	d.logger.Info("subscription renewed",
		zap.String("user_id", row.UserID),
		zap.Int64("credits", row.CreditsRemaining),
	)
	d.publish(EventSubscriptionRenewed, row)
	return nil
}

func (d *Domain) markInactive(ctx context.Context, event *outbound.PaymentEvent) error {
	found, err := d.findByPaymentRefs(ctx, event)
	if err != nil || found == nil {
		return err
	}

	row, err := d.update(ctx, found.UserID, func(sub *model.Subscription) {
		sub.Status = model.SubscriptionStatusInactive
	})
	if err != nil {
		return err
	}

	d.logger.Warn("subscription payment failed", zap.String("user_id", row.UserID))
	return nil
}

// cancel downgrades to the free plan. The remaining balance is capped at the
// free allowance.
func (d *Domain) cancel(ctx context.Context, event *outbound.PaymentEvent) error {
	found, err := d.findByPaymentRefs(ctx, event)
	if err != nil || found == nil {
		return err
	}

	freeCredits := d.catalogue.MonthlyCredits(model.PlanTypeFree)
	row, err := d.update(ctx, found.UserID, func(sub *model.Subscription) {
		sub.Plan = model.PlanTypeFree
		sub.Status = model.SubscriptionStatusCancelled
		sub.MonthlyCreditsLimit = freeCredits
		if sub.CreditsRemaining == model.UnlimitedCredits || sub.CreditsRemaining > freeCredits {
			sub.CreditsRemaining = freeCredits
		}
		sub.StripeSubscriptionID = ""
	})
	if err != nil {
		return err
	}

	d.logger.Info("subscription cancelled", zap.String("user_id", row.UserID))
	d.publish(EventSubscriptionCancelled, row)
	return nil
}

// update applies fn to the locked current row, so balance changes committed
// by concurrent charges are never overwritten with a stale copy.
func (d *Domain) update(ctx context.Context, userID string, fn func(sub *model.Subscription)) (*model.Subscription, error) {
	row, err := d.subscriptionDB.Update(ctx, userID, func(sub *model.Subscription) bool {
		fn(sub)
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("save subscription: %w", err)
	}
	if row == nil {
		return nil, ErrSubscriptionNotFound
	}
	d.state.Invalidate(userID)
	return row, nil
}

func (d *Domain) findByPaymentRefs(ctx context.Context, event *outbound.PaymentEvent) (*model.Subscription, error) {
	var (
		row *model.Subscription
		err error
	)
	if event.SubscriptionID != "" {
		row, err = d.subscriptionDB.GetByStripeSubscriptionID(ctx, event.SubscriptionID)
		if err != nil {
			return nil, fmt.Errorf("get subscription: %w", err)
		}
	}
	if row == nil && event.CustomerID != "" {
		row, err = d.subscriptionDB.GetByStripeCustomerID(ctx, event.CustomerID)
		if err != nil {
			return nil, fmt.Errorf("get subscription: %w", err)
		}
	}
	if row == nil {
		d.logger.Warn("webhook for unknown subscription",
			zap.String("event_id", event.ID),
			zap.String("subscription_id", event.SubscriptionID),
			zap.String("customer_id", event.CustomerID),
		)
	}
	return row, nil
}

func (d *Domain) periodEnd(event *outbound.PaymentEvent) time.Time {
	if !event.PeriodEnd.IsZero() {
		return event.PeriodEnd
	}
	return nextRenewal(d.now())
}
