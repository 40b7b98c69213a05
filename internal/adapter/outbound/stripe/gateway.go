package stripe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/checkout/session"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/elevare/server/internal/model"
	"github.com/elevare/server/internal/port/outbound"
)

// Metadata keys written on checkout sessions and subscriptions.
const (
	metadataUserID = "user_id"
	metadataPlan   = "plan"
)

// ErrMissingSecret is returned when the webhook secret is not configured.
var ErrMissingSecret = errors.New("stripe webhook secret not configured")

// Config holds Stripe configuration.
type Config struct {
	APIKey        string
	WebhookSecret string
}

// Gateway implements outbound.PaymentGatewayPort with Stripe Checkout.
type Gateway struct {
	sessions      *session.Client
	webhookSecret string
}

// NewGateway creates a new Stripe gateway.
func NewGateway(cfg *Config) *Gateway {
	return &Gateway{
		sessions: &session.Client{
			B:   stripe.GetBackend(stripe.APIBackend),
			Key: cfg.APIKey,
		},
		webhookSecret: cfg.WebhookSecret,
	}
}

// CreateCheckoutSession creates a hosted subscription checkout.
func (g *Gateway) CreateCheckoutSession(ctx context.Context, in *outbound.CheckoutInput) (*outbound.CheckoutSession, error) {
	metadata := map[string]string{
		metadataUserID: in.UserID,
		metadataPlan:   in.Plan.String(),
	}

	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(in.PriceID), Quantity: stripe.Int64(1)},
		},
		SuccessURL:        stripe.String(in.SuccessURL),
		CancelURL:         stripe.String(in.CancelURL),
		ClientReferenceID: stripe.String(in.UserID),
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: metadata,
		},
	}
	params.Context = ctx
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}
	if in.CustomerID != "" {
		params.Customer = stripe.String(in.CustomerID)
	} else if in.Email != "" {
		params.CustomerEmail = stripe.String(in.Email)
	}

	s, err := g.sessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}
	return &outbound.CheckoutSession{ID: s.ID, URL: s.URL}, nil
}

// ParseWebhook verifies the Stripe-Signature header and maps the event.
// Event types the billing domain does not handle are returned with only
// ID and Type set.
func (g *Gateway) ParseWebhook(payload []byte, signature string) (*outbound.PaymentEvent, error) {
	if g.webhookSecret == "" {
		return nil, ErrMissingSecret
	}

	event, err := webhook.ConstructEventWithOptions(payload, signature, g.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("verify webhook: %w", err)
	}

	out := &outbound.PaymentEvent{ID: event.ID, Type: string(event.Type)}
	if event.Data == nil {
		return out, nil
	}

	switch out.Type {
	case outbound.PaymentEventCheckoutCompleted:
		var s stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &s); err != nil {
			return nil, fmt.Errorf("decode checkout session: %w", err)
		}
		out.UserID = s.ClientReferenceID
		if out.UserID == "" {
			out.UserID = s.Metadata[metadataUserID]
		}
		out.Plan = planFrom(s.Metadata)
		if s.Customer != nil {
			out.CustomerID = s.Customer.ID
		}
		if s.Subscription != nil {
			out.SubscriptionID = s.Subscription.ID
			out.PeriodEnd = unix(s.Subscription.CurrentPeriodEnd)
		}

	case outbound.PaymentEventInvoicePaid, outbound.PaymentEventInvoicePaymentFailed:
		var inv stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
			return nil, fmt.Errorf("decode invoice: %w", err)
		}
		if inv.Customer != nil {
			out.CustomerID = inv.Customer.ID
		}
		if inv.Subscription != nil {
			out.SubscriptionID = inv.Subscription.ID
		}
		if inv.Lines != nil && len(inv.Lines.Data) > 0 && inv.Lines.Data[0].Period != nil {
			out.PeriodEnd = unix(inv.Lines.Data[0].Period.End)
		}

	case outbound.PaymentEventSubscriptionDeleted:
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return nil, fmt.Errorf("decode subscription: %w", err)
		}
		out.SubscriptionID = sub.ID
		out.UserID = sub.Metadata[metadataUserID]
		out.Plan = planFrom(sub.Metadata)
		if sub.Customer != nil {
			out.CustomerID = sub.Customer.ID
		}
		out.PeriodEnd = unix(sub.CurrentPeriodEnd)
	}

	return out, nil
}

func planFrom(metadata map[string]string) model.PlanType {
	plan, _ := model.ParsePlanType(metadata[metadataPlan])
	return plan
}

func unix(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}

// Compile-time check
var _ outbound.PaymentGatewayPort = (*Gateway)(nil)
