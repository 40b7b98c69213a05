package billing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/elevare/server/internal/model"
	"github.com/elevare/server/internal/port/outbound"
	"go.uber.org/zap"
)

// Config holds billing domain settings.
type Config struct {
	CheckoutSuccessURL string
	CheckoutCancelURL  string
	// SnapshotTTL is how long a subscription snapshot is served without reload.
	SnapshotTTL time.Duration
	// LowCreditThreshold triggers low-balance warnings.
	LowCreditThreshold int64
}

// Domain implements subscription and credit lifecycle logic.
type Domain struct {
	planDB         outbound.PlanDatabasePort
	subscriptionDB outbound.SubscriptionDatabasePort
	webhookDB      outbound.WebhookEventDatabasePort
	gateway        outbound.PaymentGatewayPort
	publisher      EventPublisher
	catalogue      *Catalogue
	guard          *Guard
	state          *StateProvider
	config         Config
	now            func() time.Time
	logger         *zap.Logger
}

// NewBillingDomain creates a new billing domain service. gateway and
// publisher may be nil.
func NewBillingDomain(
	planDB outbound.PlanDatabasePort,
	subscriptionDB outbound.SubscriptionDatabasePort,
	webhookDB outbound.WebhookEventDatabasePort,
	gateway outbound.PaymentGatewayPort,
	publisher EventPublisher,
	catalogue *Catalogue,
	cfg Config,
	logger *zap.Logger,
) *Domain {
	if catalogue == nil {
		catalogue = DefaultCatalogue()
	}
	d := &Domain{
		planDB:         planDB,
		subscriptionDB: subscriptionDB,
		webhookDB:      webhookDB,
		gateway:        gateway,
		publisher:      publisher,
		catalogue:      catalogue,
		guard:          NewGuard(cfg.LowCreditThreshold),
		config:         cfg,
		now:            time.Now,
		logger:         logger,
	}
	d.state = NewStateProvider(d, cfg.SnapshotTTL, logger)
	return d
}

// StateProvider returns the subscription snapshot provider backed by this domain.
func (d *Domain) StateProvider() *StateProvider {
	return d.state
}

// Guard returns the credit guard.
func (d *Domain) Guard() *Guard {
	return d.guard
}

// --- Plan Operations ---

// ListPlans returns the plan catalogue in display order.
func (d *Domain) ListPlans(ctx context.Context) ([]PlanSpec, error) {
	return d.catalogue.List(), nil
}

// SyncPlans writes the catalogue to the plan table.
func (d *Domain) SyncPlans(ctx context.Context) error {
	for _, spec := range d.catalogue.List() {
		if err := d.planDB.Upsert(ctx, spec.toModel()); err != nil {
			return fmt.Errorf("upsert plan %s: %w", spec.Type, err)
		}
	}
	return nil
}

// --- Subscription Operations ---

// GetSubscription loads the authoritative subscription. Users without one are
// provisioned on the free plan; expired free allowances are renewed.
func (d *Domain) GetSubscription(ctx context.Context, userID string) (*Subscription, error) {
	row, err := d.loadOrProvision(ctx, userID, "", "")
	if err != nil {
		return nil, err
	}

	if d.freeAllowanceDue(row) {
		renewed := false
		// Rechecked under the row lock: a concurrent request may have renewed
		// and spent part of the new allowance already.
		row, err = d.subscriptionDB.Update(ctx, userID, func(sub *model.Subscription) bool {
			if !d.freeAllowanceDue(sub) {
				return false
			}
			sub.CreditsRemaining = d.catalogue.MonthlyCredits(model.PlanTypeFree)
			sub.MonthlyCreditsLimit = sub.CreditsRemaining
			sub.RenewalDate = nextRenewal(d.now())
			renewed = true
			return true
		})
		if err != nil {
			return nil, fmt.Errorf("renew free allowance: %w", err)
		}
		if row == nil {
			return nil, ErrSubscriptionNotFound
		}
		if renewed {
			d.logger.Info("free allowance renewed",
				zap.String("user_id", userID),
				zap.Int64("credits", row.CreditsRemaining),
			)
		}
	}

	return FromModel(row), nil
}

func (d *Domain) freeAllowanceDue(row *model.Subscription) bool {
	return row.Plan == model.PlanTypeFree && !row.RenewalDate.IsZero() && !d.now().Before(row.RenewalDate)
}

// RefetchSubscription reloads the snapshot served to the credit guard.
func (d *Domain) RefetchSubscription(ctx context.Context, userID string) (*Subscription, error) {
	return d.state.Refetch(ctx, userID)
}

// CheckCredits runs the credit guard against the current snapshot.
func (d *Domain) CheckCredits(ctx context.Context, userID string, opts GuardOptions) Decision {
	return d.guard.Check(d.state.Snapshot(ctx, userID), opts)
}

// RegisterContact records the user's email and display name for notifications.
func (d *Domain) RegisterContact(ctx context.Context, userID, email, name string) error {
	row, err := d.loadOrProvision(ctx, userID, email, name)
	if err != nil {
		return err
	}
	if (email == "" || row.Email == email) && (name == "" || row.DisplayName == name) {
		return nil
	}
	// Only the contact columns are written; the balance belongs to the ledger.
	if err := d.subscriptionDB.UpdateContact(ctx, userID, email, name); err != nil {
		return fmt.Errorf("update contact: %w", err)
	}
	return nil
}

// Contact is the notification address of a subscriber.
type Contact struct {
	UserID           string
	Email            string
	Name             string
	PlanName         string
	CreditsRemaining int64
	MonthlyCredits   int64
}

// Contact returns the stored notification details of a user. It does not
// provision a subscription.
func (d *Domain) Contact(ctx context.Context, userID string) (*Contact, error) {
	row, err := d.subscriptionDB.GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get subscription: %w", err)
	}
	if row == nil {
		return nil, ErrSubscriptionNotFound
	}
	spec, _ := d.catalogue.Get(row.Plan)
	return &Contact{
		UserID:           row.UserID,
		Email:            row.Email,
		Name:             row.DisplayName,
		PlanName:         spec.Name,
		CreditsRemaining: row.CreditsRemaining,
		MonthlyCredits:   row.MonthlyCreditsLimit,
	}, nil
}

func (d *Domain) loadOrProvision(ctx context.Context, userID, email, name string) (*model.Subscription, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrInvalidUserID
	}

	row, err := d.subscriptionDB.GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get subscription: %w", err)
	}
	if row != nil {
		return row, nil
	}

	credits := d.catalogue.MonthlyCredits(model.PlanTypeFree)
	row = &model.Subscription{
		UserID:              userID,
		Email:               email,
		DisplayName:         name,
		Plan:                model.PlanTypeFree,
		Status:              model.SubscriptionStatusActive,
		CreditsRemaining:    credits,
		MonthlyCreditsLimit: credits,
		RenewalDate:         nextRenewal(d.now()),
	}
	if err := d.subscriptionDB.Create(ctx, row); err != nil {
		return nil, fmt.Errorf("provision free subscription: %w", err)
	}

	// Another request may have provisioned concurrently; the stored row wins.
	stored, err := d.subscriptionDB.GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get subscription: %w", err)
	}
	if stored == nil {
		return nil, ErrSubscriptionNotFound
	}

	d.logger.Info("free subscription provisioned", zap.String("user_id", userID))
	return stored, nil
}

// --- Checkout ---

// CreateCheckout opens a hosted checkout for a paid plan.
func (d *Domain) CreateCheckout(ctx context.Context, userID, email, planName string) (*outbound.CheckoutSession, error) {
	if d.gateway == nil {
		return nil, ErrPaymentNotConfigured
	}

	planType, ok := model.ParsePlanType(strings.ToLower(strings.TrimSpace(planName)))
	if !ok {
		return nil, ErrInvalidPlan
	}
	spec, ok := d.catalogue.Get(planType)
	if !ok {
		return nil, ErrPlanNotFound
	}
	if !spec.IsPaid() || spec.StripePriceID == "" {
		return nil, ErrPlanNotPurchase
	}

	row, err := d.loadOrProvision(ctx, userID, email, "")
	if err != nil {
		return nil, err
	}
	if row.Plan == planType && row.Status.IsActive() {
		return nil, ErrSamePlan
	}

	session, err := d.gateway.CreateCheckoutSession(ctx, &outbound.CheckoutInput{
		UserID:     userID,
		Email:      email,
		CustomerID: row.StripeCustomerID,
		PriceID:    spec.StripePriceID,
		Plan:       planType,
		SuccessURL: d.config.CheckoutSuccessURL,
		CancelURL:  d.config.CheckoutCancelURL,
	})
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}

	d.logger.Info("checkout session created",
		zap.String("user_id", userID),
		zap.String("plan", planType.String()),
		zap.String("session_id", session.ID),
	)
	return session, nil
}

func (d *Domain) publish(eventType string, row *model.Subscription) {
	if d.publisher == nil {
		return
	}
	spec, _ := d.catalogue.Get(row.Plan)
	d.publisher.Publish(newSubscriptionEvent(eventType, row, spec.Name))
}
