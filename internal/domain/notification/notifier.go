package notification

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/elevare/server/internal/domain/billing"
	"github.com/elevare/server/internal/domain/generation"
	"github.com/elevare/server/internal/infra/events"
	"github.com/elevare/server/internal/model"
	"github.com/elevare/server/internal/port/outbound"
)

// ContactLookup resolves a user's notification address.
type ContactLookup interface {
	Contact(ctx context.Context, userID string) (*billing.Contact, error)
}

// Config holds notifier settings.
type Config struct {
	AppURL     string
	UpgradeURL string
	// CreditsLowCooldown limits credits-low emails per user.
	CreditsLowCooldown time.Duration
	SendTimeout        time.Duration
}

// Notifier sends lifecycle emails in response to domain events.
type Notifier struct {
	sender    outbound.EmailSenderPort
	contacts  ContactLookup
	templates *Templates
	config    Config
	now       func() time.Time
	logger    *zap.Logger

	mu       sync.Mutex
	lastLow  map[string]time.Time
	handled  map[string]time.Time
	lastGCAt time.Time
}

// NewNotifier creates a new notifier.
func NewNotifier(sender outbound.EmailSenderPort, contacts ContactLookup, cfg Config, logger *zap.Logger) *Notifier {
	if cfg.CreditsLowCooldown <= 0 {
		cfg.CreditsLowCooldown = 24 * time.Hour
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 30 * time.Second
	}
	if cfg.UpgradeURL == "" {
		cfg.UpgradeURL = cfg.AppURL + "/planos"
	}
	return &Notifier{
		sender:    sender,
		contacts:  contacts,
		templates: NewTemplates(),
		config:    cfg,
		now:       time.Now,
		logger:    logger,
		lastLow:   make(map[string]time.Time),
		handled:   make(map[string]time.Time),
	}
}

// Handles returns the event types this handler processes.
func (n *Notifier) Handles() []string {
	return []string{
		billing.EventSubscriptionActivated,
		billing.EventSubscriptionRenewed,
		generation.EventCreditsLow,
	}
}

// Handle renders and sends the email for an event. Redelivered events are
// ignored.
func (n *Notifier) Handle(event events.Event) error {
	if !n.claim(event.EventID().String()) {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), n.config.SendTimeout)
	defer cancel()

	var (
		name string
		to   string
		data TemplateData
	)

	switch e := event.(type) {
	case *billing.SubscriptionEvent:
		to = e.Email
		data = TemplateData{
			Name:           e.Name,
			PlanName:       e.PlanName,
			MonthlyCredits: e.MonthlyCredits,
			Unlimited:      e.MonthlyCredits == model.UnlimitedCredits,
		}
		if !e.RenewalDate.IsZero() {
			data.RenewalDate = e.RenewalDate.Format("02/01/2006")
		}
		name = TemplateWelcome
		if e.EventType() == billing.EventSubscriptionRenewed {
			name = TemplateRenewal
		}

	case *generation.CreditsLowEvent:
		if !n.allowCreditsLow(e.UserID()) {
			n.logger.Debug("credits-low email suppressed", zap.String("user_id", e.UserID()))
			return nil
		}
		contact, err := n.contacts.Contact(ctx, e.UserID())
		if err != nil {
			if errors.Is(err, billing.ErrSubscriptionNotFound) {
				return nil
			}
			return fmt.Errorf("lookup contact: %w", err)
		}
		to = contact.Email
		data = TemplateData{
			Name:             contact.Name,
			PlanName:         contact.PlanName,
			CreditsRemaining: e.CreditsRemaining,
			MonthlyCredits:   contact.MonthlyCredits,
		}
		name = TemplateCreditsLow

	default:
		return nil
	}

	if to == "" {
		n.logger.Debug("no email on file, notification skipped",
			zap.String("user_id", event.UserID()),
			zap.String("event", event.EventType()),
		)
		return nil
	}

	data.AppURL = n.config.AppURL
	data.UpgradeURL = n.config.UpgradeURL
	subject, body, err := n.templates.Render(name, data)
	if err != nil {
		return err
	}

	if err := n.sender.Send(ctx, &outbound.EmailMessage{To: to, Subject: subject, HTMLBody: body}); err != nil {
		n.release(event.EventID().String())
		return err
	}
	return nil
}

// claim marks an event as handled and reports whether it was new.
func (n *Notifier) claim(id string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	now := n.now()
	if now.Sub(n.lastGCAt) > time.Hour {
		for k, at := range n.handled {
			if now.Sub(at) > time.Hour {
				delete(n.handled, k)
			}
		}
		for k, at := range n.lastLow {
			if now.Sub(at) > n.config.CreditsLowCooldown {
				delete(n.lastLow, k)
			}
		}
		n.lastGCAt = now
	}

	if _, ok := n.handled[id]; ok {
		return false
	}
	n.handled[id] = now
	return true
}

func (n *Notifier) release(id string) {
	n.mu.Lock()
	delete(n.handled, id)
	n.mu.Unlock()
}

func (n *Notifier) allowCreditsLow(userID string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	now := n.now()
	if last, ok := n.lastLow[userID]; ok && now.Sub(last) < n.config.CreditsLowCooldown {
		return false
	}
	n.lastLow[userID] = now
	return true
}
