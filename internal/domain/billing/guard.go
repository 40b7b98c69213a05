package billing

import "github.com/elevare/server/internal/model"

const defaultBlockMessage = "Seus créditos acabaram. Faça upgrade do seu plano para continuar gerando conteúdo."

// GuardOptions parameterize a single guard check.
type GuardOptions struct {
	// Required credits for the action; values <= 0 mean 1.
	Required int64
	// Message replaces the default upgrade prompt text.
	Message string
	// ShowLoading reports Loading instead of allowing when no snapshot exists.
	ShowLoading bool
}

// Decision is the outcome of a guard check.
type Decision struct {
	Allowed   bool  `json:"allowed"`
	Loading   bool  `json:"loading"`
	Unknown   bool  `json:"unknown"`
	Unlimited bool  `json:"unlimited"`
	Required  int64 `json:"required"`
	Remaining int64 `json:"remaining"`

	// Prompt fields. Blocked decisions always carry a prompt; allowed ones
	// carry a dismissible low-balance warning when the balance runs low.
	Prompt      bool   `json:"prompt"`
	Dismissible bool   `json:"dismissible"`
	Message     string `json:"message,omitempty"`
}

// Err converts a blocked decision into an InsufficientCreditsError.
func (d Decision) Err() error {
	if d.Allowed || d.Loading {
		return nil
	}
	return &InsufficientCreditsError{
		Required:    d.Required,
		Remaining:   d.Remaining,
		Dismissible: d.Dismissible,
		Message:     d.Message,
	}
}

// Guard gates credit-consuming actions on a subscription snapshot.
// It has no side effects and never deducts.
type Guard struct {
	lowCreditThreshold int64
}

// NewGuard creates a guard. Allowed actions leaving at most lowCreditThreshold
// credits carry a low-balance warning.
func NewGuard(lowCreditThreshold int64) *Guard {
	if lowCreditThreshold < 0 {
		lowCreditThreshold = 0
	}
	return &Guard{lowCreditThreshold: lowCreditThreshold}
}

// Check decides whether an action costing opts.Required may proceed.
// A nil snapshot means the state is unknown: the action is allowed and the
// server-side charge enforces the balance.
func (g *Guard) Check(sub *Subscription, opts GuardOptions) Decision {
	required := opts.Required
	if required <= 0 {
		required = 1
	}

	if sub == nil {
		if opts.ShowLoading {
			return Decision{Loading: true, Required: required}
		}
		return Decision{Allowed: true, Unknown: true, Required: required}
	}

	if sub.IsUnlimited() {
		return Decision{
			Allowed:   true,
			Unlimited: true,
			Required:  required,
			Remaining: sub.CreditsRemaining(),
		}
	}

	remaining := sub.CreditsRemaining()
	if remaining >= required {
		d := Decision{Allowed: true, Required: required, Remaining: remaining}
		if remaining-required <= g.lowCreditThreshold {
			d.Prompt = true
			d.Dismissible = true
			d.Message = "Seus créditos estão acabando."
		}
		return d
	}

	message := opts.Message
	if message == "" {
		message = defaultBlockMessage
	}
	return Decision{
		Required:    required,
		Remaining:   remaining,
		Prompt:      true,
		Dismissible: remaining > 0,
		Message:     message,
	}
}

// IsLow reports whether a remaining balance is at or below the warning threshold.
func (g *Guard) IsLow(remaining int64) bool {
	return remaining != model.UnlimitedCredits && remaining <= g.lowCreditThreshold
}
