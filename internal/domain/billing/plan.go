package billing

import (
	"sort"

	"github.com/elevare/server/internal/model"
)

// PlanSpec describes the allowance and price of a plan tier.
type PlanSpec struct {
	Type           model.PlanType
	Name           string
	MonthlyCredits int64
	StripePriceID  string
	Features       []string
	DisplayOrder   int
}

// IsUnlimited returns true if the plan has no credit ceiling.
func (p PlanSpec) IsUnlimited() bool {
	return p.Type == model.PlanTypeProfissional || p.MonthlyCredits == model.UnlimitedCredits
}

// IsPaid returns true if the plan is sold through checkout.
func (p PlanSpec) IsPaid() bool {
	return p.Type != model.PlanTypeFree
}

// Catalogue is the set of plan tiers offered.
type Catalogue struct {
	plans map[model.PlanType]PlanSpec
}

// NewCatalogue builds a catalogue from plan specs. Unknown tiers are ignored.
func NewCatalogue(specs ...PlanSpec) *Catalogue {
	c := &Catalogue{plans: make(map[model.PlanType]PlanSpec, len(specs))}
	for _, spec := range specs {
		if !spec.Type.IsValid() {
			continue
		}
		if spec.Type == model.PlanTypeProfissional {
			spec.MonthlyCredits = model.UnlimitedCredits
		}
		c.plans[spec.Type] = spec
	}
	return c
}

// DefaultCatalogue returns the built-in tiers.
func DefaultCatalogue() *Catalogue {
	return NewCatalogue(
		PlanSpec{
			Type:           model.PlanTypeFree,
			Name:           "Gratuito",
			MonthlyCredits: 3,
			Features:       []string{"3 créditos por mês", "Ebooks e posts"},
			DisplayOrder:   0,
		},
		PlanSpec{
			Type:           model.PlanTypeEssencial,
			Name:           "Essencial",
			MonthlyCredits: 50,
			Features:       []string{"50 créditos por mês", "Todas as ferramentas de conteúdo", "Vídeos com IA"},
			DisplayOrder:   1,
		},
		PlanSpec{
			Type:           model.PlanTypeProfissional,
			Name:           "Profissional",
			MonthlyCredits: model.UnlimitedCredits,
			Features:       []string{"Créditos ilimitados", "Todas as ferramentas", "Suporte prioritário"},
			DisplayOrder:   2,
		},
	)
}

// WithPriceIDs returns a copy of the catalogue selling tiers under the given
// payment gateway prices. Empty IDs leave a tier unsold.
func (c *Catalogue) WithPriceIDs(ids map[model.PlanType]string) *Catalogue {
	out := &Catalogue{plans: make(map[model.PlanType]PlanSpec, len(c.plans))}
	for plan, spec := range c.plans {
		if id, ok := ids[plan]; ok {
			spec.StripePriceID = id
		}
		out.plans[plan] = spec
	}
	return out
}

// Get returns the spec of a plan tier.
func (c *Catalogue) Get(plan model.PlanType) (PlanSpec, bool) {
	spec, ok := c.plans[plan]
	return spec, ok
}

// MonthlyCredits returns the allowance of a tier, 0 if unknown.
func (c *Catalogue) MonthlyCredits(plan model.PlanType) int64 {
	return c.plans[plan].MonthlyCredits
}

// ByPriceID finds the tier sold under a payment gateway price.
func (c *Catalogue) ByPriceID(priceID string) (PlanSpec, bool) {
	if priceID == "" {
		return PlanSpec{}, false
	}
	for _, spec := range c.plans {
		if spec.StripePriceID == priceID {
			return spec, true
		}
	}
	return PlanSpec{}, false
}

// List returns every tier in display order.
func (c *Catalogue) List() []PlanSpec {
	out := make([]PlanSpec, 0, len(c.plans))
	for _, spec := range c.plans {
		out = append(out, spec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DisplayOrder < out[j].DisplayOrder })
	return out
}

func (p PlanSpec) toModel() *model.Plan {
	return &model.Plan{
		ID:             p.Type,
		Name:           p.Name,
		MonthlyCredits: p.MonthlyCredits,
		StripePriceID:  p.StripePriceID,
		Features:       p.Features,
		DisplayOrder:   p.DisplayOrder,
	}
}
