// Package billing coordinates the purchase flow that changes entitlement:
// the plan catalog, the idempotent checkout coordinator, and post-redirect
// session verification.
package billing

import "github.com/daconrilcy/horoscope-front-sub002/internal/types"

// PlanInfo describes one subscription plan for checkout surfaces.
type PlanInfo struct {
	Tier              types.PlanTier
	DisplayName       string
	MonthlyPriceCents int64
}

// PlanCatalog exposes the purchasable plans.
// The catalog is display metadata only; entitlement itself always comes from
// server decisions, never from this table.
type PlanCatalog interface {
	// Get returns the plan info for the given tier.
	Get(tier types.PlanTier) (PlanInfo, bool)
	// Purchasable returns the plans a checkout attempt may target.
	Purchasable() []PlanInfo
}

// staticPlanCatalog is a compile-time catalog backed by an in-memory map.
type staticPlanCatalog struct {
	plans map[types.PlanTier]PlanInfo
	order []types.PlanTier
}

var planDefaults = map[types.PlanTier]PlanInfo{
	types.PlanFree: {
		Tier:        types.PlanFree,
		DisplayName: "Free",
	},
	types.PlanPlus: {
		Tier:              types.PlanPlus,
		DisplayName:       "Plus",
		MonthlyPriceCents: 999,
	},
	types.PlanPro: {
		Tier:              types.PlanPro,
		DisplayName:       "Pro",
		MonthlyPriceCents: 1999,
	},
}

// NewStaticPlanCatalog returns the standard production catalog.
func NewStaticPlanCatalog() PlanCatalog {
	m := make(map[types.PlanTier]PlanInfo, len(planDefaults))
	for k, v := range planDefaults {
		m[k] = v
	}
	return &staticPlanCatalog{
		plans: m,
		order: []types.PlanTier{types.PlanPlus, types.PlanPro},
	}
}

func (c *staticPlanCatalog) Get(tier types.PlanTier) (PlanInfo, bool) {
	info, ok := c.plans[tier]
	return info, ok
}

func (c *staticPlanCatalog) Purchasable() []PlanInfo {
	out := make([]PlanInfo, 0, len(c.order))
	for _, tier := range c.order {
		out = append(out, c.plans[tier])
	}
	return out
}
