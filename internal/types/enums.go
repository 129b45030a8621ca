package types

// FeatureKey identifies a gateable capability. Keys are opaque to the engine;
// the server decides what they mean.
type FeatureKey string

// Well-known feature keys used by the product surfaces.
const (
	FeatureChatMessagesDaily FeatureKey = "chat.messages/day"
	FeatureNatalChartCreate  FeatureKey = "natal_chart.create"
	FeaturePDFExport         FeatureKey = "documents.pdf_export"

	// Sentinel keys probe entitlement only; they are never tied to real UI
	// functionality. DerivePlan evaluates both to infer the session's tier.
	FeaturePlanProSentinel  FeatureKey = "plan.pro"
	FeaturePlanPlusSentinel FeatureKey = "plan.plus"
)

// PlanTier identifies the subscription plan for a session.
type PlanTier string

const (
	PlanFree PlanTier = "free"
	PlanPlus PlanTier = "plus"
	PlanPro  PlanTier = "pro"
)

// PurchasableTiers lists the tiers a checkout attempt may target.
// Free is the absence of a subscription, not something you can buy.
var PurchasableTiers = []PlanTier{PlanPlus, PlanPro}

// ValidPurchaseTier reports whether t is a tier the checkout flow accepts.
func ValidPurchaseTier(t PlanTier) bool {
	for _, v := range PurchasableTiers {
		if t == v {
			return true
		}
	}
	return false
}

// BlockReason classifies why a feature is blocked for the session.
type BlockReason string

const (
	ReasonPlan BlockReason = "plan"
	ReasonRate BlockReason = "rate"
)

// SessionStatus is the post-redirect verification verdict for a checkout session.
type SessionStatus string

const (
	SessionPaid    SessionStatus = "paid"
	SessionUnpaid  SessionStatus = "unpaid"
	SessionExpired SessionStatus = "expired"
)
