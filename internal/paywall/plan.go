package paywall

import "github.com/daconrilcy/horoscope-front-sub002/internal/types"

// planSentinels are the two probe keys the tier heuristic evaluates, in
// priority order.
var planSentinels = []types.FeatureKey{
	types.FeaturePlanProSentinel,
	types.FeaturePlanPlusSentinel,
}

// DerivePlan infers the session's subscription tier from the two sentinel
// probes. It is a heuristic, not an authoritative plan record: the result is
// defined entirely by whether the probes are currently allowed, so it inherits
// the cache's staleness and error behavior and is never cached independently.
// The second return mirrors the batch's loading aggregate.
func (ev *Evaluator) DerivePlan() (types.PlanTier, bool) {
	batch := ev.EvaluateAll(planSentinels)
	return DerivePlanFrom(batch.Results[0], batch.Results[1]), batch.LoadingAny()
}

// DerivePlanFrom is the pure priority rule: pro wins over plus, anything else
// is free. Loading and errored probes count as not allowed.
func DerivePlanFrom(pro, plus Evaluation) types.PlanTier {
	switch {
	case pro.Allowed():
		return types.PlanPro
	case plus.Allowed():
		return types.PlanPlus
	default:
		return types.PlanFree
	}
}
