package paywall

import (
	"fmt"

	"github.com/daconrilcy/horoscope-front-sub002/internal/types"
)

// Branch identifies which of the gate's mutually exclusive states applies.
type Branch string

const (
	BranchLoading        Branch = "loading"
	BranchAllowed        Branch = "allowed"
	BranchBlockedPlan    Branch = "blocked-plan"
	BranchBlockedRate    Branch = "blocked-rate"
	BranchBlockedUnknown Branch = "blocked-unknown"
)

// GateView is the pure projection of one Evaluation onto a gate branch.
type GateView struct {
	Branch            Branch
	UpgradeURL        string
	RetryAfterSeconds int
	HasRetryAfter     bool
}

// Project maps an Evaluation to exactly one branch. There is no internal
// state: feeding the same Evaluation always yields the same view, and callers
// re-project on every render.
func Project(ev Evaluation) GateView {
	switch {
	case ev.Loading:
		return GateView{Branch: BranchLoading}
	case ev.Allowed():
		return GateView{Branch: BranchAllowed}
	case ev.Reason() == types.ReasonPlan:
		return GateView{Branch: BranchBlockedPlan, UpgradeURL: ev.UpgradeURL()}
	case ev.Reason() == types.ReasonRate:
		v := GateView{Branch: BranchBlockedRate, UpgradeURL: ev.UpgradeURL()}
		if sec, ok := ev.RetryAfterSeconds(); ok {
			v.RetryAfterSeconds = sec
			v.HasRetryAfter = true
		}
		return v
	default:
		// Not allowed with an absent or unrecognized reason, including error
		// states: fail closed behind a generic notice.
		return GateView{Branch: BranchBlockedUnknown, UpgradeURL: ev.UpgradeURL()}
	}
}

// Gate renders one of five nodes for a protected surface. It never navigates:
// upgrade clicks are delegated to OnUpgrade so the caller owns navigation.
type Gate struct {
	// Fallback is shown while loading. Empty renders nothing.
	Fallback string
	// Children is the protected content shown when allowed.
	Children string
	// OnUpgrade receives the upgrade URL when the user acts on a blocked node.
	OnUpgrade func(upgradeURL string)
}

// Rendered is the gate's output for one evaluation.
type Rendered struct {
	View    GateView
	Content string
}

// Render picks exactly one node for the evaluation.
func (g Gate) Render(ev Evaluation) Rendered {
	view := Project(ev)
	switch view.Branch {
	case BranchLoading:
		return Rendered{View: view, Content: g.Fallback}
	case BranchAllowed:
		return Rendered{View: view, Content: g.Children}
	case BranchBlockedPlan:
		return Rendered{View: view, Content: upgradeBanner(view.UpgradeURL)}
	case BranchBlockedRate:
		return Rendered{View: view, Content: quotaMessage(view)}
	default:
		return Rendered{View: view, Content: genericBlockNotice}
	}
}

// Upgrade forwards the rendered view's upgrade URL to the caller's callback.
// No-op when the gate has no callback or the branch carries no upgrade action.
func (g Gate) Upgrade(r Rendered) {
	if g.OnUpgrade == nil {
		return
	}
	switch r.View.Branch {
	case BranchBlockedPlan, BranchBlockedRate, BranchBlockedUnknown:
		g.OnUpgrade(r.View.UpgradeURL)
	}
}

const genericBlockNotice = "This feature requires an upgrade."

func upgradeBanner(upgradeURL string) string {
	if upgradeURL == "" {
		return genericBlockNotice
	}
	return fmt.Sprintf("Upgrade your plan to use this feature: %s", upgradeURL)
}

func quotaMessage(view GateView) string {
	if !view.HasRetryAfter {
		// Unknown wait time: static blocked message, no countdown.
		return "Daily quota reached. Try again later or upgrade."
	}
	return fmt.Sprintf("Daily quota reached. Available again in %ds, or upgrade now.", view.RetryAfterSeconds)
}
