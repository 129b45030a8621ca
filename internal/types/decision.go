package types

import "time"

// Decision is the authoritative server verdict for one (feature, session) pair
// at fetch time. The zero value is a blocked decision with no reason, which is
// the safest possible reading; real values are built through the constructors
// below so that illegal shapes (an allowed decision carrying a block reason, a
// retry-after on a plan block) cannot be represented.
type Decision struct {
	allowed       bool
	reason        BlockReason
	upgradeURL    string
	retryAfterSec int
	hasRetryAfter bool
}

// Allow returns the decision for a feature that is currently usable.
func Allow() Decision {
	return Decision{allowed: true}
}

// BlockByPlan returns a decision blocked because the session's plan does not
// include the feature. upgradeURL may be empty when the server offers none.
func BlockByPlan(upgradeURL string) Decision {
	return Decision{reason: ReasonPlan, upgradeURL: upgradeURL}
}

// BlockByRate returns a decision blocked because the session exhausted its
// quota. retryAfterSec is nil when the server does not know the wait time.
func BlockByRate(upgradeURL string, retryAfterSec *int) Decision {
	d := Decision{reason: ReasonRate, upgradeURL: upgradeURL}
	if retryAfterSec != nil {
		d.retryAfterSec = *retryAfterSec
		d.hasRetryAfter = true
	}
	return d
}

// Block returns a blocked decision with a reason the engine does not
// recognize. The gate renders these as a generic upgrade notice.
func Block(reason BlockReason, upgradeURL string) Decision {
	return Decision{reason: reason, upgradeURL: upgradeURL}
}

// Allowed reports whether the feature is currently usable.
func (d Decision) Allowed() bool { return d.allowed }

// Reason returns the block reason. Empty for allowed decisions.
func (d Decision) Reason() BlockReason {
	if d.allowed {
		return ""
	}
	return d.reason
}

// UpgradeURL returns the upgrade destination the server attached, if any.
func (d Decision) UpgradeURL() string { return d.upgradeURL }

// RetryAfter returns the server-provided wait before the quota resets.
// The second return is false when the wait is unknown or the decision is not
// a rate block; callers must not interpret the duration in that case.
func (d Decision) RetryAfter() (time.Duration, bool) {
	if d.allowed || d.reason != ReasonRate || !d.hasRetryAfter {
		return 0, false
	}
	return time.Duration(d.retryAfterSec) * time.Second, true
}

// RetryAfterSeconds returns the raw retry-after seed for countdown widgets.
func (d Decision) RetryAfterSeconds() (int, bool) {
	if d.allowed || d.reason != ReasonRate || !d.hasRetryAfter {
		return 0, false
	}
	return d.retryAfterSec, true
}
