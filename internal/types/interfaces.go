// Package types defines the shared domain vocabulary of the gating engine:
// feature keys, decisions, plan tiers, the error taxonomy, and the small
// abstractions (clock, context plumbing) every other package builds on.
package types

import "time"

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock using the real system time (always UTC).
type RealClock struct{}

// Now returns the current UTC time.
func (RealClock) Now() time.Time { return time.Now().UTC() }
