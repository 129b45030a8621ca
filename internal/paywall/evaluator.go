// Package paywall decides, per session, whether a named feature is usable
// right now, why not if blocked, and how to recover. It is a pure consumer of
// server decisions: the server is the source of truth and the engine never
// grants access without a decision response.
package paywall

import (
	"context"
	"strings"
	"time"

	"github.com/daconrilcy/horoscope-front-sub002/internal/decision"
	"github.com/daconrilcy/horoscope-front-sub002/internal/transport"
	"github.com/daconrilcy/horoscope-front-sub002/internal/types"
)

// Cache namespaces. Plan sentinels live apart from ordinary feature decisions
// so billing can invalidate entitlement state wholesale after a purchase.
const (
	NamespacePaywall = "paywall"
	NamespacePlan    = "plan"
	NamespaceBilling = "billing"
)

// DecisionAPI is the slice of the transport client the evaluator needs.
type DecisionAPI interface {
	GetDecision(ctx context.Context, key types.FeatureKey) (types.Decision, error)
}

// Config tunes the evaluator's cache behavior.
type Config struct {
	// StaleAfter is the decision staleness window. Default 5s: short enough
	// that entitlement changes land quickly, long enough to absorb re-render
	// storms without refetching.
	StaleAfter time.Duration
	// GCAfter is the inactivity window before an entry is evicted. Default
	// 60s, bounding memory over long sessions.
	GCAfter time.Duration
	// Retry is the fetch retry predicate. Default transport.ReadRetry: one
	// retry for transport failures, none for server-classified errors.
	Retry decision.RetryPredicate
}

func (c Config) withDefaults() Config {
	if c.StaleAfter <= 0 {
		c.StaleAfter = 5 * time.Second
	}
	if c.GCAfter <= 0 {
		c.GCAfter = 60 * time.Second
	}
	if c.Retry == nil {
		c.Retry = transport.ReadRetry
	}
	return c
}

// Evaluation is the engine's view of one feature at one point in time.
// It is recomputed on every call; the gate and the plan heuristic are pure
// projections of it.
type Evaluation struct {
	Key         types.FeatureKey
	Decision    types.Decision
	HasDecision bool
	Loading     bool
	Err         error
}

// Allowed reports whether a successful allowed decision was observed.
// Loading, errored, and blocked states all report false.
func (e Evaluation) Allowed() bool {
	return e.HasDecision && e.Decision.Allowed()
}

// Reason returns the block reason, or empty while no decision is held.
func (e Evaluation) Reason() types.BlockReason {
	if !e.HasDecision {
		return ""
	}
	return e.Decision.Reason()
}

// UpgradeURL returns the upgrade destination from the decision, if any.
func (e Evaluation) UpgradeURL() string {
	if !e.HasDecision {
		return ""
	}
	return e.Decision.UpgradeURL()
}

// RetryAfter returns the rate-limit wait, present only for a rate block that
// carried one.
func (e Evaluation) RetryAfter() (time.Duration, bool) {
	if !e.HasDecision {
		return 0, false
	}
	return e.Decision.RetryAfter()
}

// RetryAfterSeconds returns the raw countdown seed, if present.
func (e Evaluation) RetryAfterSeconds() (int, bool) {
	if !e.HasDecision {
		return 0, false
	}
	return e.Decision.RetryAfterSeconds()
}

// Evaluator resolves feature decisions through the shared decision store.
type Evaluator struct {
	store *decision.Store[types.Decision]
	api   DecisionAPI
	cfg   Config
}

// NewEvaluator creates an evaluator over the given store and API client.
func NewEvaluator(store *decision.Store[types.Decision], api DecisionAPI, cfg Config) *Evaluator {
	return &Evaluator{store: store, api: api, cfg: cfg.withDefaults()}
}

// Evaluate returns the current evaluation for one feature key, triggering a
// background fetch when the cached decision is missing or stale. The call
// never blocks on the network.
func (ev *Evaluator) Evaluate(key types.FeatureKey) Evaluation {
	res := ev.store.Get(namespaceFor(key), string(key), ev.fetcher(key), decision.Options{
		StaleAfter: ev.cfg.StaleAfter,
		GCAfter:    ev.cfg.GCAfter,
		Retry:      ev.cfg.Retry,
	})
	return Evaluation{
		Key:         key,
		Decision:    res.Data,
		HasDecision: res.HasData,
		Loading:     res.Loading,
		Err:         res.Err,
	}
}

// Wait blocks until the in-flight fetch for key, if any, completes.
func (ev *Evaluator) Wait(ctx context.Context, key types.FeatureKey) error {
	return ev.store.Wait(ctx, namespaceFor(key), string(key))
}

func (ev *Evaluator) fetcher(key types.FeatureKey) decision.Fetcher[types.Decision] {
	return func(ctx context.Context) (types.Decision, error) {
		return ev.api.GetDecision(ctx, key)
	}
}

// namespaceFor routes sentinel probes to the plan namespace.
func namespaceFor(key types.FeatureKey) string {
	if strings.HasPrefix(string(key), "plan.") {
		return NamespacePlan
	}
	return NamespacePaywall
}
