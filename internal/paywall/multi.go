package paywall

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/daconrilcy/horoscope-front-sub002/internal/types"
)

// Batch holds the per-key evaluations of one fan-out call.
// Results[i] corresponds to the i-th requested key.
type Batch struct {
	Keys    []types.FeatureKey
	Results []Evaluation
}

// LoadingAny reports whether any element is still loading.
func (b Batch) LoadingAny() bool {
	for _, r := range b.Results {
		if r.Loading {
			return true
		}
	}
	return false
}

// ErrorAny reports whether any element holds an error.
func (b Batch) ErrorAny() bool {
	for _, r := range b.Results {
		if r.Err != nil {
			return true
		}
	}
	return false
}

// EvaluateAll evaluates every key in the same call. All fetches are initiated
// before any completes, so latency is bounded by the slowest single decision;
// a key whose decision is already cached is available immediately even while
// others are still loading. Empty input yields an empty batch with both
// aggregates false.
func (ev *Evaluator) EvaluateAll(keys []types.FeatureKey) Batch {
	results := make([]Evaluation, len(keys))
	for i, key := range keys {
		results[i] = ev.Evaluate(key)
	}
	return Batch{Keys: keys, Results: results}
}

// WaitAll blocks until every in-flight fetch among keys has completed or ctx
// is done. It is a convenience for callers that want resolved results rather
// than the snapshot semantics of EvaluateAll.
func (ev *Evaluator) WaitAll(ctx context.Context, keys []types.FeatureKey) error {
	g, gCtx := errgroup.WithContext(ctx)
	for _, key := range keys {
		key := key
		g.Go(func() error {
			return ev.Wait(gCtx, key)
		})
	}
	return g.Wait()
}
