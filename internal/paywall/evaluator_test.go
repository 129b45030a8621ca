package paywall

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daconrilcy/horoscope-front-sub002/internal/decision"
	"github.com/daconrilcy/horoscope-front-sub002/internal/types"
)

// fakeDecisionAPI serves scripted decisions and counts calls per key.
type fakeDecisionAPI struct {
	mu        sync.Mutex
	decisions map[types.FeatureKey]types.Decision
	errs      map[types.FeatureKey]error
	calls     map[types.FeatureKey]int

	// blocked keys never respond until their channel is closed.
	blocked map[types.FeatureKey]chan struct{}
}

func newFakeDecisionAPI() *fakeDecisionAPI {
	return &fakeDecisionAPI{
		decisions: make(map[types.FeatureKey]types.Decision),
		errs:      make(map[types.FeatureKey]error),
		calls:     make(map[types.FeatureKey]int),
		blocked:   make(map[types.FeatureKey]chan struct{}),
	}
}

func (f *fakeDecisionAPI) GetDecision(ctx context.Context, key types.FeatureKey) (types.Decision, error) {
	f.mu.Lock()
	f.calls[key]++
	gate := f.blocked[key]
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs[key]; err != nil {
		return types.Decision{}, err
	}
	return f.decisions[key], nil
}

func (f *fakeDecisionAPI) callCount(key types.FeatureKey) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[key]
}

func newTestEvaluator(api DecisionAPI) *Evaluator {
	store := decision.NewStore[types.Decision](nil)
	return NewEvaluator(store, api, Config{})
}

func TestEvaluator_LoadingThenResolved(t *testing.T) {
	api := newFakeDecisionAPI()
	api.decisions[types.FeatureChatMessagesDaily] = types.Allow()
	ev := newTestEvaluator(api)

	first := ev.Evaluate(types.FeatureChatMessagesDaily)
	assert.False(t, first.HasDecision)
	assert.False(t, first.Allowed(), "no access before a decision arrives")

	require.NoError(t, ev.Wait(context.Background(), types.FeatureChatMessagesDaily))

	resolved := ev.Evaluate(types.FeatureChatMessagesDaily)
	assert.True(t, resolved.HasDecision)
	assert.True(t, resolved.Allowed())
	assert.False(t, resolved.Loading)
}

func TestEvaluator_CachedDecisionServedWithoutRefetch(t *testing.T) {
	api := newFakeDecisionAPI()
	api.decisions[types.FeatureChatMessagesDaily] = types.Allow()
	ev := newTestEvaluator(api)

	ev.Evaluate(types.FeatureChatMessagesDaily)
	require.NoError(t, ev.Wait(context.Background(), types.FeatureChatMessagesDaily))

	for i := 0; i < 20; i++ {
		res := ev.Evaluate(types.FeatureChatMessagesDaily)
		assert.True(t, res.Allowed())
	}
	assert.Equal(t, 1, api.callCount(types.FeatureChatMessagesDaily))
}

func TestEvaluator_BlockedDecisionExposesReasonAndURL(t *testing.T) {
	api := newFakeDecisionAPI()
	api.decisions[types.FeaturePDFExport] = types.BlockByPlan("https://upgrade.example")
	ev := newTestEvaluator(api)

	ev.Evaluate(types.FeaturePDFExport)
	require.NoError(t, ev.Wait(context.Background(), types.FeaturePDFExport))

	res := ev.Evaluate(types.FeaturePDFExport)
	assert.False(t, res.Allowed())
	assert.Equal(t, types.ReasonPlan, res.Reason())
	assert.Equal(t, "https://upgrade.example", res.UpgradeURL())
}

func TestEvaluator_ErrorFailsClosed(t *testing.T) {
	api := newFakeDecisionAPI()
	api.errs[types.FeatureChatMessagesDaily] = types.NewServerError(types.ErrCodeUpstreamUnavailable, "down", 503, "")
	ev := newTestEvaluator(api)

	ev.Evaluate(types.FeatureChatMessagesDaily)
	require.NoError(t, ev.Wait(context.Background(), types.FeatureChatMessagesDaily))

	res := ev.Evaluate(types.FeatureChatMessagesDaily)
	assert.False(t, res.Allowed())
	assert.Error(t, res.Err)

	// Server-classified errors are never auto-retried by the cache; the
	// single call above must stand until the staleness window re-opens.
	assert.Equal(t, 1, api.callCount(types.FeatureChatMessagesDaily))
}

func TestEvaluator_SentinelKeysLiveInPlanNamespace(t *testing.T) {
	assert.Equal(t, NamespacePlan, namespaceFor(types.FeaturePlanProSentinel))
	assert.Equal(t, NamespacePlan, namespaceFor(types.FeaturePlanPlusSentinel))
	assert.Equal(t, NamespacePaywall, namespaceFor(types.FeatureChatMessagesDaily))
	assert.Equal(t, NamespacePaywall, namespaceFor(types.FeaturePDFExport))
}

func TestEvaluator_WaitHonorsContext(t *testing.T) {
	api := newFakeDecisionAPI()
	gate := make(chan struct{})
	defer close(gate)
	api.blocked[types.FeatureChatMessagesDaily] = gate
	ev := newTestEvaluator(api)

	ev.Evaluate(types.FeatureChatMessagesDaily)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, ev.Wait(ctx, types.FeatureChatMessagesDaily), context.DeadlineExceeded)
}
