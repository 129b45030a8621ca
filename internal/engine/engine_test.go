package engine

import (
	"context"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daconrilcy/horoscope-front-sub002/internal/config"
	"github.com/daconrilcy/horoscope-front-sub002/internal/payments"
	"github.com/daconrilcy/horoscope-front-sub002/internal/paywall"
	"github.com/daconrilcy/horoscope-front-sub002/internal/sandbox"
	"github.com/daconrilcy/horoscope-front-sub002/internal/types"
)

type recordingNavigator struct {
	mu   sync.Mutex
	urls []string
}

func (r *recordingNavigator) Navigate(url string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.urls = append(r.urls, url)
}

func (r *recordingNavigator) last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.urls) == 0 {
		return ""
	}
	return r.urls[len(r.urls)-1]
}

type recordingNotifier struct {
	mu     sync.Mutex
	toasts []string
}

func (r *recordingNotifier) Toast(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.toasts = append(r.toasts, message)
}

func newTestEngine(t *testing.T, box *sandbox.Server) (*Engine, *recordingNavigator) {
	t.Helper()
	ts := httptest.NewServer(box.Router())
	t.Cleanup(ts.Close)

	nav := &recordingNavigator{}
	eng := New(config.EngineConfig{
		APIBaseURL:         ts.URL,
		HTTPTimeout:        2 * time.Second,
		DecisionStaleAfter: 5 * time.Second,
		DecisionGCAfter:    time.Minute,
	}, Options{
		Navigator: nav,
		Notifier:  &recordingNotifier{},
	})
	return eng, nav
}

// TestEngine_FullPurchaseFlow walks the whole upgrade journey against the
// sandbox: a free session hits a plan block, buys Pro, returns from the
// payment page, and sees the feature unlocked without restarting anything.
func TestEngine_FullPurchaseFlow(t *testing.T) {
	box := sandbox.NewServer(sandbox.Config{Plan: types.PlanFree})
	eng, nav := newTestEngine(t, box)
	ctx := context.Background()

	// Blocked on the free tier.
	eng.Evaluator.Evaluate(types.FeaturePDFExport)
	require.NoError(t, eng.Evaluator.Wait(ctx, types.FeaturePDFExport))
	ev := eng.Evaluator.Evaluate(types.FeaturePDFExport)
	require.False(t, ev.Allowed())
	assert.Equal(t, paywall.BranchBlockedPlan, paywall.Project(ev).Branch)

	tier, _ := eng.Evaluator.DerivePlan()
	require.NoError(t, eng.Evaluator.WaitAll(ctx, nil))

	// Buy Pro; the coordinator navigates to the external payment page.
	require.NoError(t, eng.Checkout.Start(ctx, types.PlanPro))
	checkoutURL := nav.last()
	require.NotEmpty(t, checkoutURL)

	// The payment page completes out of band.
	sessionID := checkoutURL[len("https://pay.horoscope.example/session/"):]
	require.True(t, box.MarkPaid(sessionID))

	// Returning from the redirect verifies the session and flushes caches.
	res, err := eng.Verifier.VerifySession(ctx, sessionID)
	require.NoError(t, err)
	require.Equal(t, types.SessionPaid, res.Status)

	// The previously blocked feature resolves allowed on the next read.
	eng.Evaluator.Evaluate(types.FeaturePDFExport)
	require.NoError(t, eng.Evaluator.Wait(ctx, types.FeaturePDFExport))
	ev = eng.Evaluator.Evaluate(types.FeaturePDFExport)
	assert.True(t, ev.Allowed())

	// And the derived tier moves from free to pro.
	assert.Equal(t, types.PlanFree, tier)
	eng.Evaluator.DerivePlan()
	require.NoError(t, eng.Evaluator.WaitAll(ctx, []types.FeatureKey{
		types.FeaturePlanProSentinel,
		types.FeaturePlanPlusSentinel,
	}))
	tier, loading := eng.Evaluator.DerivePlan()
	assert.False(t, loading)
	assert.Equal(t, types.PlanPro, tier)
}

func TestEngine_QuotaBlockFeedsCountdown(t *testing.T) {
	box := sandbox.NewServer(sandbox.Config{
		Plan:       types.PlanPro,
		RateLimits: map[types.FeatureKey]int{types.FeatureChatMessagesDaily: 120},
	})
	eng, _ := newTestEngine(t, box)
	ctx := context.Background()

	eng.Evaluator.Evaluate(types.FeatureChatMessagesDaily)
	require.NoError(t, eng.Evaluator.Wait(ctx, types.FeatureChatMessagesDaily))

	ev := eng.Evaluator.Evaluate(types.FeatureChatMessagesDaily)
	view := paywall.Project(ev)
	require.Equal(t, paywall.BranchBlockedRate, view.Branch)
	require.True(t, view.HasRetryAfter)

	seed, ok := paywall.AggregateRetryAfter(ev)
	require.True(t, ok)
	assert.Equal(t, 120, seed)
}

func TestEngine_TerminalPaymentThroughMachine(t *testing.T) {
	box := sandbox.NewServer(sandbox.Config{})
	eng, _ := newTestEngine(t, box)
	ctx := context.Background()

	require.NoError(t, eng.Payments.Connect(ctx))
	require.NoError(t, eng.Payments.CreateIntent(ctx, 1999, "eur"))
	require.NoError(t, eng.Payments.Process(ctx, "pm_card_visa"))

	assert.Equal(t, payments.PhaseCaptured, eng.Payments.State().Phase())

	require.NoError(t, eng.Payments.Refund(ctx, 0))
	refunded, ok := eng.Payments.State().(payments.Refunded)
	require.True(t, ok)
	assert.Equal(t, int64(1999), refunded.AmountRefundedCents)
}
