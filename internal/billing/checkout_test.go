package billing

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daconrilcy/horoscope-front-sub002/internal/types"
)

// fakeCheckoutAPI records checkout calls and serves a scripted response.
type fakeCheckoutAPI struct {
	mu     sync.Mutex
	calls  []string // idempotency keys, in order
	url    string
	err    error
	gate   chan struct{} // when non-nil, calls block until closed
	opened chan struct{} // signaled once a call has started
}

func (f *fakeCheckoutAPI) CreateCheckout(ctx context.Context, plan types.PlanTier, idempotencyKey string) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, idempotencyKey)
	gate, opened := f.gate, f.opened
	f.mu.Unlock()

	if opened != nil {
		opened <- struct{}{}
	}
	if gate != nil {
		<-gate
	}
	return f.url, f.err
}

func (f *fakeCheckoutAPI) callKeys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type fakeNavigator struct {
	mu   sync.Mutex
	urls []string
}

func (f *fakeNavigator) Navigate(url string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.urls = append(f.urls, url)
}

type fakeNotifier struct {
	mu     sync.Mutex
	toasts []string
}

func (f *fakeNotifier) Toast(message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.toasts = append(f.toasts, message)
}

func (f *fakeNotifier) all() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.toasts...)
}

func TestCoordinator_SuccessNavigatesToCheckoutURL(t *testing.T) {
	api := &fakeCheckoutAPI{url: "https://pay.example/s/cs_1"}
	nav := &fakeNavigator{}
	notifier := &fakeNotifier{}
	c := NewCoordinator(api, nav, notifier, nil)

	require.NoError(t, c.Start(context.Background(), types.PlanPro))

	assert.Equal(t, []string{"https://pay.example/s/cs_1"}, nav.urls)
	assert.Empty(t, notifier.all())
	assert.False(t, c.Pending())
	assert.NoError(t, c.LastError())
}

func TestCoordinator_RejectsNonPurchasableTier(t *testing.T) {
	api := &fakeCheckoutAPI{}
	c := NewCoordinator(api, &fakeNavigator{}, &fakeNotifier{}, nil)

	for _, plan := range []types.PlanTier{types.PlanFree, "", "enterprise"} {
		err := c.Start(context.Background(), plan)
		require.Error(t, err)
		ae, ok := types.AsAppError(err)
		require.True(t, ok)
		assert.Equal(t, types.ErrCodeValidationPlan, ae.Code)
	}
	assert.Empty(t, api.callKeys(), "validation failures never reach the network")
}

func TestCoordinator_DoubleSubmitSendsOneRequest(t *testing.T) {
	gate := make(chan struct{})
	api := &fakeCheckoutAPI{
		url:    "https://pay.example/s/cs_1",
		gate:   gate,
		opened: make(chan struct{}, 1),
	}
	nav := &fakeNavigator{}
	c := NewCoordinator(api, nav, &fakeNotifier{}, nil)

	done := make(chan error, 1)
	go func() { done <- c.Start(context.Background(), types.PlanPro) }()

	// Wait until the first attempt is inside the network call, then click again.
	<-api.opened
	assert.True(t, c.Pending())
	require.NoError(t, c.Start(context.Background(), types.PlanPro), "second click resolves immediately")

	close(gate)
	require.NoError(t, <-done)

	assert.Len(t, api.callKeys(), 1, "exactly one request, exactly one token")
	assert.Len(t, nav.urls, 1)
	assert.False(t, c.Pending())
}

func TestCoordinator_FreshTokenPerAttempt(t *testing.T) {
	api := &fakeCheckoutAPI{err: types.NewAppError(types.ErrCodeTransportTimeout, "timed out", nil)}
	c := NewCoordinator(api, &fakeNavigator{}, &fakeNotifier{}, nil)

	require.Error(t, c.Start(context.Background(), types.PlanPlus))
	require.Error(t, c.Start(context.Background(), types.PlanPlus))

	keys := api.callKeys()
	require.Len(t, keys, 2)
	assert.NotEqual(t, keys[0], keys[1], "a retried attempt is a new purchase intent")
	assert.NotEmpty(t, keys[0])
}

func TestCoordinator_TokenSourceOverride(t *testing.T) {
	api := &fakeCheckoutAPI{url: "https://pay.example/s/cs_1"}
	n := 0
	c := NewCoordinator(api, &fakeNavigator{}, &fakeNotifier{}, nil,
		WithTokenSource(func() string { n++; return fmt.Sprintf("tok_%d", n) }))

	require.NoError(t, c.Start(context.Background(), types.PlanPro))
	assert.Equal(t, []string{"tok_1"}, api.callKeys())
}

func TestCoordinator_FailureFeedback(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantToast string
	}{
		{
			"conflict already subscribed",
			types.NewServerError(types.ErrCodeConflictSubscribed, "already subscribed", 409, "req_1"),
			MsgAlreadySubscribed,
		},
		{
			"server message passthrough",
			types.NewServerError(types.ErrCodeUpstreamAPI, "plan not available in your region", 422, "req_2"),
			"plan not available in your region",
		},
		{
			"timeout",
			types.NewAppError(types.ErrCodeTransportTimeout, "timed out", nil),
			MsgServiceUnavailable,
		},
		{
			"offline",
			types.NewAppError(types.ErrCodeTransportOffline, "unreachable", nil),
			MsgServiceUnavailable,
		},
		{
			"other transport failure",
			types.NewAppError(types.ErrCodeTransportOther, "broken pipe", nil),
			MsgNetworkError,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeCheckoutAPI{err: tt.err}
			notifier := &fakeNotifier{}
			nav := &fakeNavigator{}
			c := NewCoordinator(api, nav, notifier, nil)

			err := c.Start(context.Background(), types.PlanPro)
			require.Error(t, err)
			assert.Equal(t, []string{tt.wantToast}, notifier.all())
			assert.Empty(t, nav.urls)
			assert.Equal(t, err, c.LastError())
		})
	}
}

func TestCoordinator_SessionExpiredIsSilent(t *testing.T) {
	api := &fakeCheckoutAPI{err: types.NewServerError(types.ErrCodeAuthSessionExpired, "session expired", 401, "req_1")}
	notifier := &fakeNotifier{}
	c := NewCoordinator(api, &fakeNavigator{}, notifier, nil)

	err := c.Start(context.Background(), types.PlanPro)
	require.Error(t, err, "the error still surfaces to the caller")
	assert.Empty(t, notifier.all(), "the global session handler owns this feedback")
}
