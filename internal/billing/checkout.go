package billing

import (
	"context"
	"log/slog"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/daconrilcy/horoscope-front-sub002/internal/types"
)

// CheckoutAPI is the slice of the transport client the coordinator needs.
type CheckoutAPI interface {
	CreateCheckout(ctx context.Context, plan types.PlanTier, idempotencyKey string) (string, error)
}

// Navigator performs the full browser navigation to the external payment
// page. A client-side route change is not enough; the destination is outside
// the app.
type Navigator interface {
	Navigate(url string)
}

// Notifier shows user-facing feedback (a toast). The coordinator centralizes
// feedback for checkout failures; it never suppresses the error itself.
type Notifier interface {
	Toast(message string)
}

// User-facing checkout failure messages.
const (
	MsgAlreadySubscribed  = "You already have an active subscription. Manage it from your account page."
	MsgServiceUnavailable = "The service is temporarily unavailable. Please try again."
	MsgNetworkError       = "A network error occurred. Please check your connection and retry."
	MsgCheckoutFailed     = "We could not start your checkout. Please try again."
)

// Coordinator runs the idempotent checkout flow. Exactly one attempt can be
// in flight; each attempt carries exactly one fresh idempotency token, minted
// only once the user commits (never at render time) and discarded when the
// attempt resolves.
type Coordinator struct {
	api      CheckoutAPI
	nav      Navigator
	notifier Notifier
	validate *validator.Validate
	logger   *slog.Logger
	newToken func() string

	mu      sync.Mutex
	pending bool
	lastErr error
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithTokenSource overrides idempotency token generation, for tests.
func WithTokenSource(fn func() string) CoordinatorOption {
	return func(c *Coordinator) { c.newToken = fn }
}

// NewCoordinator creates a checkout coordinator.
func NewCoordinator(api CheckoutAPI, nav Navigator, notifier Notifier, logger *slog.Logger, opts ...CoordinatorOption) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Coordinator{
		api:      api,
		nav:      nav,
		notifier: notifier,
		validate: validator.New(),
		logger:   logger,
		newToken: uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Pending reports whether a checkout attempt is in flight. It returns to
// false only after the in-flight call resolves.
func (c *Coordinator) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

// LastError returns the error of the most recently resolved attempt.
func (c *Coordinator) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Start runs one checkout attempt for the given plan.
//
// A second call while an attempt is pending returns immediately with no side
// effects and mints no token: the guard is checked synchronously at the
// moment of invocation, so rapid double clicks cannot both pass it. The plan
// is validated before any network call. On success the browser is sent to the
// returned checkout URL. On failure the error is classified, user feedback is
// shown per class, and the error is returned so callers can also react.
func (c *Coordinator) Start(ctx context.Context, plan types.PlanTier) (err error) {
	c.mu.Lock()
	if c.pending {
		c.mu.Unlock()
		return nil
	}
	c.pending = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.pending = false
		c.lastErr = err
		c.mu.Unlock()
	}()

	if verr := c.validate.Var(string(plan), "required,oneof=plus pro"); verr != nil {
		return types.NewAppError(
			types.ErrCodeValidationPlan,
			"plan must be a purchasable tier",
			verr,
		)
	}

	token := c.newToken()
	url, err := c.api.CreateCheckout(ctx, plan, token)
	if err != nil {
		c.handleFailure(ctx, plan, err)
		return err
	}

	c.nav.Navigate(url)
	return nil
}

// handleFailure attaches user feedback per error class. 401 is deliberately
// silent here; the global session handler owns that flow.
func (c *Coordinator) handleFailure(ctx context.Context, plan types.PlanTier, err error) {
	ae, ok := types.AsAppError(err)
	if !ok {
		c.notifier.Toast(MsgCheckoutFailed)
		return
	}

	c.logger.WarnContext(ctx, "checkout attempt failed",
		"plan", plan,
		"code", ae.Code,
		"status", ae.Status,
		"request_id", ae.RequestID,
	)

	switch {
	case ae.Code == types.ErrCodeAuthSessionExpired:
		// No toast: surfaced by the global session-expired handler.
	case ae.Code == types.ErrCodeConflictSubscribed:
		c.notifier.Toast(MsgAlreadySubscribed)
	case types.IsServerClassified(err):
		if ae.Message != "" {
			c.notifier.Toast(ae.Message)
		} else {
			c.notifier.Toast(MsgCheckoutFailed)
		}
	case ae.Code == types.ErrCodeTransportTimeout || ae.Code == types.ErrCodeTransportOffline:
		c.notifier.Toast(MsgServiceUnavailable)
	case types.IsTransport(err):
		c.notifier.Toast(MsgNetworkError)
	default:
		c.notifier.Toast(MsgCheckoutFailed)
	}
}
