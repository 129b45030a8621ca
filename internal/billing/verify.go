package billing

import (
	"context"
	"log/slog"

	"github.com/daconrilcy/horoscope-front-sub002/internal/paywall"
	"github.com/daconrilcy/horoscope-front-sub002/internal/transport"
	"github.com/daconrilcy/horoscope-front-sub002/internal/types"
)

// VerifyAPI is the slice of the transport client the verifier needs.
type VerifyAPI interface {
	VerifySession(ctx context.Context, sessionID string) (transport.SessionVerification, error)
}

// Invalidator marks cached decisions for refetch. Satisfied by the decision
// store the evaluators share.
type Invalidator interface {
	InvalidateNamespace(ns string)
}

// Verifier resolves a checkout session after the browser returns from the
// external payment page.
type Verifier struct {
	api    VerifyAPI
	store  Invalidator
	logger *slog.Logger
}

// NewVerifier creates a session verifier over the shared decision store.
func NewVerifier(api VerifyAPI, store Invalidator, logger *slog.Logger) *Verifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Verifier{api: api, store: store, logger: logger}
}

// VerifySession fetches the session's payment status. A paid result
// invalidates every cached plan, paywall, and billing decision so subsequent
// reads reflect the new entitlement immediately.
func (v *Verifier) VerifySession(ctx context.Context, sessionID string) (transport.SessionVerification, error) {
	if sessionID == "" {
		return transport.SessionVerification{}, types.NewAppError(
			types.ErrCodeValidationSessionID, "session id must not be empty", nil)
	}

	res, err := v.api.VerifySession(ctx, sessionID)
	if err != nil {
		return transport.SessionVerification{}, err
	}

	if res.Status == types.SessionPaid {
		v.store.InvalidateNamespace(paywall.NamespacePaywall)
		v.store.InvalidateNamespace(paywall.NamespacePlan)
		v.store.InvalidateNamespace(paywall.NamespaceBilling)
		v.logger.InfoContext(ctx, "checkout session paid; entitlement caches invalidated",
			"session_id", sessionID,
			"plan", res.Plan,
		)
	}

	return res, nil
}
