// Package engine assembles the gating components into one facade: a shared
// decision store, the feature evaluator, the checkout coordinator, the
// post-redirect verifier, and the terminal payment machine, all wired to a
// single transport client.
package engine

import (
	"log/slog"

	"github.com/daconrilcy/horoscope-front-sub002/internal/billing"
	"github.com/daconrilcy/horoscope-front-sub002/internal/config"
	"github.com/daconrilcy/horoscope-front-sub002/internal/decision"
	"github.com/daconrilcy/horoscope-front-sub002/internal/payments"
	"github.com/daconrilcy/horoscope-front-sub002/internal/paywall"
	"github.com/daconrilcy/horoscope-front-sub002/internal/transport"
	"github.com/daconrilcy/horoscope-front-sub002/internal/types"
)

// Options carries the per-session dependencies the config cannot provide.
type Options struct {
	// AuthToken is the session bearer token. Empty against the sandbox.
	AuthToken string
	// Navigator performs full browser navigation to external pages.
	Navigator billing.Navigator
	// Notifier surfaces user-facing feedback for checkout failures.
	Notifier billing.Notifier
	// Clock overrides the cache clock, for tests. Nil means the real clock.
	Clock types.Clock
	// Logger defaults to slog.Default.
	Logger *slog.Logger
}

// Engine is the wired component graph for one session.
type Engine struct {
	Client    *transport.Client
	Store     *decision.Store[types.Decision]
	Evaluator *paywall.Evaluator
	Checkout  *billing.Coordinator
	Verifier  *billing.Verifier
	Payments  *payments.Machine
	Catalog   billing.PlanCatalog
}

// New builds an Engine from configuration. All evaluators share one decision
// store so a post-purchase invalidation reaches every cached decision.
func New(cfg config.EngineConfig, opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	client := transport.NewClient(transport.ClientConfig{
		BaseURL:   cfg.APIBaseURL,
		AuthToken: opts.AuthToken,
		Logger:    logger,
		Timeout:   cfg.HTTPTimeout,
	})

	store := decision.NewStore[types.Decision](opts.Clock)
	evaluator := paywall.NewEvaluator(store, client, paywall.Config{
		StaleAfter: cfg.DecisionStaleAfter,
		GCAfter:    cfg.DecisionGCAfter,
	})

	return &Engine{
		Client:    client,
		Store:     store,
		Evaluator: evaluator,
		Checkout:  billing.NewCoordinator(client, opts.Navigator, opts.Notifier, logger),
		Verifier:  billing.NewVerifier(client, store, logger),
		Payments:  payments.NewMachine(client, logger),
		Catalog:   billing.NewStaticPlanCatalog(),
	}
}
