// Package sandbox is an in-process implementation of every endpoint the
// engine consumes: feature decisions, checkout sessions, post-redirect
// verification, and the terminal payment simulator. It backs cmd/sandbox for
// local development and the integration-style tests, with deterministic hooks
// for plans, quota seeds, and decline scenarios.
package sandbox

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/daconrilcy/horoscope-front-sub002/internal/types"
)

// Config seeds the sandbox's deterministic behavior.
type Config struct {
	// Plan is the session's current tier. Upgraded when a checkout session
	// is marked paid.
	Plan types.PlanTier

	// UpgradeURL is attached to every blocked decision.
	UpgradeURL string

	// RateLimits maps a feature key to a retry_after seed; a feature listed
	// here is rate-blocked even when the plan would allow it. A negative seed
	// blocks without a known wait.
	RateLimits map[types.FeatureKey]int

	Logger *slog.Logger
}

// featureFloor is the minimum tier each known feature requires. Unknown keys
// require Pro, the most restrictive reading.
var featureFloor = map[types.FeatureKey]types.PlanTier{
	types.FeatureChatMessagesDaily: types.PlanFree,
	types.FeatureNatalChartCreate:  types.PlanPlus,
	types.FeaturePDFExport:         types.PlanPro,
	types.FeaturePlanPlusSentinel:  types.PlanPlus,
	types.FeaturePlanProSentinel:   types.PlanPro,
}

var tierRank = map[types.PlanTier]int{
	types.PlanFree: 0,
	types.PlanPlus: 1,
	types.PlanPro:  2,
}

type checkoutSession struct {
	ID     string
	Plan   types.PlanTier
	Status types.SessionStatus
	URL    string
}

// Server holds the sandbox's mutable state behind one mutex.
type Server struct {
	logger *slog.Logger

	mu          sync.Mutex
	plan        types.PlanTier
	upgradeURL  string
	rateLimits  map[types.FeatureKey]int
	byKey       map[string]*checkoutSession // idempotency key -> session
	byID        map[string]*checkoutSession
	connected   bool
	intents     map[string]*intent
}

// NewServer creates a sandbox with the given seed configuration.
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	plan := cfg.Plan
	if plan == "" {
		plan = types.PlanFree
	}
	upgradeURL := cfg.UpgradeURL
	if upgradeURL == "" {
		upgradeURL = "https://horoscope.example/upgrade"
	}
	rl := make(map[types.FeatureKey]int, len(cfg.RateLimits))
	for k, v := range cfg.RateLimits {
		rl[k] = v
	}
	return &Server{
		logger:     logger,
		plan:       plan,
		upgradeURL: upgradeURL,
		rateLimits: rl,
		byKey:      make(map[string]*checkoutSession),
		byID:       make(map[string]*checkoutSession),
		intents:    make(map[string]*intent),
	}
}

// Router mounts the sandbox API.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Post("/v1/decisions", s.handleDecision)
	r.Post("/v1/checkout/sessions", s.handleCreateCheckout)
	r.Get("/v1/checkout/sessions/{id}", s.handleVerifySession)
	r.Route("/v1/terminal", func(r chi.Router) {
		r.Post("/connect", s.handleConnect)
		r.Post("/intents", s.handleCreateIntent)
		r.Post("/intents/{id}/process", s.handleProcess)
		r.Post("/intents/{id}/capture", s.handleCapture)
		r.Post("/intents/{id}/cancel", s.handleCancel)
		r.Post("/intents/{id}/refund", s.handleRefund)
	})
	return r
}

// SetPlan replaces the session's tier, for tests.
func (s *Server) SetPlan(plan types.PlanTier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plan = plan
}

// SetRateLimit seeds or clears (seconds == 0) a rate block for a feature.
func (s *Server) SetRateLimit(key types.FeatureKey, seconds int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seconds == 0 {
		delete(s.rateLimits, key)
		return
	}
	s.rateLimits[key] = seconds
}

// MarkPaid flips a checkout session to paid and upgrades the session's tier,
// standing in for the external payment page completing.
func (s *Server) MarkPaid(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.byID[sessionID]
	if !ok {
		return false
	}
	sess.Status = types.SessionPaid
	s.plan = sess.Plan
	return true
}

// CheckoutCount reports how many distinct checkout sessions were created.
// Replayed idempotency keys do not increment it.
func (s *Server) CheckoutCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID)
}

// ---------------------------------------------------------------------------
// Decisions
// ---------------------------------------------------------------------------

func (s *Server) handleDecision(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FeatureKey types.FeatureKey `json:"feature_key"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.FeatureKey == "" {
		s.writeError(w, http.StatusBadRequest, "validation_invalid_feature_key", "feature_key is required")
		return
	}

	s.mu.Lock()
	plan := s.plan
	seed, rateBlocked := s.rateLimits[req.FeatureKey]
	upgradeURL := s.upgradeURL
	s.mu.Unlock()

	type decisionBody struct {
		Allowed    bool   `json:"allowed"`
		Reason     string `json:"reason,omitempty"`
		UpgradeURL string `json:"upgrade_url,omitempty"`
		RetryAfter *int   `json:"retry_after,omitempty"`
	}

	if rateBlocked {
		body := decisionBody{Reason: string(types.ReasonRate), UpgradeURL: upgradeURL}
		if seed > 0 {
			body.RetryAfter = &seed
		}
		// 429 is the expected encoding of "quota exhausted", not an error.
		s.writeJSON(w, http.StatusTooManyRequests, body)
		return
	}

	floor, known := featureFloor[req.FeatureKey]
	if !known {
		floor = types.PlanPro
	}
	if tierRank[plan] >= tierRank[floor] {
		s.writeJSON(w, http.StatusOK, decisionBody{Allowed: true})
		return
	}
	// 402 carries the plan-block decision payload.
	s.writeJSON(w, http.StatusPaymentRequired, decisionBody{
		Reason:     string(types.ReasonPlan),
		UpgradeURL: upgradeURL,
	})
}

// ---------------------------------------------------------------------------
// Checkout
// ---------------------------------------------------------------------------

func (s *Server) handleCreateCheckout(w http.ResponseWriter, r *http.Request) {
	key := r.Header.Get("Idempotency-Key")
	if key == "" {
		s.writeError(w, http.StatusBadRequest, "validation_missing_idempotency_key", "Idempotency-Key header is required")
		return
	}

	var req struct {
		Plan types.PlanTier `json:"plan"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || !types.ValidPurchaseTier(req.Plan) {
		s.writeError(w, http.StatusBadRequest, "validation_invalid_plan", "plan must be plus or pro")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Replay: the same key returns the original session with no new side effect.
	if sess, ok := s.byKey[key]; ok {
		s.writeJSON(w, http.StatusOK, map[string]string{"url": sess.URL})
		return
	}

	if tierRank[s.plan] >= tierRank[req.Plan] {
		s.writeError(w, http.StatusConflict, "already_subscribed", "an active subscription already covers this plan")
		return
	}

	id := "cs_" + uuid.NewString()
	sess := &checkoutSession{
		ID:     id,
		Plan:   req.Plan,
		Status: types.SessionUnpaid,
		URL:    "https://pay.horoscope.example/session/" + id,
	}
	s.byKey[key] = sess
	s.byID[id] = sess

	s.logger.Info("checkout session created", "session_id", id, "plan", req.Plan)
	s.writeJSON(w, http.StatusOK, map[string]string{"url": sess.URL})
}

func (s *Server) handleVerifySession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	s.mu.Lock()
	sess, ok := s.byID[id]
	s.mu.Unlock()

	if !ok {
		s.writeError(w, http.StatusNotFound, "not_found_session", "unknown checkout session")
		return
	}

	out := map[string]any{"status": sess.Status}
	if sess.Status == types.SessionPaid {
		out["plan"] = sess.Plan
	}
	s.writeJSON(w, http.StatusOK, out)
}

// ---------------------------------------------------------------------------
// Response helpers
// ---------------------------------------------------------------------------

func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError emits the standard error envelope with a fresh request ID.
func (s *Server) writeError(w http.ResponseWriter, status int, code, message string) {
	requestID := "req_" + uuid.NewString()
	s.logger.Warn("sandbox error response",
		"status", status,
		"code", code,
		"request_id", requestID,
	)
	s.writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"code":       code,
			"message":    message,
			"request_id": requestID,
		},
	})
}
