package sandbox

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	stripe "github.com/stripe/stripe-go/v82"
)

// intentStatus tracks the server-side lifecycle of a simulated intent.
type intentStatus string

const (
	intentCreated    intentStatus = "created"
	intentProcessing intentStatus = "processing"
	intentCaptured   intentStatus = "captured"
	intentCanceled   intentStatus = "canceled"
	intentRefunded   intentStatus = "refunded"
	intentFailed     intentStatus = "failed"
)

type intent struct {
	ID          string
	AmountCents int64
	Currency    string
	Status      intentStatus
	Method      string
}

// Test payment methods with deterministic outcomes. Anything else captures
// immediately.
const (
	MethodDeclined  = "pm_card_declined"
	MethodExpired   = "pm_card_expired"
	MethodAsync     = "pm_card_async" // resolves to processing; capture completes it
	MethodAsyncFail = "pm_card_async_fail"
)

// declineFor maps a test method to its decline code.
var declineFor = map[string]string{
	MethodDeclined: string(stripe.ErrorCodeCardDeclined),
	MethodExpired:  string(stripe.ErrorCodeExpiredCard),
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.connected = true
	s.mu.Unlock()
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "connected"})
}

func (s *Server) handleCreateIntent(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Amount   int64  `json:"amount"`
		Currency string `json:"currency"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Amount <= 0 || req.Currency == "" {
		s.writeError(w, http.StatusBadRequest, "validation_invalid_intent", "amount and currency are required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected {
		s.writeError(w, http.StatusConflict, "terminal_not_connected", "connect before creating an intent")
		return
	}

	in := &intent{
		ID:          "pi_" + uuid.NewString(),
		AmountCents: req.Amount,
		Currency:    req.Currency,
		Status:      intentCreated,
	}
	s.intents[in.ID] = in
	s.writeJSON(w, http.StatusOK, map[string]string{"intent_id": in.ID})
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Method string `json:"method"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Method == "" {
		s.writeError(w, http.StatusBadRequest, "validation_invalid_method", "method is required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	in, ok := s.intents[chi.URLParam(r, "id")]
	if !ok {
		s.writeError(w, http.StatusNotFound, "not_found_intent", "unknown intent")
		return
	}
	if in.Status != intentCreated {
		s.writeError(w, http.StatusConflict, "conflict_intent_state", "intent is not awaiting a payment method")
		return
	}

	in.Method = req.Method
	if code, declined := declineFor[req.Method]; declined {
		in.Status = intentFailed
		s.writeJSON(w, http.StatusOK, map[string]string{
			"status":       "failed",
			"decline_code": code,
			"message":      "the payment method was declined",
		})
		return
	}

	if req.Method == MethodAsync || req.Method == MethodAsyncFail {
		in.Status = intentProcessing
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "processing"})
		return
	}

	in.Status = intentCaptured
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "captured"})
}

func (s *Server) handleCapture(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	in, ok := s.intents[chi.URLParam(r, "id")]
	if !ok {
		s.writeError(w, http.StatusNotFound, "not_found_intent", "unknown intent")
		return
	}
	if in.Status != intentProcessing {
		s.writeError(w, http.StatusConflict, "conflict_intent_state", "intent is not processing")
		return
	}

	// The async-fail test method declines at capture time.
	if in.Method == MethodAsyncFail {
		in.Status = intentFailed
		s.writeJSON(w, http.StatusOK, map[string]string{
			"status":       "failed",
			"decline_code": string(stripe.ErrorCodeProcessingError),
			"message":      "the payment could not be captured",
		})
		return
	}

	in.Status = intentCaptured
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "captured"})
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	in, ok := s.intents[chi.URLParam(r, "id")]
	if !ok {
		s.writeError(w, http.StatusNotFound, "not_found_intent", "unknown intent")
		return
	}
	switch in.Status {
	case intentCreated, intentProcessing, intentCaptured:
		in.Status = intentCanceled
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "canceled"})
	default:
		s.writeError(w, http.StatusConflict, "conflict_intent_state", "intent cannot be canceled")
	}
}

func (s *Server) handleRefund(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Amount int64 `json:"amount"`
	}
	// An empty body refunds the full amount.
	_ = json.NewDecoder(r.Body).Decode(&req)

	s.mu.Lock()
	defer s.mu.Unlock()

	in, ok := s.intents[chi.URLParam(r, "id")]
	if !ok {
		s.writeError(w, http.StatusNotFound, "not_found_intent", "unknown intent")
		return
	}
	if in.Status != intentCaptured {
		s.writeError(w, http.StatusConflict, "conflict_intent_state", "only captured intents can be refunded")
		return
	}

	amount := req.Amount
	if amount <= 0 || amount > in.AmountCents {
		amount = in.AmountCents
	}
	in.Status = intentRefunded
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":          "refunded",
		"amount_refunded": amount,
	})
}
