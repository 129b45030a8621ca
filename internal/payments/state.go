// Package payments implements the terminal-payment simulator client: an
// explicit state machine whose actions mirror the idempotent-mutation
// discipline used by checkout. Each state carries only the data that is legal
// in that state, so stale payloads cannot leak across transitions.
package payments

import stripe "github.com/stripe/stripe-go/v82"

// Phase names the lifecycle stage of a payment.
type Phase string

const (
	PhaseIdle           Phase = "idle"
	PhaseConnecting     Phase = "connecting"
	PhaseConnected      Phase = "connected"
	PhaseCreatingIntent Phase = "creating_intent"
	PhaseIntentCreated  Phase = "intent_created"
	PhaseProcessing     Phase = "processing"
	PhaseCaptured       Phase = "captured"
	PhaseCanceled       Phase = "canceled"
	PhaseRefunded       Phase = "refunded"
	PhaseFailed         Phase = "failed"
)

// State is the tagged union of payment lifecycle stages.
type State interface {
	Phase() Phase
}

// Idle is the only initial state.
type Idle struct{}

func (Idle) Phase() Phase { return PhaseIdle }

// Connecting marks an in-flight connect call.
type Connecting struct{}

func (Connecting) Phase() Phase { return PhaseConnecting }

// Connected means the terminal link is up and an intent may be created.
type Connected struct{}

func (Connected) Phase() Phase { return PhaseConnected }

// CreatingIntent marks an in-flight intent creation.
type CreatingIntent struct {
	AmountCents int64
	Currency    string
}

func (CreatingIntent) Phase() Phase { return PhaseCreatingIntent }

// IntentCreated holds a live intent awaiting a payment method.
type IntentCreated struct {
	IntentID    string
	AmountCents int64
	Currency    string
}

func (IntentCreated) Phase() Phase { return PhaseIntentCreated }

// Processing means the backend signaled asynchronous confirmation is pending.
// It also covers the window while a process call is outstanding, which is what
// makes a second click safe without a per-action pending flag.
type Processing struct {
	IntentID string
}

func (Processing) Phase() Phase { return PhaseProcessing }

// Captured is a terminal success; a refund or cancel may still follow.
type Captured struct {
	IntentID string
}

func (Captured) Phase() Phase { return PhaseCaptured }

// Canceled is a terminal state.
type Canceled struct {
	IntentID string
}

func (Canceled) Phase() Phase { return PhaseCanceled }

// Refunded is a terminal state.
type Refunded struct {
	IntentID            string
	AmountRefundedCents int64
}

func (Refunded) Phase() Phase { return PhaseRefunded }

// Failed is a terminal state carrying the decline.
type Failed struct {
	IntentID    string
	DeclineCode string
	Message     string
}

func (Failed) Phase() Phase { return PhaseFailed }

// UserMessage maps well-known decline codes to user-facing copy. The decline
// vocabulary follows the card-processor convention.
func (f Failed) UserMessage() string {
	switch f.DeclineCode {
	case string(stripe.ErrorCodeCardDeclined):
		return "The card was declined."
	case string(stripe.ErrorCodeExpiredCard):
		return "The card has expired."
	case string(stripe.ErrorCodeIncorrectCVC):
		return "The card's security code is incorrect."
	case string(stripe.ErrorCodeProcessingError):
		return "A processing error occurred. Try the payment again."
	default:
		if f.Message != "" {
			return f.Message
		}
		return "The payment could not be completed."
	}
}
