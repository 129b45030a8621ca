package payments

import (
	"context"
	"log/slog"
	"sync"

	"github.com/daconrilcy/horoscope-front-sub002/internal/transport"
)

// TerminalAPI is the slice of the transport client the machine drives.
// Satisfied by *transport.Client.
type TerminalAPI interface {
	Connect(ctx context.Context) error
	CreateIntent(ctx context.Context, amountCents int64, currency string) (string, error)
	Process(ctx context.Context, intentID, method string) (transport.ProcessResult, error)
	Capture(ctx context.Context, intentID string) (transport.ProcessResult, error)
	CancelIntent(ctx context.Context, intentID string) error
	Refund(ctx context.Context, intentID string, amountCents int64) (int64, error)
}

// Machine is the client-side contract for calling the terminal endpoints in
// valid order. Every action re-checks the current state synchronously, under
// lock, before any network call; an invocation whose precondition fails is a
// silent no-op. A Reset during an outstanding call wins: the late result is
// discarded rather than applied over the fresh Idle state.
type Machine struct {
	api    TerminalAPI
	logger *slog.Logger

	mu    sync.Mutex
	state State
	seq   uint64
}

// NewMachine creates a machine in the Idle state.
func NewMachine(api TerminalAPI, logger *slog.Logger) *Machine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Machine{api: api, logger: logger, state: Idle{}}
}

// State returns the current lifecycle state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// setLocked applies a transition and bumps the sequence so outstanding calls
// from the previous state cannot apply their results.
func (m *Machine) setLocked(s State) {
	m.state = s
	m.seq++
}

func (m *Machine) skip(action string) {
	m.logger.Debug("payment action ignored in current state",
		"action", action,
		"phase", m.state.Phase(),
	)
}

// Connect establishes the terminal link. Legal only from Idle.
func (m *Machine) Connect(ctx context.Context) error {
	m.mu.Lock()
	if _, ok := m.state.(Idle); !ok {
		m.skip("connect")
		m.mu.Unlock()
		return nil
	}
	m.setLocked(Connecting{})
	seq := m.seq
	m.mu.Unlock()

	err := m.api.Connect(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.seq != seq {
		return err
	}
	if err != nil {
		m.setLocked(Idle{})
		return err
	}
	m.setLocked(Connected{})
	return nil
}

// CreateIntent creates a payment intent. Legal only from Connected.
func (m *Machine) CreateIntent(ctx context.Context, amountCents int64, currency string) error {
	m.mu.Lock()
	if _, ok := m.state.(Connected); !ok {
		m.skip("create_intent")
		m.mu.Unlock()
		return nil
	}
	m.setLocked(CreatingIntent{AmountCents: amountCents, Currency: currency})
	seq := m.seq
	m.mu.Unlock()

	intentID, err := m.api.CreateIntent(ctx, amountCents, currency)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.seq != seq {
		return err
	}
	if err != nil {
		m.setLocked(Connected{})
		return err
	}
	m.setLocked(IntentCreated{IntentID: intentID, AmountCents: amountCents, Currency: currency})
	return nil
}

// Process submits a payment method against the live intent. Legal only from
// IntentCreated. The result is Captured on immediate success, Processing when
// the backend signals asynchronous confirmation, or Failed with the decline.
func (m *Machine) Process(ctx context.Context, method string) error {
	m.mu.Lock()
	ic, ok := m.state.(IntentCreated)
	if !ok {
		m.skip("process")
		m.mu.Unlock()
		return nil
	}
	m.setLocked(Processing{IntentID: ic.IntentID})
	seq := m.seq
	m.mu.Unlock()

	res, err := m.api.Process(ctx, ic.IntentID, method)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.seq != seq {
		return err
	}
	if err != nil {
		// Transport or server trouble, not a decline: the intent is still live.
		m.setLocked(ic)
		return err
	}
	switch res.Outcome {
	case transport.OutcomeCaptured:
		m.setLocked(Captured{IntentID: ic.IntentID})
	case transport.OutcomeProcessing:
		// Already in Processing; nothing to apply.
	case transport.OutcomeFailed:
		m.setLocked(Failed{IntentID: ic.IntentID, DeclineCode: res.DeclineCode, Message: res.Message})
	}
	return nil
}

// Capture captures the intent. Legal only from Processing; resolves to
// Captured or Failed.
func (m *Machine) Capture(ctx context.Context) error {
	m.mu.Lock()
	p, ok := m.state.(Processing)
	if !ok {
		m.skip("capture")
		m.mu.Unlock()
		return nil
	}
	seq := m.seq
	m.mu.Unlock()

	res, err := m.api.Capture(ctx, p.IntentID)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.seq != seq {
		return err
	}
	if err != nil {
		return err
	}
	switch res.Outcome {
	case transport.OutcomeCaptured:
		m.setLocked(Captured{IntentID: p.IntentID})
	case transport.OutcomeFailed:
		m.setLocked(Failed{IntentID: p.IntentID, DeclineCode: res.DeclineCode, Message: res.Message})
	}
	return nil
}

// Cancel cancels the payment. Legal from IntentCreated, Processing, or Captured.
func (m *Machine) Cancel(ctx context.Context) error {
	m.mu.Lock()
	var intentID string
	switch s := m.state.(type) {
	case IntentCreated:
		intentID = s.IntentID
	case Processing:
		intentID = s.IntentID
	case Captured:
		intentID = s.IntentID
	default:
		m.skip("cancel")
		m.mu.Unlock()
		return nil
	}
	seq := m.seq
	m.mu.Unlock()

	err := m.api.CancelIntent(ctx, intentID)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.seq != seq {
		return err
	}
	if err != nil {
		return err
	}
	m.setLocked(Canceled{IntentID: intentID})
	return nil
}

// Refund refunds the captured payment. Legal only from Captured.
// amountCents of zero refunds the full amount.
func (m *Machine) Refund(ctx context.Context, amountCents int64) error {
	m.mu.Lock()
	c, ok := m.state.(Captured)
	if !ok {
		m.skip("refund")
		m.mu.Unlock()
		return nil
	}
	seq := m.seq
	m.mu.Unlock()

	refunded, err := m.api.Refund(ctx, c.IntentID, amountCents)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.seq != seq {
		return err
	}
	if err != nil {
		return err
	}
	m.setLocked(Refunded{IntentID: c.IntentID, AmountRefundedCents: refunded})
	return nil
}

// Reset returns to Idle from any state. It makes no network call, and an
// outstanding action's late result is discarded.
func (m *Machine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setLocked(Idle{})
}
