package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/daconrilcy/horoscope-front-sub002/internal/types"
)

// IdempotencyKeyHeader carries the per-attempt purchase token.
const IdempotencyKeyHeader = "Idempotency-Key"

// ClientConfig holds the configuration for creating a Client.
type ClientConfig struct {
	BaseURL   string
	AuthToken string // session bearer token; empty in tests against the sandbox
	Logger    *slog.Logger
	Timeout   time.Duration
}

// Client is the typed API surface for every endpoint the engine consumes:
// feature decisions, checkout, post-redirect session verification, and the
// terminal payment simulator. Reads go through a retrying base client,
// mutations through a non-retrying one, so idempotency-token semantics are
// preserved without per-call flags.
type Client struct {
	read    *BaseClient
	write   *BaseClient
	baseURL string
	token   string
	logger  *slog.Logger
}

// NewClient creates a Client from the given configuration.
func NewClient(cfg ClientConfig, opts ...BaseClientOption) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	httpClient := &http.Client{Timeout: timeout}

	return &Client{
		read:    NewBaseClient(httpClient, "entitlement-read", ReadRetry, "horoscope-sub/1.0", opts...),
		write:   NewBaseClient(httpClient, "entitlement-write", NoRetry, "horoscope-sub/1.0", opts...),
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		token:   cfg.AuthToken,
		logger:  logger,
	}
}

// ---------------------------------------------------------------------------
// Decisions
// ---------------------------------------------------------------------------

// decisionWire is the JSON shape of a decision response.
type decisionWire struct {
	Allowed    bool   `json:"allowed"`
	Reason     string `json:"reason,omitempty"`
	UpgradeURL string `json:"upgrade_url,omitempty"`
	RetryAfter *int   `json:"retry_after,omitempty"`
}

func (w decisionWire) toDecision() types.Decision {
	if w.Allowed {
		return types.Allow()
	}
	switch types.BlockReason(w.Reason) {
	case types.ReasonPlan:
		return types.BlockByPlan(w.UpgradeURL)
	case types.ReasonRate:
		return types.BlockByRate(w.UpgradeURL, w.RetryAfter)
	default:
		return types.Block(types.BlockReason(w.Reason), w.UpgradeURL)
	}
}

// GetDecision fetches the server verdict for one feature key.
//
// A 402 or 429 whose body carries a decision payload is not a failure: it is
// the expected encoding of "blocked" and decodes into a blocked Decision.
// Every other non-2xx is mapped through the error envelope.
func (c *Client) GetDecision(ctx context.Context, key types.FeatureKey) (types.Decision, error) {
	body := map[string]string{"feature_key": string(key)}
	resp, err := c.doJSON(ctx, c.read, http.MethodPost, "/v1/decisions", body, nil)
	if err != nil {
		return types.Decision{}, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return types.Decision{}, types.NewAppError(
			types.ErrCodeUpstreamAPI, "failed to read decision response", err)
	}

	ok := resp.StatusCode >= 200 && resp.StatusCode < 300
	blockedStatus := resp.StatusCode == http.StatusPaymentRequired ||
		resp.StatusCode == http.StatusTooManyRequests
	if ok || blockedStatus {
		var wire decisionWire
		if jsonErr := json.Unmarshal(raw, &wire); jsonErr == nil && (ok || !wire.Allowed) {
			return wire.toDecision(), nil
		}
		if ok {
			return types.Decision{}, types.NewAppError(
				types.ErrCodeUpstreamAPI, "malformed decision response", nil)
		}
	}

	return types.Decision{}, c.envelopeError(ctx, resp.StatusCode, raw)
}

// ---------------------------------------------------------------------------
// Checkout
// ---------------------------------------------------------------------------

// CreateCheckout issues a purchase-intent request for the given plan, carrying
// the caller's single-use idempotency token. Returns the external checkout URL
// the browser must fully navigate to. Never auto-retried.
func (c *Client) CreateCheckout(ctx context.Context, plan types.PlanTier, idempotencyKey string) (string, error) {
	body := map[string]string{"plan": string(plan)}
	headers := map[string]string{IdempotencyKeyHeader: idempotencyKey}

	resp, err := c.doJSON(ctx, c.write, http.MethodPost, "/v1/checkout/sessions", body, headers)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", types.NewAppError(types.ErrCodeUpstreamAPI, "failed to read checkout response", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", c.envelopeError(ctx, resp.StatusCode, raw)
	}

	var out struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(raw, &out); err != nil || out.URL == "" {
		return "", types.NewAppError(types.ErrCodeUpstreamAPI, "checkout response missing url", err)
	}
	return out.URL, nil
}

// SessionVerification is the post-redirect verdict for a checkout session.
type SessionVerification struct {
	Status types.SessionStatus `json:"status"`
	Plan   types.PlanTier      `json:"plan,omitempty"`
}

// VerifySession resolves the payment status of a checkout session after the
// browser returns from the external payment page.
func (c *Client) VerifySession(ctx context.Context, sessionID string) (SessionVerification, error) {
	path := "/v1/checkout/sessions/" + sessionID
	resp, err := c.doJSON(ctx, c.read, http.MethodGet, path, nil, nil)
	if err != nil {
		return SessionVerification{}, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return SessionVerification{}, types.NewAppError(
			types.ErrCodeUpstreamAPI, "failed to read verification response", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return SessionVerification{}, c.envelopeError(ctx, resp.StatusCode, raw)
	}

	var out SessionVerification
	if err := json.Unmarshal(raw, &out); err != nil {
		return SessionVerification{}, types.NewAppError(
			types.ErrCodeUpstreamAPI, "malformed verification response", err)
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Terminal simulator
// ---------------------------------------------------------------------------

// ProcessOutcome is the server's resolution of a process or capture call.
type ProcessOutcome string

const (
	OutcomeCaptured   ProcessOutcome = "captured"
	OutcomeProcessing ProcessOutcome = "processing"
	OutcomeFailed     ProcessOutcome = "failed"
)

// ProcessResult carries the outcome of a process/capture call, including the
// decline code and message when the outcome is failed.
type ProcessResult struct {
	Outcome     ProcessOutcome `json:"status"`
	DeclineCode string         `json:"decline_code,omitempty"`
	Message     string         `json:"message,omitempty"`
}

// Connect establishes a terminal connection.
func (c *Client) Connect(ctx context.Context) error {
	resp, err := c.doJSON(ctx, c.write, http.MethodPost, "/v1/terminal/connect", nil, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return c.expect2xx(ctx, resp)
}

// CreateIntent creates a payment intent for the given amount and currency.
func (c *Client) CreateIntent(ctx context.Context, amountCents int64, currency string) (string, error) {
	body := map[string]any{"amount": amountCents, "currency": currency}
	resp, err := c.doJSON(ctx, c.write, http.MethodPost, "/v1/terminal/intents", body, nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", types.NewAppError(types.ErrCodeUpstreamAPI, "failed to read intent response", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", c.envelopeError(ctx, resp.StatusCode, raw)
	}

	var out struct {
		IntentID string `json:"intent_id"`
	}
	if err := json.Unmarshal(raw, &out); err != nil || out.IntentID == "" {
		return "", types.NewAppError(types.ErrCodeUpstreamAPI, "intent response missing intent_id", err)
	}
	return out.IntentID, nil
}

// Process submits a payment method against an intent.
func (c *Client) Process(ctx context.Context, intentID, method string) (ProcessResult, error) {
	body := map[string]string{"method": method}
	return c.doOutcome(ctx, "/v1/terminal/intents/"+intentID+"/process", body)
}

// Capture captures a previously processed intent.
func (c *Client) Capture(ctx context.Context, intentID string) (ProcessResult, error) {
	return c.doOutcome(ctx, "/v1/terminal/intents/"+intentID+"/capture", nil)
}

// CancelIntent cancels an intent.
func (c *Client) CancelIntent(ctx context.Context, intentID string) error {
	resp, err := c.doJSON(ctx, c.write, http.MethodPost, "/v1/terminal/intents/"+intentID+"/cancel", nil, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return c.expect2xx(ctx, resp)
}

// Refund refunds a captured intent. amountCents of zero refunds the full amount.
func (c *Client) Refund(ctx context.Context, intentID string, amountCents int64) (int64, error) {
	var body map[string]any
	if amountCents > 0 {
		body = map[string]any{"amount": amountCents}
	}
	resp, err := c.doJSON(ctx, c.write, http.MethodPost, "/v1/terminal/intents/"+intentID+"/refund", body, nil)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeUpstreamAPI, "failed to read refund response", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, c.envelopeError(ctx, resp.StatusCode, raw)
	}

	var out struct {
		AmountRefunded int64 `json:"amount_refunded"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return 0, types.NewAppError(types.ErrCodeUpstreamAPI, "malformed refund response", err)
	}
	return out.AmountRefunded, nil
}

func (c *Client) doOutcome(ctx context.Context, path string, body any) (ProcessResult, error) {
	resp, err := c.doJSON(ctx, c.write, http.MethodPost, path, body, nil)
	if err != nil {
		return ProcessResult{}, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return ProcessResult{}, types.NewAppError(
			types.ErrCodeUpstreamAPI, "failed to read terminal response", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return ProcessResult{}, c.envelopeError(ctx, resp.StatusCode, raw)
	}

	var out ProcessResult
	if err := json.Unmarshal(raw, &out); err != nil || out.Outcome == "" {
		return ProcessResult{}, types.NewAppError(
			types.ErrCodeUpstreamAPI, "malformed terminal response", err)
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// HTTP helpers
// ---------------------------------------------------------------------------

func (c *Client) doJSON(
	ctx context.Context,
	base *BaseClient,
	method, path string,
	body any,
	headers map[string]string,
) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to encode request body", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build request", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return base.Do(req)
}

func (c *Client) expect2xx(ctx context.Context, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return types.NewAppError(types.ErrCodeUpstreamAPI, "failed to read error response", err)
	}
	return c.envelopeError(ctx, resp.StatusCode, raw)
}

// errorEnvelope is the standard non-2xx response body.
type errorEnvelope struct {
	Error struct {
		Code      string         `json:"code"`
		Message   string         `json:"message"`
		Details   map[string]any `json:"details,omitempty"`
		RequestID string         `json:"request_id,omitempty"`
	} `json:"error"`
}

// envelopeError maps a non-2xx response into the AppError taxonomy. The
// request ID from the envelope is logged for support correlation.
func (c *Client) envelopeError(ctx context.Context, status int, raw []byte) error {
	var env errorEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return types.NewServerError(
			types.ErrCodeUpstreamAPI,
			fmt.Sprintf("backend returned %d with unreadable body", status),
			status, "")
	}

	if env.Error.RequestID != "" {
		c.logger.WarnContext(ctx, "backend error",
			"status", status,
			"code", env.Error.Code,
			"request_id", env.Error.RequestID,
		)
	}

	code := mapStatusCode(status, env.Error.Code)
	msg := env.Error.Message
	if msg == "" {
		msg = fmt.Sprintf("backend returned %d", status)
	}
	ae := types.NewServerError(code, msg, status, env.Error.RequestID)
	ae.Details = env.Error.Details
	return ae
}

// mapStatusCode branches on the numeric status plus the envelope code, per the
// coordinator's classification needs.
func mapStatusCode(status int, envelopeCode string) types.ErrorCode {
	switch {
	case status == http.StatusUnauthorized:
		return types.ErrCodeAuthSessionExpired
	case status == http.StatusConflict:
		return types.ErrCodeConflictSubscribed
	case status == http.StatusBadRequest && envelopeCode == "already_subscribed":
		// Some backend versions signal an existing subscription as a 400.
		return types.ErrCodeConflictSubscribed
	case status == http.StatusTooManyRequests:
		return types.ErrCodeUpstreamRateLimited
	case status == http.StatusPaymentRequired && envelopeCode == "payment_declined":
		return types.ErrCodePaymentDeclined
	case status >= 500:
		return types.ErrCodeUpstreamUnavailable
	default:
		return types.ErrCodeUpstreamAPI
	}
}
