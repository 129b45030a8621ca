package types

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode is a typed string for categorizing application errors.
type ErrorCode string

// Complete error code constants. All components use these constants instead
// of hardcoded strings so that classification stays uniform across the engine.
const (
	// Validation (client-side, fails before any network call)
	ErrCodeValidationPlan       ErrorCode = "validation_invalid_plan"
	ErrCodeValidationFeatureKey ErrorCode = "validation_invalid_feature_key"
	ErrCodeValidationSessionID  ErrorCode = "validation_invalid_session_id"

	// Auth (401) -- reserved for the global session handler, never toasted
	ErrCodeAuthSessionExpired ErrorCode = "auth_session_expired"

	// Conflict (409, or 400 whose payload signals an active subscription)
	ErrCodeConflictSubscribed ErrorCode = "conflict_already_subscribed"

	// Payment
	ErrCodePaymentDeclined ErrorCode = "payment_declined"

	// Server-classified (deterministic, status-coded: 402/403/422/429/5xx)
	ErrCodeUpstreamAPI         ErrorCode = "upstream_api_error"
	ErrCodeUpstreamUnavailable ErrorCode = "upstream_unavailable"
	ErrCodeUpstreamRateLimited ErrorCode = "upstream_rate_limited"

	// Transport (non-deterministic; eligible for a single read retry)
	ErrCodeTransportTimeout ErrorCode = "transport_timeout"
	ErrCodeTransportOffline ErrorCode = "transport_offline"
	ErrCodeTransportAborted ErrorCode = "transport_aborted"
	ErrCodeTransportOther   ErrorCode = "transport_failure"

	// Internal
	ErrCodeInternalUnexpected ErrorCode = "internal_unexpected_error"
)

// AppError is the standard application error type used throughout the engine.
// All domain and transport errors are expressed as AppError to enable
// consistent classification, user messaging, and error chain support.
type AppError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Err     error          `json:"-"`
	Details map[string]any `json:"details,omitempty"`

	// Status is the numeric HTTP status for server-classified errors.
	// Zero for validation, transport, and internal errors.
	Status int `json:"-"`

	// RequestID is the server-assigned correlation ID from the error
	// envelope, logged for support correlation.
	RequestID string `json:"request_id,omitempty"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError creates a new AppError with the given code, message, and
// optional underlying error. This is the standard constructor for domain errors.
func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

// NewServerError creates an AppError carrying the numeric HTTP status and the
// request ID from a server error envelope.
func NewServerError(code ErrorCode, message string, status int, requestID string) *AppError {
	return &AppError{Code: code, Message: message, Status: status, RequestID: requestID}
}

// AsAppError extracts an *AppError from an error chain, if present.
func AsAppError(err error) (*AppError, bool) {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// IsTransport reports whether err is a transport failure (timeout, offline,
// aborted, or other network-level trouble). Transport failures are the only
// class the decision cache retries.
func IsTransport(err error) bool {
	ae, ok := AsAppError(err)
	return ok && strings.HasPrefix(string(ae.Code), "transport_")
}

// IsServerClassified reports whether err carries a deterministic server
// verdict. These are never retried automatically.
func IsServerClassified(err error) bool {
	ae, ok := AsAppError(err)
	return ok && ae.Status > 0
}

// StatusOf returns the HTTP status of a server-classified error, or zero.
func StatusOf(err error) int {
	if ae, ok := AsAppError(err); ok {
		return ae.Status
	}
	return 0
}
