// Package transport is the anti-corruption layer between the gating engine and
// the entitlement backend. All outbound HTTP calls are routed through the
// BaseClient, which enforces consistent resilience patterns: circuit breaking,
// transport-failure classification, a pluggable retry predicate, and error
// mapping into the types.AppError taxonomy.
package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"syscall"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/daconrilcy/horoscope-front-sub002/internal/types"
)

// RetryPredicate decides whether a failed attempt should be retried.
// failureCount is the number of attempts that have already failed (1 after the
// first failure). The predicate only ever sees transport-classified errors;
// HTTP responses of any status are returned to the caller without retry, so a
// deterministic server verdict (402/429/5xx) can never be retried blindly.
type RetryPredicate func(failureCount int, err error) bool

// ReadRetry is the default policy for decision reads: a single retry, and only
// for a transport failure. A dropped connection might succeed on retry; a
// business answer will not.
func ReadRetry(failureCount int, err error) bool {
	return failureCount <= 1 && types.IsTransport(err)
}

// NoRetry is the policy for checkout and every other mutation-style call.
// Failed mutations surface to the user, who re-triggers explicitly with a
// fresh idempotency token.
func NoRetry(int, error) bool { return false }

// BaseClient wraps an *http.Client and a circuit breaker. The typed Client
// embeds it to inherit this behavior for every endpoint.
type BaseClient struct {
	client    *http.Client
	breaker   *gobreaker.CircuitBreaker[*http.Response]
	retry     RetryPredicate
	userAgent string
	sleepFn   func(time.Duration) // for testability; defaults to time.Sleep
	wait      time.Duration       // pause between transport retries
}

// BaseClientOption is a functional option for configuring a BaseClient.
type BaseClientOption func(*BaseClient)

// WithSleepFunc overrides the sleep function used between retries.
// This is intended for testing to avoid real delays.
func WithSleepFunc(fn func(time.Duration)) BaseClientOption {
	return func(c *BaseClient) { c.sleepFn = fn }
}

// WithRetryWait overrides the pause before a transport retry.
func WithRetryWait(d time.Duration) BaseClientOption {
	return func(c *BaseClient) { c.wait = d }
}

// NewBaseClient creates a BaseClient with the given http client, circuit
// breaker name, retry predicate, and user agent string.
func NewBaseClient(
	httpClient *http.Client,
	breakerName string,
	retry RetryPredicate,
	userAgent string,
	opts ...BaseClientOption,
) *BaseClient {
	cb := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil
		},
	})

	bc := &BaseClient{
		client:    httpClient,
		breaker:   cb,
		retry:     retry,
		userAgent: userAgent,
		sleepFn:   time.Sleep,
		wait:      500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(bc)
	}
	return bc
}

// Do executes the HTTP request with:
//  1. Request ID injection (X-Request-ID from context)
//  2. User-Agent header injection
//  3. Circuit breaker wrapping (5xx and 429 count as breaker failures)
//  4. Transport failure classification and predicate-driven retry
//
// Any HTTP response, whatever its status, is returned to the caller as-is;
// only transport-level failures become errors here. The caller is responsible
// for closing the response body.
func (c *BaseClient) Do(req *http.Request) (*http.Response, error) {
	if reqID := types.GetRequestID(req.Context()); reqID != "" {
		req.Header.Set("X-Request-ID", reqID)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	// Snapshot the request body so it can be replayed on retries.
	var bodyBytes []byte
	if req.Body != nil {
		var err error
		bodyBytes, err = io.ReadAll(req.Body)
		if err != nil {
			return nil, types.NewAppError(
				types.ErrCodeInternalUnexpected,
				"failed to read request body for retry support",
				err,
			)
		}
		req.Body.Close()
	}

	failures := 0
	for {
		if bodyBytes != nil {
			req.Body = io.NopCloser(bytes.NewReader(bodyBytes))
			req.ContentLength = int64(len(bodyBytes))
		}

		resp, err := c.breaker.Execute(func() (*http.Response, error) {
			r, doErr := c.client.Do(req)
			if doErr != nil {
				return nil, doErr
			}
			// 5xx and 429 count against the breaker even though they are
			// returned to the caller without retry.
			if r.StatusCode >= 500 || r.StatusCode == http.StatusTooManyRequests {
				return r, fmt.Errorf("upstream returned %d", r.StatusCode)
			}
			return r, nil
		})

		if resp != nil {
			// An HTTP response of any status is a completed exchange.
			return resp, nil
		}

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, types.NewAppError(
				types.ErrCodeUpstreamUnavailable,
				"circuit breaker is open; entitlement backend unavailable",
				err,
			)
		}

		cerr := classifyTransport(err)
		failures++
		if !c.retry(failures, cerr) {
			return nil, cerr
		}
		c.sleepFn(c.wait)
	}
}

// classifyTransport maps a network-level failure into the transport error
// taxonomy: timeout, offline, aborted, or other.
func classifyTransport(err error) *types.AppError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return types.NewAppError(types.ErrCodeTransportTimeout, "request timed out", err)
	case errors.Is(err, context.Canceled):
		return types.NewAppError(types.ErrCodeTransportAborted, "request aborted", err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return types.NewAppError(types.ErrCodeTransportTimeout, "request timed out", err)
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ENETUNREACH) ||
		errors.Is(err, syscall.EHOSTUNREACH) {
		return types.NewAppError(types.ErrCodeTransportOffline, "network unreachable", err)
	}

	return types.NewAppError(types.ErrCodeTransportOther, "request failed", err)
}
