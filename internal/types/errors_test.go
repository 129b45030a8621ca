package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_ErrorAndUnwrap(t *testing.T) {
	inner := errors.New("connection reset")
	ae := NewAppError(ErrCodeTransportOther, "request failed", inner)

	assert.Equal(t, "transport_failure: request failed", ae.Error())
	assert.True(t, errors.Is(ae, inner))
}

func TestAsAppError_ThroughWrapping(t *testing.T) {
	ae := NewAppError(ErrCodeValidationPlan, "bad plan", nil)
	wrapped := fmt.Errorf("starting checkout: %w", ae)

	got, ok := AsAppError(wrapped)
	require.True(t, ok)
	assert.Equal(t, ErrCodeValidationPlan, got.Code)
}

func TestAsAppError_PlainError(t *testing.T) {
	_, ok := AsAppError(errors.New("plain"))
	assert.False(t, ok)
}

func TestIsTransport(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"timeout", NewAppError(ErrCodeTransportTimeout, "", nil), true},
		{"offline", NewAppError(ErrCodeTransportOffline, "", nil), true},
		{"aborted", NewAppError(ErrCodeTransportAborted, "", nil), true},
		{"other transport", NewAppError(ErrCodeTransportOther, "", nil), true},
		{"server classified", NewServerError(ErrCodeUpstreamUnavailable, "", 503, ""), false},
		{"validation", NewAppError(ErrCodeValidationPlan, "", nil), false},
		{"plain error", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransport(tt.err))
		})
	}
}

func TestIsServerClassified(t *testing.T) {
	assert.True(t, IsServerClassified(NewServerError(ErrCodeUpstreamAPI, "", 422, "req_1")))
	assert.False(t, IsServerClassified(NewAppError(ErrCodeTransportTimeout, "", nil)))
	assert.False(t, IsServerClassified(errors.New("boom")))
}

func TestStatusOf(t *testing.T) {
	assert.Equal(t, 409, StatusOf(NewServerError(ErrCodeConflictSubscribed, "", 409, "")))
	assert.Zero(t, StatusOf(NewAppError(ErrCodeTransportOffline, "", nil)))
	assert.Zero(t, StatusOf(errors.New("boom")))
}
