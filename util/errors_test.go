package util

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"validation", ValidationError("bad"), http.StatusBadRequest},
		{"rate limited", ErrRateLimited, http.StatusTooManyRequests},
		{"suspended", ErrAccountSuspended, http.StatusForbidden},
		{"wrapped not found", fmt.Errorf("load doctor: %w", ErrNotFound), http.StatusNotFound},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusFor(tt.err))
		})
	}
}

func TestAppErrorIsMatchesKind(t *testing.T) {
	err := fmt.Errorf("book: %w", NewError(KindSlotUnavailable, "slot 3 is taken"))
	assert.True(t, errors.Is(err, ErrSlotUnavailable))
	assert.False(t, errors.Is(err, ErrNotFound))
}

func TestWithDetailDoesNotMutateSentinel(t *testing.T) {
	err := ErrRateLimited.WithDetail("retryAfter", 42)
	assert.Equal(t, 42, err.Details["retryAfter"])
	assert.Empty(t, ErrRateLimited.Details)
}

func TestFailedResponseHidesInternalCause(t *testing.T) {
	body := FailedResponse(errors.New("mongo: connection refused"))
	assert.Equal(t, false, body["success"])
	assert.Equal(t, KindInternal, body["code"])
	assert.Equal(t, INTERNAL_ERROR, body["message"])

	body = FailedResponse(ErrAccountSuspended.WithDetail("reason", "spam"))
	assert.Equal(t, KindAccountSuspended, body["code"])
	assert.Equal(t, map[string]interface{}{"reason": "spam"}, body["details"])
}
