package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_IsMatchesKindAndCode(t *testing.T) {
	custom := Forbidden("donor")

	assert.True(t, errors.Is(custom, ErrForbidden))
	assert.False(t, errors.Is(custom, ErrNotAssignedCourier))
	assert.True(t, errors.Is(fmt.Errorf("wrapped: %w", ErrInvalidOTP), ErrInvalidOTP))
	assert.True(t, errors.Is(Validation("servings must be at least %d", 1), ErrValidation))
	assert.Equal(t, "only donor users may perform this action", custom.Error())
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindConflict, KindOf(ErrListingUnavailable))
	assert.Equal(t, KindNotFound, KindOf(fmt.Errorf("lookup: %w", ErrJobNotFound)))
	assert.Equal(t, Kind(""), KindOf(errors.New("db down")))
}

func TestMapErrorToHTTP(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", Validation("bad"), http.StatusBadRequest, "VALIDATION_ERROR"},
		{"conflict", ErrJobAlreadyAssigned, http.StatusBadRequest, "JOB_ALREADY_ASSIGNED"},
		{"authorization", Forbidden("receiver"), http.StatusForbidden, "FORBIDDEN"},
		{"credential", ErrInvalidOTP, http.StatusUnauthorized, "INVALID_OTP"},
		{"not found", fmt.Errorf("x: %w", ErrListingNotFound), http.StatusNotFound, "LISTING_NOT_FOUND"},
		{"rate limited", ErrTooManyAttempts, http.StatusTooManyRequests, "TOO_MANY_ATTEMPTS"},
		{"storage failure", errors.New("connection refused"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			httpErr := MapErrorToHTTP(tt.err)
			assert.Equal(t, tt.status, httpErr.StatusCode)
			assert.Equal(t, tt.code, httpErr.ToErrorResponse().Code)
		})
	}
}
