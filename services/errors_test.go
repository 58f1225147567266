package services

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainError_Error(t *testing.T) {
	e := NewDomainError(ErrorTypeCapacity, "frame too large", nil)
	assert.Equal(t, "capacity: frame too large", e.Error())

	wrapped := NewDomainError(ErrorTypeInternal, "database error", errors.New("connection refused"))
	assert.Contains(t, wrapped.Error(), "connection refused")
}

func TestDomainError_Is(t *testing.T) {
	assert.True(t, errors.Is(ErrTenantRevoked, ErrTenantRevoked))
	assert.False(t, errors.Is(ErrTenantRevoked, ErrUnknownKey))

	// wrapping preserves identity
	err := fmt.Errorf("admit: %w", ErrTenantRevoked)
	assert.True(t, errors.Is(err, ErrTenantRevoked))
}

func TestErrorTypeHelpers(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(error) bool
		want  bool
	}{
		{"missing key is unauthorized", ErrMissingKey, IsUnauthorizedError, true},
		{"revoked is unauthorized", ErrTenantRevoked, IsUnauthorizedError, true},
		{"revoked is not not-found", ErrTenantRevoked, IsNotFoundError, false},
		{"rate ceiling is capacity", ErrRateExceeded, IsCapacityError, true},
		{"size ceiling is capacity", ErrSizeExceeded, IsCapacityError, true},
		{"tenant not found", ErrTenantNotFound, IsNotFoundError, true},
		{"duplicate email is conflict", ErrDuplicateEmail, IsConflictError, true},
		{"admin key is forbidden", ErrAdminKey, IsForbiddenError, true},
		{"stale frame is validation", ErrStaleFrame, IsValidationError, true},
		{"plain error matches nothing", errors.New("boom"), IsInternalError, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.check(tt.err))
		})
	}
}

func TestDomainError_WithDetail(t *testing.T) {
	err := NewDomainError(ErrorTypeCapacity, "frame size ceiling exceeded", nil).
		WithDetail("max_bytes", 1024)

	details := GetErrorDetails(err)
	assert.Equal(t, 1024, details["max_bytes"])
	assert.Equal(t, ErrorTypeCapacity, GetErrorType(err))
}

func TestWrapInternal(t *testing.T) {
	cause := errors.New("disk full")
	err := WrapInternal("persist tenant", cause)
	assert.True(t, IsInternalError(err))
	assert.True(t, errors.Is(err, cause))
}
