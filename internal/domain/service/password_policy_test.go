package service_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainErrors "github.com/todoapp/auth-service/internal/domain/errors"
	"github.com/todoapp/auth-service/internal/domain/service"
)

func TestValidatePassword_Accepted(t *testing.T) {
	testCases := []struct {
		name     string
		password string
		email    string
	}{
		{"Minimal", "Abcdef12", "alice@example.com"},
		{"NoEmailKnown", "Abcdef12", ""},
		{"Symbols", "Tr0ub4dor&3", "alice@example.com"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.NoError(t, service.ValidatePassword(tc.password, tc.email))
		})
	}
}

func TestValidatePassword_SingleViolations(t *testing.T) {
	testCases := []struct {
		name     string
		password string
		email    string
	}{
		{"TooShort", "Abc12de", "x@example.com"},
		{"NoUppercase", "abcdef12", "x@example.com"},
		{"NoLowercase", "ABCDEF12", "x@example.com"},
		{"NoDigit", "Abcdefgh", "x@example.com"},
		{"ContainsEmail", "Xx@example.com1", "x@example.com"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := service.ValidatePassword(tc.password, tc.email)
			require.Error(t, err)
			assert.ErrorIs(t, err, domainErrors.ErrInvalidInput)
		})
	}
}

func TestValidatePassword_LocalPartRejected(t *testing.T) {
	err := service.ValidatePassword("Marketing1", "marketing1@example.com")
	require.Error(t, err)

	var vErr *domainErrors.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, vErr.Violations, "password must not match the email username")
}

func TestValidatePassword_AllViolationsReported(t *testing.T) {
	err := service.ValidatePassword("abc", "x@example.com")
	require.Error(t, err)

	var vErr *domainErrors.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Len(t, vErr.Violations, 3)
	assert.Contains(t, vErr.Violations, "password must be at least 8 characters long")
	assert.Contains(t, vErr.Violations, "password must contain at least one uppercase letter")
	assert.Contains(t, vErr.Violations, "password must contain at least one digit")
}

func TestValidatePassword_TooLong(t *testing.T) {
	long := make([]byte, 129)
	for i := range long {
		long[i] = 'a'
	}
	long[0] = 'A'
	long[1] = '1'

	err := service.ValidatePassword(string(long), "x@example.com")
	require.Error(t, err)

	var vErr *domainErrors.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, vErr.Violations, "password must be at most 128 characters long")
}
