package service

import (
	"strings"
	"unicode"

	domainErrors "github.com/todoapp/auth-service/internal/domain/errors"
)

const (
	minPasswordLength = 8
	maxPasswordLength = 128
)

// ValidatePassword checks a candidate password against the account policy.
// All violations are collected and reported together so the client can show
// the complete list in one round trip. The email is used to reject passwords
// that embed the address or its local part; pass "" when no email is known.
func ValidatePassword(password, email string) error {
	var violations []string

	if len(password) < minPasswordLength {
		violations = append(violations, "password must be at least 8 characters long")
	}
	if len(password) > maxPasswordLength {
		violations = append(violations, "password must be at most 128 characters long")
	}

	var hasUpper, hasLower, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasUpper {
		violations = append(violations, "password must contain at least one uppercase letter")
	}
	if !hasLower {
		violations = append(violations, "password must contain at least one lowercase letter")
	}
	if !hasDigit {
		violations = append(violations, "password must contain at least one digit")
	}

	if email != "" {
		lowerPassword := strings.ToLower(password)
		lowerEmail := strings.ToLower(email)
		if strings.Contains(lowerPassword, lowerEmail) {
			violations = append(violations, "password must not contain the email address")
		}
		if local, _, ok := strings.Cut(lowerEmail, "@"); ok && local != "" && lowerPassword == local {
			violations = append(violations, "password must not match the email username")
		}
	}

	if len(violations) > 0 {
		return domainErrors.NewValidationError("password does not meet requirements", violations)
	}
	return nil
}
