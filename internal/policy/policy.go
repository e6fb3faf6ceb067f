// Package policy holds the stateless credential validators.
package policy

import (
	"regexp"

	"github.com/classmark/attendance/internal/domain"
)

const MinPasswordLength = 8

var (
	emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

	lowerRegex  = regexp.MustCompile(`[a-z]`)
	upperRegex  = regexp.MustCompile(`[A-Z]`)
	digitRegex  = regexp.MustCompile(`\d`)
	symbolRegex = regexp.MustCompile(`[@$!%*?&]`)
)

// ValidateEmail checks the conventional local@domain.tld shape. Shape only;
// deliverability is out of scope.
func ValidateEmail(email string) bool {
	return emailRegex.MatchString(email)
}

// ValidatePassword applies the strength rules in order: empty, length, then
// the composed character-class check. The first failing rule's reason comes
// back as a validation error; nil means the password passes.
func ValidatePassword(password string) error {
	if password == "" {
		return domain.Validation(domain.CodeEmptyPassword, "Password cannot be empty")
	}
	if len(password) < MinPasswordLength {
		return domain.Validation(domain.CodePasswordTooShort,
			"Password must be at least %d characters", MinPasswordLength)
	}
	if !lowerRegex.MatchString(password) ||
		!upperRegex.MatchString(password) ||
		!digitRegex.MatchString(password) ||
		!symbolRegex.MatchString(password) {
		return domain.Validation(domain.CodeWeakPassword,
			"Password must contain at least one uppercase letter, one lowercase letter, one number, and one special character")
	}
	return nil
}
