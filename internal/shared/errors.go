package shared

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrForbidden indicates the principal lacks the required permission.
	ErrForbidden = errors.New("forbidden")
)

// ValidationError reports caller input that failed a business rule. Missing
// holds the specific offending values (unknown permission codes, unknown role
// slugs) so an administrator can correct the request without guessing.
type ValidationError struct {
	Field   string
	Message string
	Missing []string
}

func (e *ValidationError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("%s: %s: %s", e.Field, e.Message, strings.Join(e.Missing, ", "))
	}
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

// NewValidationError builds a ValidationError for a single field.
func NewValidationError(field, message string, missing ...string) *ValidationError {
	return &ValidationError{Field: field, Message: message, Missing: missing}
}

// IsValidation reports whether err wraps a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// UserSafeMessage returns a message safe to surface to end users.
func UserSafeMessage(err error) string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Error()
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return "not found"
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid credentials"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	}
	return "internal error"
}
