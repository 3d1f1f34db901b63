// Package common defines the sentinel errors shared by every layer of
// eardogger. Callers should match them with errors.Is; the HTTP layer maps
// each one to a single outward status code.
package common

import (
	"errors"
	"fmt"
)

var (
	// Auth errors.
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
	ErrCSRFMismatch    = fmt.Errorf("%w: csrf mismatch", ErrForbidden)

	// Repository-level errors.
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")

	// Input errors.
	ErrValidation = errors.New("validation error")

	// The database could not service the request.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// Validationf wraps ErrValidation with a human readable reason.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
