// Package common defines shared constants and sentinel errors used across
// the ecomarket server layers. Callers should use errors.Is to match these
// values.
package common

import (
	"errors"
	"fmt"
)

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// ErrConflict is returned when a uniqueness invariant would be broken.
	ErrConflict = errors.New("conflict")

	// ErrInvalidAccount marks an account that cannot be authenticated
	// against, e.g. one without a usable password hash.
	ErrInvalidAccount = errors.New("invalid account")

	// Auth errors (invalid, malformed or expired token).
	ErrInvalidToken = errors.New("invalid token")

	// Upload / storage errors.
	ErrBadRequest           = errors.New("bad request")
	ErrPayloadTooLarge      = errors.New("payload too large")
	ErrUnsupportedMediaType = errors.New("unsupported media type")
	ErrAccessDenied         = errors.New("access denied")
)

// ConflictError reports which unique field collided. It matches ErrConflict
// through errors.Is.
type ConflictError struct {
	Field   string
	Message string
}

func (e *ConflictError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("%s already exists", e.Field)
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// NewUsernameConflict and NewEmailConflict build the two registration
// conflicts with their client-facing messages.
func NewUsernameConflict() *ConflictError {
	return &ConflictError{Field: "username", Message: "username already taken"}
}

func NewEmailConflict() *ConflictError {
	return &ConflictError{Field: "email", Message: "email already in use"}
}
