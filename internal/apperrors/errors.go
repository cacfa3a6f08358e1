package apperrors

import (
	"errors"
	"fmt"
)

var (
	ErrUserAlreadyExists  = errors.New("user already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid username or password")

	// ErrInvalidToken covers every untrusted-input failure: bad signature,
	// malformed token, wrong purpose secret or expiry. Callers must not be
	// able to tell which check failed.
	ErrInvalidToken = errors.New("invalid token")

	// ErrSessionNotFound means the presented refresh token is not the one
	// on record: superseded by a later login or refresh, revoked by logout,
	// or never issued.
	ErrSessionNotFound = errors.New("session not found")
)

// ConflictError reports which unique field collided during registration.
// It matches ErrUserAlreadyExists with errors.Is, so handlers that only
// care about the 409 class keep working.
type ConflictError struct {
	Field string // "email" or "username"
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("user with this %s already exists", e.Field)
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrUserAlreadyExists
}
