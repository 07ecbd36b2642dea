// Package shared defines sentinel errors used across the zenote layers.
// Callers should match these values with errors.Is.
package shared

import "errors"

var (

	// repository-level errors
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")

	// write-layer errors
	ErrValidation      = errors.New("validation error")
	ErrConflictPending = errors.New("entity has an unresolved conflict")

	// session errors
	ErrInvalidToken = errors.New("invalid token")
	ErrNotLoggedIn  = errors.New("not logged in")
)
