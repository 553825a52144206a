// Package domain holds the error sentinels shared by every DevMatch component.
// Components wrap them with context (fmt.Errorf("%w: ...")) and the transport
// layer maps them to status codes.
package domain

import "errors"

var (
	// ErrValidation marks malformed input or a missing user context.
	ErrValidation = errors.New("validation error")
	// ErrNotFound is only returned where a missing record cannot be a no-op.
	ErrNotFound = errors.New("not found")
	// ErrBlocked means one side of an interaction has blocked the other.
	ErrBlocked = errors.New("blocked")
	// ErrUnauthenticated is returned by the mock login.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrConflict means the record already exists (e.g. a taken email).
	ErrConflict = errors.New("already exists")
	// ErrUnavailable is a transient (simulated network) failure.
	ErrUnavailable = errors.New("temporarily unavailable")
)
