package models

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound = errors.New("not found")

	// ErrNotAuthenticated is returned by chat operations that require an
	// active session.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrNoActiveRoom is returned by sendMessage when no room is selected.
	ErrNoActiveRoom = errors.New("no active room selected")
)

// ValidationError reports malformed input caught before any network call.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// AuthError reports a credential or session failure.
type AuthError struct {
	Reason string
	Err    error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("authentication failed: %s: %v", e.Reason, e.Err)
	}
	return "authentication failed: " + e.Reason
}

func (e *AuthError) Unwrap() error { return e.Err }

// ConflictError reports a duplicate unique field, e.g. an already
// registered email.
type ConflictError struct {
	Field string
	Err   error
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s already registered", e.Field)
}

func (e *ConflictError) Unwrap() error { return e.Err }

// SendFailedError surfaces a message persistence failure verbatim.
type SendFailedError struct {
	Err error
}

func (e *SendFailedError) Error() string {
	return fmt.Sprintf("send failed: %v", e.Err)
}

func (e *SendFailedError) Unwrap() error { return e.Err }

// FetchFailedError surfaces a platform read failure verbatim. The previous
// cached state is left untouched by the failed operation.
type FetchFailedError struct {
	What string
	Err  error
}

func (e *FetchFailedError) Error() string {
	return fmt.Sprintf("failed to fetch %s: %v", e.What, e.Err)
}

func (e *FetchFailedError) Unwrap() error { return e.Err }
