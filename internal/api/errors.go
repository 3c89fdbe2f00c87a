package api

import (
	"errors"
	"fmt"
)

// Sentinel errors for the failure classes the UI branches on.
var (
	// ErrInvalidCredentials is a 401 from /auth/login: user-correctable,
	// shown inline on the login form.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrSessionExpired is a 401 on any other call, or a client-detected
	// token expiry. The adapter clears the session before returning it.
	ErrSessionExpired = errors.New("session expired")

	// ErrNotFound is a 404 on a detail fetch, rendered as a "not found"
	// state rather than a failure.
	ErrNotFound = errors.New("not found")
)

// ValidationError is a 4xx carrying a backend detail message, surfaced
// verbatim to the user.
type ValidationError struct {
	Status int
	Detail string
}

func (e *ValidationError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	return fmt.Sprintf("request rejected with status %d", e.Status)
}

// TransientError is a network failure or 5xx. Mutations surface it as a
// generic failure message; background polling swallows it and retries on
// the next tick.
type TransientError struct {
	Status int // 0 for transport-level failures
	Err    error
}

func (e *TransientError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transient error: %v", e.Err)
	}
	return fmt.Sprintf("transient error: status %d", e.Status)
}

func (e *TransientError) Unwrap() error { return e.Err }

// IsTransient reports whether err is a transport failure or 5xx response.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// ValidationDetail returns the backend detail message if err is a
// ValidationError, or "" otherwise.
func ValidationDetail(err error) string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Detail
	}
	return ""
}
