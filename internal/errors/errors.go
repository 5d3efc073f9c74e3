package errors

import (
	"errors"
	"fmt"
)

// Common error types for the session coordinator
var (
	// Token errors
	ErrNoAccessToken     = errors.New("no access token")
	ErrNoRefreshToken    = errors.New("no refresh token")
	ErrTokenDecode       = errors.New("token decode failed")
	ErrMalformedResponse = errors.New("malformed refresh response")

	// Refresh errors
	ErrRefreshFailed     = errors.New("refresh failed")
	ErrRefreshInFlight   = errors.New("refresh already in flight")
	ErrCoordinatorClosed = errors.New("coordinator closed")

	// Lock errors
	ErrLockHeld = errors.New("lock held by another instance")
	ErrNotOwner = errors.New("not the lock owner")

	// General errors
	ErrNotFound = errors.New("not found")
	ErrInternal = errors.New("internal error")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
