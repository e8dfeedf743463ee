package apperrors

import (
	"errors"
	"fmt"
)

// Common error types for the codestash core
var (
	// Login flow errors
	ErrBind            = errors.New("no loopback port available")
	ErrInvalidState    = errors.New("invalid state parameter")
	ErrExchangeFailed  = errors.New("identity exchange failed")
	ErrUnauthenticated = errors.New("user not authenticated")
	ErrLoginInFlight   = errors.New("login already in progress")
	ErrCallbackTimeout = errors.New("timed out waiting for browser callback")
	ErrAlreadyResolved = errors.New("login attempt already resolved")

	// Repository errors
	ErrValidation   = errors.New("invalid input")
	ErrNotFound     = errors.New("project not found or access denied")
	ErrPathNotFound = errors.New("workspace path no longer exists")
	ErrCancelled    = errors.New("cancelled by user")
	ErrNetwork      = errors.New("network failure")
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
