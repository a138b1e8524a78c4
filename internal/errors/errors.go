package errors

import (
	"errors"
	"fmt"
)

// Common error types for the RuleHub client
var (
	// Redirect / callback integrity errors
	ErrInvalidState = errors.New("invalid state parameter")
	ErrMissingToken = errors.New("missing access token")

	// Identity provider errors
	ErrProviderRejected = errors.New("identity provider rejected the request")

	// Session errors
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrSessionNotFound  = errors.New("session not found")

	// Storage errors
	ErrStorageRead  = errors.New("session storage read failed")
	ErrStorageWrite = errors.New("session storage write failed")

	// General errors
	ErrInternal    = errors.New("internal error")
	ErrUnsupported = errors.New("unsupported operation")
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
