package core

import (
	"errors"
	"fmt"
)

// Not-found and validation errors
var (
	ErrJobNotFound     = errors.New("applyn: build job not found")
	ErrAppNotFound     = errors.New("applyn: app not found")
	ErrPaymentNotFound = errors.New("applyn: payment not found")

	ErrInvalidID          = errors.New("applyn: invalid identifier")
	ErrInvalidStatus      = errors.New("applyn: invalid status for this transition")
	ErrInvalidPackageName = errors.New("applyn: invalid package name (must be reverse-DNS, e.g. com.example.app)")
	ErrInvalidPlan        = errors.New("applyn: invalid plan")
	ErrInvalidAmount      = errors.New("applyn: payment amount must be positive")
)

// NoRetryError indicates a build failure that should not be retried.
type NoRetryError struct {
	Err error
}

func (e *NoRetryError) Error() string {
	return fmt.Sprintf("no retry: %v", e.Err)
}

func (e *NoRetryError) Unwrap() error {
	return e.Err
}

// NoRetry wraps an error to indicate the build should fail permanently
// regardless of how many attempts remain.
func NoRetry(err error) error {
	return &NoRetryError{Err: err}
}

// IsNoRetry reports whether err or any error it wraps is a NoRetryError.
func IsNoRetry(err error) bool {
	var nre *NoRetryError
	return errors.As(err, &nre)
}
