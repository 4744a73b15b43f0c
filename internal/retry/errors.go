package retry

import (
	"context"
	"errors"
	"fmt"

	"go-jobharvest/internal/browser"
	"go-jobharvest/internal/ratelimit"
)

var (
	// ErrFatal marks a failure that retrying cannot fix.
	ErrFatal = errors.New("fatal navigation failure")
	// ErrNavigationExhausted is matched by every *ExhaustedError.
	ErrNavigationExhausted = errors.New("navigation retries exhausted")
)

// Fatal wraps err so the controller propagates it without retrying.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrFatal, err)
}

// ExhaustedError is returned after the last transient failure of an action.
type ExhaustedError struct {
	Label    string
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s: gave up after %d attempts: %v", e.Label, e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error { return e.Last }

func (e *ExhaustedError) Is(target error) bool { return target == ErrNavigationExhausted }

// IsFatal reports whether err must not be retried here: explicit fatal marks, confirmed
// absence of an element, and rate-limit signals, which the rate limiter owns.
func IsFatal(err error) bool {
	return errors.Is(err, ErrFatal) ||
		errors.Is(err, browser.ErrNotFound) ||
		errors.Is(err, browser.ErrNotSupported) ||
		errors.Is(err, ratelimit.ErrRateLimited)
}

// Classify names the failure class used in failure records.
func Classify(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.Canceled):
		return "cancelled"
	case errors.Is(err, ratelimit.ErrRetriesExhausted):
		return "rate_limited"
	case errors.Is(err, ErrNavigationExhausted):
		return "navigation_exhausted"
	case IsFatal(err):
		return "fatal_navigation"
	default:
		return "transient_navigation"
	}
}
