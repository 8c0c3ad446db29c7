package stripe

import (
	"context"
	"errors"
	"net/http"

	"github.com/stripe/stripe-go/v84"
)

// IsNotFound reports whether Stripe said the object does not exist.
func IsNotFound(err error) bool {
	var se *stripe.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.HTTPStatusCode == http.StatusNotFound || se.Code == stripe.ErrorCodeResourceMissing
}

// IsRetryable reports whether the same request may succeed later: timeouts,
// transport failures, rate limits and Stripe-side 5xx.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var se *stripe.Error
	if !errors.As(err, &se) {
		// Not an API response at all: the request never completed.
		return true
	}
	if se.HTTPStatusCode == http.StatusTooManyRequests || se.HTTPStatusCode >= http.StatusInternalServerError {
		return true
	}
	return se.Type == stripe.ErrorTypeAPI
}

// ErrorCode returns Stripe's machine-readable error code, if any.
func ErrorCode(err error) string {
	var se *stripe.Error
	if !errors.As(err, &se) {
		return ""
	}
	if se.DeclineCode != "" {
		return string(se.DeclineCode)
	}
	return string(se.Code)
}

// ErrorMessage returns Stripe's human-readable message, if any.
func ErrorMessage(err error) string {
	var se *stripe.Error
	if !errors.As(err, &se) {
		return ""
	}
	return se.Msg
}
