package payments

import (
	"errors"
	"fmt"

	pkgerrors "github.com/angelmondragon/restaurant-checkout/pkg/errors"
	"github.com/angelmondragon/restaurant-checkout/pkg/stripe"
)

var (
	// ErrMerchantNotConfigured means no connected account can receive the split.
	ErrMerchantNotConfigured = errors.New("merchant account not configured")
	// ErrPaymentInitiationFailed means the processor refused to create the intent.
	ErrPaymentInitiationFailed = errors.New("payment initiation failed")
	// ErrPaymentNotFound means the processor has no intent with that id in the merchant context.
	ErrPaymentNotFound = errors.New("payment not found")
	// ErrPaymentLookupFailed means the processor could not be asked about the intent.
	ErrPaymentLookupFailed = errors.New("payment lookup failed")
	// ErrPaymentNotSucceeded is matched by every *NotSucceededError.
	ErrPaymentNotSucceeded = errors.New("payment not succeeded")
	// ErrAccountMismatch means the intent belongs to another connected account.
	ErrAccountMismatch = errors.New("payment belongs to a different account")
)

// NotSucceededError reports the intent's current, non-terminal-success status.
// Callers checking too early is expected and not a hard failure.
type NotSucceededError struct {
	Status string
}

func (e *NotSucceededError) Error() string {
	return fmt.Sprintf("payment not succeeded: status %s", e.Status)
}

func (e *NotSucceededError) Is(target error) bool {
	return target == ErrPaymentNotSucceeded
}

func merchantNotConfigured(reason string) error {
	return pkgerrors.Wrap(pkgerrors.CodePrecondition, ErrMerchantNotConfigured, "merchant account is not ready to accept payments").
		WithDetails(map[string]any{"reason": reason})
}

func notSucceeded(status string) error {
	return pkgerrors.Wrap(pkgerrors.CodePrecondition, &NotSucceededError{Status: status}, "payment has not succeeded").
		WithDetails(map[string]any{"status": status})
}

// processorError keeps the processor code on the error so callers can tell a
// decline from an outage. Timeouts and 5xx map to the retryable dependency code.
func processorError(err error, sentinel error, message string) error {
	code := pkgerrors.CodePaymentFailed
	if stripe.IsRetryable(err) {
		code = pkgerrors.CodeDependency
	}
	return pkgerrors.Wrap(code, fmt.Errorf("%w: %w", sentinel, err), message).WithDetails(map[string]any{
		"processorCode":    stripe.ErrorCode(err),
		"processorMessage": stripe.ErrorMessage(err),
		"retryable":        stripe.IsRetryable(err),
	})
}
