package errors

import (
	stdErrors "errors"
	"net/http"
	"testing"

	"github.com/stripe/stripe-go/v84"
)

func TestMetadataForKnownCodes(t *testing.T) {
	tests := []struct {
		code      Code
		status    int
		retryable bool
		detailsOK bool
	}{
		{code: CodeValidation, status: http.StatusBadRequest, detailsOK: true},
		{code: CodeUnauthorized, status: http.StatusUnauthorized},
		{code: CodeNotFound, status: http.StatusNotFound},
		{code: CodeStateConflict, status: http.StatusUnprocessableEntity, detailsOK: true},
		{code: CodePrecondition, status: http.StatusPreconditionFailed, detailsOK: true},
		{code: CodePaymentFailed, status: http.StatusPaymentRequired, detailsOK: true},
		{code: CodeTooLarge, status: http.StatusRequestEntityTooLarge},
		{code: CodeReconciliation, status: http.StatusInternalServerError, detailsOK: true},
		{code: CodeInternal, status: http.StatusInternalServerError, retryable: true},
		{code: CodeDependency, status: http.StatusServiceUnavailable, retryable: true, detailsOK: true},
	}

	for _, tt := range tests {
		meta := MetadataFor(tt.code)
		if meta.HTTPStatus != tt.status {
			t.Fatalf("code %s expected status %d got %d", tt.code, tt.status, meta.HTTPStatus)
		}
		if meta.Retryable != tt.retryable {
			t.Fatalf("code %s expected retryable %v got %v", tt.code, tt.retryable, meta.Retryable)
		}
		if meta.DetailsAllowed != tt.detailsOK {
			t.Fatalf("code %s expected details allowed %v got %v", tt.code, tt.detailsOK, meta.DetailsAllowed)
		}
	}
}

func TestMetadataForUnknownCodeDefaultsToInternal(t *testing.T) {
	meta := MetadataFor("SOMETHING_UNKNOWN")
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal status, got %d", meta.HTTPStatus)
	}
}

func TestWrapPreservesSentinel(t *testing.T) {
	sentinel := stdErrors.New("merchant not configured")
	wrapped := Wrap(CodePrecondition, sentinel, "connect onboarding incomplete")
	if !stdErrors.Is(wrapped, sentinel) {
		t.Fatalf("Wrap did not preserve cause")
	}
	if CodeOf(wrapped) != CodePrecondition {
		t.Fatalf("unexpected code %s", CodeOf(wrapped))
	}
	if wrapped.Retryable() {
		t.Fatalf("precondition errors are not retryable")
	}
}

func TestCodeOfUntypedIsInternal(t *testing.T) {
	if got := CodeOf(stdErrors.New("boom")); got != CodeInternal {
		t.Fatalf("expected internal, got %s", got)
	}
}

func TestDumpCapturesStripeFields(t *testing.T) {
	stripeErr := &stripe.Error{
		Code:           stripe.ErrorCodeResourceMissing,
		Type:           stripe.ErrorTypeInvalidRequest,
		HTTPStatusCode: http.StatusNotFound,
		RequestID:      "req_123",
	}
	d := Dump(Wrap(CodeNotFound, stripeErr, "payment intent not found"))
	if d.Code != CodeNotFound {
		t.Fatalf("expected not found code, got %s", d.Code)
	}
	if d.StripeCode != string(stripe.ErrorCodeResourceMissing) || d.StripeStatus != http.StatusNotFound {
		t.Fatalf("stripe fields missing: %+v", d)
	}
	if _, ok := d.Fields()["stripe_request_id"]; !ok {
		t.Fatalf("expected stripe fields in log map")
	}
	if len(d.Chain) != 2 {
		t.Fatalf("expected chain of 2, got %d", len(d.Chain))
	}
}
