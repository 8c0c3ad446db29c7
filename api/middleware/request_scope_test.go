package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/angelmondragon/restaurant-checkout/pkg/logger"
)

func TestRequestIDKeepsValidHeaderAndReplacesUnsafeOnes(t *testing.T) {
	tests := []struct {
		name     string
		header   string
		keepSame bool
	}{
		{name: "caller id kept", header: "req-7f3a9c", keepSame: true},
		{name: "missing", header: ""},
		{name: "control characters", header: "abc\x01def"},
		{name: "spaces", header: "two words"},
		{name: "too long", header: strings.Repeat("a", maxRequestIDLength+1)},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var seen string
			handler := RequestID(logger.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = RequestIDFromContext(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
			if tc.header != "" {
				req.Header.Set(requestIDHeader, tc.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			got := rec.Header().Get(requestIDHeader)
			if got == "" || got != seen {
				t.Fatalf("response id %q does not match context id %q", got, seen)
			}
			if tc.keepSame && got != tc.header {
				t.Fatalf("expected caller id %q, got %q", tc.header, got)
			}
			if !tc.keepSame && got == tc.header {
				t.Fatalf("unsafe id %q should have been replaced", tc.header)
			}
		})
	}
}

func TestRecovererTagsPanicWithPaymentIntent(t *testing.T) {
	var buf bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "api", Level: zerolog.InfoLevel, Output: &buf})

	confirm := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		NotePaymentIntent(r.Context(), "pi_3PanicAfterCharge")
		NoteOrder(r.Context(), "8c1f0c9e-52c4-4c43-9f0a-2d6f0d3c4a11")
		panic("order number sequence unavailable")
	})
	handler := RequestID(logg)(Recoverer(logg)(confirm))

	req := httptest.NewRequest(http.MethodPost, "/api/payments/confirm", nil)
	req.Header.Set(requestIDHeader, "req-confirm-1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	out := buf.String()
	for _, want := range []string{
		`"message":"panic.recovered"`,
		`"payment_intent_id":"pi_3PanicAfterCharge"`,
		`"order_id":"8c1f0c9e-52c4-4c43-9f0a-2d6f0d3c4a11"`,
		`"request_id":"req-confirm-1"`,
		`"route":"POST /api/payments/confirm"`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %s in log output:\n%s", want, out)
		}
	}
}

func TestRecovererReraisesAbortHandler(t *testing.T) {
	handler := Recoverer(logger.Nop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	defer func() {
		if rec := recover(); rec != http.ErrAbortHandler {
			t.Fatalf("expected http.ErrAbortHandler to propagate, got %v", rec)
		}
	}()
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/orders", nil))
	t.Fatal("panic was swallowed")
}

func TestLoggingIncludesNotedOrderOnCompletion(t *testing.T) {
	var buf bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "api", Level: zerolog.InfoLevel, Output: &buf})

	detail := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		NoteOrder(r.Context(), "order-42")
		w.WriteHeader(http.StatusOK)
	})
	handler := RequestID(logg)(Logging(logg)(detail))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/orders/order-42", nil))

	out := buf.String()
	if !strings.Contains(out, `"message":"request.complete"`) || !strings.Contains(out, `"order_id":"order-42"`) {
		t.Fatalf("expected completed request to carry order id:\n%s", out)
	}
}

func TestNotesWithoutScopeAreIgnored(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	NotePaymentIntent(req.Context(), "pi_1")
	NoteOrder(req.Context(), "order-1")
	if RequestIDFromContext(req.Context()) != "" {
		t.Fatal("expected no request id outside RequestID")
	}
	if fields := scopeFrom(req.Context()).fields(); fields != nil {
		t.Fatalf("expected no fields, got %v", fields)
	}
}
