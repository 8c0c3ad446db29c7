package middleware

import (
	"context"
	"sync"
)

type scopeKey struct{}

// requestScope collects the checkout identifiers a handler resolves while it
// runs, so outer middleware can log them after the handler returns or panics.
type requestScope struct {
	mu              sync.Mutex
	requestID       string
	paymentIntentID string
	orderID         string
}

func withRequestScope(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, scopeKey{}, &requestScope{requestID: requestID})
}

func scopeFrom(ctx context.Context) *requestScope {
	if ctx == nil {
		return nil
	}
	s, _ := ctx.Value(scopeKey{}).(*requestScope)
	return s
}

// NotePaymentIntent records the payment intent the request is working on.
func NotePaymentIntent(ctx context.Context, paymentIntentID string) {
	if s := scopeFrom(ctx); s != nil && paymentIntentID != "" {
		s.mu.Lock()
		s.paymentIntentID = paymentIntentID
		s.mu.Unlock()
	}
}

// NoteOrder records the order the request created or touched.
func NoteOrder(ctx context.Context, orderID string) {
	if s := scopeFrom(ctx); s != nil && orderID != "" {
		s.mu.Lock()
		s.orderID = orderID
		s.mu.Unlock()
	}
}

// RequestIDFromContext returns the id assigned by RequestID.
func RequestIDFromContext(ctx context.Context) string {
	s := scopeFrom(ctx)
	if s == nil {
		return ""
	}
	return s.requestID
}

func (s *requestScope) fields() map[string]any {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	fields := map[string]any{}
	if s.paymentIntentID != "" {
		fields["payment_intent_id"] = s.paymentIntentID
	}
	if s.orderID != "" {
		fields["order_id"] = s.orderID
	}
	return fields
}
