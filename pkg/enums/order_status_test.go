package enums

import "testing"

func TestOrderStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to OrderStatus
		allowed  bool
	}{
		{OrderStatusPending, OrderStatusPreparing, true},
		{OrderStatusPending, OrderStatusReady, true},
		{OrderStatusPreparing, OrderStatusReady, true},
		{OrderStatusReady, OrderStatusCompleted, true},
		{OrderStatusReady, OrderStatusPreparing, false},
		{OrderStatusPreparing, OrderStatusPending, false},
		{OrderStatusPending, OrderStatusPending, false},
		{OrderStatusPreparing, OrderStatusCancelled, true},
		{OrderStatusCompleted, OrderStatusCancelled, false},
		{OrderStatusCancelled, OrderStatusPending, false},
		{OrderStatusPending, OrderStatus("bogus"), false},
	}
	for _, tt := range tests {
		if got := tt.from.CanTransitionTo(tt.to); got != tt.allowed {
			t.Fatalf("%s -> %s: expected %v got %v", tt.from, tt.to, tt.allowed, got)
		}
	}
}

func TestParseOrderType(t *testing.T) {
	got, err := ParseOrderType("")
	if err != nil || got != OrderTypePickup {
		t.Fatalf("blank order type should default to pickup, got %q err %v", got, err)
	}
	got, err = ParseOrderType(" Delivery ")
	if err != nil || got != OrderTypeDelivery {
		t.Fatalf("expected delivery, got %q err %v", got, err)
	}
	if _, err := ParseOrderType("dine-in"); err == nil {
		t.Fatalf("expected error for unknown order type")
	}
}
