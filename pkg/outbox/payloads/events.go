package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/restaurant-checkout/pkg/enums"
)

// OrderCreatedEvent announces a new paid order to the kitchen.
type OrderCreatedEvent struct {
	OrderID         uuid.UUID         `json:"order_id"`
	OrderNumber     string            `json:"order_number"`
	PaymentIntentID string            `json:"payment_intent_id"`
	Source          enums.OrderSource `json:"source"`
	OrderType       enums.OrderType   `json:"order_type"`
	CustomerName    string            `json:"customer_name"`
	ItemCount       int               `json:"item_count"`
	AmountCents     int64             `json:"amount_cents"`
	Currency        string            `json:"currency"`
	PlacedAt        time.Time         `json:"placed_at"`
}

// OrderStatusChangedEvent follows a staff status update.
type OrderStatusChangedEvent struct {
	OrderID     uuid.UUID         `json:"order_id"`
	OrderNumber string            `json:"order_number"`
	From        enums.OrderStatus `json:"from"`
	To          enums.OrderStatus `json:"to"`
	ChangedAt   time.Time         `json:"changed_at"`
}

// MerchantStatusChangedEvent follows a connected-account capability change.
type MerchantStatusChangedEvent struct {
	MerchantID     uuid.UUID                   `json:"merchant_id"`
	AccountID      string                      `json:"account_id"`
	From           enums.MerchantAccountStatus `json:"from"`
	To             enums.MerchantAccountStatus `json:"to"`
	ChargesEnabled bool                        `json:"charges_enabled"`
	PayoutsEnabled bool                        `json:"payouts_enabled"`
}

// ReconciliationEscalatedEvent asks a human to look at a paid intent without an order.
type ReconciliationEscalatedEvent struct {
	ReconciliationID uuid.UUID                  `json:"reconciliation_id"`
	PaymentIntentID  string                     `json:"payment_intent_id"`
	Reason           enums.ReconciliationReason `json:"reason"`
	Attempts         int                        `json:"attempts"`
	AmountCents      int64                      `json:"amount_cents"`
	Currency         string                     `json:"currency"`
	LastError        string                     `json:"last_error,omitempty"`
}
