package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/restaurant-checkout/pkg/enums"
)

// LedgerEvent records one immutable leg of an order's payment split.
type LedgerEvent struct {
	ID              uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	OrderID         uuid.UUID             `gorm:"column:order_id;type:uuid;not null"`
	PaymentIntentID string                `gorm:"column:payment_intent_id;not null"`
	AccountID       string                `gorm:"column:account_id;not null"`
	Type            enums.LedgerEventType `gorm:"column:type;type:text;not null"`
	AmountCents     int64                 `gorm:"column:amount_cents;not null"`
	Currency        string                `gorm:"column:currency;type:text;not null"`
	Metadata        json.RawMessage       `gorm:"column:metadata;type:jsonb"`
	CreatedAt       time.Time             `gorm:"column:created_at;autoCreateTime"`
}

func (LedgerEvent) TableName() string { return "ledger_events" }
