package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/restaurant-checkout/pkg/enums"
	"github.com/angelmondragon/restaurant-checkout/pkg/types"
)

// Order is the kitchen-facing record of a paid checkout. One row per payment intent.
type Order struct {
	ID              uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	OrderNumber     string             `gorm:"column:order_number;not null"`
	OrderSeq        *int64             `gorm:"column:order_seq"`
	PaymentIntentID string             `gorm:"column:payment_intent_id;not null;uniqueIndex:orders_payment_intent_id_key"`
	Status          enums.OrderStatus  `gorm:"column:status;type:text;not null;default:'pending'"`
	Source          enums.OrderSource  `gorm:"column:source;type:text;not null"`
	OrderType       enums.OrderType    `gorm:"column:order_type;type:text;not null;default:'pickup'"`
	Currency        string             `gorm:"column:currency;type:text;not null"`
	AmountCents     int64              `gorm:"column:amount_cents;not null"`
	SubtotalCents   int64              `gorm:"column:subtotal_cents;not null"`
	ServiceFeeCents int64              `gorm:"column:service_fee_cents;not null"`
	CustomerInfo    types.CustomerInfo `gorm:"column:customer_info;type:jsonb;serializer:json;not null"`
	Items           types.OrderItems   `gorm:"column:items;type:jsonb;serializer:json;not null"`
	ItemsTruncated  bool               `gorm:"column:items_truncated;not null;default:false"`
	PlacedAt        time.Time          `gorm:"column:placed_at;not null"`
	CancelledAt     *time.Time         `gorm:"column:cancelled_at"`
	CompletedAt     *time.Time         `gorm:"column:completed_at"`
	CreatedAt       time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

func (Order) TableName() string { return "orders" }
