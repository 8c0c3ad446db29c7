package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/restaurant-checkout/pkg/enums"
)

// PaymentReconciliation tracks a succeeded payment that has no order yet.
// At most one open row exists per payment intent.
type PaymentReconciliation struct {
	ID              uuid.UUID                  `gorm:"column:id;type:uuid;primaryKey"`
	PaymentIntentID string                     `gorm:"column:payment_intent_id;not null;uniqueIndex"`
	Reason          enums.ReconciliationReason `gorm:"column:reason;type:text;not null"`
	Status          enums.ReconciliationStatus `gorm:"column:status;type:text;not null;default:'open'"`
	AmountCents     int64                      `gorm:"column:amount_cents;not null;default:0"`
	Currency        string                     `gorm:"column:currency;type:text"`
	Attempts        int                        `gorm:"column:attempts;not null;default:0"`
	LastError       *string                    `gorm:"column:last_error"`
	OrderID         *uuid.UUID                 `gorm:"column:order_id;type:uuid"`
	// Payload is the original checkout request when one was available.
	Payload         json.RawMessage            `gorm:"column:payload;type:jsonb"`
	NextAttemptAt   time.Time                  `gorm:"column:next_attempt_at;not null"`
	ResolvedAt      *time.Time                 `gorm:"column:resolved_at"`
	EscalatedAt     *time.Time                 `gorm:"column:escalated_at"`
	CreatedAt       time.Time                  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time                  `gorm:"column:updated_at;autoUpdateTime"`
}

func (PaymentReconciliation) TableName() string { return "payment_reconciliations" }
