package ledger

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/restaurant-checkout/pkg/db/models"
	"github.com/angelmondragon/restaurant-checkout/pkg/enums"
)

// Service records how each order's money was split.
type Service interface {
	RecordSplit(ctx context.Context, tx *gorm.DB, input SplitInput) ([]models.LedgerEvent, error)
	ListForOrder(ctx context.Context, orderID uuid.UUID) ([]models.LedgerEvent, error)
}

type service struct {
	repo Repository
}

// SplitInput is the immutable data behind one order's ledger rows.
type SplitInput struct {
	OrderID         uuid.UUID
	PaymentIntentID string
	AccountID       string
	Currency        string
	SubtotalCents   int64
	ServiceFeeCents int64
	Source          enums.OrderSource
}

// NewService wires a ledger service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	return &service{repo: repo}, nil
}

// RecordSplit writes a platform_fee row and a merchant_share row in tx.
// The two amounts always add up to the charged total.
func (s *service) RecordSplit(ctx context.Context, tx *gorm.DB, input SplitInput) ([]models.LedgerEvent, error) {
	if input.OrderID == uuid.Nil {
		return nil, fmt.Errorf("order id is required")
	}
	if input.PaymentIntentID == "" {
		return nil, fmt.Errorf("payment intent id is required")
	}
	if input.SubtotalCents <= 0 || input.ServiceFeeCents < 0 {
		return nil, fmt.Errorf("invalid split %d/%d", input.SubtotalCents, input.ServiceFeeCents)
	}

	meta, err := json.Marshal(map[string]any{
		"source":      input.Source,
		"total_cents": input.SubtotalCents + input.ServiceFeeCents,
	})
	if err != nil {
		return nil, err
	}

	events := []models.LedgerEvent{
		{
			ID:              uuid.New(),
			OrderID:         input.OrderID,
			PaymentIntentID: input.PaymentIntentID,
			AccountID:       input.AccountID,
			Type:            enums.LedgerEventTypePlatformFee,
			AmountCents:     input.ServiceFeeCents,
			Currency:        input.Currency,
			Metadata:        meta,
		},
		{
			ID:              uuid.New(),
			OrderID:         input.OrderID,
			PaymentIntentID: input.PaymentIntentID,
			AccountID:       input.AccountID,
			Type:            enums.LedgerEventTypeMerchantShare,
			AmountCents:     input.SubtotalCents,
			Currency:        input.Currency,
			Metadata:        meta,
		},
	}

	if err := s.repo.WithTx(tx).CreateBatch(ctx, events); err != nil {
		return nil, err
	}
	return events, nil
}

func (s *service) ListForOrder(ctx context.Context, orderID uuid.UUID) ([]models.LedgerEvent, error) {
	if orderID == uuid.Nil {
		return nil, fmt.Errorf("order id is required")
	}
	return s.repo.ListByOrderID(ctx, orderID)
}
