// Package reconciliation keeps a durable record of payments that succeeded
// without an order and repairs them in the background.
package reconciliation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/restaurant-checkout/pkg/db"
	"github.com/angelmondragon/restaurant-checkout/pkg/db/models"
	"github.com/angelmondragon/restaurant-checkout/pkg/enums"
	"github.com/angelmondragon/restaurant-checkout/pkg/logger"
	"github.com/angelmondragon/restaurant-checkout/pkg/metrics"
	"github.com/angelmondragon/restaurant-checkout/pkg/types"
)

const maxErrorLength = 2000

// StoredPayload is the client confirm payload kept with a gap so the worker
// can rebuild the order with full fidelity.
type StoredPayload struct {
	Items    types.OrderItems   `json:"items"`
	Customer types.CustomerInfo `json:"customerInfo"`
}

// GapInput describes a succeeded payment without an order.
type GapInput struct {
	PaymentIntentID string
	Reason          enums.ReconciliationReason
	AmountCents     int64
	Currency        string
	Payload         *StoredPayload
	Cause           error
}

type ServiceParams struct {
	Repository   *Repository
	Logger       *logger.Logger
	Metrics      *metrics.PaymentMetrics
	ConfirmGrace time.Duration
	Clock        func() time.Time
}

// Service records gaps and resolves them once an order exists.
type Service struct {
	repo         *Repository
	logg         *logger.Logger
	metrics      *metrics.PaymentMetrics
	confirmGrace time.Duration
	clock        func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("reconciliation repository required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	grace := params.ConfirmGrace
	if grace <= 0 {
		grace = 10 * time.Minute
	}
	return &Service{
		repo:         params.Repository,
		logg:         logg,
		metrics:      params.Metrics,
		confirmGrace: grace,
		clock:        clock,
	}, nil
}

// RecordGap upserts the row for the payment intent. An order creation
// failure is always logged at error level and counted, since the customer
// has paid and has no order. Awaiting-confirmation rows give the client
// ConfirmGrace to confirm before the worker steps in.
func (s *Service) RecordGap(ctx context.Context, input GapInput) (*models.PaymentReconciliation, error) {
	if input.PaymentIntentID == "" {
		return nil, fmt.Errorf("payment intent id required")
	}
	now := s.clock().UTC()
	ctx = s.logg.WithPaymentIntentID(ctx, input.PaymentIntentID)
	ctx = s.logg.WithField(ctx, "reason", string(input.Reason))

	s.metrics.ReconciliationGap(string(input.Reason))
	if input.Reason == enums.ReconciliationOrderCreationFailed {
		s.logg.Error(ctx, "payment succeeded but order was not recorded", input.Cause)
	} else {
		s.logg.Warn(ctx, "payment succeeded without order, awaiting confirmation")
	}

	var payload json.RawMessage
	if input.Payload != nil {
		raw, err := json.Marshal(input.Payload)
		if err != nil {
			return nil, fmt.Errorf("encode reconciliation payload: %w", err)
		}
		payload = raw
	}

	row, err := s.repo.FindByPaymentIntentID(ctx, input.PaymentIntentID)
	switch {
	case err == nil:
		return s.mergeGap(ctx, row, input, payload, now)
	case !db.IsNotFound(err):
		return nil, fmt.Errorf("load reconciliation: %w", err)
	}

	row = &models.PaymentReconciliation{
		ID:              uuid.New(),
		PaymentIntentID: input.PaymentIntentID,
		Reason:          input.Reason,
		Status:          enums.ReconciliationStatusOpen,
		AmountCents:     input.AmountCents,
		Currency:        input.Currency,
		LastError:       errorText(input.Cause),
		Payload:         payload,
		NextAttemptAt:   s.firstAttempt(input.Reason, now),
		CreatedAt:       now,
	}
	if err := s.repo.Create(ctx, row); err != nil {
		if db.IsUniqueViolation(err) {
			existing, findErr := s.repo.FindByPaymentIntentID(ctx, input.PaymentIntentID)
			if findErr != nil {
				return nil, fmt.Errorf("reload reconciliation: %w", findErr)
			}
			return s.mergeGap(ctx, existing, input, payload, now)
		}
		return nil, fmt.Errorf("create reconciliation: %w", err)
	}
	return row, nil
}

// mergeGap folds a new report into an existing row. A failed order write
// outranks an unconfirmed webhook and pulls the next attempt forward.
func (s *Service) mergeGap(ctx context.Context, row *models.PaymentReconciliation, input GapInput, payload json.RawMessage, now time.Time) (*models.PaymentReconciliation, error) {
	if row.Status == enums.ReconciliationStatusResolved {
		return row, nil
	}
	if input.Reason == enums.ReconciliationOrderCreationFailed {
		row.Reason = input.Reason
		if next := s.firstAttempt(input.Reason, now); next.Before(row.NextAttemptAt) {
			row.NextAttemptAt = next
		}
	}
	if len(payload) > 0 {
		row.Payload = payload
	}
	if input.Cause != nil {
		row.LastError = errorText(input.Cause)
	}
	if row.AmountCents == 0 {
		row.AmountCents = input.AmountCents
	}
	if row.Currency == "" {
		row.Currency = input.Currency
	}
	if err := s.repo.Save(ctx, row); err != nil {
		return nil, fmt.Errorf("update reconciliation: %w", err)
	}
	return row, nil
}

// ResolveTx closes the open row for paymentIntentID inside the order transaction.
func (s *Service) ResolveTx(ctx context.Context, tx *gorm.DB, paymentIntentID string, orderID uuid.UUID) error {
	resolved, err := s.repo.WithTx(tx).Resolve(ctx, paymentIntentID, orderID, s.clock().UTC())
	if err != nil {
		return err
	}
	if resolved {
		logCtx := s.logg.WithPaymentIntentID(ctx, paymentIntentID)
		s.logg.Info(s.logg.WithOrderID(logCtx, orderID.String()), "reconciliation resolved")
	}
	return nil
}

func (s *Service) firstAttempt(reason enums.ReconciliationReason, now time.Time) time.Time {
	if reason == enums.ReconciliationAwaitingConfirm {
		return now.Add(s.confirmGrace)
	}
	return now.Add(time.Minute)
}

func errorText(err error) *string {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if len(msg) > maxErrorLength {
		msg = msg[:maxErrorLength]
	}
	return &msg
}
