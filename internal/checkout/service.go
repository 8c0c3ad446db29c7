// Package checkout turns succeeded payments into orders, from the client's
// confirm call or from the processor's webhook, and records a reconciliation
// gap whenever a paid intent is left without one.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"

	stripego "github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/restaurant-checkout/internal/orders"
	"github.com/angelmondragon/restaurant-checkout/internal/payments"
	"github.com/angelmondragon/restaurant-checkout/internal/reconciliation"
	"github.com/angelmondragon/restaurant-checkout/pkg/db"
	"github.com/angelmondragon/restaurant-checkout/pkg/db/models"
	"github.com/angelmondragon/restaurant-checkout/pkg/enums"
	pkgerrors "github.com/angelmondragon/restaurant-checkout/pkg/errors"
	"github.com/angelmondragon/restaurant-checkout/pkg/logger"
	"github.com/angelmondragon/restaurant-checkout/pkg/metrics"
	"github.com/angelmondragon/restaurant-checkout/pkg/types"
)

// PaymentVerifier is the part of the payments service checkout depends on.
type PaymentVerifier interface {
	VerifyPayment(ctx context.Context, paymentIntentID string) (*payments.VerifiedPayment, error)
	VerifyIntent(ctx context.Context, intent *stripego.PaymentIntent, accountID string) (*payments.VerifiedPayment, error)
	Codec() payments.MetadataCodec
}

type orderMaterializer interface {
	Materialize(ctx context.Context, paymentIntentID string, payload orders.Payload, source enums.OrderSource) (*orders.Result, error)
}

type orderLookup interface {
	FindByPaymentIntentID(ctx context.Context, paymentIntentID string) (*models.Order, error)
}

type gapRecorder interface {
	RecordGap(ctx context.Context, input reconciliation.GapInput) (*models.PaymentReconciliation, error)
}

// ConfirmInput is the client's confirm call: the intent plus the cart it paid for.
type ConfirmInput struct {
	PaymentIntentID string
	Items           types.OrderItems
	Customer        types.CustomerInfo
}

// Outcome is the order state for a paid intent.
type Outcome struct {
	Order   *models.Order
	Created bool
	// Pending is set when the webhook could not rebuild the order and is
	// waiting for the client to confirm.
	Pending bool
}

type ServiceParams struct {
	Payments     PaymentVerifier
	Materializer orderMaterializer
	Orders       orderLookup
	Gaps         gapRecorder
	Logger       *logger.Logger
	Metrics      *metrics.PaymentMetrics
}

type Service struct {
	payments     PaymentVerifier
	materializer orderMaterializer
	orders       orderLookup
	gaps         gapRecorder
	logg         *logger.Logger
	metrics      *metrics.PaymentMetrics
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Payments == nil {
		return nil, fmt.Errorf("payment verifier required")
	}
	if params.Materializer == nil {
		return nil, fmt.Errorf("order materializer required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("order lookup required")
	}
	if params.Gaps == nil {
		return nil, fmt.Errorf("reconciliation recorder required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &Service{
		payments:     params.Payments,
		materializer: params.Materializer,
		orders:       params.Orders,
		gaps:         params.Gaps,
		logg:         logg,
		metrics:      params.Metrics,
	}, nil
}

// Confirm verifies the payment and materializes its order. Calling it again
// for the same intent returns the same order. Amounts always come from the
// processor; the client's items are used when they add up to the charged
// subtotal, otherwise the snapshot stored on the intent is preferred.
func (s *Service) Confirm(ctx context.Context, input ConfirmInput) (*Outcome, error) {
	input.PaymentIntentID = strings.TrimSpace(input.PaymentIntentID)
	if input.PaymentIntentID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "paymentIntentId is required")
	}
	if len(input.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "orderPayload.items is required")
	}
	if strings.TrimSpace(input.Customer.Email) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "orderPayload.customerInfo is required")
	}
	ctx = s.logg.WithPaymentIntentID(ctx, input.PaymentIntentID)

	payment, err := s.payments.VerifyPayment(ctx, input.PaymentIntentID)
	if err != nil {
		s.metrics.Confirmation(confirmFailureLabel(err))
		return nil, err
	}

	payload := s.confirmPayload(ctx, payment, input)
	result, err := s.materializer.Materialize(ctx, payment.ID, payload, enums.OrderSourceConfirm)
	if err != nil {
		s.metrics.Confirmation("reconciliation")
		return nil, s.recordFailure(ctx, payment, &reconciliation.StoredPayload{Items: input.Items, Customer: input.Customer}, err)
	}

	if result.Created {
		s.metrics.Confirmation("created")
	} else {
		s.metrics.Confirmation("existing")
	}
	return &Outcome{Order: result.Order, Created: result.Created}, nil
}

func (s *Service) confirmPayload(ctx context.Context, payment *payments.VerifiedPayment, input ConfirmInput) orders.Payload {
	payload := orders.NewPayload(payment, input.Items, input.Customer)
	if input.Items.Sum().Equal(payload.Subtotal) {
		return payload
	}
	fromMeta, err := orders.FromPaymentMetadata(s.payments.Codec(), payment)
	if err == nil {
		fromMeta.Customer = input.Customer
		s.logg.Warn(ctx, "client items do not match charged subtotal, using payment snapshot")
		return fromMeta
	}
	s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "client items do not match charged subtotal and snapshot is unusable")
	return payload
}

// HandleSucceededIntent is the webhook fallback. It only writes an order
// when the intent's metadata carries the complete item list; otherwise it
// leaves an awaiting-confirmation record for the worker.
func (s *Service) HandleSucceededIntent(ctx context.Context, intent *stripego.PaymentIntent, accountID string) (*Outcome, error) {
	payment, err := s.payments.VerifyIntent(ctx, intent, accountID)
	if err != nil {
		return nil, err
	}
	ctx = s.logg.WithPaymentIntentID(ctx, payment.ID)

	existing, err := s.orders.FindByPaymentIntentID(ctx, payment.ID)
	if err == nil {
		return &Outcome{Order: existing}, nil
	}
	if !db.IsNotFound(err) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup order")
	}

	payload, err := orders.FromPaymentMetadata(s.payments.Codec(), payment)
	if err != nil {
		if !errors.Is(err, orders.ErrNotReconstructable) {
			return nil, err
		}
		if _, gapErr := s.gaps.RecordGap(ctx, reconciliation.GapInput{
			PaymentIntentID: payment.ID,
			Reason:          enums.ReconciliationAwaitingConfirm,
			AmountCents:     payment.AmountCents,
			Currency:        payment.Currency,
			Cause:           err,
		}); gapErr != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, gapErr, "record reconciliation")
		}
		return &Outcome{Pending: true}, nil
	}

	result, err := s.materializer.Materialize(ctx, payment.ID, payload, enums.OrderSourceWebhook)
	if err != nil {
		return nil, s.recordFailure(ctx, payment, nil, err)
	}
	return &Outcome{Order: result.Order, Created: result.Created}, nil
}

// recordFailure persists the gap and returns the reconciliation error the
// caller sees. If even the record cannot be written the log line and metric
// are all that is left, so the original cause is kept on the error.
func (s *Service) recordFailure(ctx context.Context, payment *payments.VerifiedPayment, stored *reconciliation.StoredPayload, cause error) error {
	details := map[string]any{"paymentIntentId": payment.ID}
	row, err := s.gaps.RecordGap(ctx, reconciliation.GapInput{
		PaymentIntentID: payment.ID,
		Reason:          enums.ReconciliationOrderCreationFailed,
		AmountCents:     payment.AmountCents,
		Currency:        payment.Currency,
		Payload:         stored,
		Cause:           cause,
	})
	if err != nil {
		s.logg.Error(ctx, "reconciliation record could not be written", err)
	} else {
		details["reconciliationId"] = row.ID.String()
	}
	return pkgerrors.Wrap(pkgerrors.CodeReconciliation, cause, "payment captured but order could not be recorded").
		WithDetails(details)
}

func confirmFailureLabel(err error) string {
	switch {
	case errors.Is(err, payments.ErrPaymentNotSucceeded):
		return "not_succeeded"
	case errors.Is(err, payments.ErrPaymentNotFound):
		return "not_found"
	case errors.Is(err, payments.ErrMerchantNotConfigured):
		return "merchant_not_configured"
	default:
		return "error"
	}
}
