package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/restaurant-checkout/internal/fees"
	"github.com/angelmondragon/restaurant-checkout/internal/ledger"
	"github.com/angelmondragon/restaurant-checkout/internal/payments"
	"github.com/angelmondragon/restaurant-checkout/pkg/db"
	"github.com/angelmondragon/restaurant-checkout/pkg/db/models"
	"github.com/angelmondragon/restaurant-checkout/pkg/enums"
	pkgerrors "github.com/angelmondragon/restaurant-checkout/pkg/errors"
	"github.com/angelmondragon/restaurant-checkout/pkg/logger"
	"github.com/angelmondragon/restaurant-checkout/pkg/metrics"
	"github.com/angelmondragon/restaurant-checkout/pkg/outbox"
	"github.com/angelmondragon/restaurant-checkout/pkg/outbox/payloads"
	"github.com/angelmondragon/restaurant-checkout/pkg/types"
)

// paymentIntentConstraint is the unique index that makes order creation idempotent.
var paymentIntentConstraint = db.UniqueConstraint{Name: "orders_payment_intent_id_key", Columns: "orders.payment_intent_id"}

var (
	// ErrOrderCreationFailed means a succeeded payment could not be turned into
	// an order. The payment stays captured and needs reconciliation.
	ErrOrderCreationFailed = errors.New("order creation failed")
	// ErrNotReconstructable means payment metadata does not carry a complete order.
	ErrNotReconstructable = errors.New("payment metadata cannot be reconstructed into an order")
)

// Payload is everything needed to write an order besides its payment intent id.
type Payload struct {
	Subtotal       decimal.Decimal
	ServiceFee     decimal.Decimal
	Currency       string
	AccountID      string
	Customer       types.CustomerInfo
	Items          types.OrderItems
	ItemsTruncated bool
}

// Total is always Subtotal + ServiceFee.
func (p Payload) Total() decimal.Decimal {
	return p.Subtotal.Add(p.ServiceFee)
}

// NewPayload takes the amounts from the verified payment and the order
// details from the client. The processor's amounts win over anything the
// client could have sent.
func NewPayload(payment *payments.VerifiedPayment, items types.OrderItems, customer types.CustomerInfo) Payload {
	return Payload{
		Subtotal:   fees.FromCents(payment.AmountCents - payment.ApplicationFeeCents),
		ServiceFee: fees.FromCents(payment.ApplicationFeeCents),
		Currency:   payment.Currency,
		AccountID:  payment.AccountID,
		Customer:   customer,
		Items:      items,
	}
}

// FromPaymentMetadata rebuilds a payload from the snapshot stored on the
// intent. It is lower trust than a client payload: names are split on the
// first space and the item list must have fit into metadata.
func FromPaymentMetadata(codec payments.MetadataCodec, payment *payments.VerifiedPayment) (Payload, error) {
	snap, err := codec.Decode(payment.Metadata)
	if err != nil {
		return Payload{}, fmt.Errorf("%w: %w", ErrNotReconstructable, err)
	}
	if !snap.Reconstructable() {
		return Payload{}, fmt.Errorf("%w: items truncated or missing", ErrNotReconstructable)
	}
	if fees.ToCents(snap.Total) != payment.AmountCents {
		return Payload{}, fmt.Errorf("%w: metadata total %s does not match charged amount %d",
			ErrNotReconstructable, snap.Total.StringFixed(2), payment.AmountCents)
	}
	payload := NewPayload(payment, snap.Items, snap.Customer)
	if !payload.Items.Sum().Equal(payload.Subtotal) {
		return Payload{}, fmt.Errorf("%w: items do not add up to the charged subtotal", ErrNotReconstructable)
	}
	return payload, nil
}

// Result reports the order for a payment intent and whether this call wrote it.
type Result struct {
	Order   *models.Order
	Created bool
}

type MaterializerParams struct {
	DB        db.TxRunner
	Repo      Repository
	Sequencer *Sequencer
	Ledger    ledger.Service
	Outbox    outbox.Emitter
	Gaps      GapResolver
	Logger    *logger.Logger
	Metrics   *metrics.PaymentMetrics
	Clock     func() time.Time
}

// Materializer turns a succeeded payment into exactly one order.
type Materializer struct {
	db        db.TxRunner
	repo      Repository
	sequencer *Sequencer
	ledger    ledger.Service
	outbox    outbox.Emitter
	gaps      GapResolver
	logg      *logger.Logger
	metrics   *metrics.PaymentMetrics
	clock     func() time.Time
}

func NewMaterializer(params MaterializerParams) (*Materializer, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	sequencer := params.Sequencer
	if sequencer == nil {
		sequencer = NewSequencer(DefaultCounter)
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Materializer{
		db:        params.DB,
		repo:      params.Repo,
		sequencer: sequencer,
		ledger:    params.Ledger,
		outbox:    params.Outbox,
		gaps:      params.Gaps,
		logg:      logg,
		metrics:   params.Metrics,
		clock:     clock,
	}, nil
}

// Materialize creates the order for paymentIntentID or returns the one that
// already exists. Concurrent callers for the same intent all get the same
// order and exactly one of them sees Created. Write failures other than the
// duplicate are returned as ErrOrderCreationFailed.
func (m *Materializer) Materialize(ctx context.Context, paymentIntentID string, payload Payload, source enums.OrderSource) (*Result, error) {
	paymentIntentID = strings.TrimSpace(paymentIntentID)
	if paymentIntentID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment intent id required")
	}
	if !source.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order source")
	}
	orderType, err := validatePayload(payload)
	if err != nil {
		return nil, err
	}
	ctx = m.logg.WithPaymentIntentID(ctx, paymentIntentID)

	existing, err := m.repo.FindByPaymentIntentID(ctx, paymentIntentID)
	if err == nil {
		m.metrics.OrderMaterialized(string(source), false)
		return &Result{Order: existing}, nil
	}
	if !db.IsNotFound(err) {
		return nil, m.creationFailed(ctx, err)
	}

	var created *models.Order
	err = m.db.WithTx(ctx, func(tx *gorm.DB) error {
		order, err := m.buildOrder(ctx, tx, paymentIntentID, payload, orderType, source)
		if err != nil {
			return err
		}
		if err := m.repo.WithTx(tx).Create(ctx, order); err != nil {
			return err
		}
		if err := m.outbox.Emit(ctx, tx, orderCreatedEvent(order)); err != nil {
			return fmt.Errorf("emit order_created: %w", err)
		}
		if _, err := m.ledger.RecordSplit(ctx, tx, ledger.SplitInput{
			OrderID:         order.ID,
			PaymentIntentID: paymentIntentID,
			AccountID:       payload.AccountID,
			Currency:        order.Currency,
			SubtotalCents:   order.SubtotalCents,
			ServiceFeeCents: order.ServiceFeeCents,
			Source:          source,
		}); err != nil {
			return fmt.Errorf("record ledger split: %w", err)
		}
		if m.gaps != nil {
			if err := m.gaps.ResolveTx(ctx, tx, paymentIntentID, order.ID); err != nil {
				return fmt.Errorf("resolve reconciliation: %w", err)
			}
		}
		created = order
		return nil
	})
	if err != nil {
		if db.IsUniqueViolationOn(err, paymentIntentConstraint) {
			// Lost the race; the counter increment rolled back with us.
			winner, findErr := m.repo.FindByPaymentIntentID(ctx, paymentIntentID)
			if findErr != nil {
				return nil, m.creationFailed(ctx, findErr)
			}
			m.metrics.OrderMaterialized(string(source), false)
			m.logg.Info(m.logg.WithOrderID(ctx, winner.ID.String()), "order already materialized by concurrent caller")
			return &Result{Order: winner}, nil
		}
		return nil, m.creationFailed(ctx, err)
	}

	m.metrics.OrderMaterialized(string(source), true)
	logCtx := m.logg.WithOrderID(ctx, created.ID.String())
	logCtx = m.logg.WithFields(logCtx, map[string]any{
		"order_number": created.OrderNumber,
		"source":       source,
		"amount_cents": created.AmountCents,
	})
	m.logg.Info(logCtx, "order materialized")
	return &Result{Order: created, Created: true}, nil
}

func (m *Materializer) buildOrder(ctx context.Context, tx *gorm.DB, paymentIntentID string, payload Payload, orderType enums.OrderType, source enums.OrderSource) (*models.Order, error) {
	now := m.clock().UTC()
	order := &models.Order{
		ID:              uuid.New(),
		PaymentIntentID: paymentIntentID,
		Status:          enums.OrderStatusPending,
		Source:          source,
		OrderType:       orderType,
		Currency:        strings.ToLower(payload.Currency),
		AmountCents:     fees.ToCents(payload.Total()),
		SubtotalCents:   fees.ToCents(payload.Subtotal),
		ServiceFeeCents: fees.ToCents(payload.ServiceFee),
		CustomerInfo:    payload.Customer,
		Items:           payload.Items,
		ItemsTruncated:  payload.ItemsTruncated,
		PlacedAt:        now,
	}
	if order.Items == nil {
		order.Items = types.OrderItems{}
	}

	seq, err := m.sequencer.Next(ctx, tx)
	if err != nil {
		// The order still has to be written; staff can read a timestamp number.
		m.logg.Warn(m.logg.WithField(ctx, "error", err.Error()), "order sequence unavailable, using fallback number")
		order.OrderNumber = FallbackOrderNumber(now)
		return order, nil
	}
	order.OrderSeq = &seq
	order.OrderNumber = FormatOrderNumber(seq)
	return order, nil
}

func (m *Materializer) creationFailed(ctx context.Context, err error) error {
	m.logg.Error(ctx, "order creation failed", err)
	return pkgerrors.Wrap(pkgerrors.CodeReconciliation, fmt.Errorf("%w: %w", ErrOrderCreationFailed, err), "payment captured but order could not be recorded")
}

func validatePayload(payload Payload) (enums.OrderType, error) {
	if err := fees.ValidateAmount(payload.Subtotal); err != nil {
		return "", err
	}
	if payload.ServiceFee.IsNegative() || !payload.ServiceFee.Equal(payload.ServiceFee.Round(2)) {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "invalid service fee").
			WithDetails(map[string]any{"serviceFee": payload.ServiceFee.String()})
	}
	if strings.TrimSpace(payload.Currency) == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "currency required")
	}
	if len(payload.Items) == 0 && !payload.ItemsTruncated {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "order has no items")
	}
	orderType, err := enums.ParseOrderType(payload.Customer.OrderType)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order type")
	}
	return orderType, nil
}

func orderCreatedEvent(order *models.Order) outbox.DomainEvent {
	return outbox.DomainEvent{
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         &outbox.ActorRef{Kind: outbox.ActorSystem, ID: string(order.Source)},
		OccurredAt:    order.PlacedAt,
		Data: payloads.OrderCreatedEvent{
			OrderID:         order.ID,
			OrderNumber:     order.OrderNumber,
			PaymentIntentID: order.PaymentIntentID,
			Source:          order.Source,
			OrderType:       order.OrderType,
			CustomerName:    order.CustomerInfo.FullName(),
			ItemCount:       itemCount(order.Items),
			AmountCents:     order.AmountCents,
			Currency:        order.Currency,
			PlacedAt:        order.PlacedAt,
		},
	}
}
