package reconciliation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/restaurant-checkout/internal/orders"
	"github.com/angelmondragon/restaurant-checkout/internal/payments"
	"github.com/angelmondragon/restaurant-checkout/pkg/config"
	"github.com/angelmondragon/restaurant-checkout/pkg/db"
	"github.com/angelmondragon/restaurant-checkout/pkg/db/models"
	"github.com/angelmondragon/restaurant-checkout/pkg/enums"
	pkgerrors "github.com/angelmondragon/restaurant-checkout/pkg/errors"
	"github.com/angelmondragon/restaurant-checkout/pkg/logger"
	"github.com/angelmondragon/restaurant-checkout/pkg/metrics"
	"github.com/angelmondragon/restaurant-checkout/pkg/outbox"
	"github.com/angelmondragon/restaurant-checkout/pkg/outbox/payloads"
)

const (
	defaultBatchSize   = 25
	defaultMaxAttempts = 12
	maxBackoff         = time.Hour
)

// PaymentVerifier loads a succeeded intent from the processor.
type PaymentVerifier interface {
	VerifyPayment(ctx context.Context, paymentIntentID string) (*payments.VerifiedPayment, error)
}

// OrderMaterializer writes the order for a payment intent exactly once.
type OrderMaterializer interface {
	Materialize(ctx context.Context, paymentIntentID string, payload orders.Payload, source enums.OrderSource) (*orders.Result, error)
}

// OrderLookup finds an existing order by payment intent.
type OrderLookup interface {
	FindByPaymentIntentID(ctx context.Context, paymentIntentID string) (*models.Order, error)
}

type ProcessorParams struct {
	DB           db.TxRunner
	Repository   *Repository
	Orders       OrderLookup
	Payments     PaymentVerifier
	Materializer OrderMaterializer
	Codec        payments.MetadataCodec
	Outbox       outbox.Emitter
	Config       config.ReconciliationConfig
	Logger       *logger.Logger
	Metrics      *metrics.PaymentMetrics
	Clock        func() time.Time
}

// Processor retries due reconciliation rows and escalates the ones it
// cannot repair.
type Processor struct {
	db           db.TxRunner
	repo         *Repository
	orders       OrderLookup
	payments     PaymentVerifier
	materializer OrderMaterializer
	codec        payments.MetadataCodec
	outbox       outbox.Emitter
	cfg          config.ReconciliationConfig
	logg         *logger.Logger
	metrics      *metrics.PaymentMetrics
	clock        func() time.Time
}

// Summary counts what one pass did.
type Summary struct {
	Processed int
	Resolved  int
	Retried   int
	Escalated int
}

func NewProcessor(params ProcessorParams) (*Processor, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("reconciliation repository required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("order lookup required")
	}
	if params.Payments == nil {
		return nil, fmt.Errorf("payment verifier required")
	}
	if params.Materializer == nil {
		return nil, fmt.Errorf("order materializer required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	cfg := params.Config
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Processor{
		db:           params.DB,
		repo:         params.Repository,
		orders:       params.Orders,
		payments:     params.Payments,
		materializer: params.Materializer,
		codec:        params.Codec,
		outbox:       params.Outbox,
		cfg:          cfg,
		logg:         logg,
		metrics:      params.Metrics,
		clock:        clock,
	}, nil
}

// RunOnce handles one batch of due rows. Per-row failures are recorded on
// the row; only storage errors are returned.
func (p *Processor) RunOnce(ctx context.Context) (Summary, error) {
	var summary Summary
	rows, err := p.repo.ListDue(ctx, p.clock().UTC(), p.cfg.BatchSize)
	if err != nil {
		return summary, fmt.Errorf("list due reconciliations: %w", err)
	}

	var errs error
	for i := range rows {
		if ctx.Err() != nil {
			return summary, multierr.Append(errs, ctx.Err())
		}
		row := &rows[i]
		summary.Processed++
		outcome, err := p.process(ctx, row)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("reconciliation %s: %w", row.PaymentIntentID, err))
			continue
		}
		switch outcome {
		case outcomeResolved:
			summary.Resolved++
		case outcomeRetried:
			summary.Retried++
		case outcomeEscalated:
			summary.Escalated++
		}
	}
	return summary, errs
}

type outcome int

const (
	outcomeResolved outcome = iota
	outcomeRetried
	outcomeEscalated
)

func (p *Processor) process(ctx context.Context, row *models.PaymentReconciliation) (outcome, error) {
	ctx = p.logg.WithPaymentIntentID(ctx, row.PaymentIntentID)

	existing, err := p.orders.FindByPaymentIntentID(ctx, row.PaymentIntentID)
	switch {
	case err == nil:
		return outcomeResolved, p.resolve(ctx, row, existing)
	case !db.IsNotFound(err):
		return 0, fmt.Errorf("lookup order: %w", err)
	}

	payment, err := p.payments.VerifyPayment(ctx, row.PaymentIntentID)
	if err != nil {
		return p.fail(ctx, row, fmt.Errorf("verify payment: %w", err))
	}
	payload, err := p.rebuild(row, payment)
	if err != nil {
		return p.fail(ctx, row, err)
	}
	result, err := p.materializer.Materialize(ctx, row.PaymentIntentID, payload, enums.OrderSourceReconciliation)
	if err != nil {
		return p.fail(ctx, row, fmt.Errorf("materialize: %w", err))
	}
	return outcomeResolved, p.resolve(ctx, row, result.Order)
}

// rebuild prefers the stored client payload and falls back to metadata.
func (p *Processor) rebuild(row *models.PaymentReconciliation, payment *payments.VerifiedPayment) (orders.Payload, error) {
	if len(row.Payload) > 0 && string(row.Payload) != "null" {
		var stored StoredPayload
		if err := json.Unmarshal(row.Payload, &stored); err != nil {
			return orders.Payload{}, fmt.Errorf("decode stored payload: %w", err)
		}
		if len(stored.Items) > 0 {
			return orders.NewPayload(payment, stored.Items, stored.Customer), nil
		}
	}
	return orders.FromPaymentMetadata(p.codec, payment)
}

func (p *Processor) resolve(ctx context.Context, row *models.PaymentReconciliation, order *models.Order) error {
	if _, err := p.repo.Resolve(ctx, row.PaymentIntentID, order.ID, p.clock().UTC()); err != nil {
		return fmt.Errorf("resolve: %w", err)
	}
	p.logg.Info(p.logg.WithOrderID(ctx, order.ID.String()), "reconciliation resolved by worker")
	return nil
}

func (p *Processor) fail(ctx context.Context, row *models.PaymentReconciliation, cause error) (outcome, error) {
	now := p.clock().UTC()
	row.Attempts++
	row.LastError = errorText(cause)
	row.NextAttemptAt = now.Add(backoff(row.Attempts))

	if !p.shouldEscalate(row, cause, now) {
		p.logg.Warn(p.logg.WithFields(ctx, map[string]any{
			"attempts": row.Attempts,
			"error":    cause.Error(),
		}), "reconciliation attempt failed")
		if err := p.repo.Save(ctx, row); err != nil {
			return 0, fmt.Errorf("save attempt: %w", err)
		}
		return outcomeRetried, nil
	}

	row.Status = enums.ReconciliationStatusEscalated
	row.EscalatedAt = &now
	err := p.db.WithTx(ctx, func(tx *gorm.DB) error {
		if err := p.repo.WithTx(tx).Save(ctx, row); err != nil {
			return err
		}
		return p.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventReconciliationEscalate,
			AggregateType: enums.AggregateReconciliation,
			AggregateID:   row.ID,
			Actor:         &outbox.ActorRef{Kind: outbox.ActorSystem, ID: "reconciliation"},
			OccurredAt:    now,
			Data: payloads.ReconciliationEscalatedEvent{
				ReconciliationID: row.ID,
				PaymentIntentID:  row.PaymentIntentID,
				Reason:           row.Reason,
				Attempts:         row.Attempts,
				AmountCents:      row.AmountCents,
				Currency:         row.Currency,
				LastError:        cause.Error(),
			},
		})
	})
	if err != nil {
		return 0, fmt.Errorf("escalate: %w", err)
	}
	p.metrics.ReconciliationEscalated()
	p.logg.Error(p.logg.WithField(ctx, "attempts", row.Attempts), "reconciliation escalated, manual action required", cause)
	return outcomeEscalated, nil
}

func (p *Processor) shouldEscalate(row *models.PaymentReconciliation, cause error, now time.Time) bool {
	if row.Attempts >= p.cfg.MaxAttempts {
		return true
	}
	// An intent the processor does not know will not heal by retrying.
	if errors.Is(cause, payments.ErrPaymentNotFound) && pkgerrors.CodeOf(cause) == pkgerrors.CodeNotFound {
		return true
	}
	return p.cfg.EscalationWait > 0 && now.Sub(row.CreatedAt) >= p.cfg.EscalationWait
}

// backoff doubles from one minute and caps at an hour.
func backoff(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	if attempts > 7 {
		return maxBackoff
	}
	d := time.Minute << (attempts - 1)
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}
