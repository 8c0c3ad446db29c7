// Package app assembles the checkout services shared by the api and the
// cron worker.
package app

import (
	"fmt"

	"github.com/angelmondragon/restaurant-checkout/internal/checkout"
	"github.com/angelmondragon/restaurant-checkout/internal/fees"
	"github.com/angelmondragon/restaurant-checkout/internal/ledger"
	"github.com/angelmondragon/restaurant-checkout/internal/merchant"
	"github.com/angelmondragon/restaurant-checkout/internal/orders"
	"github.com/angelmondragon/restaurant-checkout/internal/payments"
	"github.com/angelmondragon/restaurant-checkout/internal/reconciliation"
	"github.com/angelmondragon/restaurant-checkout/pkg/config"
	"github.com/angelmondragon/restaurant-checkout/pkg/db"
	"github.com/angelmondragon/restaurant-checkout/pkg/logger"
	"github.com/angelmondragon/restaurant-checkout/pkg/metrics"
	"github.com/angelmondragon/restaurant-checkout/pkg/outbox"
	"github.com/angelmondragon/restaurant-checkout/pkg/stripe"
)

// Checkout holds the wired payment and order services.
type Checkout struct {
	Outbox         *outbox.Service
	OutboxRepo     *outbox.Repository
	Merchants      *merchant.Service
	Payments       *payments.Service
	Orders         orders.Service
	OrdersRepo     orders.Repository
	Materializer   *orders.Materializer
	Reconciliation *reconciliation.Service
	ReconRepo      *reconciliation.Repository
	Processor      *reconciliation.Processor
	Confirmations  *checkout.Service
}

// Deps are the process level clients every checkout service builds on.
type Deps struct {
	Config  *config.Config
	Logger  *logger.Logger
	DB      *db.Client
	Stripe  *stripe.Client
	Metrics *metrics.PaymentMetrics
}

// NewCheckout wires repositories and services in dependency order.
func NewCheckout(deps Deps) (*Checkout, error) {
	if deps.Config == nil || deps.DB == nil || deps.Stripe == nil {
		return nil, fmt.Errorf("config, database and stripe client are required")
	}
	cfg := deps.Config
	logg := deps.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	gormDB := deps.DB.DB()

	outboxRepo := outbox.NewRepository(gormDB)
	emitter := outbox.NewService(outboxRepo, logg)

	merchants, err := merchant.NewService(merchant.ServiceParams{
		Repository:  merchant.NewRepository(gormDB),
		DB:          deps.DB,
		Gateway:     deps.Stripe,
		Outbox:      emitter,
		Logger:      logg,
		Country:     cfg.Stripe.Country,
		FrontendURL: cfg.Stripe.FrontendURL,
	})
	if err != nil {
		return nil, fmt.Errorf("merchant service: %w", err)
	}

	calculator, err := fees.New(cfg.Checkout.FeeRate, cfg.Checkout.FeeCap)
	if err != nil {
		return nil, fmt.Errorf("fee calculator: %w", err)
	}
	codec := payments.MetadataCodec{ChunkSize: cfg.Checkout.MetadataChunk, MaxChunks: cfg.Checkout.MetadataKeys}

	paymentService, err := payments.NewService(payments.ServiceParams{
		Gateway:    deps.Stripe,
		Merchants:  merchants,
		Calculator: calculator,
		Codec:      codec,
		Currency:   cfg.Checkout.Currency,
		Logger:     logg,
		Metrics:    deps.Metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("payments service: %w", err)
	}

	reconRepo := reconciliation.NewRepository(gormDB)
	gaps, err := reconciliation.NewService(reconciliation.ServiceParams{
		Repository:   reconRepo,
		Logger:       logg,
		Metrics:      deps.Metrics,
		ConfirmGrace: cfg.Reconciliation.ConfirmGrace,
	})
	if err != nil {
		return nil, fmt.Errorf("reconciliation service: %w", err)
	}

	ledgerService, err := ledger.NewService(ledger.NewRepository(gormDB))
	if err != nil {
		return nil, fmt.Errorf("ledger service: %w", err)
	}

	ordersRepo := orders.NewRepository(gormDB)
	materializer, err := orders.NewMaterializer(orders.MaterializerParams{
		DB:        deps.DB,
		Repo:      ordersRepo,
		Sequencer: orders.NewSequencer(cfg.Checkout.CounterName),
		Ledger:    ledgerService,
		Outbox:    emitter,
		Gaps:      gaps,
		Logger:    logg,
		Metrics:   deps.Metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("order materializer: %w", err)
	}

	orderService, err := orders.NewService(ordersRepo, deps.DB, emitter, logg)
	if err != nil {
		return nil, fmt.Errorf("orders service: %w", err)
	}

	confirmations, err := checkout.NewService(checkout.ServiceParams{
		Payments:     paymentService,
		Materializer: materializer,
		Orders:       ordersRepo,
		Gaps:         gaps,
		Logger:       logg,
		Metrics:      deps.Metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("checkout service: %w", err)
	}

	processor, err := reconciliation.NewProcessor(reconciliation.ProcessorParams{
		DB:           deps.DB,
		Repository:   reconRepo,
		Orders:       ordersRepo,
		Payments:     paymentService,
		Materializer: materializer,
		Codec:        paymentService.Codec(),
		Outbox:       emitter,
		Config:       cfg.Reconciliation,
		Logger:       logg,
		Metrics:      deps.Metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("reconciliation processor: %w", err)
	}

	return &Checkout{
		Outbox:         emitter,
		OutboxRepo:     outboxRepo,
		Merchants:      merchants,
		Payments:       paymentService,
		Orders:         orderService,
		OrdersRepo:     ordersRepo,
		Materializer:   materializer,
		Reconciliation: gaps,
		ReconRepo:      reconRepo,
		Processor:      processor,
		Confirmations:  confirmations,
	}, nil
}
