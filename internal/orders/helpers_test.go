package orders

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/restaurant-checkout/internal/ledger"
	"github.com/angelmondragon/restaurant-checkout/pkg/db"
	"github.com/angelmondragon/restaurant-checkout/pkg/db/dbtest"
	"github.com/angelmondragon/restaurant-checkout/pkg/db/models"
	"github.com/angelmondragon/restaurant-checkout/pkg/enums"
	"github.com/angelmondragon/restaurant-checkout/pkg/logger"
	"github.com/angelmondragon/restaurant-checkout/pkg/outbox"
	"github.com/angelmondragon/restaurant-checkout/pkg/types"
)

type harness struct {
	conn         *gorm.DB
	client       *db.Client
	repo         Repository
	outboxRepo   *outbox.Repository
	ledger       ledger.Service
	materializer *Materializer
	gaps         *recordingGaps
}

type recordingGaps struct {
	resolved map[string]uuid.UUID
}

func (r *recordingGaps) ResolveTx(_ context.Context, _ *gorm.DB, paymentIntentID string, orderID uuid.UUID) error {
	r.resolved[paymentIntentID] = orderID
	return nil
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	conn := dbtest.Open(t)
	client := db.FromConn(conn)
	repo := NewRepository(conn)
	outboxRepo := outbox.NewRepository(conn)
	ledgerSvc, err := ledger.NewService(ledger.NewRepository(conn))
	require.NoError(t, err)
	gaps := &recordingGaps{resolved: map[string]uuid.UUID{}}

	materializer, err := NewMaterializer(MaterializerParams{
		DB:        client,
		Repo:      repo,
		Sequencer: NewSequencer(DefaultCounter),
		Ledger:    ledgerSvc,
		Outbox:    outbox.NewService(outboxRepo, logger.Nop()),
		Gaps:      gaps,
	})
	require.NoError(t, err)

	return &harness{
		conn:         conn,
		client:       client,
		repo:         repo,
		outboxRepo:   outboxRepo,
		ledger:       ledgerSvc,
		materializer: materializer,
		gaps:         gaps,
	}
}

func samplePayload() Payload {
	return Payload{
		Subtotal:   decimal.RequireFromString("40.00"),
		ServiceFee: decimal.RequireFromString("2.00"),
		Currency:   "aud",
		AccountID:  "acct_rest",
		Customer:   types.CustomerInfo{FirstName: "Ana", LastName: "Silva", Email: "ana@example.com", OrderType: "pickup"},
		Items: types.OrderItems{
			{Name: "Margherita", UnitPrice: decimal.RequireFromString("15.00"), Quantity: 2},
			{Name: "Tiramisu", UnitPrice: decimal.RequireFromString("10.00"), Quantity: 1},
		},
	}
}

func (h *harness) counterValue(t *testing.T) int64 {
	t.Helper()
	var value int64
	require.NoError(t, h.conn.Raw("SELECT COALESCE(MAX(value), 0) FROM order_counters WHERE name = ?", DefaultCounter).Scan(&value).Error)
	return value
}

func (h *harness) countOrders(t *testing.T) int64 {
	t.Helper()
	var count int64
	require.NoError(t, h.conn.Model(&models.Order{}).Count(&count).Error)
	return count
}

// seedOrder writes an order directly, bypassing the materializer.
func (h *harness) seedOrder(t *testing.T, status enums.OrderStatus, orderType enums.OrderType, placedAt time.Time) *models.Order {
	t.Helper()
	payload := samplePayload()
	order := &models.Order{
		ID:              uuid.New(),
		OrderNumber:     "#" + uuid.NewString()[:4],
		PaymentIntentID: "pi_" + uuid.NewString(),
		Status:          status,
		Source:          enums.OrderSourceConfirm,
		OrderType:       orderType,
		Currency:        "aud",
		AmountCents:     4200,
		SubtotalCents:   4000,
		ServiceFeeCents: 200,
		CustomerInfo:    payload.Customer,
		Items:           payload.Items,
		PlacedAt:        placedAt.UTC(),
	}
	require.NoError(t, h.repo.Create(context.Background(), order))
	return order
}
