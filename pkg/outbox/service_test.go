package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/restaurant-checkout/pkg/db/dbtest"
	"github.com/angelmondragon/restaurant-checkout/pkg/db/models"
	"github.com/angelmondragon/restaurant-checkout/pkg/enums"
	"github.com/angelmondragon/restaurant-checkout/pkg/logger"
)

func TestEmitWritesEnvelope(t *testing.T) {
	ctx := context.Background()
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	svc := NewService(repo, logger.Nop())
	orderID := uuid.New()

	err := conn.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(ctx, tx, DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Actor:         &ActorRef{Kind: ActorCustomer},
			Data:          map[string]string{"order_number": "#001"},
		})
	})
	require.NoError(t, err)

	rows, err := repo.ListByAggregate(ctx, enums.AggregateOrder, orderID)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	var envelope PayloadEnvelope
	require.NoError(t, json.Unmarshal(rows[0].Payload, &envelope))
	require.Equal(t, 1, envelope.Version)
	require.NotEmpty(t, envelope.EventID)
	require.Equal(t, ActorCustomer, envelope.Actor.Kind)
	require.JSONEq(t, `{"order_number":"#001"}`, string(envelope.Data))
}

func TestEmitRollsBackWithTransaction(t *testing.T) {
	ctx := context.Background()
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	svc := NewService(repo, nil)
	orderID := uuid.New()

	boom := errors.New("aggregate write failed")
	err := conn.Transaction(func(tx *gorm.DB) error {
		if err := svc.Emit(ctx, tx, DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Data:          struct{}{},
		}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	rows, err := repo.ListByAggregate(ctx, enums.AggregateOrder, orderID)
	require.NoError(t, err)
	require.Empty(t, rows)
}

func TestEmitIfNotExistsSkipsDuplicates(t *testing.T) {
	ctx := context.Background()
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	svc := NewService(repo, nil)
	recID := uuid.New()

	for i := 0; i < 3; i++ {
		err := conn.Transaction(func(tx *gorm.DB) error {
			return svc.EmitIfNotExists(ctx, tx, DomainEvent{
				EventType:     enums.EventReconciliationEscalate,
				AggregateType: enums.AggregateReconciliation,
				AggregateID:   recID,
				Data:          map[string]int{"attempts": i},
			})
		})
		require.NoError(t, err)
	}

	rows, err := repo.ListByAggregate(ctx, enums.AggregateReconciliation, recID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
}

func TestEmitRejectsUnknownTypes(t *testing.T) {
	conn := dbtest.Open(t)
	svc := NewService(NewRepository(conn), nil)
	err := svc.Emit(context.Background(), conn, DomainEvent{
		EventType:     enums.OutboxEventType("nope"),
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
	})
	require.Error(t, err)
	require.Error(t, svc.Emit(context.Background(), nil, DomainEvent{}))
}

func TestPublishLifecycle(t *testing.T) {
	ctx := context.Background()
	conn := dbtest.Open(t)
	repo := NewRepository(conn)

	first := models.OutboxEvent{ID: uuid.New(), EventType: enums.EventOrderCreated, AggregateType: enums.AggregateOrder, AggregateID: uuid.New(), Payload: json.RawMessage(`{}`)}
	second := models.OutboxEvent{ID: uuid.New(), EventType: enums.EventOrderCreated, AggregateType: enums.AggregateOrder, AggregateID: uuid.New(), Payload: json.RawMessage(`{}`)}
	third := models.OutboxEvent{ID: uuid.New(), EventType: enums.EventOrderCreated, AggregateType: enums.AggregateOrder, AggregateID: uuid.New(), Payload: json.RawMessage(`{}`)}
	for _, row := range []models.OutboxEvent{first, second, third} {
		require.NoError(t, repo.Insert(conn, row))
	}

	require.NoError(t, repo.MarkPublishedTx(conn, first.ID))
	require.NoError(t, repo.MarkFailedTx(conn, second.ID, errors.New("pubsub down")))
	require.NoError(t, repo.MarkTerminalTx(conn, third.ID, errors.New("bad payload"), 5))

	pending, err := repo.FetchUnpublishedForPublish(conn, 10, 5)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, second.ID, pending[0].ID)
	require.Equal(t, 1, pending[0].AttemptCount)
	require.Equal(t, "pubsub down", *pending[0].LastError)

	removed, err := repo.DeletePublishedBefore(ctx, time.Now().UTC().Add(time.Hour))
	require.NoError(t, err)
	require.EqualValues(t, 1, removed)
}

func TestDLQInsertTruncatesMessage(t *testing.T) {
	ctx := context.Background()
	conn := dbtest.Open(t)
	dlq := NewDLQRepository(conn)

	long := make([]byte, maxDLQErrorLen+200)
	for i := range long {
		long[i] = 'x'
	}
	msg := string(long)
	eventID := uuid.New()
	require.NoError(t, dlq.InsertTx(conn, models.OutboxDLQ{
		EventID:       eventID,
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`{}`),
		ErrorReason:   DLQReasonNonRetryable,
		ErrorMessage:  &msg,
		FailedAt:      time.Now().UTC(),
	}))

	found, err := dlq.FindByEventID(ctx, eventID)
	require.NoError(t, err)
	require.NotNil(t, found)
	require.Len(t, *found.ErrorMessage, maxDLQErrorLen)

	missing, err := dlq.FindByEventID(ctx, uuid.New())
	require.NoError(t, err)
	require.Nil(t, missing)
}
