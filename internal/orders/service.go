package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/restaurant-checkout/pkg/db"
	"github.com/angelmondragon/restaurant-checkout/pkg/enums"
	pkgerrors "github.com/angelmondragon/restaurant-checkout/pkg/errors"
	"github.com/angelmondragon/restaurant-checkout/pkg/logger"
	"github.com/angelmondragon/restaurant-checkout/pkg/outbox"
	"github.com/angelmondragon/restaurant-checkout/pkg/outbox/payloads"
	"github.com/angelmondragon/restaurant-checkout/pkg/pagination"
)

// Service defines the staff dashboard operations on orders.
type Service interface {
	List(ctx context.Context, filters ListFilters, params pagination.Params) (*OrderList, error)
	Get(ctx context.Context, orderID uuid.UUID) (*OrderDetail, error)
	UpdateStatus(ctx context.Context, input UpdateStatusInput) (*OrderDetail, error)
}

// UpdateStatusInput carries a staff status change.
type UpdateStatusInput struct {
	OrderID uuid.UUID
	Status  enums.OrderStatus
	StaffID string
}

type service struct {
	repo   Repository
	tx     db.TxRunner
	outbox outbox.Emitter
	logg   *logger.Logger
	clock  func() time.Time
}

// NewService builds the staff order service with the required dependencies.
func NewService(repo Repository, tx db.TxRunner, emitter outbox.Emitter, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{repo: repo, tx: tx, outbox: emitter, logg: logg, clock: time.Now}, nil
}

func (s *service) List(ctx context.Context, filters ListFilters, params pagination.Params) (*OrderList, error) {
	for _, status := range filters.Statuses {
		if !status.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid status filter").
				WithDetails(map[string]any{"status": status})
		}
	}
	if filters.OrderType != nil && !filters.OrderType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order type filter")
	}
	if _, err := pagination.ParseCursor(params.Cursor); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	list, err := s.repo.List(ctx, filters, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return list, nil
}

func (s *service) Get(ctx context.Context, orderID uuid.UUID) (*OrderDetail, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return ToDetail(order), nil
}

// UpdateStatus moves an order forward or cancels it. Setting the current
// status again is a no-op. The write is a compare-and-set so two staff
// members racing on the same order cannot both win.
func (s *service) UpdateStatus(ctx context.Context, input UpdateStatusInput) (*OrderDetail, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !input.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid status")
	}

	var result *OrderDetail
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByID(ctx, input.OrderID)
		if err != nil {
			if db.IsNotFound(err) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if order.Status == input.Status {
			result = ToDetail(order)
			return nil
		}
		if !order.Status.CanTransitionTo(input.Status) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "status transition not allowed").
				WithDetails(map[string]any{"from": order.Status, "to": input.Status})
		}

		now := s.clock().UTC()
		ok, err := repo.CompareAndSetStatus(ctx, order.ID, order.Status, input.Status, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeConflict, "order was updated concurrently")
		}

		from := order.Status
		order.Status = input.Status
		order.UpdatedAt = now
		switch input.Status {
		case enums.OrderStatusCancelled:
			order.CancelledAt = &now
		case enums.OrderStatusCompleted:
			order.CompletedAt = &now
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventOrderStatusChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{Kind: outbox.ActorStaff, ID: input.StaffID},
			OccurredAt:    now,
			Data: payloads.OrderStatusChangedEvent{
				OrderID:     order.ID,
				OrderNumber: order.OrderNumber,
				From:        from,
				To:          input.Status,
				ChangedAt:   now,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit status change")
		}
		result = ToDetail(order)
		return nil
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithOrderID(ctx, input.OrderID.String())
	logCtx = s.logg.WithFields(logCtx, map[string]any{"status": input.Status, "staff_id": input.StaffID})
	s.logg.Info(logCtx, "order status updated")
	return result, nil
}
