package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/restaurant-checkout/pkg/db/models"
	"github.com/angelmondragon/restaurant-checkout/pkg/enums"
	"github.com/angelmondragon/restaurant-checkout/pkg/pagination"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindByPaymentIntentID(ctx context.Context, paymentIntentID string) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).Where("payment_intent_id = ?", paymentIntentID).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// List pages orders newest first, keyed on (placed_at, id).
func (r *repository) List(ctx context.Context, filters ListFilters, params pagination.Params) (*OrderList, error) {
	pageSize := pagination.NormalizeLimit(params.Limit)
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}

	query := r.db.WithContext(ctx).Model(&models.Order{})
	if len(filters.Statuses) > 0 {
		query = query.Where("status IN ?", filters.Statuses)
	} else {
		query = query.Where("status <> ?", enums.OrderStatusCompleted)
	}
	if filters.OrderType != nil {
		query = query.Where("order_type = ?", *filters.OrderType)
	}
	if cursor != nil {
		query = query.Where("(placed_at < ?) OR (placed_at = ? AND id < ?)", cursor.At, cursor.At, cursor.ID)
	}

	var rows []models.Order
	if err := query.
		Order("placed_at DESC").
		Order("id DESC").
		Limit(pagination.LimitWithBuffer(params.Limit)).
		Find(&rows).Error; err != nil {
		return nil, err
	}

	list := &OrderList{Orders: make([]OrderSummary, 0, len(rows))}
	if len(rows) > pageSize {
		last := rows[pageSize-1]
		list.NextCursor = pagination.EncodeCursor(pagination.Cursor{At: last.PlacedAt, ID: last.ID})
		rows = rows[:pageSize]
	}
	for _, row := range rows {
		list.Orders = append(list.Orders, toSummary(row))
	}
	return list, nil
}

// CompareAndSetStatus moves an order from one status to another and reports
// false when the row was no longer in the expected status.
func (r *repository) CompareAndSetStatus(ctx context.Context, id uuid.UUID, from, to enums.OrderStatus, at time.Time) (bool, error) {
	updates := map[string]any{
		"status":     to,
		"updated_at": at,
	}
	switch to {
	case enums.OrderStatusCancelled:
		updates["cancelled_at"] = at
	case enums.OrderStatusCompleted:
		updates["completed_at"] = at
	}

	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
