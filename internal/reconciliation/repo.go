package reconciliation

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/restaurant-checkout/pkg/db/models"
	"github.com/angelmondragon/restaurant-checkout/pkg/enums"
)

// Repository persists payment_reconciliations rows.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

func (r *Repository) Create(ctx context.Context, row *models.PaymentReconciliation) error {
	return r.db.WithContext(ctx).Create(row).Error
}

func (r *Repository) Save(ctx context.Context, row *models.PaymentReconciliation) error {
	return r.db.WithContext(ctx).Save(row).Error
}

func (r *Repository) FindByPaymentIntentID(ctx context.Context, paymentIntentID string) (*models.PaymentReconciliation, error) {
	var row models.PaymentReconciliation
	if err := r.db.WithContext(ctx).Where("payment_intent_id = ?", paymentIntentID).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// ListDue returns open rows whose next attempt is due, oldest first.
func (r *Repository) ListDue(ctx context.Context, now time.Time, limit int) ([]models.PaymentReconciliation, error) {
	var rows []models.PaymentReconciliation
	err := r.db.WithContext(ctx).
		Where("status = ? AND next_attempt_at <= ?", enums.ReconciliationStatusOpen, now).
		Order("next_attempt_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// Resolve marks the row for paymentIntentID resolved by orderID. Rows that
// are already resolved or do not exist are left alone.
func (r *Repository) Resolve(ctx context.Context, paymentIntentID string, orderID uuid.UUID, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.PaymentReconciliation{}).
		Where("payment_intent_id = ? AND status <> ?", paymentIntentID, enums.ReconciliationStatusResolved).
		Updates(map[string]any{
			"status":      enums.ReconciliationStatusResolved,
			"order_id":    orderID,
			"resolved_at": at,
			"updated_at":  at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// CountOpen reports unresolved rows, escalated ones included.
func (r *Repository) CountOpen(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.PaymentReconciliation{}).
		Where("status <> ?", enums.ReconciliationStatusResolved).
		Count(&count).Error
	return count, err
}
