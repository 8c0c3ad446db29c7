package merchant

import (
	"context"

	"gorm.io/gorm"

	"github.com/angelmondragon/restaurant-checkout/pkg/db/models"
)

// Repository persists the deployment's connected account.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindPrimary(ctx context.Context) (*models.MerchantAccount, error)
	FindByAccountID(ctx context.Context, accountID string) (*models.MerchantAccount, error)
	Create(ctx context.Context, account *models.MerchantAccount) error
	Save(ctx context.Context, account *models.MerchantAccount) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a merchant repository bound to db.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindPrimary(ctx context.Context) (*models.MerchantAccount, error) {
	var account models.MerchantAccount
	if err := r.db.WithContext(ctx).
		Where("slot = ?", models.MerchantSlotPrimary).
		First(&account).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *repository) FindByAccountID(ctx context.Context, accountID string) (*models.MerchantAccount, error) {
	var account models.MerchantAccount
	if err := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		First(&account).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *repository) Create(ctx context.Context, account *models.MerchantAccount) error {
	return r.db.WithContext(ctx).Create(account).Error
}

func (r *repository) Save(ctx context.Context, account *models.MerchantAccount) error {
	return r.db.WithContext(ctx).Save(account).Error
}
