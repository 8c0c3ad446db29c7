package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/restaurant-checkout/pkg/enums"
)

// MerchantSlotPrimary keys the one connected account of a deployment.
const MerchantSlotPrimary = "primary"

// MerchantAccount mirrors the restaurant's connected processor account.
// Status is always derived from the capability flags, never set directly.
type MerchantAccount struct {
	ID                      uuid.UUID                   `gorm:"column:id;type:uuid;primaryKey"`
	Slot                    string                      `gorm:"column:slot;not null;uniqueIndex"`
	AccountID               string                      `gorm:"column:account_id;not null;uniqueIndex"`
	Email                   *string                     `gorm:"column:email"`
	Status                  enums.MerchantAccountStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	ChargesEnabled          bool                        `gorm:"column:charges_enabled;not null;default:false"`
	PayoutsEnabled          bool                        `gorm:"column:payouts_enabled;not null;default:false"`
	DetailsSubmitted        bool                        `gorm:"column:details_submitted;not null;default:false"`
	OnboardingLink          *string                     `gorm:"column:onboarding_link"`
	OnboardingLinkExpiresAt *time.Time                  `gorm:"column:onboarding_link_expires_at"`
	CreatedAt               time.Time                   `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt               time.Time                   `gorm:"column:updated_at;autoUpdateTime"`
}

func (MerchantAccount) TableName() string { return "merchant_accounts" }

// CanAcceptPayments reports whether split payments may be initiated against the account.
func (m *MerchantAccount) CanAcceptPayments() bool {
	return m != nil && m.AccountID != "" && m.ChargesEnabled
}
