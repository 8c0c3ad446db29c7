package merchant

import "github.com/angelmondragon/restaurant-checkout/pkg/enums"

// DeriveStatus maps processor capability flags to the stored status:
// active iff charges and payouts are enabled, submitted once details are in,
// pending otherwise.
func DeriveStatus(chargesEnabled, payoutsEnabled, detailsSubmitted bool) enums.MerchantAccountStatus {
	switch {
	case chargesEnabled && payoutsEnabled:
		return enums.MerchantAccountStatusActive
	case detailsSubmitted:
		return enums.MerchantAccountStatusSubmitted
	default:
		return enums.MerchantAccountStatusPending
	}
}
