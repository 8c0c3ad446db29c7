package enums

import "fmt"

// LedgerEventType classifies the immutable money rows written per order.
type LedgerEventType string

const (
	LedgerEventTypePlatformFee   LedgerEventType = "platform_fee"
	LedgerEventTypeMerchantShare LedgerEventType = "merchant_share"
)

var validLedgerEventTypes = []LedgerEventType{
	LedgerEventTypePlatformFee,
	LedgerEventTypeMerchantShare,
}

// IsValid reports whether the value matches a known ledger event type.
func (t LedgerEventType) IsValid() bool {
	for _, candidate := range validLedgerEventTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseLedgerEventType converts raw input into LedgerEventType.
func ParseLedgerEventType(value string) (LedgerEventType, error) {
	for _, candidate := range validLedgerEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid ledger event type %q", value)
}
