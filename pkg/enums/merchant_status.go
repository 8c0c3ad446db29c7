package enums

import "fmt"

// MerchantAccountStatus is derived from the processor capability flags.
type MerchantAccountStatus string

const (
	MerchantAccountStatusPending   MerchantAccountStatus = "pending"
	MerchantAccountStatusSubmitted MerchantAccountStatus = "submitted"
	MerchantAccountStatusActive    MerchantAccountStatus = "active"
)

var validMerchantAccountStatuses = []MerchantAccountStatus{
	MerchantAccountStatusPending,
	MerchantAccountStatusSubmitted,
	MerchantAccountStatusActive,
}

func (s MerchantAccountStatus) String() string {
	return string(s)
}

func (s MerchantAccountStatus) IsValid() bool {
	for _, candidate := range validMerchantAccountStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

func ParseMerchantAccountStatus(value string) (MerchantAccountStatus, error) {
	for _, candidate := range validMerchantAccountStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid merchant account status %q", value)
}
