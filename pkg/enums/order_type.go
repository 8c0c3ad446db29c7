package enums

import (
	"fmt"
	"strings"
)

// OrderType is how the customer receives the order.
type OrderType string

const (
	OrderTypePickup   OrderType = "pickup"
	OrderTypeDelivery OrderType = "delivery"
)

var validOrderTypes = []OrderType{
	OrderTypePickup,
	OrderTypeDelivery,
}

func (t OrderType) String() string {
	return string(t)
}

func (t OrderType) IsValid() bool {
	for _, candidate := range validOrderTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseOrderType converts raw input into an OrderType. Blank input means pickup.
func ParseOrderType(value string) (OrderType, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return OrderTypePickup, nil
	}
	for _, candidate := range validOrderTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order type %q", value)
}
