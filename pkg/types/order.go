package types

import (
	"strings"

	"github.com/shopspring/decimal"
)

// OrderItem is one line of the cart as the customer saw it at payment time.
type OrderItem struct {
	Name      string          `json:"name" validate:"required,max=200"`
	UnitPrice decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity" validate:"required,min=1,max=999"`
	Variation *string         `json:"variation,omitempty" validate:"omitempty,max=200"`
}

// LineTotal is unit price times quantity.
func (i OrderItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// OrderItems keeps cart order.
type OrderItems []OrderItem

// Sum adds up every line total.
func (items OrderItems) Sum() decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.LineTotal())
	}
	return total
}

// CustomerInfo is the contact block captured at checkout.
type CustomerInfo struct {
	FirstName string `json:"firstName" validate:"required,max=100"`
	LastName  string `json:"lastName" validate:"omitempty,max=100"`
	Email     string `json:"email" validate:"required,email,max=254"`
	Phone     string `json:"phone" validate:"omitempty,max=40"`
	Address   string `json:"address,omitempty" validate:"omitempty,max=500"`
	OrderType string `json:"orderType,omitempty" validate:"omitempty,oneof=pickup delivery"`
}

// FullName joins first and last name, skipping blanks.
func (c CustomerInfo) FullName() string {
	return strings.TrimSpace(strings.TrimSpace(c.FirstName) + " " + strings.TrimSpace(c.LastName))
}

// SplitName is the inverse of FullName for names reconstructed from metadata:
// the first word is the first name, the rest is the last name.
func SplitName(full string) (first, last string) {
	parts := strings.Fields(full)
	if len(parts) == 0 {
		return "", ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}
