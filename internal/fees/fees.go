// Package fees computes the customer-facing totals of a checkout.
package fees

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/angelmondragon/restaurant-checkout/pkg/errors"
)

// ErrInvalidAmount is returned for non-positive, non-finite or sub-cent subtotals.
var ErrInvalidAmount = errors.New("invalid amount")

var (
	// DefaultRate is the platform's share of the subtotal.
	DefaultRate = decimal.RequireFromString("0.05")
	// DefaultCap bounds the service fee regardless of subtotal.
	DefaultCap = decimal.RequireFromString("3.00")

	hundred = decimal.NewFromInt(100)
)

// Totals is the priced checkout. Total always equals Subtotal + ServiceFee.
type Totals struct {
	Subtotal   decimal.Decimal
	ServiceFee decimal.Decimal
	Total      decimal.Decimal
}

// Cents returns each amount in minor units for the processor.
func (t Totals) Cents() (subtotal, fee, total int64) {
	return ToCents(t.Subtotal), ToCents(t.ServiceFee), ToCents(t.Total)
}

// Calculator prices a subtotal. The zero value is not usable; use New or Default.
type Calculator struct {
	rate decimal.Decimal
	cap  decimal.Decimal
}

// Default returns the 5% / $3.00 calculator.
func Default() Calculator {
	return Calculator{rate: DefaultRate, cap: DefaultCap}
}

// New parses rate and cap (e.g. "0.05", "3.00").
func New(rate, cap string) (Calculator, error) {
	r, err := decimal.NewFromString(rate)
	if err != nil {
		return Calculator{}, fmt.Errorf("parse fee rate: %w", err)
	}
	c, err := decimal.NewFromString(cap)
	if err != nil {
		return Calculator{}, fmt.Errorf("parse fee cap: %w", err)
	}
	if r.IsNegative() || r.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return Calculator{}, fmt.Errorf("fee rate %s out of range", rate)
	}
	if c.IsNegative() || c.Exponent() < -2 {
		return Calculator{}, fmt.Errorf("fee cap %s must be a non-negative cent amount", cap)
	}
	return Calculator{rate: r, cap: c}, nil
}

// ComputeTotals prices subtotal with the default calculator.
func ComputeTotals(subtotal decimal.Decimal) (Totals, error) {
	return Default().Compute(subtotal)
}

// Compute returns fee = min(round_half_up(subtotal*rate, 2), cap).
func (c Calculator) Compute(subtotal decimal.Decimal) (Totals, error) {
	if err := ValidateAmount(subtotal); err != nil {
		return Totals{}, err
	}

	// Round is half away from zero, which is half-up for positive amounts.
	fee := subtotal.Mul(c.rate).Round(2)
	if fee.GreaterThan(c.cap) {
		fee = c.cap
	}

	return Totals{
		Subtotal:   subtotal,
		ServiceFee: fee,
		Total:      subtotal.Add(fee),
	}, nil
}

// ComputeFromFloat accepts the JSON number a client sent and rejects NaN/Inf.
func (c Calculator) ComputeFromFloat(subtotal float64) (Totals, error) {
	if math.IsNaN(subtotal) || math.IsInf(subtotal, 0) {
		return Totals{}, invalid("subtotal must be a finite number", subtotal)
	}
	return c.Compute(decimal.NewFromFloat(subtotal))
}

// ValidateAmount enforces a positive amount with at most two decimal places.
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return invalid("subtotal must be greater than zero", amount.String())
	}
	if !amount.Equal(amount.Round(2)) {
		return invalid("subtotal must not contain fractions of a cent", amount.String())
	}
	return nil
}

// ToCents converts a cent-precise amount to minor units.
func ToCents(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}

// FromCents converts minor units back to a 2-decimal amount.
func FromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

func invalid(message string, value any) error {
	return pkgerrors.Wrap(pkgerrors.CodeValidation, ErrInvalidAmount, message).
		WithDetails(map[string]any{"field": "subtotal", "value": value})
}
