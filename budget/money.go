package budget

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// minorUnitExp is the number of decimal places of every supported currency.
const minorUnitExp = 2

var (
	ErrTooPrecise       = errors.New("amount has more than two decimal places")
	ErrAmountOutOfRange = errors.New("amount is out of range")
)

// Amount is a currency value in minor units (cents).
type Amount int64

// NewAmount converts a decimal currency value, refusing fractions of a cent.
func NewAmount(d decimal.Decimal) (Amount, error) {
	if !d.Equal(d.Round(minorUnitExp)) {
		return 0, fmt.Errorf("%w: %s", ErrTooPrecise, d)
	}
	return toMinorUnits(d)
}

// toMinorUnits converts a value already rounded to the minor unit. Values
// that do not fit an int64 count of cents are refused, never wrapped.
func toMinorUnits(d decimal.Decimal) (Amount, error) {
	cents := d.Shift(minorUnitExp).BigInt()
	if !cents.IsInt64() {
		return 0, fmt.Errorf("%w: %s", ErrAmountOutOfRange, d)
	}
	return Amount(cents.Int64()), nil
}

// addAmounts sums a and b, refusing results outside the int64 range.
func addAmounts(a, b Amount) (Amount, error) {
	if (b > 0 && a > math.MaxInt64-b) || (b < 0 && a < math.MinInt64-b) {
		return 0, fmt.Errorf("%w: %s + %s", ErrAmountOutOfRange, a, b)
	}
	return a + b, nil
}

func ParseAmount(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("parsing amount: %w", err)
	}
	return NewAmount(d)
}

// roundAmount rounds a decimal currency value half away from zero to the
// minor unit.
func roundAmount(d decimal.Decimal) (Amount, error) {
	return toMinorUnits(d.Round(minorUnitExp))
}

func (a Amount) Decimal() decimal.Decimal {
	return decimal.New(int64(a), -minorUnitExp)
}

func (a Amount) String() string {
	return a.Decimal().StringFixed(minorUnitExp)
}

// MarshalJSON writes the amount as a number with exactly two decimals.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Amount) UnmarshalJSON(b []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(b); err != nil {
		return err
	}
	parsed, err := NewAmount(d)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
