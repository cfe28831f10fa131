package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// DefaultCurrency is the currency used when none is specified.
const DefaultCurrency = "NGN"

var minusOne = decimal.NewFromInt(-1)

// minorUnits maps currency codes to their minor-unit precision.
// Unlisted currencies default to 2.
var minorUnits = map[string]int32{
	"NGN": 2,
	"USD": 2,
	"EUR": 2,
}

// Money is a fixed-point monetary value tagged with a currency code.
// Arithmetic between two Money values requires identical currencies;
// there is no implicit conversion and no float math anywhere.
type Money struct {
	Amount   decimal.Decimal
	Currency string
}

// NewMoney creates a Money from a decimal amount and currency code.
func NewMoney(amount decimal.Decimal, currency string) Money {
	return Money{Amount: amount, Currency: currency}
}

// NewMoneyFromString parses a decimal string into a Money.
func NewMoneyFromString(amount, currency string) (Money, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return Money{}, fmt.Errorf("invalid money amount %q: %w", amount, err)
	}
	return Money{Amount: d, Currency: currency}, nil
}

// ZeroMoney returns a zero value in the given currency.
func ZeroMoney(currency string) Money {
	return Money{Amount: decimal.Zero, Currency: currency}
}

// Add returns m + other. Currencies must match.
func (m Money) Add(other Money) (Money, error) {
	if m.Currency != other.Currency {
		return Money{}, fmt.Errorf("%w: %s vs %s", ErrCurrencyMismatch, m.Currency, other.Currency)
	}
	return Money{Amount: m.Amount.Add(other.Amount), Currency: m.Currency}, nil
}

// Sub returns m - other. Currencies must match.
func (m Money) Sub(other Money) (Money, error) {
	if m.Currency != other.Currency {
		return Money{}, fmt.Errorf("%w: %s vs %s", ErrCurrencyMismatch, m.Currency, other.Currency)
	}
	return Money{Amount: m.Amount.Sub(other.Amount), Currency: m.Currency}, nil
}

// Cmp compares m against other: -1 if less, 0 if equal, 1 if greater.
func (m Money) Cmp(other Money) (int, error) {
	if m.Currency != other.Currency {
		return 0, fmt.Errorf("%w: %s vs %s", ErrCurrencyMismatch, m.Currency, other.Currency)
	}
	return m.Amount.Cmp(other.Amount), nil
}

// GreaterThanOrEqual reports whether m >= other. Currencies must match.
func (m Money) GreaterThanOrEqual(other Money) (bool, error) {
	c, err := m.Cmp(other)
	if err != nil {
		return false, err
	}
	return c >= 0, nil
}

// MulDecimal returns m scaled by the given factor.
func (m Money) MulDecimal(factor decimal.Decimal) Money {
	return Money{Amount: m.Amount.Mul(factor), Currency: m.Currency}
}

// IsPositive reports whether the amount is strictly greater than zero.
func (m Money) IsPositive() bool {
	return m.Amount.IsPositive()
}

// IsZero reports whether the amount is exactly zero.
func (m Money) IsZero() bool {
	return m.Amount.IsZero()
}

// IsNegative reports whether the amount is strictly less than zero.
func (m Money) IsNegative() bool {
	return m.Amount.IsNegative()
}

// Equal reports whether both amount and currency are equal.
func (m Money) Equal(other Money) bool {
	return m.Currency == other.Currency && m.Amount.Equal(other.Amount)
}

// Round returns the value rounded half-up to the currency's minor-unit
// precision. This is the single rounding point for ledger writes; the
// calculator keeps full precision.
func (m Money) Round() Money {
	places, ok := minorUnits[m.Currency]
	if !ok {
		places = 2
	}
	return Money{Amount: m.Amount.Round(places), Currency: m.Currency}
}

// String renders the value as "<amount> <currency>" at minor-unit precision.
func (m Money) String() string {
	places, ok := minorUnits[m.Currency]
	if !ok {
		places = 2
	}
	return fmt.Sprintf("%s %s", m.Amount.StringFixed(places), m.Currency)
}
