package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Money is an immutable amount in minor units (e.g. cents) with its ISO-4217
// currency code and precision. All price comparisons and arithmetic in the
// engine route through it; raw int64 amounts never leave this type.
type Money struct {
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	Precision int32  `json:"precision"`
}

func NewMoney(amount int64, currency string, precision int32) Money {
	return Money{Amount: amount, Currency: currency, Precision: precision}
}

// USD builds a US dollar amount in cents, the common case in fixtures.
func USD(cents int64) Money {
	return Money{Amount: cents, Currency: "USD", Precision: 2}
}

func (m Money) IsZero() bool {
	return m.Amount == 0
}

func (m Money) SameCurrency(o Money) bool {
	return m.Currency == o.Currency
}

// Cmp compares two amounts of the same currency: -1, 0 or 1.
func (m Money) Cmp(o Money) (int, error) {
	if !m.SameCurrency(o) {
		return 0, ErrCurrencyMismatch
	}
	switch {
	case m.Amount < o.Amount:
		return -1, nil
	case m.Amount > o.Amount:
		return 1, nil
	default:
		return 0, nil
	}
}

func (m Money) GreaterThan(o Money) (bool, error) {
	c, err := m.Cmp(o)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}

func (m Money) LessThanOrEqual(o Money) (bool, error) {
	c, err := m.Cmp(o)
	if err != nil {
		return false, err
	}
	return c <= 0, nil
}

func (m Money) Add(o Money) (Money, error) {
	if !m.SameCurrency(o) {
		return Money{}, ErrCurrencyMismatch
	}
	return Money{Amount: m.Amount + o.Amount, Currency: m.Currency, Precision: m.Precision}, nil
}

// Decimal converts minor units to a major-unit decimal, e.g. 15000 cents to
// 150.00.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Amount, -m.Precision)
}

func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.Decimal().StringFixed(m.Precision), m.Currency)
}
