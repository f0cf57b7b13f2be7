// Package core provides the debtor data model and money handling.
//
// Amounts are kept in paise. Parsing goes through decimal arithmetic and
// rounds half-up to two places once, at the boundary where amounts enter.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var (
	hundred    = decimal.NewFromInt(100)
	inrPrinter = message.NewPrinter(language.MustParse("en-IN"))
)

// ParseAmount converts a decimal string to Money with half-up rounding.
//
// Grouping commas, a leading currency sign ("₹", "Rs.") and a trailing "/-"
// are tolerated. Negative values are rejected.
//
// Examples:
//
//	ParseAmount("1,000")    -> 100000 paise
//	ParseAmount("12.345")   -> 1235 paise
//	ParseAmount("Rs.500/-") -> 50000 paise
func ParseAmount(s string) (Money, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "₹")
	s = strings.TrimPrefix(s, "Rs.")
	s = strings.TrimSuffix(s, "/-")
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return Money{}, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	if d.IsNegative() {
		return Money{}, ErrInvalidAmount
	}
	return MoneyFromDecimal(d), nil
}

// ParseDecimalToCents keeps the strict form used by payment forms: the
// amount must parse and be strictly positive.
func ParseDecimalToCents(s string) (int64, error) {
	m, err := ParseAmount(s)
	if err != nil {
		return 0, err
	}
	if m.Cents <= 0 {
		return 0, ErrInvalidAmount
	}
	return m.Cents, nil
}

// MoneyFromDecimal rounds d half-up to paise.
func MoneyFromDecimal(d decimal.Decimal) Money {
	return Money{Cents: d.Round(2).Mul(hundred).IntPart()}
}

// Rupees builds Money from a whole rupee amount.
func Rupees(r int64) Money {
	return Money{Cents: r * 100}
}

// Decimal returns the amount in rupees.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

func (m Money) Add(o Money) Money {
	return Money{Cents: m.Cents + o.Cents}
}

func (m Money) Sub(o Money) Money {
	return Money{Cents: m.Cents - o.Cents}
}

// Times multiplies by a whole count (months paid, for instance).
func (m Money) Times(n int) Money {
	return Money{Cents: m.Cents * int64(n)}
}

func (m Money) IsZero() bool {
	return m.Cents == 0
}

// String renders the plain decimal value, e.g. "1500.50".
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

// Format renders the amount with Indian digit grouping and two decimals,
// e.g. "₹1,00,000.00".
func (m Money) Format() string {
	if m.Cents < 0 {
		return "-" + Money{Cents: -m.Cents}.Format()
	}
	return inrPrinter.Sprintf("₹%.2f", m.Decimal().InexactFloat64())
}

// InterestFor returns rate percent of principal, rounded to paise.
func InterestFor(rate decimal.Decimal, principal Money) Money {
	return MoneyFromDecimal(principal.Decimal().Mul(rate).Div(hundred))
}
