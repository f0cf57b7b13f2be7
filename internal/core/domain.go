package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	MethodCash         PaymentMethod = "Cash"
	MethodBankTransfer PaymentMethod = "Bank Transfer"
	MethodUPI          PaymentMethod = "UPI"
	MethodCheque       PaymentMethod = "Cheque"
)

type (
	PaymentMethod string

	// Date is a calendar date. The time part is always midnight UTC.
	Date struct {
		time.Time
	}

	// Money is an amount in paise.
	Money struct {
		Cents int64
	}

	// InterestPaidEntry records that the interest for one month was settled.
	// Month keeps the label as the lender wrote it (e.g. "Mar-24").
	InterestPaidEntry struct {
		Month  string
		Date   Date
		Amount Money
	}

	PrincipalPayment struct {
		Date   Date
		Amount Money
		Method PaymentMethod
	}

	Debtor struct {
		Key                string // remote record identifier
		ID                 string // ledger number shown on reports
		Name               string
		Address            string
		Mobile             string
		DebtAmount         Money
		OriginalDebtAmount Money
		DebtDate           Date
		CurrentDate        Date // when the record was created
		InterestRate       decimal.Decimal
		InterestAmount     Money
		RemainingBalance   *Money
		InterestPaid       []InterestPaidEntry
		Payments           []PrincipalPayment
		PhotoURL           string
		BondPapers         []string
		CheckLeaves        []string
	}
)

var (
	ErrInvalidDay    = errors.New("invalid day")
	ErrInvalidMonth  = errors.New("invalid month")
	ErrInvalidAmount = errors.New("invalid amount")
	ErrInvalidDate   = errors.New("invalid date")
	ErrEmptyName     = errors.New("empty name")
	ErrInvalidMobile = errors.New("mobile number must be 10 digits")
)

var paymentMethods = []PaymentMethod{MethodCash, MethodBankTransfer, MethodUPI, MethodCheque}

// PaymentMethods lists the methods accepted for principal payments.
func PaymentMethods() []PaymentMethod {
	out := make([]PaymentMethod, len(paymentMethods))
	copy(out, paymentMethods)
	return out
}

// ParsePaymentMethod matches case-insensitively. An empty value means cash.
func ParsePaymentMethod(s string) (PaymentMethod, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return MethodCash, true
	}
	for _, m := range paymentMethods {
		if strings.EqualFold(string(m), s) {
			return m, true
		}
	}
	return "", false
}

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	_, month, day := d.Date()
	if day < 1 || day > 31 {
		return ErrInvalidDay
	}
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

// Day returns the day of the month
func (d Date) Day() int {
	return d.Time.Day()
}

// Month returns the month
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the year
func (d Date) Year() int {
	return d.Time.Year()
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateIn returns the calendar date of t as seen in loc.
func DateIn(t time.Time, loc *time.Location) Date {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return NewDate(y, int(m), d)
}

// ParseDate accepts YYYY-MM-DD, DD/MM/YYYY and RFC 3339 timestamps. Timestamps
// are converted to loc before the calendar date is taken.
func ParseDate(s string, loc *time.Location) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, ErrInvalidDate
	}
	for _, layout := range []string{"2006-01-02", "02/01/2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return Date{Time: t}, nil
		}
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return DateIn(t, loc), nil
		}
	}
	return Date{}, ErrInvalidDate
}

// After reports whether d is a later calendar day than o.
func (d Date) After(o Date) bool {
	return d.Time.After(o.Time)
}

// Before reports whether d is an earlier calendar day than o.
func (d Date) Before(o Date) bool {
	return d.Time.Before(o.Time)
}

// ISO renders the date as YYYY-MM-DD.
func (d Date) ISO() string {
	if d.IsZero() {
		return ""
	}
	return d.Format("2006-01-02")
}

// Display renders the date as DD/MM/YYYY.
func (d Date) Display() string {
	if d.IsZero() {
		return ""
	}
	return d.Format("02/01/2006")
}

// IsEmpty returns true if the date is zero
func (d Date) IsEmpty() bool {
	return d.IsZero()
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// OpenedOn is the date the debt is booked on: the record's creation date,
// or the debt date for records that predate it.
func (d Debtor) OpenedOn() Date {
	if !d.CurrentDate.IsZero() {
		return d.CurrentDate
	}
	return d.DebtDate
}

// StartMonth is the first month interest is owed for.
func (d Debtor) StartMonth() MonthKey {
	if !d.DebtDate.IsZero() {
		return MonthOf(d.DebtDate)
	}
	return MonthOf(d.OpenedOn())
}

// Outstanding returns the remaining balance, falling back to the debt amount
// when the record carries no balance.
func (d Debtor) Outstanding() Money {
	if d.RemainingBalance != nil {
		return *d.RemainingBalance
	}
	return d.DebtAmount
}

// Principal returns the originally lent amount.
func (d Debtor) Principal() Money {
	if d.OriginalDebtAmount.Cents != 0 {
		return d.OriginalDebtAmount
	}
	return d.DebtAmount
}

// IsSettled reports whether the principal has been fully repaid.
func (d Debtor) IsSettled() bool {
	return d.RemainingBalance != nil && d.RemainingBalance.Cents <= 0
}

// PaidMonths returns the month labels in the order they were recorded.
func (d Debtor) PaidMonths() []string {
	out := make([]string, 0, len(d.InterestPaid))
	for _, e := range d.InterestPaid {
		out = append(out, e.Month)
	}
	return out
}

// HasPaidMonth reports whether interest for month was already recorded.
func (d Debtor) HasPaidMonth(month MonthKey) bool {
	for _, e := range d.InterestPaid {
		if k, err := ParseMonthKey(e.Month); err == nil && k == month {
			return true
		}
	}
	return false
}

// InterestPaidTotal sums every interest entry.
func (d Debtor) InterestPaidTotal() Money {
	var total Money
	for _, e := range d.InterestPaid {
		total = total.Add(e.Amount)
	}
	return total
}

// PrincipalPaidTotal sums every principal payment.
func (d Debtor) PrincipalPaidTotal() Money {
	var total Money
	for _, p := range d.Payments {
		total = total.Add(p.Amount)
	}
	return total
}

// ValidMobile reports whether s is a 10 digit phone number.
func ValidMobile(s string) bool {
	if len(s) != 10 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
