package remote

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"lendbook/internal/core"
)

var (
	validate = validator.New(validator.WithRequiredStructEnabled())

	errNoDate = errors.New("record has neither a debt date nor a creation date")
)

// amount accepts a JSON number or a string and keeps the raw text.
type amount string

func (a *amount) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*a = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*a = amount(s)
		return nil
	}
	*a = amount(b)
	return nil
}

// money parses a non-negative amount. Unparseable text is zero.
func (a amount) money() core.Money {
	m, err := core.ParseAmount(string(a))
	if err != nil {
		return core.Money{}
	}
	return m
}

// signed parses an amount that may be negative, as an overpaid balance can be.
func (a amount) signed() (core.Money, bool) {
	s := strings.ReplaceAll(strings.TrimSpace(string(a)), ",", "")
	if s == "" {
		return core.Money{}, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return core.Money{}, false
	}
	return core.MoneyFromDecimal(d), true
}

func (a amount) decimal() decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(string(a)), "%")))
	if err != nil {
		return decimal.Zero
	}
	return d
}

// wireInterestEntry is validated on its own so a bad entry never costs the
// debtor it belongs to.
type wireInterestEntry struct {
	Month  string `json:"month" validate:"required"`
	Date   string `json:"date" validate:"required"`
	Amount amount `json:"amount"`
}

type wirePayment struct {
	Date   string `json:"date"`
	Amount amount `json:"amount"`
	Method string `json:"method"`
}

// wireDebtor is the record shape served by the debtor API.
type wireDebtor struct {
	MongoID            string              `json:"_id" validate:"required_without=ID"`
	ID                 string              `json:"id"`
	Name               string              `json:"name"`
	Address            string              `json:"address"`
	Mobile             string              `json:"mobile"`
	DebtAmount         amount              `json:"debtAmount"`
	OriginalDebtAmount amount              `json:"originalDebtAmount"`
	DebtDate           string              `json:"debtDate"`
	CurrentDate        string              `json:"currentDate"`
	InterestRate       amount              `json:"interestRate"`
	InterestAmount     amount              `json:"interestAmount"`
	RemainingBalance   *amount             `json:"remainingBalance"`
	InterestPaidMonths []wireInterestEntry `json:"interestPaidMonths"`
	PaymentHistory     []wirePayment       `json:"paymentHistory"`
	Photo              string              `json:"photo"`
	BondPapers         []string            `json:"bondPapers"`
	CheckLeaves        []string            `json:"checkLeaves"`
}

func (w wireDebtor) key() string {
	if w.MongoID != "" {
		return w.MongoID
	}
	return w.ID
}

// normalize converts the record into a Debtor. Only a record without a key
// or without any usable date is rejected. Interest entries without a month
// and payment entries whose date cannot be read are dropped and reported in
// skipped.
func (w wireDebtor) normalize(loc *time.Location) (d core.Debtor, skipped int, err error) {
	if err := validate.Struct(w); err != nil {
		return core.Debtor{}, 0, fmt.Errorf("invalid record %q: %w", w.key(), err)
	}

	debtDate, _ := core.ParseDate(w.DebtDate, loc)
	currentDate, _ := core.ParseDate(w.CurrentDate, loc)
	if debtDate.IsZero() && currentDate.IsZero() {
		return core.Debtor{}, 0, fmt.Errorf("record %q: %w", w.key(), errNoDate)
	}

	d = core.Debtor{
		Key:                w.key(),
		ID:                 strings.TrimSpace(w.ID),
		Name:               strings.TrimSpace(w.Name),
		Address:            strings.TrimSpace(w.Address),
		Mobile:             strings.TrimSpace(w.Mobile),
		DebtAmount:         w.DebtAmount.money(),
		OriginalDebtAmount: w.OriginalDebtAmount.money(),
		DebtDate:           debtDate,
		CurrentDate:        currentDate,
		InterestRate:       w.InterestRate.decimal(),
		InterestAmount:     w.InterestAmount.money(),
		PhotoURL:           w.Photo,
		BondPapers:         w.BondPapers,
		CheckLeaves:        w.CheckLeaves,
	}
	if w.RemainingBalance != nil {
		if balance, ok := w.RemainingBalance.signed(); ok {
			d.RemainingBalance = &balance
		}
	}

	for _, e := range w.InterestPaidMonths {
		e.Month = strings.TrimSpace(e.Month)
		if validate.Struct(e) != nil {
			skipped++
			continue
		}
		date, err := core.ParseDate(e.Date, loc)
		if err != nil {
			skipped++
			continue
		}
		d.InterestPaid = append(d.InterestPaid, core.InterestPaidEntry{
			Month:  e.Month,
			Date:   date,
			Amount: e.Amount.money(),
		})
	}
	for _, p := range w.PaymentHistory {
		date, err := core.ParseDate(p.Date, loc)
		if err != nil {
			skipped++
			continue
		}
		method, ok := core.ParsePaymentMethod(p.Method)
		if !ok {
			method = core.PaymentMethod(strings.TrimSpace(p.Method))
		}
		d.Payments = append(d.Payments, core.PrincipalPayment{
			Date:   date,
			Amount: p.Amount.money(),
			Method: method,
		})
	}
	return d, skipped, nil
}

// Decoded is the result of reading a list of wire records.
type Decoded struct {
	Debtors []core.Debtor
	// Rejected holds one error per record that could not be used.
	Rejected []error
	// SkippedEntries counts history entries dropped for a missing month or
	// an unreadable date.
	SkippedEntries int
}

// DecodeDebtors reads a JSON array of debtor records. A malformed document is
// an error; individual unusable records are reported in Rejected.
func DecodeDebtors(data []byte, loc *time.Location) (Decoded, error) {
	var wire []wireDebtor
	if err := json.Unmarshal(data, &wire); err != nil {
		return Decoded{}, fmt.Errorf("decode debtors: %w", err)
	}
	var out Decoded
	for _, w := range wire {
		d, skipped, err := w.normalize(loc)
		if err != nil {
			out.Rejected = append(out.Rejected, err)
			continue
		}
		out.SkippedEntries += skipped
		out.Debtors = append(out.Debtors, d)
	}
	return out, nil
}

// DecodeDebtor reads a single record.
func DecodeDebtor(data []byte, loc *time.Location) (core.Debtor, error) {
	var w wireDebtor
	if err := json.Unmarshal(data, &w); err != nil {
		return core.Debtor{}, fmt.Errorf("decode debtor: %w", err)
	}
	d, _, err := w.normalize(loc)
	return d, err
}

// encodeDebtor renders a Debtor in the wire shape.
func encodeDebtor(d core.Debtor) wireDebtor {
	w := wireDebtor{
		MongoID:            d.Key,
		ID:                 d.ID,
		Name:               d.Name,
		Address:            d.Address,
		Mobile:             d.Mobile,
		DebtAmount:         amount(d.DebtAmount.String()),
		OriginalDebtAmount: amount(d.OriginalDebtAmount.String()),
		DebtDate:           d.DebtDate.ISO(),
		CurrentDate:        d.CurrentDate.ISO(),
		InterestRate:       amount(d.InterestRate.String()),
		InterestAmount:     amount(d.InterestAmount.String()),
		Photo:              d.PhotoURL,
		BondPapers:         d.BondPapers,
		CheckLeaves:        d.CheckLeaves,
	}
	if d.RemainingBalance != nil {
		balance := amount(d.RemainingBalance.String())
		w.RemainingBalance = &balance
	}
	for _, e := range d.InterestPaid {
		w.InterestPaidMonths = append(w.InterestPaidMonths, wireInterestEntry{
			Month: e.Month, Date: e.Date.ISO(), Amount: amount(e.Amount.String()),
		})
	}
	for _, p := range d.Payments {
		w.PaymentHistory = append(w.PaymentHistory, wirePayment{
			Date: p.Date.ISO(), Amount: amount(p.Amount.String()), Method: string(p.Method),
		})
	}
	return w
}
