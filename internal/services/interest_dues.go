package services

import (
	"time"

	"lendbook/internal/core"
)

// InterestDues lists the unpaid months from the debt start month through the
// month of today. A settled debtor owes nothing.
func InterestDues(d core.Debtor, today core.Date) []core.MonthKey {
	if d.IsSettled() {
		return nil
	}
	if !dated(d) {
		return nil
	}
	start := d.StartMonth()
	last := core.MonthOf(today)
	var dues []core.MonthKey
	for k := start; !last.Before(k); k = k.Next() {
		if !d.HasPaidMonth(k) {
			dues = append(dues, k)
		}
	}
	return dues
}

// MonthOption is one cell of the pay-interest month grid.
type MonthOption struct {
	Key         core.MonthKey
	Paid        bool
	BeforeStart bool
}

func (o MonthOption) Label() string {
	return o.Key.PaidLabel()
}

// Selectable reports whether the month can still be paid.
func (o MonthOption) Selectable() bool {
	return !o.Paid && !o.BeforeStart
}

// InterestMonthOptions returns January through December of year, marking
// months that are already paid or precede the debt.
func InterestMonthOptions(d core.Debtor, year int) []MonthOption {
	start := d.StartMonth()
	out := make([]MonthOption, 0, 12)
	for m := time.January; m <= time.December; m++ {
		k := core.MonthKey{Year: year, Month: m}
		out = append(out, MonthOption{
			Key:         k,
			Paid:        d.HasPaidMonth(k),
			BeforeStart: k.Before(start),
		})
	}
	return out
}

// PayableYears runs from the year the debt started to the year after today,
// so interest can be collected in advance.
func PayableYears(d core.Debtor, today core.Date) []int {
	first := today.Year()
	if start := d.StartMonth(); dated(d) && start.Year < first {
		first = start.Year
	}
	years := make([]int, 0, today.Year()-first+2)
	for y := first; y <= today.Year()+1; y++ {
		years = append(years, y)
	}
	return years
}

// DefaultInterestDate pre-fills the interest form with the last interest
// payment date, else the debt date, else today.
func DefaultInterestDate(d core.Debtor, today core.Date) core.Date {
	if n := len(d.InterestPaid); n > 0 && !d.InterestPaid[n-1].Date.IsZero() {
		return d.InterestPaid[n-1].Date
	}
	if !d.DebtDate.IsZero() {
		return d.DebtDate
	}
	return today
}

// DefaultPrincipalDate does the same from the principal payment history.
func DefaultPrincipalDate(d core.Debtor, today core.Date) core.Date {
	if n := len(d.Payments); n > 0 && !d.Payments[n-1].Date.IsZero() {
		return d.Payments[n-1].Date
	}
	if !d.DebtDate.IsZero() {
		return d.DebtDate
	}
	return today
}

func dated(d core.Debtor) bool {
	return !d.OpenedOn().IsZero()
}
