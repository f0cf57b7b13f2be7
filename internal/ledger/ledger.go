// Package ledger derives the month-indexed transaction ledger from debtor
// records and shapes it into report tables.
//
// Everything here is pure: the same debtors always produce the same ledger,
// and malformed input has already been coerced to zero values upstream.
package ledger

import (
	"sort"
	"strings"

	"lendbook/internal/core"
)

// TransactionType tags the origin of a ledger transaction.
type TransactionType int

const (
	DebtGiven TransactionType = iota + 1
	InterestPaid
	PrincipalPaid
)

// Label is the text shown in the Type column.
func (t TransactionType) Label() string {
	switch t {
	case DebtGiven:
		return "Debt Given"
	case InterestPaid:
		return "Interest Paid"
	case PrincipalPaid:
		return "Principal Paid"
	}
	return "Unknown"
}

func (t TransactionType) String() string {
	return t.Label()
}

// Transaction is one money movement derived from a debtor record.
type Transaction struct {
	DebtorKey string
	DebtorID  string
	Name      string
	Address   string
	Amount    core.Money
	Date      core.Date
	Month     core.MonthKey
	Type      TransactionType
	// Months covered by an InterestPaid transaction, in recorded order.
	InterestMonths []string
}

// InterestMonthsLabel joins the covered months, or "-" when there are none.
func (t Transaction) InterestMonthsLabel() string {
	if len(t.InterestMonths) == 0 {
		return "-"
	}
	return strings.Join(t.InterestMonths, ", ")
}

// Ledger is the aggregator output.
type Ledger struct {
	Transactions []Transaction
	Months       []core.MonthKey
	Totals       map[core.MonthKey]core.MonthTotals
	// Default is the month a report should open on. Zero when NoData.
	Default core.MonthKey
	NoData  bool
}

// Aggregate turns debtors into a ledger.
//
// Every debtor contributes one DebtGiven transaction dated by OpenedOn.
// Interest entries paid on the same calendar day collapse into a single
// InterestPaid transaction; principal payments map one-to-one. Transactions
// are sorted by date, keeping input order for equal dates. The default month
// is the month of today when it has activity, otherwise the latest month.
func Aggregate(debtors []core.Debtor, today core.Date) *Ledger {
	l := &Ledger{Totals: make(map[core.MonthKey]core.MonthTotals)}
	if len(debtors) == 0 {
		l.NoData = true
		return l
	}

	for _, d := range debtors {
		l.Transactions = append(l.Transactions, debtorTransactions(d)...)
	}

	sort.SliceStable(l.Transactions, func(i, j int) bool {
		return l.Transactions[i].Date.Before(l.Transactions[j].Date)
	})

	for _, tx := range l.Transactions {
		totals, seen := l.Totals[tx.Month]
		if !seen {
			l.Months = append(l.Months, tx.Month)
		}
		switch tx.Type {
		case DebtGiven:
			totals.DebtGiven = totals.DebtGiven.Add(tx.Amount)
		case InterestPaid:
			totals.InterestPaid = totals.InterestPaid.Add(tx.Amount)
		case PrincipalPaid:
			totals.PrincipalPaid = totals.PrincipalPaid.Add(tx.Amount)
		}
		l.Totals[tx.Month] = totals
	}

	sort.SliceStable(l.Months, func(i, j int) bool {
		return l.Months[i].Before(l.Months[j])
	})

	current := core.MonthOf(today)
	l.Default = l.Months[len(l.Months)-1]
	if l.HasMonth(current) {
		l.Default = current
	}
	return l
}

func debtorTransactions(d core.Debtor) []Transaction {
	base := Transaction{
		DebtorKey: d.Key,
		DebtorID:  d.ID,
		Name:      d.Name,
		Address:   d.Address,
	}

	opened := d.OpenedOn()
	given := base
	given.Amount = d.DebtAmount
	given.Date = opened
	given.Month = core.MonthOf(opened)
	given.Type = DebtGiven
	out := []Transaction{given}

	// group interest by calendar day, first-seen order
	byDay := make(map[core.Date]int)
	for _, e := range d.InterestPaid {
		idx, ok := byDay[e.Date]
		if !ok {
			tx := base
			tx.Date = e.Date
			tx.Month = core.MonthOf(e.Date)
			tx.Type = InterestPaid
			out = append(out, tx)
			idx = len(out) - 1
			byDay[e.Date] = idx
		}
		out[idx].Amount = out[idx].Amount.Add(e.Amount)
		out[idx].InterestMonths = append(out[idx].InterestMonths, e.Month)
	}

	for _, p := range d.Payments {
		tx := base
		tx.Amount = p.Amount
		tx.Date = p.Date
		tx.Month = core.MonthOf(p.Date)
		tx.Type = PrincipalPaid
		out = append(out, tx)
	}
	return out
}

// HasMonth reports whether any transaction falls in month.
func (l *Ledger) HasMonth(month core.MonthKey) bool {
	_, ok := l.Totals[month]
	return ok
}

// InMonth returns the transactions of one month bucket in ledger order.
func (l *Ledger) InMonth(month core.MonthKey) []Transaction {
	var out []Transaction
	for _, tx := range l.Transactions {
		if tx.Month == month {
			out = append(out, tx)
		}
	}
	return out
}

// GrandTotals sums every month.
func (l *Ledger) GrandTotals() core.MonthTotals {
	var t core.MonthTotals
	for _, m := range l.Totals {
		t.DebtGiven = t.DebtGiven.Add(m.DebtGiven)
		t.InterestPaid = t.InterestPaid.Add(m.InterestPaid)
		t.PrincipalPaid = t.PrincipalPaid.Add(m.PrincipalPaid)
	}
	return t
}
