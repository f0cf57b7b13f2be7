package ledger

import (
	"strconv"
	"strings"

	"lendbook/internal/core"
)

// DebtorColumns is the header of the debtor list export.
var DebtorColumns = []string{
	"#", "Debt Date", "Name", "Address", "Mobile",
	"Original Debt", "Remaining", "Interest %", "Interest Amt", "Interest Paid", "Status",
}

const (
	StatusPaid    = "PAID"
	StatusPending = "Pending"
)

type DebtorRow struct {
	Key          string
	ID           string
	DebtDate     string
	Name         string
	Address      string
	Mobile       string
	OriginalDebt string
	Remaining    string
	InterestRate string
	Interest     string
	PaidMonths   string
	Status       string
	Settled      bool
}

func (r DebtorRow) Cells() []string {
	return []string{
		r.ID, r.DebtDate, r.Name, r.Address, r.Mobile,
		r.OriginalDebt, r.Remaining, r.InterestRate, r.Interest, r.PaidMonths, r.Status,
	}
}

// DebtorList is the outstanding-amounts statement.
type DebtorList struct {
	AsOf             core.MonthKey
	NoData           bool
	Rows             []DebtorRow
	TotalOutstanding core.Money
	TotalInterest    core.Money
}

// BuildDebtorList formats one row per debtor in input order. Debtors without
// an ID are numbered by position.
func BuildDebtorList(debtors []core.Debtor, asOf core.Date) DebtorList {
	list := DebtorList{AsOf: core.MonthOf(asOf), NoData: len(debtors) == 0}
	for i, d := range debtors {
		id := strings.TrimSpace(d.ID)
		if id == "" {
			id = strconv.Itoa(i + 1)
		}
		paid := strings.Join(d.PaidMonths(), ", ")
		if paid == "" {
			paid = "No payments"
		}
		status := StatusPending
		if d.IsSettled() {
			status = StatusPaid
		}
		remaining := "-"
		if d.RemainingBalance != nil {
			remaining = d.RemainingBalance.Format()
		}

		list.Rows = append(list.Rows, DebtorRow{
			Key:          d.Key,
			ID:           id,
			DebtDate:     d.DebtDate.Display(),
			Name:         d.Name,
			Address:      d.Address,
			Mobile:       d.Mobile,
			OriginalDebt: d.Principal().Format(),
			Remaining:    remaining,
			InterestRate: d.InterestRate.String() + "%",
			Interest:     d.InterestAmount.Format(),
			PaidMonths:   paid,
			Status:       status,
			Settled:      d.IsSettled(),
		})
		list.TotalOutstanding = list.TotalOutstanding.Add(d.Outstanding())
		list.TotalInterest = list.TotalInterest.Add(d.InterestAmount)
	}
	return list
}

// Subtitle is e.g. "Details of outstanding amount and persons as on March 2024".
func (l DebtorList) Subtitle() string {
	return "Details of outstanding amount and persons as on " + l.AsOf.FullName()
}

func (l DebtorList) TotalsCells() []string {
	return []string{"", "", "", "", "", "Total", l.TotalOutstanding.Format(), "", l.TotalInterest.Format(), "", ""}
}

func (l DebtorList) Records() [][]string {
	records := make([][]string, 0, len(l.Rows)+2)
	records = append(records, DebtorColumns)
	for _, row := range l.Rows {
		records = append(records, row.Cells())
	}
	return append(records, l.TotalsCells())
}
