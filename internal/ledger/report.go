package ledger

import (
	"strings"

	"lendbook/internal/core"
)

// ReportColumns is the header of the month report table.
var ReportColumns = []string{"ID", "Date", "Name", "Address", "Interest Month", "Type", "Amount"}

// ReportRow is one formatted transaction.
type ReportRow struct {
	ID             string
	Date           string
	Name           string
	Address        string
	InterestMonths string
	Type           string
	Amount         string

	Kind  TransactionType
	Value core.Money
}

// Cells returns the row in ReportColumns order.
func (r ReportRow) Cells() []string {
	return []string{r.ID, r.Date, r.Name, r.Address, r.InterestMonths, r.Type, r.Amount}
}

// MonthReport is the in/out summary of one month bucket.
type MonthReport struct {
	Month  core.MonthKey
	NoData bool
	Rows   []ReportRow
	Totals core.MonthTotals
}

// BuildMonthReport formats the transactions of month. A ledger without data
// yields a report flagged NoData; a month without activity yields no rows
// and zero totals.
func BuildMonthReport(l *Ledger, month core.MonthKey) MonthReport {
	report := MonthReport{Month: month}
	if l == nil || l.NoData {
		report.NoData = true
		return report
	}

	for _, tx := range l.InMonth(month) {
		report.Rows = append(report.Rows, ReportRow{
			ID:             tx.DebtorID,
			Date:           tx.Date.Display(),
			Name:           tx.Name,
			Address:        tx.Address,
			InterestMonths: tx.InterestMonthsLabel(),
			Type:           tx.Type.Label(),
			Amount:         tx.Amount.Format(),
			Kind:           tx.Type,
			Value:          tx.Amount,
		})
	}
	report.Totals = l.Totals[month]
	return report
}

// Title is the report heading, e.g. "March 2024 Overall In & Out Summary".
func (r MonthReport) Title() string {
	name := r.Month.FullName()
	if name == "" {
		return "Overall In & Out Summary"
	}
	return name + " Overall In & Out Summary"
}

// FileStem names downloads, e.g. "transactions_March_2024".
func (r MonthReport) FileStem() string {
	name := r.Month.FullName()
	if name == "" {
		return "transactions"
	}
	return "transactions_" + strings.ReplaceAll(name, " ", "_")
}

// TotalsCells is the footer line for tabular sinks.
func (r MonthReport) TotalsCells() []string {
	return []string{
		"Total Debt Given", r.Totals.DebtGiven.Format(),
		"Total Principal Paid", r.Totals.PrincipalPaid.Format(),
		"Total Interest Paid", r.Totals.InterestPaid.Format(),
	}
}

// Records returns header, rows and totals as plain string records.
func (r MonthReport) Records() [][]string {
	records := make([][]string, 0, len(r.Rows)+2)
	records = append(records, ReportColumns)
	for _, row := range r.Rows {
		records = append(records, row.Cells())
	}
	return append(records, r.TotalsCells())
}
