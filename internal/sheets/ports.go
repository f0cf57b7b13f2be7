// Package sheets holds the ports for spreadsheet sinks.
package sheets

import (
	"context"
	"fmt"

	"lendbook/internal/ledger"
)

// Ports for outbound adapters.
type (
	// ReportWriter publishes a month report to its own tab and returns a
	// reference to where it was written.
	ReportWriter interface {
		WriteMonthReport(ctx context.Context, report ledger.MonthReport) (ref string, err error)
	}

	// DebtorListWriter publishes the outstanding-amounts statement.
	DebtorListWriter interface {
		WriteDebtorList(ctx context.Context, list ledger.DebtorList) (ref string, err error)
	}
)

// DebtorsTab is the tab holding the debtor statement.
const DebtorsTab = "Debtors"

// TabName names the tab of a month report, e.g. "2024 Mar".
func TabName(report ledger.MonthReport) string {
	k := report.Month
	if k.IsZero() {
		return "Report"
	}
	return fmt.Sprintf("%d %s", k.Year, k.Month.String()[:3])
}
