package export

import (
	"encoding/csv"
	"io"

	"lendbook/internal/ledger"
)

// DebtorListStem names debtor list downloads.
const DebtorListStem = "DebtorsReport"

// WriteMonthReportCSV emits the report header, its rows and the totals line.
func WriteMonthReportCSV(w io.Writer, report ledger.MonthReport) error {
	return writeRecords(w, report.Records())
}

// WriteDebtorListCSV emits one line per debtor followed by the totals line.
func WriteDebtorListCSV(w io.Writer, list ledger.DebtorList) error {
	return writeRecords(w, list.Records())
}

func writeRecords(w io.Writer, records [][]string) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()
	for _, record := range records {
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
