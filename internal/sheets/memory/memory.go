// Package memory is an in-process report sink for local runs and tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"lendbook/internal/ledger"
	"lendbook/internal/sheets"
)

// Store keeps the last records written to each tab.
type Store struct {
	mu     sync.Mutex
	tabs   map[string][][]string
	writes int
}

var (
	_ sheets.ReportWriter     = (*Store)(nil)
	_ sheets.DebtorListWriter = (*Store)(nil)
)

func New() *Store {
	return &Store{tabs: make(map[string][][]string)}
}

// WriteMonthReport replaces the tab named after the report month.
func (s *Store) WriteMonthReport(_ context.Context, report ledger.MonthReport) (string, error) {
	return s.write(sheets.TabName(report), report.Records())
}

func (s *Store) WriteDebtorList(_ context.Context, list ledger.DebtorList) (string, error) {
	return s.write(sheets.DebtorsTab, list.Records())
}

func (s *Store) write(tab string, records [][]string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := make([][]string, len(records))
	for i, r := range records {
		copied[i] = append([]string(nil), r...)
	}
	s.tabs[tab] = copied
	s.writes++
	return fmt.Sprintf("mem:%s", tab), nil
}

// Tab returns what was last written to tab.
func (s *Store) Tab(tab string) ([][]string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	records, ok := s.tabs[tab]
	return records, ok
}

// Writes counts every write since creation.
func (s *Store) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}
