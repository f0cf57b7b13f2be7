// Package memory is an in-process debtor backend for local runs and tests.
package memory

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"lendbook/internal/core"
	"lendbook/internal/debtors"
	"lendbook/internal/debtors/remote"
)

// SeedFile is read from the data directory by NewFromFiles.
const SeedFile = "debtors.json"

type Store struct {
	mu    sync.Mutex
	items []core.Debtor
}

func New(seed []core.Debtor) *Store {
	items := make([]core.Debtor, len(seed))
	for i, d := range seed {
		items[i] = clone(d)
	}
	return &Store{items: items}
}

// NewFromFiles seeds the store from base/debtors.json, in the API's wire
// format. A missing file yields an empty store.
func NewFromFiles(base string, loc *time.Location) (*Store, error) {
	data, err := os.ReadFile(filepath.Join(base, SeedFile))
	if os.IsNotExist(err) {
		return New(nil), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read seed: %w", err)
	}
	decoded, err := remote.DecodeDebtors(data, loc)
	if err != nil {
		return nil, err
	}
	if len(decoded.Rejected) > 0 {
		return nil, fmt.Errorf("seed %s: %w", SeedFile, decoded.Rejected[0])
	}
	return New(decoded.Debtors), nil
}

func (s *Store) ListDebtors(_ context.Context) ([]core.Debtor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Debtor, len(s.items))
	for i, d := range s.items {
		out[i] = clone(d)
	}
	return out, nil
}

func (s *Store) GetDebtor(_ context.Context, key string) (core.Debtor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(key)
	if i < 0 {
		return core.Debtor{}, fmt.Errorf("%w: %s", debtors.ErrNotFound, key)
	}
	return clone(s.items[i]), nil
}

func (s *Store) PayInterest(_ context.Context, p debtors.InterestPayment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(p.DebtorKey)
	if i < 0 {
		return fmt.Errorf("%w: %s", debtors.ErrNotFound, p.DebtorKey)
	}
	for _, month := range p.Months {
		s.items[i].InterestPaid = append(s.items[i].InterestPaid, core.InterestPaidEntry{
			Month:  month,
			Date:   p.Date,
			Amount: p.Amount,
		})
	}
	return nil
}

// PayPrincipal appends the payment and lowers the remaining balance.
func (s *Store) PayPrincipal(_ context.Context, p debtors.PrincipalPayment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(p.DebtorKey)
	if i < 0 {
		return fmt.Errorf("%w: %s", debtors.ErrNotFound, p.DebtorKey)
	}
	d := &s.items[i]
	d.Payments = append(d.Payments, p.Payment)
	balance := d.Outstanding().Sub(p.Payment.Amount)
	d.RemainingBalance = &balance
	return nil
}

func (s *Store) CreateDebtor(_ context.Context, d core.Debtor) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d = clone(d)
	d.Key = uuid.NewString()
	if d.OriginalDebtAmount.IsZero() {
		d.OriginalDebtAmount = d.DebtAmount
	}
	if d.RemainingBalance == nil {
		balance := d.DebtAmount
		d.RemainingBalance = &balance
	}
	s.items = append(s.items, d)
	return d.Key, nil
}

// UpdateDebtor replaces the record's details and keeps its payment history.
func (s *Store) UpdateDebtor(_ context.Context, d core.Debtor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(d.Key)
	if i < 0 {
		return fmt.Errorf("%w: %s", debtors.ErrNotFound, d.Key)
	}
	updated := clone(d)
	updated.InterestPaid = s.items[i].InterestPaid
	updated.Payments = s.items[i].Payments
	if updated.RemainingBalance == nil {
		updated.RemainingBalance = s.items[i].RemainingBalance
	}
	s.items[i] = updated
	return nil
}

func (s *Store) DeleteDebtor(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(key)
	if i < 0 {
		return fmt.Errorf("%w: %s", debtors.ErrNotFound, key)
	}
	s.items = append(s.items[:i], s.items[i+1:]...)
	return nil
}

func (s *Store) indexOf(key string) int {
	for i, d := range s.items {
		if d.Key == key || (d.Key == "" && d.ID == key) {
			return i
		}
	}
	return -1
}

func clone(d core.Debtor) core.Debtor {
	d.InterestPaid = append([]core.InterestPaidEntry(nil), d.InterestPaid...)
	d.Payments = append([]core.PrincipalPayment(nil), d.Payments...)
	d.BondPapers = append([]string(nil), d.BondPapers...)
	d.CheckLeaves = append([]string(nil), d.CheckLeaves...)
	if d.RemainingBalance != nil {
		balance := *d.RemainingBalance
		d.RemainingBalance = &balance
	}
	return d
}
