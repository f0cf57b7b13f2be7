package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"lendbook/internal/amqp"
	"lendbook/internal/core"
	"lendbook/internal/log"
)

// maxLedgerID is the largest number a generated three digit ledger ID may take.
const maxLedgerID = 999

var ErrLedgerFull = errors.New("ledger numbers exhausted")

// DebtorRequest carries the editable fields of a debtor record.
type DebtorRequest struct {
	ID           string `label:"ledger id" validate:"max=64"`
	Name         string `label:"name" validate:"required"`
	Address      string `label:"address" validate:"required"`
	Mobile       string `label:"mobile" validate:"required"`
	DebtAmount   core.Money
	DebtDate     core.Date
	InterestRate decimal.Decimal
}

func (r *DebtorRequest) trim() {
	r.ID = strings.TrimSpace(r.ID)
	r.Name = strings.TrimSpace(r.Name)
	r.Address = strings.TrimSpace(r.Address)
	r.Mobile = strings.TrimSpace(r.Mobile)
}

func (r DebtorRequest) problems() []string {
	problems := structProblems(r)
	if r.Mobile != "" && !core.ValidMobile(r.Mobile) {
		problems = append(problems, core.ErrInvalidMobile.Error())
	}
	if r.DebtAmount.Validate() != nil {
		problems = append(problems, "debt amount must be greater than zero")
	}
	if r.DebtDate.IsZero() {
		problems = append(problems, "debt date is required")
	}
	if !r.InterestRate.IsPositive() {
		problems = append(problems, "interest rate must be greater than zero")
	}
	return problems
}

// DebtorService validates debtor records before they reach the directory.
type DebtorService struct {
	debtors DebtorStore
	notify  notifier
	loc     *time.Location
	now     func() time.Time
	logger  *log.Logger
}

func NewDebtorService(store DebtorStore, events EventPublisher, loc *time.Location, logger *log.Logger) *DebtorService {
	if logger == nil {
		logger = log.Default()
	}
	if loc == nil {
		loc = time.UTC
	}
	logger = logger.WithComponent(log.ComponentDirectory)
	return &DebtorService{
		debtors: store,
		notify:  notifier{events: events, logger: logger},
		loc:     loc,
		now:     time.Now,
		logger:  logger,
	}
}

// AddDebtor creates a record. Without an explicit ledger ID the next free
// three digit number is assigned.
func (s *DebtorService) AddDebtor(ctx context.Context, req DebtorRequest) (core.Debtor, error) {
	req.trim()
	if err := NewValidationError(req.problems()...); err != nil {
		return core.Debtor{}, err
	}

	existing, err := s.debtors.List(ctx)
	if err != nil {
		return core.Debtor{}, fmt.Errorf("list debtors: %w", err)
	}
	id := req.ID
	if id == "" {
		if id, err = nextLedgerID(existing); err != nil {
			return core.Debtor{}, err
		}
	} else if ledgerIDTaken(existing, id, "") {
		return core.Debtor{}, NewValidationError(fmt.Sprintf("ledger id %s is already used", id))
	}

	balance := req.DebtAmount
	debtor := core.Debtor{
		ID:                 id,
		Name:               req.Name,
		Address:            req.Address,
		Mobile:             req.Mobile,
		DebtAmount:         req.DebtAmount,
		OriginalDebtAmount: req.DebtAmount,
		DebtDate:           req.DebtDate,
		CurrentDate:        core.DateIn(s.now(), s.loc),
		InterestRate:       req.InterestRate,
		InterestAmount:     core.InterestFor(req.InterestRate, req.DebtAmount),
		RemainingBalance:   &balance,
	}
	key, err := s.debtors.CreateDebtor(ctx, debtor)
	if err != nil {
		return core.Debtor{}, err
	}
	debtor.Key = key

	s.logger.InfoContext(ctx, "Debtor added",
		log.FieldDebtorKey, key,
		log.FieldDebtorID, id,
		log.FieldAmountCents, debtor.DebtAmount.Cents)
	s.notify.publish(ctx, key, amqp.ActionCreated)
	return debtor, nil
}

// UpdateDebtor replaces the editable fields and keeps the payment history.
func (s *DebtorService) UpdateDebtor(ctx context.Context, key string, req DebtorRequest) (core.Debtor, error) {
	req.trim()
	if err := NewValidationError(req.problems()...); err != nil {
		return core.Debtor{}, err
	}

	debtor, err := s.debtors.Get(ctx, key)
	if err != nil {
		return core.Debtor{}, fmt.Errorf("load debtor: %w", err)
	}
	if req.ID != "" && req.ID != debtor.ID {
		existing, err := s.debtors.List(ctx)
		if err != nil {
			return core.Debtor{}, fmt.Errorf("list debtors: %w", err)
		}
		if ledgerIDTaken(existing, req.ID, debtor.Key) {
			return core.Debtor{}, NewValidationError(fmt.Sprintf("ledger id %s is already used", req.ID))
		}
		debtor.ID = req.ID
	}
	debtor.Key = recordKey(debtor, key)
	debtor.Name = req.Name
	debtor.Address = req.Address
	debtor.Mobile = req.Mobile
	debtor.DebtAmount = req.DebtAmount
	debtor.DebtDate = req.DebtDate
	debtor.InterestRate = req.InterestRate
	debtor.InterestAmount = core.InterestFor(req.InterestRate, req.DebtAmount)

	if err := s.debtors.UpdateDebtor(ctx, debtor); err != nil {
		return core.Debtor{}, err
	}
	s.logger.InfoContext(ctx, "Debtor updated", log.FieldDebtorKey, debtor.Key)
	s.notify.publish(ctx, debtor.Key, amqp.ActionUpdated)
	return debtor, nil
}

func (s *DebtorService) DeleteDebtor(ctx context.Context, key string) error {
	debtor, err := s.debtors.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("load debtor: %w", err)
	}
	key = recordKey(debtor, key)
	if err := s.debtors.DeleteDebtor(ctx, key); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "Debtor deleted", log.FieldDebtorKey, key, log.FieldDebtorID, debtor.ID)
	s.notify.publish(ctx, key, amqp.ActionDeleted)
	return nil
}

// nextLedgerID returns one more than the highest numeric ID, zero padded to
// three digits. Non-numeric IDs are ignored.
func nextLedgerID(existing []core.Debtor) (string, error) {
	highest := 0
	for _, d := range existing {
		if n, err := strconv.Atoi(strings.TrimSpace(d.ID)); err == nil && n > highest {
			highest = n
		}
	}
	if highest >= maxLedgerID {
		return "", ErrLedgerFull
	}
	return fmt.Sprintf("%03d", highest+1), nil
}

func ledgerIDTaken(existing []core.Debtor, id, exceptKey string) bool {
	for _, d := range existing {
		if exceptKey != "" && d.Key == exceptKey {
			continue
		}
		if strings.EqualFold(d.ID, id) {
			return true
		}
	}
	return false
}
