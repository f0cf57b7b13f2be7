package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"lendbook/internal/amqp"
	"lendbook/internal/core"
	"lendbook/internal/debtors"
	"lendbook/internal/log"
)

// DebtorStore is the part of the debtor directory the services write through.
type DebtorStore interface {
	List(ctx context.Context) ([]core.Debtor, error)
	Get(ctx context.Context, key string) (core.Debtor, error)
	PayInterest(ctx context.Context, p debtors.InterestPayment) error
	PayPrincipal(ctx context.Context, p debtors.PrincipalPayment) error
	CreateDebtor(ctx context.Context, d core.Debtor) (string, error)
	UpdateDebtor(ctx context.Context, d core.Debtor) error
	DeleteDebtor(ctx context.Context, key string) error
}

// EventPublisher announces debtor changes to other processes.
type EventPublisher interface {
	PublishDebtorChanged(ctx context.Context, msg *amqp.DebtorChangedMessage) error
}

type PayInterestRequest struct {
	DebtorKey string   `label:"debtor" validate:"required"`
	Months    []string `label:"months" validate:"min=1"`
	Date      core.Date
}

type PayPrincipalRequest struct {
	DebtorKey string `label:"debtor" validate:"required"`
	Amount    core.Money
	Date      core.Date
	Method    string
}

// PaymentService validates payments and records them through the directory.
type PaymentService struct {
	debtors DebtorStore
	notify  notifier
	loc     *time.Location
	now     func() time.Time
	logger  *log.Logger
	audit   *log.StructuredLogger
}

// NewPaymentService wires the service. events may be nil when no broker is configured.
func NewPaymentService(store DebtorStore, events EventPublisher, loc *time.Location, logger *log.Logger) *PaymentService {
	if logger == nil {
		logger = log.Default()
	}
	if loc == nil {
		loc = time.UTC
	}
	logger = logger.WithComponent(log.ComponentPayments)
	return &PaymentService{
		debtors: store,
		notify:  notifier{events: events, logger: logger},
		loc:     loc,
		now:     time.Now,
		logger:  logger,
		audit:   log.NewStructuredLogger(logger),
	}
}

// Today is the current calendar date in the business time zone.
func (s *PaymentService) Today() core.Date {
	return core.DateIn(s.now(), s.loc)
}

// PayInterest records interest for one or more months. Each month is charged
// the debtor's monthly interest amount.
func (s *PaymentService) PayInterest(ctx context.Context, req PayInterestRequest) (debtors.InterestPayment, error) {
	problems := structProblems(req)
	problems = append(problems, s.dateProblems(req.Date)...)
	if err := NewValidationError(problems...); err != nil {
		return debtors.InterestPayment{}, err
	}

	debtor, err := s.debtors.Get(ctx, req.DebtorKey)
	if err != nil {
		return debtors.InterestPayment{}, fmt.Errorf("load debtor: %w", err)
	}
	if debtor.IsSettled() {
		return debtors.InterestPayment{}, ErrSettled
	}

	months, err := payableMonths(debtor, req.Months)
	if err != nil {
		return debtors.InterestPayment{}, err
	}

	amount := debtor.InterestAmount
	if amount.IsZero() {
		amount = core.InterestFor(debtor.InterestRate, debtor.Principal())
	}
	payment := debtors.InterestPayment{
		DebtorKey: recordKey(debtor, req.DebtorKey),
		DebtorID:  debtor.ID,
		Months:    months,
		Date:      req.Date,
		Amount:    amount,
	}
	if err := s.debtors.PayInterest(ctx, payment); err != nil {
		return debtors.InterestPayment{}, err
	}

	s.audit.LogPaymentRecorded(ctx, "interest", payment.DebtorKey, amount.Times(len(months)).Cents, "")
	s.notify.publish(ctx, payment.DebtorKey, amqp.ActionInterestPaid)
	return payment, nil
}

// payableMonths normalizes the requested labels to "Mar-24" form in
// calendar order, rejecting every month that cannot be paid.
func payableMonths(debtor core.Debtor, requested []string) ([]string, error) {
	start := debtor.StartMonth()
	seen := make(map[core.MonthKey]bool, len(requested))
	var (
		keys                            []core.MonthKey
		malformed, early, paid, repeats []string
	)
	for _, raw := range requested {
		k, err := core.ParseMonthKey(raw)
		switch {
		case err != nil:
			malformed = append(malformed, fmt.Sprintf("%q", raw))
		case k.Before(start):
			early = append(early, k.PaidLabel())
		case debtor.HasPaidMonth(k):
			paid = append(paid, k.PaidLabel())
		case seen[k]:
			repeats = append(repeats, k.PaidLabel())
		default:
			seen[k] = true
			keys = append(keys, k)
		}
	}

	var problems []string
	if len(malformed) > 0 {
		problems = append(problems, "unrecognised months: "+strings.Join(malformed, ", "))
	}
	if len(early) > 0 {
		problems = append(problems, fmt.Sprintf("months before the debt started in %s: %s", start.PaidLabel(), strings.Join(early, ", ")))
	}
	if len(paid) > 0 {
		problems = append(problems, "interest already paid for: "+strings.Join(paid, ", "))
	}
	if len(repeats) > 0 {
		problems = append(problems, "months listed more than once: "+strings.Join(repeats, ", "))
	}
	if err := NewValidationError(problems...); err != nil {
		return nil, err
	}

	sort.Slice(keys, func(i, j int) bool { return keys[i].Before(keys[j]) })
	labels := make([]string, len(keys))
	for i, k := range keys {
		labels[i] = k.PaidLabel()
	}
	return labels, nil
}

// PayPrincipal records a repayment of principal.
func (s *PaymentService) PayPrincipal(ctx context.Context, req PayPrincipalRequest) (debtors.PrincipalPayment, error) {
	problems := structProblems(req)
	if req.Amount.Validate() != nil {
		problems = append(problems, "amount must be greater than zero")
	}
	problems = append(problems, s.dateProblems(req.Date)...)
	method, ok := core.ParsePaymentMethod(req.Method)
	if !ok {
		problems = append(problems, "payment method must be one of "+methodList())
	}
	if err := NewValidationError(problems...); err != nil {
		return debtors.PrincipalPayment{}, err
	}

	debtor, err := s.debtors.Get(ctx, req.DebtorKey)
	if err != nil {
		return debtors.PrincipalPayment{}, fmt.Errorf("load debtor: %w", err)
	}
	if debtor.IsSettled() {
		return debtors.PrincipalPayment{}, ErrSettled
	}
	if !debtor.DebtDate.IsZero() && req.Date.Before(debtor.DebtDate) {
		problems = append(problems, "payment date cannot be before the debt date "+debtor.DebtDate.Display())
	}
	if outstanding := debtor.Outstanding(); req.Amount.Cents > outstanding.Cents {
		problems = append(problems, "amount exceeds the outstanding balance of "+outstanding.Format())
	}
	if err := NewValidationError(problems...); err != nil {
		return debtors.PrincipalPayment{}, err
	}

	payment := debtors.PrincipalPayment{
		DebtorKey: recordKey(debtor, req.DebtorKey),
		Payment: core.PrincipalPayment{
			Date:   req.Date,
			Amount: req.Amount,
			Method: method,
		},
	}
	if err := s.debtors.PayPrincipal(ctx, payment); err != nil {
		return debtors.PrincipalPayment{}, err
	}

	s.audit.LogPaymentRecorded(ctx, "principal", payment.DebtorKey, req.Amount.Cents, string(method))
	s.notify.publish(ctx, payment.DebtorKey, amqp.ActionPrincipalPaid)
	return payment, nil
}

func (s *PaymentService) dateProblems(d core.Date) []string {
	if d.IsZero() {
		return []string{"payment date is required"}
	}
	if d.After(s.Today()) {
		return []string{"payment date cannot be in the future"}
	}
	return nil
}

func recordKey(d core.Debtor, fallback string) string {
	if d.Key != "" {
		return d.Key
	}
	return fallback
}

func methodList() string {
	methods := core.PaymentMethods()
	names := make([]string, len(methods))
	for i, m := range methods {
		names[i] = string(m)
	}
	return strings.Join(names, ", ")
}
