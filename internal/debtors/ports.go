// Package debtors is the single way the rest of the application reads and
// writes debtor records. Backends implement the ports; Directory fronts them
// with a snapshot cache.
package debtors

import (
	"context"
	"errors"
	"time"

	"lendbook/internal/core"
)

var (
	ErrNotFound    = errors.New("debtor not found")
	ErrUnavailable = errors.New("debtor backend unavailable")
)

// Ports for debtor backends.
type (
	Reader interface {
		ListDebtors(ctx context.Context) ([]core.Debtor, error)
		GetDebtor(ctx context.Context, key string) (core.Debtor, error)
	}

	// InterestPayment settles one or more months at the debtor's monthly rate.
	InterestPayment struct {
		DebtorKey string
		DebtorID  string   // ledger ID, which the interest endpoint is keyed by
		Months    []string // "Mar-24" labels
		Date      core.Date
		Amount    core.Money // per month
	}

	PrincipalPayment struct {
		DebtorKey string
		Payment   core.PrincipalPayment
	}

	Writer interface {
		PayInterest(ctx context.Context, p InterestPayment) error
		PayPrincipal(ctx context.Context, p PrincipalPayment) error
		CreateDebtor(ctx context.Context, d core.Debtor) (string, error)
		UpdateDebtor(ctx context.Context, d core.Debtor) error
		DeleteDebtor(ctx context.Context, key string) error
	}

	Backend interface {
		Reader
		Writer
	}

	// SessionReader reports when a user last signed out of the debtor API.
	// A zero time means the API has no record.
	SessionReader interface {
		LastLogout(ctx context.Context, username string) (time.Time, error)
	}
)
