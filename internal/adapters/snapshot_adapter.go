package adapters

import (
	"context"
	"errors"
	"time"

	"lendbook/internal/core"
	"lendbook/internal/debtors"
	"lendbook/internal/log"
)

// SnapshotStore persists the last good debtor list.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, list []core.Debtor) error
	LatestSnapshot(ctx context.Context) ([]core.Debtor, time.Time, error)
}

// SnapshotAdapter wraps a debtor backend so reads survive an unreachable API:
// each successful list is stored, and served back when the backend is down.
// Writes pass straight through.
type SnapshotAdapter struct {
	debtors.Backend
	store  SnapshotStore
	logger *log.Logger
}

func NewSnapshotAdapter(backend debtors.Backend, store SnapshotStore, logger *log.Logger) *SnapshotAdapter {
	if logger == nil {
		logger = log.Default()
	}
	return &SnapshotAdapter{
		Backend: backend,
		store:   store,
		logger:  logger.WithComponent(log.ComponentBackend),
	}
}

// ListDebtors implements debtors.Reader
func (a *SnapshotAdapter) ListDebtors(ctx context.Context) ([]core.Debtor, error) {
	list, err := a.Backend.ListDebtors(ctx)
	if err == nil {
		if serr := a.store.SaveSnapshot(ctx, list); serr != nil {
			a.logger.WarnContext(ctx, "Failed to store debtor snapshot", "error", serr)
		}
		return list, nil
	}
	if !errors.Is(err, debtors.ErrUnavailable) {
		return nil, err
	}

	cached, takenAt, serr := a.store.LatestSnapshot(ctx)
	if serr != nil {
		a.logger.ErrorContext(ctx, "Debtor API unavailable and no snapshot to fall back on", "error", err, "snapshot_error", serr)
		return nil, err
	}
	a.logger.WarnContext(ctx, "Debtor API unavailable, serving stored snapshot",
		"error", err,
		"taken_at", takenAt,
		log.FieldRowCount, len(cached))
	return cached, nil
}

// GetDebtor implements debtors.Reader
func (a *SnapshotAdapter) GetDebtor(ctx context.Context, key string) (core.Debtor, error) {
	d, err := a.Backend.GetDebtor(ctx, key)
	if err == nil || !errors.Is(err, debtors.ErrUnavailable) {
		return d, err
	}
	cached, _, serr := a.store.LatestSnapshot(ctx)
	if serr != nil {
		return core.Debtor{}, err
	}
	for _, c := range cached {
		if c.Key == key || c.ID == key {
			return c, nil
		}
	}
	return core.Debtor{}, err
}
