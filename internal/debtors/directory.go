package debtors

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"lendbook/internal/cache"
	"lendbook/internal/core"
	"lendbook/internal/log"
)

const snapshotKey = "debtors"

// Directory serves debtor reads from a cached snapshot and routes writes to
// the backend. Every write made through it drops the snapshot, so readers
// never see data older than this process's last write.
//
// gen counts invalidations. A load only saves its list when no invalidation
// happened since it asked the backend.
type Directory struct {
	backend Backend
	store   cache.Store[[]core.Debtor]
	group   singleflight.Group
	logger  *log.Logger

	gen atomic.Uint64
	// mu orders snapshot saves against invalidations
	mu sync.Mutex
}

func NewDirectory(backend Backend, store cache.Store[[]core.Debtor], logger *log.Logger) *Directory {
	if logger == nil {
		logger = log.Default()
	}
	return &Directory{
		backend: backend,
		store:   store,
		logger:  logger.WithComponent(log.ComponentDirectory),
	}
}

// List returns every debtor. Concurrent misses share one backend call.
func (d *Directory) List(ctx context.Context) ([]core.Debtor, error) {
	if cached, ok, err := d.store.Load(ctx, snapshotKey); err != nil {
		d.logger.WarnContext(ctx, "Snapshot cache read failed", "error", err)
	} else if ok {
		return cached, nil
	}
	return d.load(ctx)
}

// Refresh reloads the snapshot regardless of its age.
func (d *Directory) Refresh(ctx context.Context) ([]core.Debtor, error) {
	if err := d.Invalidate(ctx); err != nil {
		d.logger.WarnContext(ctx, "Snapshot invalidation failed", "error", err)
	}
	return d.load(ctx)
}

func (d *Directory) load(ctx context.Context) ([]core.Debtor, error) {
	ch := d.group.DoChan(snapshotKey, func() (any, error) {
		// detached so one caller giving up does not fail the others
		loadCtx := context.WithoutCancel(ctx)
		gen := d.gen.Load()
		save := d.saver(loadCtx)
		list, err := d.backend.ListDebtors(loadCtx)
		if err != nil {
			return nil, err
		}
		d.commit(loadCtx, gen, list, save)
		d.logger.DebugContext(loadCtx, "Debtor snapshot loaded", log.FieldRowCount, len(list))
		return list, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, fmt.Errorf("list debtors: %w", res.Err)
		}
		return res.Val.([]core.Debtor), nil
	}
}

// saver picks how a loaded list will be stored. Versioned stores are pinned
// to their current version so a purge from another process also retires
// the save.
func (d *Directory) saver(ctx context.Context) func(context.Context, []core.Debtor) error {
	versioned, ok := d.store.(cache.Versioned[[]core.Debtor])
	if !ok {
		return func(ctx context.Context, list []core.Debtor) error {
			return d.store.Save(ctx, snapshotKey, list)
		}
	}
	ver, err := versioned.Version(ctx)
	if err != nil {
		return func(context.Context, []core.Debtor) error { return err }
	}
	return func(ctx context.Context, list []core.Debtor) error {
		return versioned.SaveAt(ctx, ver, snapshotKey, list)
	}
}

// commit stores list unless the snapshot was invalidated after gen was read.
func (d *Directory) commit(ctx context.Context, gen uint64, list []core.Debtor, save func(context.Context, []core.Debtor) error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.gen.Load() != gen {
		d.logger.DebugContext(ctx, "Discarded snapshot invalidated during load", log.FieldRowCount, len(list))
		return
	}
	if err := save(ctx, list); err != nil {
		d.logger.WarnContext(ctx, "Snapshot cache write failed", log.FieldError, err)
	}
}

// Get looks the debtor up in the snapshot by record key or ledger ID, and
// asks the backend when the snapshot does not have it.
func (d *Directory) Get(ctx context.Context, key string) (core.Debtor, error) {
	if cached, ok, err := d.store.Load(ctx, snapshotKey); err == nil && ok {
		for _, debtor := range cached {
			if debtor.Key == key || debtor.ID == key {
				return debtor, nil
			}
		}
	}
	debtor, err := d.backend.GetDebtor(ctx, key)
	if err != nil {
		return core.Debtor{}, fmt.Errorf("get debtor %s: %w", key, err)
	}
	return debtor, nil
}

// Search matches the ledger ID case-insensitively. An empty query returns everything.
func (d *Directory) Search(ctx context.Context, query string) ([]core.Debtor, error) {
	list, err := d.List(ctx)
	if err != nil {
		return nil, err
	}
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return list, nil
	}
	var out []core.Debtor
	for _, debtor := range list {
		if strings.Contains(strings.ToLower(debtor.ID), query) {
			out = append(out, debtor)
		}
	}
	return out, nil
}

// Invalidate drops the snapshot. Loads already running when it is called
// still answer their callers but never store their list.
func (d *Directory) Invalidate(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.gen.Add(1)
	d.group.Forget(snapshotKey)
	return d.store.Purge(ctx)
}

func (d *Directory) PayInterest(ctx context.Context, p InterestPayment) error {
	return d.write(ctx, log.OpPay, func() error { return d.backend.PayInterest(ctx, p) })
}

func (d *Directory) PayPrincipal(ctx context.Context, p PrincipalPayment) error {
	return d.write(ctx, log.OpPay, func() error { return d.backend.PayPrincipal(ctx, p) })
}

func (d *Directory) CreateDebtor(ctx context.Context, debtor core.Debtor) (string, error) {
	var key string
	err := d.write(ctx, log.OpCreate, func() error {
		var err error
		key, err = d.backend.CreateDebtor(ctx, debtor)
		return err
	})
	return key, err
}

func (d *Directory) UpdateDebtor(ctx context.Context, debtor core.Debtor) error {
	return d.write(ctx, log.OpUpdate, func() error { return d.backend.UpdateDebtor(ctx, debtor) })
}

func (d *Directory) DeleteDebtor(ctx context.Context, key string) error {
	return d.write(ctx, log.OpDelete, func() error { return d.backend.DeleteDebtor(ctx, key) })
}

func (d *Directory) write(ctx context.Context, op string, fn func() error) error {
	err := fn()
	// the backend may have applied part of a failed write
	if ierr := d.Invalidate(ctx); ierr != nil {
		d.logger.WarnContext(ctx, "Snapshot invalidation failed", log.FieldError, ierr, log.FieldOperation, op)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// IsNotFound reports whether err means the debtor does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
