package worker

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lendbook/internal/amqp"
	"lendbook/internal/core"
	"lendbook/internal/ledger"
	sheetsmem "lendbook/internal/sheets/memory"
	"lendbook/internal/storage"
)

type fakeDebtors struct {
	debtors     []core.Debtor
	err         error
	invalidated atomic.Int32
}

func (f *fakeDebtors) List(context.Context) ([]core.Debtor, error) {
	return f.debtors, f.err
}

func (f *fakeDebtors) Invalidate(context.Context) error {
	f.invalidated.Add(1)
	return nil
}

type failingWriter struct{}

func (failingWriter) WriteMonthReport(context.Context, ledger.MonthReport) (string, error) {
	return "", errors.New("quota exceeded")
}

func sampleDebtors() []core.Debtor {
	return []core.Debtor{{
		Key:            "k1",
		ID:             "101",
		Name:           "Ravi Kumar",
		Address:        "Madurai",
		DebtAmount:     core.Rupees(10000),
		DebtDate:       core.NewDate(2024, 3, 5),
		InterestRate:   decimal.NewFromInt(2),
		InterestAmount: core.Rupees(200),
		InterestPaid: []core.InterestPaidEntry{
			{Month: "Mar-24", Date: core.NewDate(2024, 3, 28), Amount: core.Rupees(200)},
		},
	}}
}

func newRepo(t *testing.T) *storage.SQLiteRepository {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "worker.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func newWorker(t *testing.T, src DebtorSource, repo *storage.SQLiteRepository) (*ReportWorker, *sheetsmem.Store) {
	t.Helper()
	sink := sheetsmem.New()
	w := NewReportWorker(src, sink, repo, Config{DebtorList: sink, Location: time.UTC}, nil)
	w.now = func() time.Time { return time.Date(2024, time.April, 2, 9, 0, 0, 0, time.UTC) }
	return w, sink
}

func TestHandleReportRequest(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	w, sink := newWorker(t, &fakeDebtors{debtors: sampleDebtors()}, repo)

	msg := amqp.NewReportRequestMessage(core.MonthKey{Year: 2024, Month: time.March}, "admin")
	require.NoError(t, w.HandleReportRequest(ctx, msg))

	records, ok := sink.Tab("2024 Mar")
	require.True(t, ok)
	// header, debt given, interest paid, totals
	assert.Len(t, records, 4)
	_, ok = sink.Tab("Debtors")
	assert.True(t, ok)

	exports, err := repo.ListExports(ctx, 10)
	require.NoError(t, err)
	require.Len(t, exports, 1)
	assert.Equal(t, msg.JobID, exports[0].JobID)
	assert.Equal(t, "mem:2024 Mar", exports[0].Destination)
	assert.Equal(t, 2, exports[0].RowCount)
	assert.Equal(t, core.Rupees(10000), exports[0].Totals.DebtGiven)
	assert.Equal(t, core.Rupees(200), exports[0].Totals.InterestPaid)

	// redelivery keeps a single history row
	require.NoError(t, w.HandleReportRequest(ctx, msg))
	exports, err = repo.ListExports(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, exports, 1)
}

func TestHandleReportRequest_BadMonthIsDropped(t *testing.T) {
	repo := newRepo(t)
	w, sink := newWorker(t, &fakeDebtors{debtors: sampleDebtors()}, repo)

	err := w.HandleReportRequest(context.Background(), &amqp.ReportRequestMessage{JobID: "j", Year: 2024, Month: 13})
	assert.NoError(t, err)
	assert.Equal(t, 0, sink.Writes())
}

func TestHandleReportRequest_Failures(t *testing.T) {
	ctx := context.Background()
	msg := amqp.NewReportRequestMessage(core.MonthKey{Year: 2024, Month: time.March}, "admin")

	repo := newRepo(t)
	w, _ := newWorker(t, &fakeDebtors{err: errors.New("api down")}, repo)
	assert.ErrorContains(t, w.HandleReportRequest(ctx, msg), "api down")

	w = NewReportWorker(&fakeDebtors{debtors: sampleDebtors()}, failingWriter{}, repo, Config{}, nil)
	assert.ErrorContains(t, w.HandleReportRequest(ctx, msg), "quota exceeded")

	has, err := repo.HasExport(ctx, core.MonthKey{Year: 2024, Month: time.March})
	require.NoError(t, err)
	assert.False(t, has, "a failed publish must not be recorded")
}

func TestStartupCheck(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	w, sink := newWorker(t, &fakeDebtors{debtors: sampleDebtors()}, repo)
	march := core.MonthKey{Year: 2024, Month: time.March}

	require.NoError(t, w.StartupCheck(ctx, march))
	writes := sink.Writes()
	assert.Positive(t, writes)

	require.NoError(t, w.StartupCheck(ctx, march))
	assert.Equal(t, writes, sink.Writes(), "published month is not written again")
}

type fakeConsumer struct {
	requests []*amqp.ReportRequestMessage
	changes  []*amqp.DebtorChangedMessage
}

func (f *fakeConsumer) ConsumeReportRequests(ctx context.Context, handler func(context.Context, *amqp.ReportRequestMessage) error) error {
	for _, m := range f.requests {
		if err := handler(ctx, m); err != nil {
			return err
		}
	}
	<-ctx.Done()
	return ctx.Err()
}

func (f *fakeConsumer) SubscribeDebtorChanged(ctx context.Context, handler func(context.Context, *amqp.DebtorChangedMessage) error) error {
	for _, m := range f.changes {
		if err := handler(ctx, m); err != nil {
			return err
		}
	}
	<-ctx.Done()
	return ctx.Err()
}

func TestRun(t *testing.T) {
	repo := newRepo(t)
	src := &fakeDebtors{debtors: sampleDebtors()}
	w, _ := newWorker(t, src, repo)

	consumer := &fakeConsumer{
		requests: []*amqp.ReportRequestMessage{amqp.NewReportRequestMessage(core.MonthKey{Year: 2024, Month: time.March}, "cron")},
		changes:  []*amqp.DebtorChangedMessage{amqp.NewDebtorChangedMessage("k1", amqp.ActionInterestPaid)},
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, consumer) }()

	require.Eventually(t, func() bool {
		has, err := repo.HasExport(context.Background(), core.MonthKey{Year: 2024, Month: time.March})
		return err == nil && has && src.invalidated.Load() == 1
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}
