package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"lendbook/internal/amqp"
	"lendbook/internal/core"
	"lendbook/internal/ledger"
	"lendbook/internal/log"
	"lendbook/internal/sheets"
	"lendbook/internal/storage"
)

// DebtorSource is the debtor directory as the worker sees it.
type DebtorSource interface {
	List(ctx context.Context) ([]core.Debtor, error)
	Invalidate(ctx context.Context) error
}

// ExportStore records what was published.
type ExportStore interface {
	RecordExport(ctx context.Context, rec storage.ExportRecord) (int64, error)
	HasExport(ctx context.Context, month core.MonthKey) (bool, error)
}

// ReportWorker turns report requests into published month reports.
type ReportWorker struct {
	debtors DebtorSource
	reports sheets.ReportWriter
	list    sheets.DebtorListWriter
	exports ExportStore
	format  string
	loc     *time.Location
	now     func() time.Time
	logger  *log.Logger
}

// Config holds the optional parts of the worker.
type Config struct {
	// DebtorList, when set, also receives the outstanding-amounts
	// statement with every published month.
	DebtorList sheets.DebtorListWriter
	// Format is stored with each export, e.g. "sheets".
	Format   string
	Location *time.Location
}

func NewReportWorker(debtors DebtorSource, reports sheets.ReportWriter, exports ExportStore, cfg Config, logger *log.Logger) *ReportWorker {
	if logger == nil {
		logger = log.Default()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Format == "" {
		cfg.Format = "sheets"
	}
	return &ReportWorker{
		debtors: debtors,
		reports: reports,
		list:    cfg.DebtorList,
		exports: exports,
		format:  cfg.Format,
		loc:     cfg.Location,
		now:     time.Now,
		logger:  logger.WithComponent(log.ComponentWorker),
	}
}

// HandleReportRequest builds and publishes the requested month. A message
// naming an impossible month is logged and acknowledged so it is not
// redelivered forever.
func (w *ReportWorker) HandleReportRequest(ctx context.Context, msg *amqp.ReportRequestMessage) error {
	month, err := msg.MonthKey()
	if err != nil {
		w.logger.ErrorContext(ctx, "Dropping report request",
			log.FieldJobID, msg.JobID,
			log.FieldError, err)
		return nil
	}

	w.logger.InfoContext(ctx, "Processing report request",
		log.FieldJobID, msg.JobID,
		log.FieldMonth, month.Label(),
		"requested_by", msg.RequestedBy)

	start := time.Now()
	rec, err := w.publish(ctx, msg.JobID, month)
	if err != nil {
		w.logger.ErrorContext(ctx, "Report publishing failed",
			log.FieldOperation, log.OpPublish,
			log.FieldJobID, msg.JobID,
			log.FieldMonth, month.Label(),
			log.FieldError, err)
		return err
	}

	w.logger.InfoContext(ctx, "Report published",
		log.FieldJobID, msg.JobID,
		log.FieldMonth, month.Label(),
		log.FieldRowCount, rec.RowCount,
		log.FieldSheetsRef, rec.Destination,
		log.FieldDuration, time.Since(start).Milliseconds())
	return nil
}

func (w *ReportWorker) publish(ctx context.Context, jobID string, month core.MonthKey) (storage.ExportRecord, error) {
	all, err := w.debtors.List(ctx)
	if err != nil {
		return storage.ExportRecord{}, fmt.Errorf("list debtors: %w", err)
	}
	today := core.DateIn(w.now(), w.loc)
	report := ledger.BuildMonthReport(ledger.Aggregate(all, today), month)

	ref, err := w.reports.WriteMonthReport(ctx, report)
	if err != nil {
		return storage.ExportRecord{}, fmt.Errorf("write month report: %w", err)
	}
	if w.list != nil {
		if _, err := w.list.WriteDebtorList(ctx, ledger.BuildDebtorList(all, today)); err != nil {
			return storage.ExportRecord{}, fmt.Errorf("write debtor list: %w", err)
		}
	}

	rec := storage.ExportRecord{
		JobID:       jobID,
		Month:       month,
		Format:      w.format,
		Destination: ref,
		RowCount:    len(report.Rows),
		Totals:      report.Totals,
	}
	if _, err := w.exports.RecordExport(ctx, rec); err != nil {
		return storage.ExportRecord{}, fmt.Errorf("record export: %w", err)
	}
	return rec, nil
}

// HandleDebtorChanged drops the debtor snapshot so the next report reads
// fresh records.
func (w *ReportWorker) HandleDebtorChanged(ctx context.Context, msg *amqp.DebtorChangedMessage) error {
	w.logger.DebugContext(ctx, "Debtor changed",
		log.FieldDebtorKey, msg.DebtorKey,
		log.FieldOperation, msg.Action)
	return w.debtors.Invalidate(ctx)
}

// StartupCheck publishes month when no export exists for it yet. It covers
// requests lost while the worker was down.
func (w *ReportWorker) StartupCheck(ctx context.Context, month core.MonthKey) error {
	done, err := w.exports.HasExport(ctx, month)
	if err != nil {
		return fmt.Errorf("check export history: %w", err)
	}
	if done {
		w.logger.InfoContext(ctx, "Closed month already published", log.FieldMonth, month.Label())
		return nil
	}

	w.logger.InfoContext(ctx, "Closed month not published yet, publishing", log.FieldMonth, month.Label())
	return w.HandleReportRequest(ctx, amqp.NewReportRequestMessage(month, "startup"))
}

// Consumer is the message source the worker runs against.
type Consumer interface {
	ConsumeReportRequests(ctx context.Context, handler func(context.Context, *amqp.ReportRequestMessage) error) error
	SubscribeDebtorChanged(ctx context.Context, handler func(context.Context, *amqp.DebtorChangedMessage) error) error
}

// Run consumes report requests and debtor change events until ctx ends or
// either loop fails.
func (w *ReportWorker) Run(ctx context.Context, consumer Consumer) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return consumer.ConsumeReportRequests(ctx, w.HandleReportRequest)
	})
	g.Go(func() error {
		return consumer.SubscribeDebtorChanged(ctx, w.HandleDebtorChanged)
	})
	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
