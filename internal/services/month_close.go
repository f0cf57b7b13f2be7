package services

import (
	"context"
	"fmt"
	"time"

	"lendbook/internal/amqp"
	"lendbook/internal/core"
	"lendbook/internal/log"
)

// ReportPublisher queues a month report for the worker.
type ReportPublisher interface {
	PublishReportRequest(ctx context.Context, msg *amqp.ReportRequestMessage) error
}

// ExportHistory answers whether a month was already published.
type ExportHistory interface {
	HasExport(ctx context.Context, month core.MonthKey) (bool, error)
}

// MonthCloser requests the report of the month that just ended.
type MonthCloser struct {
	publisher ReportPublisher
	history   ExportHistory
	loc       *time.Location
	logger    *log.Logger
}

// NewMonthCloser builds a closer. history may be nil, in which case every
// run publishes.
func NewMonthCloser(publisher ReportPublisher, history ExportHistory, loc *time.Location, logger *log.Logger) *MonthCloser {
	if logger == nil {
		logger = log.Default()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &MonthCloser{
		publisher: publisher,
		history:   history,
		loc:       loc,
		logger:    logger.WithComponent(log.ComponentWorker),
	}
}

// ClosedMonth is the month before the one now falls in, in the business zone.
func (c *MonthCloser) ClosedMonth(now time.Time) core.MonthKey {
	return core.MonthOf(core.DateIn(now, c.loc)).Prev()
}

// CloseMonth publishes a request for the previous month. It returns nil
// without publishing when that month was already exported, unless force is set.
func (c *MonthCloser) CloseMonth(ctx context.Context, now time.Time, requestedBy string, force bool) (*amqp.ReportRequestMessage, error) {
	return c.Request(ctx, c.ClosedMonth(now), requestedBy, force)
}

// Request publishes a report request for month.
func (c *MonthCloser) Request(ctx context.Context, month core.MonthKey, requestedBy string, force bool) (*amqp.ReportRequestMessage, error) {
	if c.publisher == nil {
		return nil, fmt.Errorf("report queue not configured")
	}
	if !force && c.history != nil {
		done, err := c.history.HasExport(ctx, month)
		if err != nil {
			return nil, fmt.Errorf("check export history: %w", err)
		}
		if done {
			c.logger.InfoContext(ctx, "Month already published, skipping", log.FieldMonth, month.Label())
			return nil, nil
		}
	}

	msg := amqp.NewReportRequestMessage(month, requestedBy)
	if err := c.publisher.PublishReportRequest(ctx, msg); err != nil {
		return nil, fmt.Errorf("publish report request: %w", err)
	}
	c.logger.InfoContext(ctx, "Report requested",
		log.FieldMonth, month.Label(),
		log.FieldJobID, msg.JobID)
	return msg, nil
}
