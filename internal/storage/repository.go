package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"lendbook/internal/core"
	"lendbook/internal/log"

	_ "modernc.org/sqlite"
)

// ErrNoSnapshot is returned when no debtor snapshot was ever saved.
var ErrNoSnapshot = errors.New("no debtor snapshot stored")

// snapshotsKept bounds how many debtor snapshots are retained.
const snapshotsKept = 5

type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

// ExportRecord describes one published month report.
type ExportRecord struct {
	ID          int64
	JobID       string
	Month       core.MonthKey
	Format      string
	Destination string
	RowCount    int
	Totals      core.MonthTotals
	CreatedAt   time.Time
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite allows a single writer
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, now: time.Now}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// SaveSnapshot stores the debtor list as the newest snapshot and prunes old ones.
func (r *SQLiteRepository) SaveSnapshot(ctx context.Context, debtors []core.Debtor) error {
	payload, err := json.Marshal(debtors)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO debtor_snapshots (taken_at, debtor_count, payload) VALUES (?, ?, ?)`,
		formatTime(r.now()), len(debtors), string(payload)); err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM debtor_snapshots WHERE id NOT IN (SELECT id FROM debtor_snapshots ORDER BY id DESC LIMIT ?)`,
		snapshotsKept); err != nil {
		return fmt.Errorf("prune snapshots: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}

	slog.DebugContext(ctx, "Debtor snapshot saved", log.FieldComponent, log.ComponentStorage, "debtors", len(debtors))
	return nil
}

// LatestSnapshot returns the newest stored debtor list and when it was taken.
func (r *SQLiteRepository) LatestSnapshot(ctx context.Context) ([]core.Debtor, time.Time, error) {
	var (
		takenAt string
		payload string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT taken_at, payload FROM debtor_snapshots ORDER BY id DESC LIMIT 1`).Scan(&takenAt, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, time.Time{}, ErrNoSnapshot
	}
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("query snapshot: %w", err)
	}

	var debtors []core.Debtor
	if err := json.Unmarshal([]byte(payload), &debtors); err != nil {
		return nil, time.Time{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return debtors, parseTime(takenAt), nil
}

// RecordExport stores a published report. A job recorded twice keeps its
// first row, so a redelivered message does not duplicate history.
func (r *SQLiteRepository) RecordExport(ctx context.Context, rec ExportRecord) (int64, error) {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = r.now()
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO report_exports
			(job_id, year, month, format, destination, row_count,
			 debt_given_cents, interest_paid_cents, principal_paid_cents, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(job_id) DO NOTHING`,
		rec.JobID, rec.Month.Year, int(rec.Month.Month), rec.Format, rec.Destination, rec.RowCount,
		rec.Totals.DebtGiven.Cents, rec.Totals.InterestPaid.Cents, rec.Totals.PrincipalPaid.Cents,
		formatTime(rec.CreatedAt))
	if err != nil {
		return 0, fmt.Errorf("insert export: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		var id int64
		if err := r.db.QueryRowContext(ctx, `SELECT id FROM report_exports WHERE job_id = ?`, rec.JobID).Scan(&id); err != nil {
			return 0, fmt.Errorf("lookup export: %w", err)
		}
		return id, nil
	}
	return res.LastInsertId()
}

// HasExport reports whether a report for month was already published.
func (r *SQLiteRepository) HasExport(ctx context.Context, month core.MonthKey) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM report_exports WHERE year = ? AND month = ?`,
		month.Year, int(month.Month)).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("count exports: %w", err)
	}
	return n > 0, nil
}

// ListExports returns the newest exports first.
func (r *SQLiteRepository) ListExports(ctx context.Context, limit int) ([]ExportRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, job_id, year, month, format, destination, row_count,
		       debt_given_cents, interest_paid_cents, principal_paid_cents, created_at
		FROM report_exports
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query exports: %w", err)
	}
	defer rows.Close()

	var out []ExportRecord
	for rows.Next() {
		var (
			rec       ExportRecord
			month     int
			createdAt string
		)
		if err := rows.Scan(&rec.ID, &rec.JobID, &rec.Month.Year, &month, &rec.Format, &rec.Destination,
			&rec.RowCount, &rec.Totals.DebtGiven.Cents, &rec.Totals.InterestPaid.Cents,
			&rec.Totals.PrincipalPaid.Cents, &createdAt); err != nil {
			return nil, fmt.Errorf("scan export: %w", err)
		}
		rec.Month.Month = time.Month(month)
		rec.CreatedAt = parseTime(createdAt)
		out = append(out, rec)
	}
	return out, rows.Err()
}

const timeLayout = "2006-01-02 15:04:05.000000000"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	for _, layout := range []string{timeLayout, time.RFC3339Nano, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
