package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"invoicedash/internal/core"
	"invoicedash/internal/sources"

	_ "modernc.org/sqlite"
)

const (
	timeLayout        = time.RFC3339
	// invoice dates keep sub-second precision from timestamped sources
	invoiceDateLayout = time.RFC3339Nano
)

var ErrNotFound = errors.New("not found")

// ExportStatus is the lifecycle state of an export run.
type ExportStatus string

const (
	ExportQueued  ExportStatus = "queued"
	ExportRunning ExportStatus = "running"
	ExportDone    ExportStatus = "done"
	ExportFailed  ExportStatus = "failed"
)

// ExportRun records one request to publish the report to Google Sheets.
type ExportRun struct {
	ID          string       `json:"id"`
	Status      ExportStatus `json:"status"`
	WeekStart   time.Weekday `json:"-"`
	RequestedAt time.Time    `json:"requested_at"`
	StartedAt   *time.Time   `json:"started_at,omitempty"`
	FinishedAt  *time.Time   `json:"finished_at,omitempty"`
	SheetRef    string       `json:"sheet_ref,omitempty"`
	Error       string       `json:"error,omitempty"`
}

type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

var _ sources.InvoiceReader = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := RunMigrations(dbPath); err != nil {
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

// Ping is used by readiness checks.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// ReplaceInvoices swaps the stored invoice set for the given one in a single
// transaction. progress, if not nil, is called after each inserted row.
func (r *SQLiteRepository) ReplaceInvoices(ctx context.Context, source string, invoices []core.Invoice, progress func()) (int, error) {
	for i, inv := range invoices {
		if err := inv.Validate(); err != nil {
			return 0, fmt.Errorf("invoice %d: %w", i+1, err)
		}
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM invoices`); err != nil {
		return 0, fmt.Errorf("clear invoices: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO invoices (invoice_date, status, amount, source, imported_at) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	importedAt := r.now().UTC().Format(timeLayout)
	for _, inv := range invoices {
		if _, err := stmt.ExecContext(ctx, inv.Date.UTC().Format(invoiceDateLayout), string(inv.Status), inv.Amount.String(), source, importedAt); err != nil {
			return 0, fmt.Errorf("insert invoice: %w", err)
		}
		if progress != nil {
			progress()
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit import: %w", err)
	}

	slog.InfoContext(ctx, "Invoices imported to SQLite", "count", len(invoices), "source", source)
	return len(invoices), nil
}

// ReadInvoices implements sources.InvoiceReader. Rows come back in import order.
func (r *SQLiteRepository) ReadInvoices(ctx context.Context) ([]core.Invoice, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, invoice_date, status, amount FROM invoices ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query invoices: %w", err)
	}
	defer rows.Close()

	out := []core.Invoice{}
	for rows.Next() {
		var (
			id                   int64
			date, status, amount string
		)
		if err := rows.Scan(&id, &date, &status, &amount); err != nil {
			return nil, fmt.Errorf("scan invoice: %w", err)
		}
		t, err := time.Parse(invoiceDateLayout, date)
		if err != nil {
			return nil, &core.MalformedInputError{Row: int(id), Field: "date", Value: date, Err: core.ErrInvalidDate}
		}
		amt, err := decimal.NewFromString(amount)
		if err != nil {
			return nil, &core.MalformedInputError{Row: int(id), Field: "amount", Value: amount, Err: core.ErrInvalidAmount}
		}
		out = append(out, core.Invoice{Date: t.UTC(), Status: core.Status(status), Amount: amt})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate invoices: %w", err)
	}
	return out, nil
}

// CountInvoices returns the number of stored invoices.
func (r *SQLiteRepository) CountInvoices(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM invoices`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count invoices: %w", err)
	}
	return n, nil
}

// CreateExportRun inserts a queued export run with a fresh id.
func (r *SQLiteRepository) CreateExportRun(ctx context.Context, weekStart time.Weekday) (ExportRun, error) {
	run := ExportRun{
		ID:          uuid.NewString(),
		Status:      ExportQueued,
		WeekStart:   weekStart,
		RequestedAt: r.now().UTC().Truncate(time.Second),
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO export_runs (id, status, week_start, requested_at) VALUES (?, ?, ?, ?)`,
		run.ID, string(run.Status), weekStart.String(), run.RequestedAt.Format(timeLayout))
	if err != nil {
		return ExportRun{}, fmt.Errorf("create export run: %w", err)
	}
	return run, nil
}

// MarkExportRunning moves a run to running.
func (r *SQLiteRepository) MarkExportRunning(ctx context.Context, id string) error {
	return r.updateRun(ctx, id,
		`UPDATE export_runs SET status = ?, started_at = ?, error = '' WHERE id = ?`,
		string(ExportRunning), r.now().UTC().Format(timeLayout), id)
}

// MarkExportDone records the written sheet reference.
func (r *SQLiteRepository) MarkExportDone(ctx context.Context, id, sheetRef string) error {
	return r.updateRun(ctx, id,
		`UPDATE export_runs SET status = ?, finished_at = ?, sheet_ref = ?, error = '' WHERE id = ?`,
		string(ExportDone), r.now().UTC().Format(timeLayout), sheetRef, id)
}

// MarkExportFailed records the failure message.
func (r *SQLiteRepository) MarkExportFailed(ctx context.Context, id string, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return r.updateRun(ctx, id,
		`UPDATE export_runs SET status = ?, finished_at = ?, error = ? WHERE id = ?`,
		string(ExportFailed), r.now().UTC().Format(timeLayout), msg, id)
}

func (r *SQLiteRepository) updateRun(ctx context.Context, id, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update export run %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update export run %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("export run %s: %w", id, ErrNotFound)
	}
	return nil
}

const exportRunColumns = `id, status, week_start, requested_at, started_at, finished_at, sheet_ref, error`

// GetExportRun loads a single run.
func (r *SQLiteRepository) GetExportRun(ctx context.Context, id string) (ExportRun, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+exportRunColumns+` FROM export_runs WHERE id = ?`, id)
	run, err := scanExportRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ExportRun{}, fmt.Errorf("export run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return ExportRun{}, fmt.Errorf("get export run %s: %w", id, err)
	}
	return run, nil
}

// ListExportRuns returns the most recent runs first.
func (r *SQLiteRepository) ListExportRuns(ctx context.Context, limit int) ([]ExportRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx, `SELECT `+exportRunColumns+` FROM export_runs ORDER BY requested_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list export runs: %w", err)
	}
	defer rows.Close()

	var out []ExportRun
	for rows.Next() {
		run, err := scanExportRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan export run: %w", err)
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExportRun(s rowScanner) (ExportRun, error) {
	var (
		run               ExportRun
		status, weekStart string
		requested         string
		started, finished sql.NullString
	)
	if err := s.Scan(&run.ID, &status, &weekStart, &requested, &started, &finished, &run.SheetRef, &run.Error); err != nil {
		return ExportRun{}, err
	}
	run.Status = ExportStatus(status)
	if d, err := core.ParseWeekday(weekStart); err == nil {
		run.WeekStart = d
	}
	run.RequestedAt, _ = time.Parse(timeLayout, requested)
	run.StartedAt = parseNullTime(started)
	run.FinishedAt = parseNullTime(finished)
	return run, nil
}

func parseNullTime(ns sql.NullString) *time.Time {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	t, err := time.Parse(timeLayout, ns.String)
	if err != nil {
		return nil
	}
	return &t
}
