// Package backend wires the configured invoice source and the optional
// export infrastructure.
package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"invoicedash/internal/config"
	"invoicedash/internal/sheets/google"
	"invoicedash/internal/sources"
	"invoicedash/internal/sources/csvfile"
	"invoicedash/internal/sources/memory"
	"invoicedash/internal/storage"
)

// Requirements lists what a binary needs beyond the invoice reader.
type Requirements struct {
	// Store opens SQLite even when invoices come from elsewhere.
	Store bool
	// SheetsWriter opens a Google Sheets client for writing reports.
	SheetsWriter bool
}

// Result holds the created components. Store and Sheets are nil unless the
// backend or the requirements needed them.
type Result struct {
	Reader  sources.InvoiceReader
	Store   *storage.SQLiteRepository
	Sheets  *google.Client
	Cleanup func() error
}

type Factory struct {
	logger *slog.Logger
}

func NewFactory(logger *slog.Logger) *Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Factory{logger: logger}
}

// Create builds the reader for cfg.DataBackend plus whatever req asks for.
func (f *Factory) Create(ctx context.Context, cfg *config.Config, req Requirements) (*Result, error) {
	if cfg == nil {
		return nil, errors.New("app config is nil")
	}

	res := &Result{}
	res.Cleanup = func() error {
		if res.Store != nil {
			return res.Store.Close()
		}
		return nil
	}

	if cfg.DataBackend == config.BackendSQLite || req.Store {
		repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		res.Store = repo
		f.logger.Info("Initialized SQLite store", "db_path", cfg.SQLiteDBPath)
	}

	if cfg.DataBackend == config.BackendSheets || req.SheetsWriter {
		client, err := google.New(ctx, SheetsConfig(cfg))
		if err != nil {
			res.Cleanup()
			return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
		}
		res.Sheets = client
		f.logger.Info("Initialized Google Sheets client", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	}

	columns := CSVColumns(cfg)
	switch cfg.DataBackend {
	case config.BackendCSV:
		res.Reader = csvfile.New(cfg.CSVPath, columns)
	case config.BackendMemory:
		store, err := memory.NewFromFile(ctx, cfg.CSVPath, columns)
		if err != nil {
			res.Cleanup()
			return nil, fmt.Errorf("failed to load invoices into memory: %w", err)
		}
		res.Reader = store
	case config.BackendSQLite:
		res.Reader = res.Store
	case config.BackendSheets:
		res.Reader = res.Sheets
	default:
		res.Cleanup()
		return nil, fmt.Errorf("unsupported backend type: %s", cfg.DataBackend)
	}

	f.logger.Info("Initialized invoice backend", "backend", cfg.DataBackend)
	return res, nil
}

// CSVColumns returns the configured CSV header names.
func CSVColumns(cfg *config.Config) csvfile.Columns {
	return csvfile.Columns{
		Date:   cfg.CSVDateColumn,
		Status: cfg.CSVStatusColumn,
		Amount: cfg.CSVAmountColumn,
	}
}

// SheetsConfig maps the app config onto the Sheets client config. The
// invoices tab uses the same header names as the CSV.
func SheetsConfig(cfg *config.Config) google.Config {
	return google.Config{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		InvoicesSheet:   cfg.GoogleInvoicesSheet,
		WeeklySheet:     cfg.GoogleWeeklySheet,
		CumulativeSheet: cfg.GoogleCumulativeSheet,
		DateColumn:      cfg.CSVDateColumn,
		StatusColumn:    cfg.CSVStatusColumn,
		AmountColumn:    cfg.CSVAmountColumn,
	}
}
