package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"invoicedash/internal/core"
	"invoicedash/internal/report"
	"invoicedash/internal/sources"
)

// Default tab names used when Config leaves them empty.
const (
	DefaultInvoicesSheet   = "Invoices"
	DefaultWeeklySheet     = "Weekly Revenue"
	DefaultCumulativeSheet = "Cumulative Revenue"
)

type Config struct {
	SpreadsheetID   string
	InvoicesSheet   string
	WeeklySheet     string
	CumulativeSheet string
	// Header names of the invoices tab. Empty values use the dashboard defaults.
	DateColumn   string
	StatusColumn string
	AmountColumn string
}

type Client struct {
	svc             *gsheet.Service
	spreadsheetID   string
	invoicesSheet   string
	weeklySheet     string
	cumulativeSheet string
	columns         headerColumns
}

var (
	_ sources.InvoiceReader = (*Client)(nil)
	_ sources.ReportWriter  = (*Client)(nil)
)

// New creates a Sheets client. Without extra options it authenticates with a
// service account (see newSheetsService); passing options replaces that.
func New(ctx context.Context, cfg Config, opts ...goption.ClientOption) (*Client, error) {
	spreadsheetID := strings.TrimSpace(cfg.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}

	var (
		svc *gsheet.Service
		err error
	)
	if len(opts) == 0 {
		svc, err = newSheetsService(ctx)
	} else {
		svc, err = gsheet.NewService(ctx, opts...)
	}
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &Client{
		svc:             svc,
		spreadsheetID:   spreadsheetID,
		invoicesSheet:   orDefault(cfg.InvoicesSheet, DefaultInvoicesSheet),
		weeklySheet:     orDefault(cfg.WeeklySheet, DefaultWeeklySheet),
		cumulativeSheet: orDefault(cfg.CumulativeSheet, DefaultCumulativeSheet),
		columns: headerColumns{
			date:   orDefault(cfg.DateColumn, "Invoice Date"),
			status: orDefault(cfg.StatusColumn, "Status"),
			amount: orDefault(cfg.AmountColumn, "Invoice Amount"),
		},
	}, nil
}

// newSheetsService initializes a Sheets Service using Service Account credentials.
// Uses GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS.
func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	var err error

	switch {
	case serviceAccountJSON != "":
		slog.DebugContext(ctx, "Using inline service account credentials")
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		slog.DebugContext(ctx, "Reading service account credentials", "path", serviceAccountFile)
		credentialsJSON, err = os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope),
		goption.WithHTTPClient(newHTTPClient()))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// newHTTPClient returns a pooled client with timeouts for the Sheets API.
func newHTTPClient() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{Transport: transport, Timeout: 60 * time.Second}
}

// ReadInvoices reads the invoices tab and parses it. The whole read fails on
// the first malformed row.
func (c *Client) ReadInvoices(ctx context.Context) ([]core.Invoice, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	rng := fmt.Sprintf("%s!A:Z", quoteSheet(c.invoicesSheet))
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	raw, err := parseInvoiceRows(resp.Values, c.columns)
	if err != nil {
		return nil, err
	}
	return core.ParseInvoices(raw)
}

// WriteReport replaces the contents of the weekly and cumulative tabs.
func (c *Client) WriteReport(ctx context.Context, rep report.Report) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return c.replaceSheet(gctx, c.weeklySheet, weeklyValues(rep))
	})
	g.Go(func() error {
		return c.replaceSheet(gctx, c.cumulativeSheet, cumulativeValues(rep))
	})
	if err := g.Wait(); err != nil {
		return "", err
	}

	ref := fmt.Sprintf("%s!%s,%s", c.spreadsheetID, c.weeklySheet, c.cumulativeSheet)
	slog.InfoContext(ctx, "Report written to Google Sheets",
		"ref", ref,
		"weekly_rows", len(rep.Weekly),
		"cumulative_rows", len(rep.Cumulative))
	return ref, nil
}

func (c *Client) replaceSheet(ctx context.Context, sheet string, values [][]any) error {
	clearRng := fmt.Sprintf("%s!A:Z", quoteSheet(sheet))
	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, clearRng, &gsheet.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear %s: %w", clearRng, err)
	}

	rng := fmt.Sprintf("%s!A1", quoteSheet(sheet))
	vr := &gsheet.ValueRange{Values: values}
	_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to update sheet %s: %w", sheet, err)
	}
	return nil
}

func orDefault(v, def string) string {
	if v = strings.TrimSpace(v); v == "" {
		return def
	}
	return v
}

// quoteSheet quotes a tab name for A1 notation when it is not a plain word.
func quoteSheet(name string) string {
	if strings.ContainsAny(name, " '!-") {
		return "'" + strings.ReplaceAll(name, "'", "''") + "'"
	}
	return name
}
