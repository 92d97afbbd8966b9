package google

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	goption "google.golang.org/api/option"

	"invoicedash/internal/core"
	"invoicedash/internal/report"
)

// fakeSheets serves the subset of the Sheets values API the client uses.
type fakeSheets struct {
	mu      sync.Mutex
	values  map[string][][]any
	cleared []string
	updated map[string][][]any
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	_, rng, _ := strings.Cut(r.URL.Path, "/values/")
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodGet:
		sheet := sheetOf(rng)
		json.NewEncoder(w).Encode(map[string]any{"range": rng, "values": f.values[sheet]})
	case r.Method == http.MethodPost && strings.HasSuffix(rng, ":clear"):
		f.cleared = append(f.cleared, sheetOf(strings.TrimSuffix(rng, ":clear")))
		io.WriteString(w, `{}`)
	case r.Method == http.MethodPut:
		var body struct {
			Values [][]any `json:"values"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		f.updated[sheetOf(rng)] = body.Values
		json.NewEncoder(w).Encode(map[string]any{"updatedRange": rng})
	default:
		http.Error(w, "unexpected request", http.StatusNotFound)
	}
}

func sheetOf(rng string) string {
	sheet, _, _ := strings.Cut(rng, "!")
	return strings.Trim(sheet, "'")
}

func newTestClient(t *testing.T, fake *fakeSheets) *Client {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	c, err := New(context.Background(), Config{SpreadsheetID: "sheet-123"},
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithoutAuthentication(),
		goption.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func TestNew_MissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), Config{})
	if err == nil {
		t.Fatal("expected error for missing spreadsheet id")
	}
	if err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestNew_MissingCredentials(t *testing.T) {
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_JSON", "")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_FILE", "")
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")

	_, err := New(context.Background(), Config{SpreadsheetID: "x"})
	if err == nil {
		t.Fatal("expected error without credentials")
	}
	if !strings.Contains(err.Error(), "missing service account credentials") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestClient_ReadInvoices(t *testing.T) {
	fake := &fakeSheets{values: map[string][][]any{
		DefaultInvoicesSheet: {
			{"Invoice Date", "Status", "Invoice Amount"},
			{"2024-01-02", "Proposed", "100"},
			{"2024-01-03", "Paid", "50"},
		},
	}, updated: map[string][][]any{}}
	c := newTestClient(t, fake)

	got, err := c.ReadInvoices(context.Background())
	if err != nil {
		t.Fatalf("read invoices: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 invoices, got %d", len(got))
	}
	if got[1].Status != core.StatusPaid || !got[1].Amount.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("unexpected invoice: %+v", got[1])
	}
}

func TestClient_ReadInvoices_Malformed(t *testing.T) {
	fake := &fakeSheets{values: map[string][][]any{
		DefaultInvoicesSheet: {
			{"Invoice Date", "Status", "Invoice Amount"},
			{"2024-01-02", "Proposed", "100"},
			{"not a date", "Paid", "50"},
		},
	}, updated: map[string][][]any{}}
	c := newTestClient(t, fake)

	_, err := c.ReadInvoices(context.Background())
	if !errors.Is(err, core.ErrMalformedInput) {
		t.Fatalf("expected malformed input error, got %v", err)
	}
	var mie *core.MalformedInputError
	if !errors.As(err, &mie) || mie.Row != 2 {
		t.Fatalf("expected row 2, got %v", err)
	}
}

func TestClient_WriteReport(t *testing.T) {
	fake := &fakeSheets{values: map[string][][]any{}, updated: map[string][][]any{}}
	c := newTestClient(t, fake)

	rep, err := report.Build([]core.Invoice{
		{Date: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), Status: core.StatusProposed, Amount: decimal.NewFromInt(100)},
		{Date: time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC), Status: core.StatusPaid, Amount: decimal.NewFromInt(200)},
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	ref, err := c.WriteReport(context.Background(), rep)
	if err != nil {
		t.Fatalf("write report: %v", err)
	}
	if ref != "sheet-123!Weekly Revenue,Cumulative Revenue" {
		t.Errorf("unexpected ref %q", ref)
	}
	if len(fake.cleared) != 2 {
		t.Errorf("expected both tabs cleared, got %v", fake.cleared)
	}
	if n := len(fake.updated[DefaultWeeklySheet]); n != 3 {
		t.Errorf("weekly rows = %d, want 3", n)
	}
	cum := fake.updated[DefaultCumulativeSheet]
	if len(cum) != 3 || cum[2][2] != "300" {
		t.Errorf("unexpected cumulative rows: %v", cum)
	}
}
