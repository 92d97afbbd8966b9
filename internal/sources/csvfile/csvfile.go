// Package csvfile reads invoices from a CSV export with a header row.
package csvfile

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"invoicedash/internal/core"
	"invoicedash/internal/sources"
)

const (
	DefaultDateColumn   = "Invoice Date"
	DefaultStatusColumn = "Status"
	DefaultAmountColumn = "Invoice Amount"
)

var ErrMissingColumn = errors.New("missing column")

// Columns names the header cells holding each field. Matching ignores case
// and surrounding spaces.
type Columns struct {
	Date   string
	Status string
	Amount string
}

// DefaultColumns matches the project list export.
func DefaultColumns() Columns {
	return Columns{Date: DefaultDateColumn, Status: DefaultStatusColumn, Amount: DefaultAmountColumn}
}

type Reader struct {
	path    string
	columns Columns
}

var _ sources.InvoiceReader = (*Reader)(nil)

func New(path string, columns Columns) *Reader {
	def := DefaultColumns()
	if strings.TrimSpace(columns.Date) == "" {
		columns.Date = def.Date
	}
	if strings.TrimSpace(columns.Status) == "" {
		columns.Status = def.Status
	}
	if strings.TrimSpace(columns.Amount) == "" {
		columns.Amount = def.Amount
	}
	return &Reader{path: path, columns: columns}
}

// Path returns the file the reader loads.
func (r *Reader) Path() string {
	return r.path
}

// ReadInvoices opens and parses the file on every call.
func (r *Reader) ReadInvoices(ctx context.Context) ([]core.Invoice, error) {
	rows, err := r.ReadRaw(ctx)
	if err != nil {
		return nil, err
	}
	return core.ParseInvoices(rows)
}

// ReadRaw returns the unparsed rows.
func (r *Reader) ReadRaw(ctx context.Context) ([]core.RawInvoice, error) {
	f, err := os.Open(r.path)
	if err != nil {
		return nil, fmt.Errorf("open csv %s: %w", r.path, err)
	}
	defer f.Close()

	rows, err := Decode(ctx, f, r.columns)
	if err != nil {
		return nil, fmt.Errorf("read csv %s: %w", r.path, err)
	}
	return rows, nil
}

// Decode reads raw invoice rows from CSV data. Columns other than the three
// configured ones are ignored.
func Decode(ctx context.Context, in io.Reader, columns Columns) ([]core.RawInvoice, error) {
	cr := csv.NewReader(in)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: empty file, expected header", ErrMissingColumn)
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	idxDate, idxStatus, idxAmount := indexOf(header, columns.Date), indexOf(header, columns.Status), indexOf(header, columns.Amount)
	var missing []string
	if idxDate == -1 {
		missing = append(missing, columns.Date)
	}
	if idxStatus == -1 {
		missing = append(missing, columns.Status)
	}
	if idxAmount == -1 {
		missing = append(missing, columns.Amount)
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s; got header=%v", ErrMissingColumn, strings.Join(missing, ","), header)
	}

	var out []core.RawInvoice
	for row := 1; ; row++ {
		if row%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", row, err)
		}
		if isBlank(rec) {
			continue
		}
		out = append(out, core.RawInvoice{
			Row:    row,
			Date:   safeGet(rec, idxDate),
			Status: safeGet(rec, idxStatus),
			Amount: safeGet(rec, idxAmount),
		})
	}
	return out, nil
}

func indexOf(header []string, name string) int {
	name = strings.TrimSpace(name)
	for i, h := range header {
		h = strings.TrimPrefix(h, "\ufeff")
		if strings.EqualFold(strings.TrimSpace(h), name) {
			return i
		}
	}
	return -1
}

func safeGet(rec []string, i int) string {
	if i < 0 || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

func isBlank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
