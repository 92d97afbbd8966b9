package csvfile

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invoicedash/internal/core"
)

const projectList = `Project,Client,Invoice Date,Status,Invoice Amount
Site refresh,Acme,2024-01-02,Proposed,100
Logo,Globex,2024-01-03,Paid,"1,050.50"
Retainer,Initech,1/10/2024,paid,$200
`

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "invoices.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReadInvoices(t *testing.T) {
	r := New(writeFile(t, projectList), Columns{})

	invoices, err := r.ReadInvoices(context.Background())
	require.NoError(t, err)
	require.Len(t, invoices, 3)

	assert.Equal(t, core.StatusProposed, invoices[0].Status)
	assert.Equal(t, "1050.5", invoices[1].Amount.String())
	assert.Equal(t, core.StatusPaid, invoices[2].Status)
	assert.Equal(t, 10, invoices[2].Date.Day())
}

func TestDecodeCustomColumnsAndBOM(t *testing.T) {
	data := "\ufeffdate , state,amount\n2024-02-01,Complete,5\n,,\n2024-02-02, Confirmed ,7\n"

	rows, err := Decode(context.Background(), strings.NewReader(data), Columns{Date: "DATE", Status: "State", Amount: "amount"})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, core.RawInvoice{Row: 1, Date: "2024-02-01", Status: "Complete", Amount: "5"}, rows[0])
	assert.Equal(t, core.RawInvoice{Row: 3, Date: "2024-02-02", Status: "Confirmed", Amount: "7"}, rows[1])
}

func TestDecodeMissingColumns(t *testing.T) {
	_, err := Decode(context.Background(), strings.NewReader("Invoice Date,Total\n2024-01-01,5\n"), DefaultColumns())
	require.ErrorIs(t, err, ErrMissingColumn)
	assert.Contains(t, err.Error(), "Status")
	assert.Contains(t, err.Error(), "Invoice Amount")

	_, err = Decode(context.Background(), strings.NewReader(""), DefaultColumns())
	require.ErrorIs(t, err, ErrMissingColumn)
}

func TestReadInvoicesMalformedAborts(t *testing.T) {
	content := "Invoice Date,Status,Invoice Amount\n2024-01-02,Paid,10\nsoon,Paid,20\n"
	r := New(writeFile(t, content), DefaultColumns())

	invoices, err := r.ReadInvoices(context.Background())
	require.ErrorIs(t, err, core.ErrMalformedInput)
	assert.Nil(t, invoices)
	assert.Contains(t, err.Error(), "row 2")
}

func TestReadInvoicesMissingFile(t *testing.T) {
	r := New(filepath.Join(t.TempDir(), "nope.csv"), DefaultColumns())
	_, err := r.ReadInvoices(context.Background())
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestHeaderOnlyIsEmpty(t *testing.T) {
	r := New(writeFile(t, "Invoice Date,Status,Invoice Amount\n"), DefaultColumns())
	invoices, err := r.ReadInvoices(context.Background())
	require.NoError(t, err)
	assert.Empty(t, invoices)
}
