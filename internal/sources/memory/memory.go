package memory

import (
	"context"
	"sync"

	"invoicedash/internal/core"
	"invoicedash/internal/sources"
	"invoicedash/internal/sources/csvfile"
)

type Store struct {
	mu    sync.Mutex
	items []core.Invoice
}

var _ sources.InvoiceReader = (*Store)(nil)

func New(items ...core.Invoice) *Store {
	return &Store{items: append([]core.Invoice(nil), items...)}
}

// NewFromFile seeds the store from a CSV export. The file is read once.
func NewFromFile(ctx context.Context, path string, columns csvfile.Columns) (*Store, error) {
	items, err := csvfile.New(path, columns).ReadInvoices(ctx)
	if err != nil {
		return nil, err
	}
	return New(items...), nil
}

// Append stores invoices after validating them and returns the new count.
func (s *Store) Append(_ context.Context, invoices ...core.Invoice) (int, error) {
	for _, inv := range invoices {
		if err := inv.Validate(); err != nil {
			return 0, err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, invoices...)
	return len(s.items), nil
}

// ReadInvoices returns a copy of the stored invoices in insertion order.
func (s *Store) ReadInvoices(_ context.Context) ([]core.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Invoice{}, s.items...), nil
}
