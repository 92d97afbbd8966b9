package sources

import (
	"context"
	"errors"

	"invoicedash/internal/core"
	"invoicedash/internal/report"
)

var ErrNoReader = errors.New("no invoice reader configured")

// Ports for inbound and outbound adapters.
type (
	// InvoiceReader loads the full invoice set. Each call reads the source
	// again; implementations do not cache.
	InvoiceReader interface {
		ReadInvoices(ctx context.Context) ([]core.Invoice, error)
	}

	// ReportWriter publishes a derived report somewhere outside the process.
	ReportWriter interface {
		// WriteReport replaces any previously written report and returns a
		// reference to where it was written.
		WriteReport(ctx context.Context, rep report.Report) (ref string, err error)
	}
)
