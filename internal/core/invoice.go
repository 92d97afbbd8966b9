package core

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	StatusProposed    Status = "Proposed"
	StatusConfirmed   Status = "Confirmed"
	StatusComplete    Status = "Complete"
	StatusPaid        Status = "Paid"
	StatusUnspecified Status = "Unspecified"
)

type (
	// Status is the categorical invoice state. Known statuses are normalised
	// to their canonical spelling; anything else is carried through as-is.
	Status string

	// Invoice is a single parsed invoice row.
	Invoice struct {
		Date   time.Time
		Status Status
		Amount decimal.Decimal
	}

	// RawInvoice is an untyped row as produced by a source, before parsing.
	RawInvoice struct {
		Row    int // 1-based data row, for error reporting
		Date   string
		Status string
		Amount string
	}
)

// KnownStatuses lists the recognised statuses in display order.
var KnownStatuses = []Status{StatusProposed, StatusConfirmed, StatusComplete, StatusPaid}

var (
	ErrMalformedInput = errors.New("malformed input")
	ErrInvalidDate    = errors.New("invalid date")
	ErrInvalidAmount  = errors.New("invalid amount")
)

// MalformedInputError describes the first field that could not be parsed.
type MalformedInputError struct {
	Row   int
	Field string
	Value string
	Err   error
}

func (e *MalformedInputError) Error() string {
	if e.Row > 0 {
		return fmt.Sprintf("malformed input: row %d: %s %q: %v", e.Row, e.Field, e.Value, e.Err)
	}
	return fmt.Sprintf("malformed input: %s %q: %v", e.Field, e.Value, e.Err)
}

func (e *MalformedInputError) Unwrap() error {
	return e.Err
}

// Is makes every MalformedInputError match ErrMalformedInput.
func (e *MalformedInputError) Is(target error) bool {
	return target == ErrMalformedInput
}

// ParseStatus normalises a raw status label.
func ParseStatus(s string) Status {
	s = strings.TrimSpace(s)
	if s == "" {
		return StatusUnspecified
	}
	for _, known := range KnownStatuses {
		if strings.EqualFold(s, string(known)) {
			return known
		}
	}
	return Status(s)
}

// IsKnown reports whether the status is one of KnownStatuses.
func (s Status) IsKnown() bool {
	for _, known := range KnownStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Rank orders known statuses first in display order; unknown statuses share
// the rank after them and are ordered by name by CompareStatus.
func (s Status) Rank() int {
	for i, known := range KnownStatuses {
		if s == known {
			return i
		}
	}
	return len(KnownStatuses)
}

// CompareStatus returns -1, 0 or 1 following display order.
func CompareStatus(a, b Status) int {
	ra, rb := a.Rank(), b.Rank()
	switch {
	case ra < rb:
		return -1
	case ra > rb:
		return 1
	}
	return strings.Compare(string(a), string(b))
}

// SortStatuses sorts in place following display order.
func SortStatuses(statuses []Status) {
	sort.Slice(statuses, func(i, j int) bool {
		return CompareStatus(statuses[i], statuses[j]) < 0
	})
}

func (s Status) String() string {
	return string(s)
}

// Validate checks the invariants the aggregator relies on.
func (inv Invoice) Validate() error {
	if inv.Date.IsZero() {
		return &MalformedInputError{Field: "date", Err: ErrInvalidDate}
	}
	return nil
}

// ParseInvoice converts a raw row into an Invoice.
func ParseInvoice(raw RawInvoice) (Invoice, error) {
	date, err := ParseDate(raw.Date)
	if err != nil {
		return Invoice{}, &MalformedInputError{Row: raw.Row, Field: "date", Value: raw.Date, Err: err}
	}
	amount, err := ParseAmount(raw.Amount)
	if err != nil {
		return Invoice{}, &MalformedInputError{Row: raw.Row, Field: "amount", Value: raw.Amount, Err: err}
	}
	return Invoice{
		Date:   date,
		Status: ParseStatus(raw.Status),
		Amount: amount,
	}, nil
}

// ParseInvoices parses every row or none: the first bad row aborts the batch.
func ParseInvoices(rows []RawInvoice) ([]Invoice, error) {
	out := make([]Invoice, 0, len(rows))
	for _, raw := range rows {
		inv, err := ParseInvoice(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, nil
}
