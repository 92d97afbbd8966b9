package google

import (
	"fmt"
	"strings"

	"invoicedash/internal/core"
	"invoicedash/internal/report"
)

const dateLayout = "2006-01-02"

type headerColumns struct {
	date, status, amount string
}

// parseInvoiceRows converts a values matrix (as returned by the Sheets API)
// into raw invoice rows. The first row is the header; rows are numbered from
// 1 after it. Fully blank rows are skipped.
func parseInvoiceRows(values [][]any, cols headerColumns) ([]core.RawInvoice, error) {
	if len(values) == 0 {
		return []core.RawInvoice{}, nil
	}
	headers := toStrings(values[0])
	colDate := indexOf(headers, cols.date)
	colStatus := indexOf(headers, cols.status)
	colAmount := indexOf(headers, cols.amount)
	if colDate == -1 || colStatus == -1 || colAmount == -1 {
		missing := make([]string, 0, 3)
		if colDate == -1 {
			missing = append(missing, cols.date)
		}
		if colStatus == -1 {
			missing = append(missing, cols.status)
		}
		if colAmount == -1 {
			missing = append(missing, cols.amount)
		}
		return nil, fmt.Errorf("unexpected invoices header: missing %s; got headers=%v", strings.Join(missing, ","), headers)
	}

	out := make([]core.RawInvoice, 0, len(values)-1)
	for i := 1; i < len(values); i++ {
		row := toStrings(values[i])
		if isBlank(row) {
			continue
		}
		out = append(out, core.RawInvoice{
			Row:    i,
			Date:   safeGet(row, colDate),
			Status: safeGet(row, colStatus),
			Amount: safeGet(row, colAmount),
		})
	}
	return out, nil
}

func weeklyValues(rep report.Report) [][]any {
	values := make([][]any, 0, len(rep.Weekly)+1)
	values = append(values, []any{"Week Start", "Status", "Total"})
	for _, w := range rep.Weekly {
		values = append(values, []any{w.WeekStart.Format(dateLayout), w.Status.String(), w.Total.String()})
	}
	return values
}

func cumulativeValues(rep report.Report) [][]any {
	values := make([][]any, 0, len(rep.Cumulative)+1)
	values = append(values, []any{"Invoice Date", "Amount", "Cumulative"})
	for _, p := range rep.Cumulative {
		values = append(values, []any{p.Date.Format(dateLayout), p.Amount.String(), p.RunningTotal.String()})
	}
	return values
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func indexOf(arr []string, target string) int {
	for i, v := range arr {
		if strings.EqualFold(strings.TrimPrefix(v, "\ufeff"), strings.TrimSpace(target)) {
			return i
		}
	}
	return -1
}

func safeGet(arr []string, idx int) string {
	if idx >= 0 && idx < len(arr) {
		return arr[idx]
	}
	return ""
}

func isBlank(row []string) bool {
	for _, v := range row {
		if v != "" {
			return false
		}
	}
	return true
}
