package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/schollz/progressbar/v3"
	"github.com/shopspring/decimal"

	"invoicedash/internal/core"
	"invoicedash/internal/report"
	"invoicedash/internal/storage"
)

var (
	PrimaryColor = lipgloss.Color("#9ADC9F")
	ErrorColor   = lipgloss.Color("#FF6B6B")
	SubtleColor  = lipgloss.Color("#666666")

	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(PrimaryColor).
			MarginBottom(1)

	SuccessStyle = lipgloss.NewStyle().Foreground(PrimaryColor)
	ErrorStyle   = lipgloss.NewStyle().Foreground(ErrorColor)
	SubtleStyle  = lipgloss.NewStyle().Foreground(SubtleColor)

	TableHeaderStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	TableCellStyle   = lipgloss.NewStyle().Padding(0, 1)
)

const (
	SuccessIcon = "✓"
	ErrorIcon   = "✗"
)

func FormatTitle(title string) string {
	return TitleStyle.Render(title)
}

func FormatSuccess(message string) string {
	return SuccessStyle.Render(SuccessIcon + " " + message)
}

func FormatError(message string) string {
	return ErrorStyle.Render(ErrorIcon + " " + message)
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(SubtleStyle).
		Headers(headers...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return TableHeaderStyle
			}
			return TableCellStyle
		})
}

// RenderReport writes the weekly totals pivoted by status, then a summary
// of the running total.
func RenderReport(w io.Writer, title string, rep report.Report) error {
	weeks := rep.Weeks()
	statuses := rep.Statuses()

	headers := []string{"Week"}
	for _, s := range statuses {
		headers = append(headers, s.String())
	}
	headers = append(headers, "Total")

	index := make(map[int64]int, len(weeks))
	for i, wk := range weeks {
		index[wk.Unix()] = i
	}
	col := make(map[core.Status]int, len(statuses))
	for i, s := range statuses {
		col[s] = i
	}

	cells := make([][]string, len(weeks))
	for i, wk := range weeks {
		cells[i] = make([]string, len(headers))
		cells[i][0] = wk.Format("2006-01-02")
		for j := 1; j < len(headers); j++ {
			cells[i][j] = "-"
		}
	}
	sums := make([]decimal.Decimal, len(weeks))
	for _, agg := range rep.Weekly {
		row := index[agg.WeekStart.Unix()]
		cells[row][col[agg.Status]+1] = core.FormatDollars(agg.Total)
		sums[row] = sums[row].Add(agg.Total)
	}
	for i := range cells {
		cells[i][len(headers)-1] = core.FormatDollars(sums[i])
	}

	t := newTable(headers...).Rows(cells...)

	if _, err := fmt.Fprintln(w, FormatTitle(title)); err != nil {
		return err
	}
	if len(weeks) == 0 {
		_, err := fmt.Fprintln(w, SubtleStyle.Render("No invoices."))
		return err
	}
	if _, err := fmt.Fprintln(w, t.String()); err != nil {
		return err
	}

	first, last := rep.Cumulative[0], rep.Cumulative[len(rep.Cumulative)-1]
	_, err := fmt.Fprintf(w, "\n%d invoices from %s to %s, weeks start %s, total %s\n",
		rep.Count,
		first.Date.Format("2006-01-02"),
		last.Date.Format("2006-01-02"),
		rep.WeekStart,
		SuccessStyle.Render(core.FormatDollars(last.RunningTotal)),
	)
	return err
}

// RenderExportRuns writes one row per run, newest first as given.
func RenderExportRuns(w io.Writer, runs []storage.ExportRun) error {
	if len(runs) == 0 {
		_, err := fmt.Fprintln(w, SubtleStyle.Render("No export runs."))
		return err
	}
	t := newTable("ID", "Status", "Requested", "Finished", "Result")
	for _, run := range runs {
		finished := ""
		if run.FinishedAt != nil {
			finished = run.FinishedAt.Format("2006-01-02 15:04:05")
		}
		result := run.SheetRef
		if run.Error != "" {
			result = ErrorStyle.Render(run.Error)
		}
		t.Row(run.ID, string(run.Status), run.RequestedAt.Format("2006-01-02 15:04:05"), finished, result)
	}
	_, err := fmt.Fprintln(w, t.String())
	return err
}

// NewProgressBar returns a count-showing bar over total items written to w.
func NewProgressBar(w io.Writer, total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("[cyan][bold]"+description+"[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			if _, err := fmt.Fprintln(w); err != nil {
				slog.Warn("Failed to write newline after progress bar", "error", err)
			}
		}),
	)
}
