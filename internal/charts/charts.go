// Package charts builds the Chart.js configuration for the two dashboard
// charts from a report. It owns colours, titles and axis labels; the browser
// side only hands the config to Chart.js.
package charts

import (
	"invoicedash/internal/core"
	"invoicedash/internal/report"
)

const (
	dateLayout = "2006-01-02"

	cumulativeColor = "#9adc9f"
	cumulativeFill  = "rgba(154, 220, 159, 0.6)"
)

// StatusColors maps known statuses to their bar colour.
var StatusColors = map[core.Status]string{
	core.StatusProposed:  "#69bbdc",
	core.StatusConfirmed: "#de945f",
	core.StatusComplete:  "#d969bc",
	core.StatusPaid:      "#9adc9f",
}

// fallbackPalette colours statuses outside StatusColors, in display order.
var fallbackPalette = []string{"#b0b7c3", "#f2c14e", "#7f8cff", "#f78154", "#4d9078", "#c3a995"}

type (
	Chart struct {
		Type    string  `json:"type"`
		Data    Data    `json:"data"`
		Options Options `json:"options"`
		// Height is the rendered canvas height in pixels; zero means auto.
		Height int `json:"height,omitempty"`
	}

	Data struct {
		Labels   []string  `json:"labels"`
		Datasets []Dataset `json:"datasets"`
	}

	Dataset struct {
		Label           string    `json:"label"`
		Data            []float64 `json:"data"`
		BackgroundColor string    `json:"backgroundColor"`
		BorderColor     string    `json:"borderColor,omitempty"`
		BorderWidth     int       `json:"borderWidth,omitempty"`
		Fill            string    `json:"fill,omitempty"`
		Tension         float64   `json:"tension,omitempty"`
		PointRadius     *int      `json:"pointRadius,omitempty"`
	}

	Options struct {
		Responsive          bool    `json:"responsive"`
		MaintainAspectRatio bool    `json:"maintainAspectRatio"`
		Plugins             Plugins `json:"plugins"`
		Scales              Scales  `json:"scales"`
	}

	Plugins struct {
		Title Title `json:"title"`
		Zoom  Zoom  `json:"zoom"`
	}

	Title struct {
		Display bool   `json:"display"`
		Text    string `json:"text"`
	}

	// Zoom configures chartjs-plugin-zoom; only panning is enabled.
	Zoom struct {
		Pan Pan `json:"pan"`
	}

	Pan struct {
		Enabled bool   `json:"enabled"`
		Mode    string `json:"mode"`
	}

	Scales struct {
		X Axis `json:"x"`
		Y Axis `json:"y"`
	}

	Axis struct {
		Stacked bool  `json:"stacked"`
		Title   Title `json:"title"`
	}
)

// ColorFor returns the colour for a status. Unknown statuses take palette
// entries by their index among the unknown statuses of the chart.
func ColorFor(status core.Status, unknownIndex int) string {
	if c, ok := StatusColors[status]; ok {
		return c
	}
	return fallbackPalette[unknownIndex%len(fallbackPalette)]
}

// WeeklyRevenue builds the stacked bar chart of revenue per week and status.
// Weeks without invoices for a status are plotted as zero.
func WeeklyRevenue(rep report.Report) Chart {
	weeks := rep.Weeks()
	labels := make([]string, len(weeks))
	index := make(map[int64]int, len(weeks))
	for i, w := range weeks {
		labels[i] = w.Format(dateLayout)
		index[w.Unix()] = i
	}

	statuses := rep.Statuses()
	datasets := make([]Dataset, 0, len(statuses))
	byStatus := make(map[core.Status]int, len(statuses))
	unknown := 0
	for _, s := range statuses {
		color := ColorFor(s, unknown)
		if !s.IsKnown() {
			unknown++
		}
		byStatus[s] = len(datasets)
		datasets = append(datasets, Dataset{
			Label:           s.String(),
			Data:            make([]float64, len(weeks)),
			BackgroundColor: color,
		})
	}

	for _, w := range rep.Weekly {
		ds := &datasets[byStatus[w.Status]]
		ds.Data[index[w.WeekStart.Unix()]] = w.Total.InexactFloat64()
	}

	return Chart{
		Type: "bar",
		Data: Data{Labels: labels, Datasets: datasets},
		Options: Options{
			Responsive: true,
			Plugins: Plugins{
				Title: Title{Display: true, Text: "Weekly Revenue"},
				Zoom:  Zoom{Pan: Pan{Enabled: true, Mode: "x"}},
			},
			Scales: Scales{
				X: Axis{Stacked: true, Title: Title{Display: true, Text: "Invoice Date Week"}},
				Y: Axis{Stacked: true, Title: Title{Display: true, Text: "Invoice Amount ($)"}},
			},
		},
		Height: 450,
	}
}

// CumulativeRevenue builds the filled, smoothed running-total chart.
func CumulativeRevenue(rep report.Report) Chart {
	labels := make([]string, len(rep.Cumulative))
	values := make([]float64, len(rep.Cumulative))
	for i, p := range rep.Cumulative {
		labels[i] = p.Date.Format(dateLayout)
		values[i] = p.RunningTotal.InexactFloat64()
	}
	noPoints := 0

	return Chart{
		Type: "line",
		Data: Data{
			Labels: labels,
			Datasets: []Dataset{{
				Label:           "Cumulative Invoice Amount",
				Data:            values,
				BackgroundColor: cumulativeFill,
				BorderColor:     cumulativeColor,
				BorderWidth:     4,
				Fill:            "origin",
				Tension:         0.4,
				PointRadius:     &noPoints,
			}},
		},
		Options: Options{
			Responsive: true,
			Plugins: Plugins{
				Title: Title{Display: true, Text: "Cumulative Revenue"},
				Zoom:  Zoom{Pan: Pan{Enabled: true, Mode: "x"}},
			},
			Scales: Scales{
				X: Axis{Title: Title{Display: true, Text: "Invoice Date"}},
				Y: Axis{Title: Title{Display: true, Text: "Cumulative Invoice Amount ($)"}},
			},
		},
		Height: 900,
	}
}
