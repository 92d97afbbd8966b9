package http

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"invoicedash/internal/charts"
	"invoicedash/internal/core"
	"invoicedash/internal/report"
	"invoicedash/internal/storage"
)

type dashboardData struct {
	Title      string
	HasLogo    bool
	WeekStart  string
	Count      int
	Total      string
	Weekly     charts.Chart
	Cumulative charts.Chart

	ExportsEnabled bool
	Exports        []storage.ExportRun
}

// handleDashboard renders both charts server side. Any load failure renders
// the error page and no chart at all.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	weekStart, err := s.weekStartParam(r)
	if err != nil {
		s.renderErrorPage(w, r, &core.MalformedInputError{Field: "week_start", Value: r.URL.Query().Get("week_start"), Err: err})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	rep, err := s.reports.LoadWithWeekStart(ctx, weekStart)
	if err != nil {
		s.renderErrorPage(w, r, err)
		return
	}

	data := dashboardData{
		Title:          s.title,
		HasLogo:        s.logoPath != "",
		WeekStart:      weekStart.String(),
		Count:          rep.Count,
		Total:          core.FormatDollars(rep.Total),
		Weekly:         charts.WeeklyRevenue(rep),
		Cumulative:     charts.CumulativeRevenue(rep),
		ExportsEnabled: s.exportsEnabled(),
	}
	if data.ExportsEnabled {
		runs, err := s.exports.Recent(ctx, 5)
		if err != nil {
			slog.WarnContext(ctx, "Failed to list recent exports", "error", err)
		}
		data.Exports = runs
	}

	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, "dashboard.html", data); err != nil {
		s.renderErrorPage(w, r, fmt.Errorf("execute dashboard template: %w", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := buf.WriteTo(w); err != nil {
		slog.WarnContext(ctx, "Failed to write dashboard", "error", err)
	}
}

func (s *Server) loadReport(w http.ResponseWriter, r *http.Request) (report.Report, bool) {
	weekStart, err := s.weekStartParam(r)
	if err != nil {
		badRequest(w, r, err.Error())
		return report.Report{}, false
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	rep, err := s.reports.LoadWithWeekStart(ctx, weekStart)
	if err != nil {
		s.writeError(w, r, err)
		return report.Report{}, false
	}
	return rep, true
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	rep, ok := s.loadReport(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handleWeeklyChart(w http.ResponseWriter, r *http.Request) {
	rep, ok := s.loadReport(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, charts.WeeklyRevenue(rep))
}

func (s *Server) handleCumulativeChart(w http.ResponseWriter, r *http.Request) {
	rep, ok := s.loadReport(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, charts.CumulativeRevenue(rep))
}

// handleLogo serves the configured logo file from disk.
func (s *Server) handleLogo(w http.ResponseWriter, r *http.Request) {
	if s.logoPath == "" {
		http.NotFound(w, r)
		return
	}
	f, err := os.Open(s.logoPath)
	if err != nil {
		slog.WarnContext(r.Context(), "Logo not readable", "path", s.logoPath, "error", err)
		http.NotFound(w, r)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Cache-Control", "public, max-age=3600")
	http.ServeContent(w, r, filepath.Base(s.logoPath), info.ModTime(), f)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	})
}

// handleReady reports not_ready when templates are missing or the
// readiness probe fails.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]string)

	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status, httpStatus = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	if s.ready != nil {
		if err := s.ready(ctx); err != nil {
			checks["storage"] = "failed: " + err.Error()
			status, httpStatus = "not_ready", http.StatusServiceUnavailable
		} else {
			checks["storage"] = "ok"
		}
	}

	checks["exports"] = "disabled"
	if s.exportsEnabled() {
		checks["exports"] = "enabled"
	}

	writeJSON(w, httpStatus, map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}
