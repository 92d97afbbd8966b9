package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/angelofallars/htmx-go"
	"github.com/go-chi/chi/v5"

	"invoicedash/internal/services"
	"invoicedash/internal/storage"
)

const (
	eventExportQueued = "export:queued"
	eventExportError  = "export:error"
)

// exportView is the JSON shape of an export run.
type exportView struct {
	storage.ExportRun
	WeekStart weekdayName `json:"week_start"`
}

type weekdayName time.Weekday

func (d weekdayName) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Weekday(d).String())
}

func viewOf(run storage.ExportRun) exportView {
	return exportView{ExportRun: run, WeekStart: weekdayName(run.WeekStart)}
}

func (s *Server) exportsEnabled() bool {
	return s.exports != nil && s.exports.Enabled()
}

// handleCreateExport queues a sheet export. htmx callers get the status row
// and an export:queued trigger; everyone else gets the run as JSON.
func (s *Server) handleCreateExport(w http.ResponseWriter, r *http.Request) {
	if !s.exportsEnabled() {
		s.exportFailed(w, r, services.ErrExportsDisabled)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	run, err := s.exports.Enqueue(ctx)
	if err != nil {
		s.exportFailed(w, r, err)
		return
	}

	if !htmx.IsHTMX(r) {
		w.Header().Set("Location", "/exports/"+run.ID)
		writeJSON(w, http.StatusAccepted, viewOf(run))
		return
	}

	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, "export_row", run); err != nil {
		s.exportFailed(w, r, fmt.Errorf("execute export row template: %w", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := htmx.NewResponse().
		StatusCode(http.StatusAccepted).
		AddTrigger(htmx.TriggerDetail(eventExportQueued, run.ID)).
		Write(w); err != nil {
		slog.ErrorContext(ctx, "Failed to write htmx response", "error", err)
		return
	}
	if _, err := buf.WriteTo(w); err != nil {
		slog.WarnContext(ctx, "Failed to write export row", "error", err)
	}
}

func (s *Server) exportFailed(w http.ResponseWriter, r *http.Request, err error) {
	if !htmx.IsHTMX(r) {
		s.writeError(w, r, err)
		return
	}
	status := statusFor(err)
	slog.ErrorContext(r.Context(), "Export request failed", "status", status, "error", err)
	_ = htmx.NewResponse().
		StatusCode(status).
		Reswap(htmx.SwapNone).
		AddTrigger(htmx.TriggerDetail(eventExportError, publicMessage(err, status))).
		Write(w)
}

func (s *Server) handleExportRateLimited(w http.ResponseWriter, r *http.Request) {
	const msg = "too many export requests, try again later"
	if htmx.IsHTMX(r) {
		_ = htmx.NewResponse().
			StatusCode(http.StatusTooManyRequests).
			Reswap(htmx.SwapNone).
			AddTrigger(htmx.TriggerDetail(eventExportError, msg)).
			Write(w)
		return
	}
	writeJSON(w, http.StatusTooManyRequests, errorBody{Error: msg})
}

func (s *Server) handleGetExport(w http.ResponseWriter, r *http.Request) {
	if s.exports == nil {
		s.writeError(w, r, services.ErrExportsDisabled)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	run, err := s.exports.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(run))
}

// handleListExports returns the most recent runs, newest first. ?limit=
// defaults to 20.
func (s *Server) handleListExports(w http.ResponseWriter, r *http.Request) {
	if s.exports == nil {
		s.writeError(w, r, services.ErrExportsDisabled)
		return
	}

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 100 {
			badRequest(w, r, "limit must be between 1 and 100")
			return
		}
		limit = n
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	runs, err := s.exports.Recent(ctx, limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	views := make([]exportView, 0, len(runs))
	for _, run := range runs {
		views = append(views, viewOf(run))
	}
	writeJSON(w, http.StatusOK, views)
}
