package http

import (
	"context"
	"encoding/json"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"invoicedash/internal/core"
	applog "invoicedash/internal/log"
	"invoicedash/internal/services"
	"invoicedash/internal/sources"
	"invoicedash/internal/storage"
)

const requestTimeout = 7 * time.Second

var templateFuncs = template.FuncMap{
	"dollars": func(d decimal.Decimal) string { return core.FormatDollars(d) },
	"stamp": func(t *time.Time) string {
		if t == nil {
			return ""
		}
		return t.Format("2006-01-02 15:04:05")
	},
}

// statusFor maps application errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrMalformedInput):
		return http.StatusUnprocessableEntity
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrExportsDisabled), errors.Is(err, sources.ErrNoReader):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// publicMessage is what a client sees for err. Malformed input is reported
// verbatim so the offending row can be fixed; anything else stays generic.
func publicMessage(err error, status int) string {
	switch status {
	case http.StatusUnprocessableEntity, http.StatusNotFound, http.StatusServiceUnavailable:
		return err.Error()
	case http.StatusGatewayTimeout:
		return "request timed out"
	default:
		return "internal server error"
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode JSON response", "error", err)
	}
}

type errorBody struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "Request failed", "path", r.URL.Path, "status", status, "error", err)
	} else {
		slog.WarnContext(r.Context(), "Request rejected", "path", r.URL.Path, "status", status, "error", err)
	}
	writeJSON(w, status, errorBody{
		Error:     publicMessage(err, status),
		RequestID: applog.RequestID(r.Context()),
	})
}

type errorPageData struct {
	Title     string
	HasLogo   bool
	Status    int
	Message   string
	RequestID string
}

// renderErrorPage replaces the whole dashboard with the failure.
func (s *Server) renderErrorPage(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	slog.ErrorContext(r.Context(), "Dashboard render failed", "status", status, "error", err)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	data := errorPageData{
		Title:     s.title,
		HasLogo:   s.logoPath != "",
		Status:    status,
		Message:   publicMessage(err, status),
		RequestID: applog.RequestID(r.Context()),
	}
	if err := s.templates.ExecuteTemplate(w, "error.html", data); err != nil {
		slog.ErrorContext(r.Context(), "Error template execution failed", "error", err)
	}
}

// weekStartParam reads ?week_start=, falling back to the configured day.
func (s *Server) weekStartParam(r *http.Request) (time.Weekday, error) {
	v := strings.TrimSpace(r.URL.Query().Get("week_start"))
	if v == "" {
		return s.reports.WeekStart(), nil
	}
	return core.ParseWeekday(v)
}

func badRequest(w http.ResponseWriter, r *http.Request, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: msg, RequestID: applog.RequestID(r.Context())})
}
