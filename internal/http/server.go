package http

import (
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"invoicedash/internal/middleware/ratelimit"
	"invoicedash/internal/middleware/security"
	"invoicedash/internal/middleware/trace"
	"invoicedash/internal/report"
	"invoicedash/internal/storage"
	appweb "invoicedash/web"
)

// ReportLoader produces the dashboard report.
type ReportLoader interface {
	Load(ctx context.Context) (report.Report, error)
	LoadWithWeekStart(ctx context.Context, weekStart time.Weekday) (report.Report, error)
	WeekStart() time.Weekday
}

// ExportQueue queues sheet exports and reports on their progress.
type ExportQueue interface {
	Enabled() bool
	Enqueue(ctx context.Context) (storage.ExportRun, error)
	Get(ctx context.Context, id string) (storage.ExportRun, error)
	Recent(ctx context.Context, limit int) ([]storage.ExportRun, error)
}

// Dependencies wires the server to the rest of the application.
type Dependencies struct {
	Reports ReportLoader
	Exports ExportQueue

	// Ready is checked by /readyz, e.g. a database ping. Optional.
	Ready func(ctx context.Context) error

	Title    string
	LogoPath string

	// ExportRateLimit caps POST /exports per client per minute.
	ExportRateLimit int
}

type Server struct {
	http.Server
	templates *template.Template
	reports   ReportLoader
	exports   ExportQueue
	ready     func(ctx context.Context) error
	limiter   *ratelimit.Limiter
	clientIP  *security.ClientIP

	title    string
	logoPath string
	started  time.Time

	shutdownOnce sync.Once
}

const defaultTitle = "Artisma Dash"

// NewServer builds the router and parses the embedded templates.
func NewServer(addr string, deps Dependencies) (*Server, error) {
	if deps.Reports == nil {
		return nil, fmt.Errorf("http server: report loader is required")
	}

	tmpl, err := template.New("").Funcs(templateFuncs).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	title := deps.Title
	if title == "" {
		title = defaultTitle
	}

	s := &Server{
		templates: tmpl,
		reports:   deps.Reports,
		exports:   deps.Exports,
		ready:     deps.Ready,
		clientIP:  security.NewClientIP(),
		limiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: deps.ExportRateLimit,
		}),
		title:    title,
		logoPath: deps.LogoPath,
		started:  time.Now(),
	}

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       time.Minute,
	}
	return s, nil
}

func (s *Server) routes() http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Use(trace.Middleware(s.clientIP.Extract))
	router.Use(security.Headers(security.DefaultHeadersConfig()))

	staticFS, err := fs.Sub(appweb.StaticFS, "static")
	if err != nil {
		slog.Error("Failed to open embedded static assets", "error", err)
	} else {
		router.With(security.StaticAssetMiddleware(3600)).
			Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(staticFS))))
	}

	router.Get("/", s.handleDashboard)
	router.Get("/logo", s.handleLogo)
	router.Get("/healthz", s.handleHealth)
	router.Get("/readyz", s.handleReady)

	router.Route("/api", func(r chi.Router) {
		r.Get("/report", s.handleReport)
		r.Get("/charts/weekly", s.handleWeeklyChart)
		r.Get("/charts/cumulative", s.handleCumulativeChart)
	})

	router.Route("/exports", func(r chi.Router) {
		r.Get("/", s.handleListExports)
		r.With(s.limiter.Middleware(s.clientIP.Extract, s.handleExportRateLimited)).
			Post("/", s.handleCreateExport)
		r.Get("/{id}", s.handleGetExport)
	})

	return router
}

// Shutdown stops the rate limiter and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}
