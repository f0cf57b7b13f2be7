package http

import (
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"lendbook/internal/amqp"
	"lendbook/internal/core"
	"lendbook/internal/debtors"
	"lendbook/internal/ledger"
	"lendbook/internal/log"
	"lendbook/internal/middleware/ratelimit"
	"lendbook/internal/middleware/security"
	"lendbook/internal/middleware/trace"
	"lendbook/internal/observability"
	"lendbook/internal/services"
	"lendbook/internal/storage"
	appweb "lendbook/web"
)

// Ports the server depends on.
type (
	DebtorDirectory interface {
		List(ctx context.Context) ([]core.Debtor, error)
		Get(ctx context.Context, key string) (core.Debtor, error)
		Search(ctx context.Context, query string) ([]core.Debtor, error)
		Refresh(ctx context.Context) ([]core.Debtor, error)
	}

	PaymentRecorder interface {
		PayInterest(ctx context.Context, req services.PayInterestRequest) (debtors.InterestPayment, error)
		PayPrincipal(ctx context.Context, req services.PayPrincipalRequest) (debtors.PrincipalPayment, error)
	}

	DebtorEditor interface {
		AddDebtor(ctx context.Context, req services.DebtorRequest) (core.Debtor, error)
		UpdateDebtor(ctx context.Context, key string, req services.DebtorRequest) (core.Debtor, error)
		DeleteDebtor(ctx context.Context, key string) error
	}

	// ReportQueue hands month reports to the worker.
	ReportQueue interface {
		ClosedMonth(now time.Time) core.MonthKey
		Request(ctx context.Context, month core.MonthKey, requestedBy string, force bool) (*amqp.ReportRequestMessage, error)
	}

	ExportHistory interface {
		ListExports(ctx context.Context, limit int) ([]storage.ExportRecord, error)
	}

	PDFRenderer interface {
		Enabled() bool
		RenderMonthReport(ctx context.Context, report ledger.MonthReport) ([]byte, error)
		RenderDebtorList(ctx context.Context, list ledger.DebtorList) ([]byte, error)
	}

	SessionLog interface {
		LastLogout(ctx context.Context, username string) (time.Time, error)
	}

	// Pinger is a dependency checked by /readyz.
	Pinger interface {
		Ping(ctx context.Context) error
	}
)

// Options configures the server.
type Options struct {
	Addr             string
	Business         string
	AdminUsername    string
	Production       bool
	RequestTimeout   time.Duration
	RateLimitPerMin  int
	ExportRatePerMin int
	Location         *time.Location
	Logger           *log.Logger
}

// Deps are the services behind the handlers. Reports, Exports, PDF and
// Sessions may be nil; the routes that need them then answer 503.
type Deps struct {
	Directory DebtorDirectory
	Payments  PaymentRecorder
	Debtors   DebtorEditor
	Reports   ReportQueue
	Exports   ExportHistory
	PDF       PDFRenderer
	Sessions  SessionLog
	Checks    map[string]Pinger
}

type Server struct {
	http.Server
	templates *template.Template
	deps      Deps
	opts      Options
	logger    *log.Logger

	trace         *trace.Middleware
	metrics       *observability.Metrics
	limiter       *ratelimit.Limiter
	exportLimiter *ratelimit.Limiter

	started      time.Time
	now          func() time.Time
	shutdownOnce sync.Once
}

// NewServer parses the embedded templates and mounts every route.
func NewServer(opts Options, deps Deps) (*Server, error) {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	if opts.Business == "" {
		opts.Business = "Lendbook"
	}

	t, err := template.ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	s := &Server{
		templates:     t,
		deps:          deps,
		opts:          opts,
		logger:        opts.Logger.WithComponent(log.ComponentHTTP),
		trace:         trace.NewMiddleware(),
		limiter:       ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMin}),
		exportLimiter: ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.ExportRatePerMin}),
		started:       time.Now(),
		now:           time.Now,
	}
	s.metrics = observability.NewMetrics(s.started)
	s.registerMetrics()
	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

func (s *Server) routes() http.Handler {
	headersCfg := security.DefaultHeadersConfig()
	headersCfg.Production = s.opts.Production

	r := chi.NewRouter()
	r.Use(
		middleware.RealIP,
		middleware.RequestID,
		log.Middleware(s.logger),
		log.RequestIDMiddleware(trace.RequestID),
		s.trace.Middleware,
		s.metrics.Middleware,
		middleware.Recoverer,
		middleware.Timeout(s.opts.RequestTimeout),
		security.NewHeadersMiddleware(headersCfg).Middleware,
	)

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		r.With(security.StaticAssetMiddleware(3600)).Handle("/static/*", static)
	} else {
		s.logger.Warn("Failed to mount embedded static FS", log.FieldError, err)
	}

	r.Group(func(r chi.Router) {
		r.Use(s.limiter.Middleware)

		r.Get("/", s.handleDebtorList)
		r.Get("/report", s.handleReport)
		r.Post("/report/publish", s.handlePublishReport)
		r.Get("/exports", s.handleExports)

		r.Route("/debtors/{id}", func(r chi.Router) {
			r.Get("/", s.handleDebtor)
			r.Get("/interest", s.handleInterestForm)
			r.Post("/interest", s.handlePayInterestForm)
			r.Get("/principal", s.handlePrincipalForm)
			r.Post("/principal", s.handlePayPrincipalForm)
		})

		r.Group(func(r chi.Router) {
			r.Use(s.exportLimiter.Middleware)
			r.Get("/debtors.csv", s.handleDebtorListCSV)
			r.Get("/debtors.pdf", s.handleDebtorListPDF)
			r.Get("/report.csv", s.handleReportCSV)
			r.Get("/report.pdf", s.handleReportPDF)
		})

		r.Route("/api", func(r chi.Router) {
			r.Get("/debtors", s.apiListDebtors)
			r.Post("/debtors", s.apiCreateDebtor)
			r.Get("/debtors/{id}", s.apiGetDebtor)
			r.Put("/debtors/{id}", s.apiUpdateDebtor)
			r.Delete("/debtors/{id}", s.apiDeleteDebtor)
			r.Post("/debtors/{id}/interest", s.apiPayInterest)
			r.Post("/debtors/{id}/principal", s.apiPayPrincipal)
			r.Get("/report", s.apiReport)
			r.Post("/reports", s.apiQueueReport)
			r.Post("/refresh", s.apiRefresh)
			r.Get("/users/{name}/last-logout", s.apiLastLogout)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.respondError(w, r, errNotFound)
	})
	return r
}

// registerMetrics exposes the limiter and trace counters kept outside the
// registry.
func (s *Server) registerMetrics() {
	s.metrics.CounterFunc("rate_limit_hits_total", "Requests rejected by a rate limiter.",
		prometheus.Labels{"limiter": "pages"}, func() float64 { return float64(s.limiter.Rejected()) })
	s.metrics.CounterFunc("rate_limit_hits_total", "Requests rejected by a rate limiter.",
		prometheus.Labels{"limiter": "exports"}, func() float64 { return float64(s.exportLimiter.Rejected()) })
	s.metrics.CounterFunc("http_server_errors_total", "Responses with a 5xx status.", nil,
		func() float64 { return float64(s.trace.GetMetrics().ServerErrors) })
	s.metrics.GaugeFunc("http_response_time_microseconds", "Average response time.",
		func() float64 { return float64(s.trace.GetMetrics().AverageResponseTime) })
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// today is the current calendar date in the business time zone.
func (s *Server) today() core.Date {
	return core.DateIn(s.now(), s.opts.Location)
}
