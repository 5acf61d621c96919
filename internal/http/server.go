// Package http exposes the expense operations as a JSON API.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"kharcha/internal/core"
	applog "kharcha/internal/log"
	"kharcha/internal/middleware/ratelimit"
	"kharcha/internal/middleware/security"
	"kharcha/internal/middleware/trace"
)

// ExpenseReader serves the aggregated views.
type ExpenseReader interface {
	Years(ctx context.Context) ([]core.YearTotal, error)
	Months(ctx context.Context, year string) ([]core.MonthTotal, error)
	Days(ctx context.Context, year, month string) ([]core.DayTotal, error)
	Expenses(ctx context.Context, year, month, day string) ([]core.DayExpense, error)
	Export(ctx context.Context) ([]core.DailyExpense, error)
	MonthReport(ctx context.Context, year, month string) ([]core.DayReport, error)
	YearReport(ctx context.Context, year string) ([]core.MonthReport, error)
	MonthCategories(ctx context.Context, year, month string) ([]core.CategoryTotal, error)
	YearCategories(ctx context.Context, year string) ([]core.CategoryTotal, error)
	Search(ctx context.Context, text string) ([]core.SearchedExpense, error)
}

// ExpenseWriter applies client-submitted lists.
type ExpenseWriter interface {
	SaveExpenses(ctx context.Context, records []core.Expense) (core.UpsertResult, error)
	ReconcileDay(ctx context.Context, year, month, day string, records []core.Expense) (core.ReconcileResult, error)
}

// Pinger reports whether the store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options tune the middleware chain.
type Options struct {
	Logger             *applog.Logger
	RateLimitPerMinute int
	CORSAllowedOrigins []string
}

type Server struct {
	http.Server
	reader  ExpenseReader
	writer  ExpenseWriter
	pinger  Pinger
	logger  *applog.Logger
	limiter *ratelimit.Limiter

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server.
func NewServer(addr string, reader ExpenseReader, writer ExpenseWriter, pinger Pinger, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	logger = logger.WithComponent(applog.ComponentHTTP)

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		reader:  reader,
		writer:  writer,
		pinger:  pinger,
		logger:  logger,
		limiter: ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
	}

	origins := opts.CORSAllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	detector := security.NewDetector()

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(trace.NewMiddleware(logger, detector.ExtractClientIP).Middleware)
	r.Use(applog.Middleware(logger))
	r.Use(applog.RequestIDMiddleware(trace.RequestIDFromRequest))
	r.Use(detector.Middleware(logger))
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware)
	r.Use(security.NewCORS(origins).Middleware)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "no such route")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Get("/healthz", handleHealth)
	r.Get("/readyz", s.handleReady)

	limited := r.With(s.limiter.Middleware(detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		logger.WarnContext(r.Context(), "Rate limit exceeded",
			applog.FieldClientIP, detector.ExtractClientIP(r),
			applog.FieldPath, r.URL.Path)
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded, try again later")
	}))

	r.Get("/expenses", s.handleRoot)
	r.Get("/expenses/{year}", s.handleYear)
	r.Get("/expenses/{year}/{month}", s.handleMonth)
	r.Get("/expenses/{year}/{month}/{day}", s.handleDay)
	limited.Post("/expenses", s.handleSaveExpenses)
	limited.Post("/expenses/{year}/{month}/{day}", s.handleReconcileDay)

	s.Handler = r
	return s
}

// Shutdown stops the rate limiter housekeeping and drains the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.pinger != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.pinger.Ping(ctx); err != nil {
			s.logger.WarnContext(r.Context(), "Readiness check failed", applog.FieldError, err.Error())
			http.Error(w, "store unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
