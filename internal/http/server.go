package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"carteira/internal/backend"
	"carteira/internal/ledger"
	"carteira/internal/log"
	"carteira/internal/middleware/ratelimit"
	"carteira/internal/middleware/security"
	"carteira/internal/middleware/trace"
	"carteira/internal/period"
	"carteira/internal/services"
)

// Deps are the collaborators the handlers run against.
type Deps struct {
	Ledger  *ledger.Ledger
	Catalog backend.Catalog
	// Prefs persists the period window between requests; may be nil.
	Prefs   period.KeyValuePort
	Reports *services.ReportService
}

// Options tunes the transport.
type Options struct {
	RateLimitRPS   float64
	RateLimitBurst int
	// MaxUploadBytes bounds attachment uploads, default 10 MiB.
	MaxUploadBytes int64
	// Now is the clock used for period defaults, default time.Now.
	Now func() time.Time
}

// Server is the HTTP API. It embeds http.Server so callers use
// ListenAndServe directly.
type Server struct {
	http.Server

	deps      Deps
	opts      Options
	logger    *log.Logger
	limiter   *ratelimit.Limiter
	tracer    *trace.Middleware
	clientIPs *security.ClientIPResolver
	started   time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, deps Deps, opts Options, logger *log.Logger) *Server {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 10 << 20
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger = log.OrDiscard(logger).WithComponent(log.ComponentHTTP)

	s := &Server{
		deps:      deps,
		opts:      opts,
		logger:    logger,
		clientIPs: security.NewClientIPResolver(),
		limiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerSecond: opts.RateLimitRPS,
			Burst:             opts.RateLimitBurst,
		}),
		started: time.Now(),
	}
	s.tracer = trace.NewMiddleware(s.clientIPs.ExtractClientIP, logger)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.tracer.Middleware)
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		NotFoundError("route not found").Write(w)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(http.StatusMethodNotAllowed, "method not allowed").Write(w)
	})

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)

	r.Route("/api", func(r chi.Router) {
		r.Use(s.limiter.Middleware(s.clientIPs.ExtractClientIP, s.onRateLimited))

		r.Route("/transactions", func(r chi.Router) {
			r.Post("/", s.handleCreateTransactions)
			r.Get("/", s.handleListTransactions)
			r.Get("/{id}", s.handleGetTransaction)
			r.Patch("/{id}", s.handleUpdateTransaction)
			r.Delete("/{id}", s.handleDeleteTransaction)
			r.Post("/{id}/attachment", s.handleUploadAttachment)
		})

		r.Get("/cards/{id}/cycle", s.handleCardCycle)

		r.Get("/period", s.handleGetPeriod)
		r.Put("/period", s.handleSetPeriod)
		r.Get("/report", s.handleReport)
		r.Get("/forecast", s.handleForecast)
		r.Get("/insights", s.handleInsights)

		s.catalogRoutes(r)
	})
	return r
}

func (s *Server) onRateLimited(w http.ResponseWriter, r *http.Request) {
	s.logger.WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.clientIPs.ExtractClientIP(r), log.FieldMethod, r.Method, log.FieldPath, r.URL.Path)
	ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded, try again later").Write(w)
}

// Shutdown stops the rate limiter cleanup and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}
