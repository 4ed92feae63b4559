package http

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"churchbook/internal/core"
	"churchbook/internal/ledger"
	"churchbook/internal/log"
	"churchbook/internal/middleware/ratelimit"
	"churchbook/internal/middleware/security"
	"churchbook/internal/middleware/trace"
	"churchbook/internal/services"
)

// Ledger is the service the handlers drive. services.LedgerService
// implements it.
type Ledger interface {
	Ping(ctx context.Context) error
	State(ctx context.Context) services.StateView
	Summary(ctx context.Context, year int) ledger.Summary

	SetChurchName(ctx context.Context, name string) error

	AddMember(ctx context.Context, name string, position core.Position) (core.Member, error)
	UpdateMember(ctx context.Context, m core.Member) (core.Member, error)
	DeleteMember(ctx context.Context, id int64, pin string) error

	AddTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error)
	UpdateTransaction(ctx context.Context, tx core.Transaction, pin string) (core.Transaction, error)
	DeleteTransaction(ctx context.Context, id int64, pin string) error

	AddExpenseCategory(ctx context.Context, name string) error
	DeleteExpenseCategory(ctx context.Context, name, pin string) error

	SetPIN(ctx context.Context, current, next string) error
	VerifyPIN(ctx context.Context, pin string) error

	TakeSnapshot(ctx context.Context) (core.Snapshot, error)
	ListSnapshots(ctx context.Context) ([]core.Snapshot, error)
	RestoreSnapshot(ctx context.Context, id, pin string) error

	Export(ctx context.Context, w io.Writer) error
	Import(ctx context.Context, r io.Reader, pin string) error
}

var _ Ledger = (*services.LedgerService)(nil)

type Options struct {
	AllowedOrigins     []string
	RateLimitPerMinute int
	// Currency is the ISO code amounts are displayed in.
	Currency string
	Logger   *log.Logger
}

type Server struct {
	http.Server
	ledger   Ledger
	currency string
	logger   *log.Logger

	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, l Ledger, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = log.New(log.DefaultConfig())
	}
	if opts.Currency == "" {
		opts.Currency = core.DefaultCurrency
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}

	limiterConfig := ratelimit.DefaultConfig()
	if opts.RateLimitPerMinute > 0 {
		limiterConfig.RequestsPerMinute = opts.RateLimitPerMinute
	}

	s := &Server{
		ledger:   l,
		currency: opts.Currency,
		logger:   opts.Logger.WithComponent(log.ComponentHTTP),
		limiter:  ratelimit.NewLimiter(limiterConfig),
		detector: security.NewDetector(),
		tracer:   trace.NewMiddleware(),
	}

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.routes(opts.AllowedOrigins),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) routes(origins []string) http.Handler {
	r := chi.NewRouter()

	r.Use(s.tracer.Middleware)
	r.Use(log.Middleware(s.logger))
	r.Use(log.RequestIDMiddleware(trace.FromRequest))
	r.Use(log.AccessLog(s.detector.ExtractClientIP))
	r.Use(chimw.Recoverer)
	r.Use(s.detector.Middleware)
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", PINHeader, trace.HeaderRequestID},
		ExposedHeaders:   []string{trace.HeaderRequestID, "Content-Disposition", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(s.limiter.Middleware(s.detector.ExtractClientIP, rateLimited))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(http.StatusNotFound, "Not found").Write(w)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(http.StatusMethodNotAllowed, "Method not allowed").Write(w)
	})

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)

	r.Route("/api", func(api chi.Router) {
		api.Get("/summary", s.handleSummary)
		api.Get("/ledger", s.handleLedgerPage)
		api.Get("/state", s.handleState)
		api.Put("/church-name", s.handleSetChurchName)

		api.Route("/members", func(m chi.Router) {
			m.Get("/", s.handleListMembers)
			m.Post("/", s.handleAddMember)
			m.Put("/{id}", s.handleUpdateMember)
			m.Delete("/{id}", s.handleDeleteMember)
		})

		api.Route("/transactions", func(tx chi.Router) {
			tx.Get("/", s.handleListTransactions)
			tx.Post("/", s.handleAddTransaction)
			tx.Put("/{id}", s.handleUpdateTransaction)
			tx.Delete("/{id}", s.handleDeleteTransaction)
		})

		api.Route("/expense-categories", func(c chi.Router) {
			c.Get("/", s.handleListExpenseCategories)
			c.Post("/", s.handleAddExpenseCategory)
			c.Delete("/{name}", s.handleDeleteExpenseCategory)
		})

		api.Put("/pin", s.handleSetPIN)
		api.Post("/pin/verify", s.handleVerifyPIN)

		api.Get("/export", s.handleExport)
		api.Post("/import", s.handleImport)

		api.Route("/snapshots", func(sn chi.Router) {
			sn.Get("/", s.handleListSnapshots)
			sn.Post("/", s.handleTakeSnapshot)
			sn.Post("/{id}/restore", s.handleRestoreSnapshot)
		})
	})

	return r
}

// Shutdown stops background goroutines and then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// Metrics is a point-in-time view of the middleware counters.
type Metrics struct {
	Requests           int64 `json:"requests"`
	InFlight           int64 `json:"inFlight"`
	RateLimitHits      int64 `json:"rateLimitHits"`
	RateLimitClients   int64 `json:"rateLimitClients"`
	SuspiciousRequests int64 `json:"suspiciousRequests"`
	BlockedRequests    int64 `json:"blockedRequests"`
}

func (s *Server) Metrics() Metrics {
	tm := s.tracer.GetMetrics()
	rm := s.limiter.GetMetrics()
	dm := s.detector.GetMetrics()
	return Metrics{
		Requests:           tm.TotalRequests,
		InFlight:           tm.InFlight,
		RateLimitHits:      rm.TotalHits,
		RateLimitClients:   rm.ClientCount,
		SuspiciousRequests: dm.SuspiciousRequests,
		BlockedRequests:    dm.BlockedRequests,
	}
}
