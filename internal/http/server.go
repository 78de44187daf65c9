// Package http serves the statement, posting and cron endpoints as JSON.
package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fintrack/internal/cache"
	"fintrack/internal/core"
	flog "fintrack/internal/log"
	"fintrack/internal/middleware/ratelimit"
	"fintrack/internal/middleware/security"
	"fintrack/internal/middleware/trace"
)

const (
	requestTimeout    = 15 * time.Second
	statementCacheTTL = 5 * time.Minute
)

type StatementService interface {
	GenerateStatement(ctx context.Context, owner string, cardID int64, asOf core.Date) (core.Statement, error)
	PayStatement(ctx context.Context, owner string, statementID, payFromAccountID int64) (core.Payment, error)
	ListStatements(ctx context.Context, owner string, cardID int64) ([]core.Statement, error)
}

type PostingService interface {
	DeletePosting(ctx context.Context, owner string, id int64) error
}

type RecurringRunner interface {
	Run(ctx context.Context, today core.Date) (core.RunSummary, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// Options wires the server. Every service field is required.
type Options struct {
	Addr       string
	Statements StatementService
	Postings   PostingService
	Poster     RecurringRunner
	Store      Pinger
	Auth       *Authenticator
	CronSecret string
	// RateLimitPerMinute bounds API requests per owner; zero disables it.
	RateLimitPerMinute int
	Logger             *flog.Logger
	Now                func() time.Time
}

type Server struct {
	http.Server

	statements StatementService
	postings   PostingService
	poster     RecurringRunner
	store      Pinger
	now        func() time.Time
	logger     *flog.Logger

	statementCache *cache.LRUCache[[]core.Statement]
	cacheManager   *cache.Manager
	limiter        *ratelimit.Limiter
	tracer         *trace.Middleware
}

func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = flog.New(flog.DefaultConfig()).WithComponent(flog.ComponentHTTP)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	s := &Server{
		statements:     opts.Statements,
		postings:       opts.Postings,
		poster:         opts.Poster,
		store:          opts.Store,
		now:            now,
		logger:         logger,
		statementCache: cache.NewLRUCache[[]core.Statement](500, statementCacheTTL),
		cacheManager:   cache.NewManager(),
	}
	s.cacheManager.Register(s.statementCache)

	clientIP := security.NewClientIP()
	s.tracer = trace.NewMiddleware(logger, clientIP.Extract)

	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not found"})
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: "method not allowed"})
	})

	r.HandleFunc("/healthz", handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/readyz", s.handleReady).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	cron := r.PathPrefix("/cron").Subrouter()
	cron.Use(cronGuard(opts.CronSecret))
	cron.HandleFunc("/recurring", s.handleRecurring).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(opts.Auth.Middleware)
	if opts.RateLimitPerMinute > 0 {
		s.limiter = ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute})
		api.Use(s.limiter.Middleware(func(r *http.Request) string {
			owner, _ := OwnerFromContext(r.Context())
			return owner
		}, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "rate limit exceeded"})
		}))
	}
	api.Use(withTimeout(requestTimeout))
	api.HandleFunc("/cards/{cardID:[0-9]+}/statements/generate", s.handleGenerate).Methods(http.MethodPost)
	api.HandleFunc("/cards/{cardID:[0-9]+}/statements", s.handleListStatements).Methods(http.MethodGet)
	api.HandleFunc("/statements/{statementID:[0-9]+}/pay", s.handlePay).Methods(http.MethodPost)
	api.HandleFunc("/postings/{postingID:[0-9]+}", s.handleDeletePosting).Methods(http.MethodDelete)

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           s.tracer.Middleware(headers.Middleware(r)),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Start begins background cache cleanup; ListenAndServe is still up to the
// caller.
func (s *Server) Start(ctx context.Context) {
	s.cacheManager.StartCleanup(ctx, time.Minute)
}

// Shutdown drains connections and stops background work.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.Server.Shutdown(ctx)
	if s.limiter != nil {
		s.limiter.Stop()
	}
	s.cacheManager.Stop()

	st := s.statementCache.Stats()
	s.logger.InfoContext(ctx, "Statement cache closed",
		"hits", st.Hits,
		"misses", st.Misses,
		"evictions", st.Evictions,
		"expired", st.Expired)
	return err
}

func withTimeout(d time.Duration) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.store.Ping(ctx); err != nil {
		flog.FromContext(ctx).WarnContext(ctx, "Readiness check failed", flog.FieldError, err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
