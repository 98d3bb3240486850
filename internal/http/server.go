package http

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"ivr/internal/cache"
	"ivr/internal/core"
	"ivr/internal/envconfig"
	"ivr/internal/log"
	"ivr/internal/middleware/ratelimit"
	"ivr/internal/middleware/trace"
	"ivr/internal/services"
)

// Deps are the collaborators of the server.
type Deps struct {
	Upstream  services.Poster
	Scripts   services.ScriptRunner
	EnvConfig *envconfig.Store
	Composer  *core.Composer
	// Auditor may be nil.
	Auditor *services.Auditor

	RateLimitPerMinute int
	// ScriptDir is checked by the readiness endpoint.
	ScriptDir string
}

// Server wraps http.Server with the IVR routes.
type Server struct {
	http.Server

	upstream  *countingPoster
	accounts  *services.AccountService
	movements *services.MovementService
	envConfig *envconfig.Store
	auditor   *services.Auditor
	scriptDir string

	rateLimiter     *ratelimit.Limiter
	traceMiddleware *trace.Middleware
	cacheManager    *cache.Manager
	calls           *log.StructuredLogger
	logger          *log.Logger
	appMetrics      *appMetrics

	shutdownOnce sync.Once
}

// NewServer configures the routes, returning a ready-to-run server.
func NewServer(addr string, deps Deps) *Server {
	logger := log.WithComponent(log.ComponentHTTP)
	counting := &countingPoster{next: deps.Upstream}

	composer := deps.Composer
	if composer == nil {
		composer = core.NewComposer(core.CardMovementTokens())
	}
	store := deps.EnvConfig
	if store == nil {
		store = envconfig.NewStore("", 0)
	}

	limiterCfg := ratelimit.DefaultConfig()
	if deps.RateLimitPerMinute > 0 {
		limiterCfg.RequestsPerMinute = deps.RateLimitPerMinute
	}

	s := &Server{
		upstream:        counting,
		accounts:        services.NewAccountService(counting, deps.Scripts),
		movements:       services.NewMovementService(composer),
		envConfig:       store,
		auditor:         deps.Auditor,
		scriptDir:       deps.ScriptDir,
		rateLimiter:     ratelimit.NewLimiter(limiterCfg),
		traceMiddleware: trace.NewMiddleware(clientIP, nil),
		cacheManager:    cache.NewManager(),
		calls:           log.NewStructuredLogger(logger),
		logger:          logger,
		appMetrics:      newAppMetrics(),
	}
	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.cacheManager.Register(store.Cleaner())
	s.cacheManager.StartCleanup(10 * time.Minute)

	return s
}

func (s *Server) routes() http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.RealIP)
	router.Use(s.traceMiddleware.Middleware)
	router.Use(log.Middleware(s.logger))
	router.Use(log.RequestIDMiddleware(trace.FromRequest))
	router.Use(middleware.Recoverer)

	router.Get("/healthz", s.handleHealth)
	router.Get("/readyz", s.handleReady)
	router.Get("/metrics", s.handleMetrics)

	router.Route("/ivr", func(r chi.Router) {
		r.Use(s.rateLimiter.Middleware(clientIP, s.handleRateLimited))

		r.Post("/consultamovtdc", s.handleConsultMovements)
		r.Post("/env", s.handleEnv)
		r.Post("/limpiarcuentasbs", s.handleCleanAccounts)
		r.Post("/recibir", s.handleReceive)

		r.Post("/recibir-cuentas", s.handleReadAccounts(services.FlowReadAccounts))
		r.Post("/recibir-cuentasv2", s.handleReadAccounts(services.FlowReadAccountsV2))
		r.Post("/recibir-cuentasmov", s.handleReadAccountMovements)
		r.Post("/recibir-tarjetas", s.handleCards(services.FlowCards))
		r.Post("/recibir-tarjetasmov", s.handleCards(services.FlowCardMovements))
		r.Post("/recibir-tarjetaspagotdc", s.handleCards(services.FlowCardPayments))
	})

	return router
}

// Shutdown stops the background routines and then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// clientIP returns the host of RemoteAddr, already rewritten by RealIP.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	writeReply(w, &services.Reply{
		Code:       services.StatusCode(http.StatusTooManyRequests),
		Message:    "Demasiadas solicitudes, intente más tarde",
		HTTPStatus: http.StatusTooManyRequests,
	})
}
