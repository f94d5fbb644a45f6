package api

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/nerrad567/schoolhub-core/internal/audit"
	"github.com/nerrad567/schoolhub-core/internal/auth"
	"github.com/nerrad567/schoolhub-core/internal/infrastructure/cache"
	"github.com/nerrad567/schoolhub-core/internal/infrastructure/config"
	"github.com/nerrad567/schoolhub-core/internal/infrastructure/logging"
	"github.com/nerrad567/schoolhub-core/internal/metrics"
	"github.com/nerrad567/schoolhub-core/internal/ratelimit"
	"github.com/nerrad567/schoolhub-core/internal/school"
)

// gracefulShutdownTimeout bounds how long Close waits for in-flight requests.
const gracefulShutdownTimeout = 10 * time.Second

// defaultCacheTTL applies when Deps.CacheTTL is zero.
const defaultCacheTTL = 60 * time.Second

// HealthChecker is implemented by every backing service reported on /health.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps holds the dependencies of the API server.
type Deps struct {
	Config config.APIConfig
	WS     config.WebSocketConfig
	Logger *logging.Logger

	// Accounts holds one auth service per role.
	Accounts map[auth.Role]*auth.Service
	Guard    *auth.Guard
	School   *school.Service

	Audit        audit.Repository  // optional: disables /admin/audit
	Cache        cache.Cache       // optional: no caching
	CacheTTL     time.Duration     // default 60s
	LoginLimiter ratelimit.Limiter // optional: no login rate limit
	Metrics      *metrics.Metrics  // optional: no /metrics
	Hub          *Hub              // optional: no /admin/events
	DB           *sql.DB           // optional: pool stats on /admin/system

	// Health lists named backends checked by /health.
	Health  map[string]HealthChecker
	Version string
}

// Server is the HTTP API server.
type Server struct {
	cfg      config.APIConfig
	wsCfg    config.WebSocketConfig
	logger   *logging.Logger
	accounts map[auth.Role]*auth.Service
	guard    *auth.Guard
	school   *school.Service
	audit    audit.Repository
	cache    cache.Cache
	cacheTTL time.Duration
	limiter  ratelimit.Limiter
	metrics  *metrics.Metrics
	hub      *Hub
	db       *sql.DB
	health   map[string]HealthChecker
	version  string

	started time.Time
	router  http.Handler
	server  *http.Server
}

// New validates deps and builds the router. The server does not listen
// until Start is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if deps.Guard == nil || deps.School == nil {
		return nil, errors.New("guard and school service are required")
	}
	for _, role := range auth.Roles {
		if deps.Accounts[role] == nil {
			return nil, fmt.Errorf("auth service for %s is required", role)
		}
	}

	s := &Server{
		cfg:      deps.Config,
		wsCfg:    deps.WS,
		logger:   deps.Logger,
		accounts: deps.Accounts,
		guard:    deps.Guard,
		school:   deps.School,
		audit:    deps.Audit,
		cache:    deps.Cache,
		cacheTTL: deps.CacheTTL,
		limiter:  deps.LoginLimiter,
		metrics:  deps.Metrics,
		hub:      deps.Hub,
		db:       deps.DB,
		health:   deps.Health,
		version:  deps.Version,
		started:  time.Now(),
	}
	if s.cache == nil {
		s.cache = cache.Noop{}
	}
	if s.cacheTTL <= 0 {
		s.cacheTTL = defaultCacheTTL
	}

	s.router = s.buildRouter()
	return s, nil
}

// Handler returns the fully wired router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start binds the listen address and serves in a background goroutine.
// Binding errors (port in use) are returned directly.
func (s *Server) Start(_ context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}

	s.server = &http.Server{
		Handler:           s.router,
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	s.logger.Info("API server starting", "address", ln.Addr().String())
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()
	return nil
}

// Close waits up to 10 seconds for in-flight requests, then closes
// remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck reports whether the server has been started.
func (s *Server) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("api health check: %w", err)
	}
	if s.server == nil {
		return errors.New("api server not started")
	}
	return nil
}
