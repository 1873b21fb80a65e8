// Package server provides the nimbuscdn HTTP server.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	apperrors "github.com/3leaps/nimbuscdn/internal/errors"
	"github.com/3leaps/nimbuscdn/internal/observability"
	"github.com/3leaps/nimbuscdn/internal/server/handlers"
	"github.com/3leaps/nimbuscdn/internal/server/middleware"
	"github.com/3leaps/nimbuscdn/pkg/aliyuncdn"
	"github.com/3leaps/nimbuscdn/pkg/credentials"
	"github.com/3leaps/nimbuscdn/pkg/host"
)

// Server is the HTTP server.
type Server struct {
	host   string
	port   int
	router chi.Router
	srv    *http.Server

	metrics      bool
	health       bool
	nodes        []*handlers.NodeHandler
	readTimeout  time.Duration
	writeTimeout time.Duration
	idleTimeout  time.Duration
}

// Option configures a Server.
type Option func(*Server)

// WithNodeHandler serves h under /v1/nodes/{type}. It replaces the default
// aliyunCdn handler when given for the same type.
func WithNodeHandler(h *handlers.NodeHandler) Option {
	return func(s *Server) {
		for i, existing := range s.nodes {
			if existing.Type() == h.Type() {
				s.nodes[i] = h
				return
			}
		}
		s.nodes = append(s.nodes, h)
	}
}

// WithMetrics enables or disables GET /metrics. Enabled by default.
func WithMetrics(enabled bool) Option {
	return func(s *Server) { s.metrics = enabled }
}

// WithHealth enables or disables the /health routes. Enabled by default.
func WithHealth(enabled bool) Option {
	return func(s *Server) { s.health = enabled }
}

// WithTimeouts sets the http.Server timeouts. Zero values keep the defaults.
func WithTimeouts(read, write, idle time.Duration) Option {
	return func(s *Server) {
		if read > 0 {
			s.readTimeout = read
		}
		if write > 0 {
			s.writeTimeout = write
		}
		if idle > 0 {
			s.idleTimeout = idle
		}
	}
}

// New creates a server listening on host:port.
//
// Without WithNodeHandler the server executes aliyunCdn against the default
// endpoint with credentials from the environment.
func New(host string, port int, opts ...Option) *Server {
	s := &Server{
		host:         host,
		port:         port,
		metrics:      true,
		health:       true,
		readTimeout:  30 * time.Second,
		writeTimeout: 30 * time.Second,
		idleTimeout:  120 * time.Second,
	}
	s.nodes = []*handlers.NodeHandler{defaultNodeHandler()}
	for _, opt := range opts {
		opt(s)
	}

	s.router = chi.NewRouter()
	s.setupMiddleware()
	s.setupRoutes()

	s.srv = &http.Server{
		Addr:         net.JoinHostPort(host, strconv.Itoa(port)),
		Handler:      s.router,
		ReadTimeout:  s.readTimeout,
		WriteTimeout: s.writeTimeout,
		IdleTimeout:  s.idleTimeout,
	}
	return s
}

func defaultNodeHandler() *handlers.NodeHandler {
	return handlers.NewNodeHandler(
		aliyuncdn.New(),
		credentials.Chain{credentials.NewEnv(nil)},
		host.DefaultConfig(),
		observability.CLILogger.Named("aliyunCdn"),
	)
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(chimw.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Metrics)
	s.router.Use(middleware.Recovery)
}

func (s *Server) setupRoutes() {
	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		apperrors.RespondWithError(w, r, apperrors.NotFound("resource not found: "+r.URL.Path))
	})
	s.router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		apperrors.RespondWithError(w, r, apperrors.MethodNotAllowed(r.Method, r.URL.Path))
	})

	if s.health {
		s.router.Get("/health", handlers.HealthHandler)
		s.router.Get("/health/live", handlers.LivenessHandler)
		s.router.Get("/health/ready", handlers.ReadinessHandler)
		s.router.Get("/health/startup", handlers.StartupHandler)
	}
	s.router.Get("/version", handlers.VersionHandler)
	if s.metrics {
		s.router.Method(http.MethodGet, "/metrics", observability.MetricsHandler())
	}

	s.router.Route("/v1/nodes", func(r chi.Router) {
		for _, h := range s.nodes {
			r.Get("/"+h.Type(), h.Describe)
			r.Post("/"+h.Type()+"/execute", h.Execute)
		}
	})
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Port returns the configured port.
func (s *Server) Port() int {
	return s.port
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.srv.Addr
}

// Start serves until Shutdown is called. It returns nil after a clean
// shutdown.
func (s *Server) Start() error {
	observability.CLILogger.Info("Starting HTTP server", zap.String("addr", s.srv.Addr))
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests
// until ctx is done.
func (s *Server) Shutdown(ctx context.Context) error {
	observability.CLILogger.Info("Shutting down HTTP server")
	return s.srv.Shutdown(ctx)
}
