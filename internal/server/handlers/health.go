package handlers

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"sync"
	"time"

	apperrors "github.com/3leaps/nimbuscdn/internal/errors"
	"github.com/3leaps/nimbuscdn/pkg/workflow"
)

// Check results.
const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
	StatusDegraded  = "degraded"
	StatusTimeout   = "timeout"
)

// DefaultCheckTimeout bounds each health check.
const DefaultCheckTimeout = 2 * time.Second

// HealthChecker reports whether a dependency is usable.
type HealthChecker interface {
	CheckHealth(ctx context.Context) error
}

// HealthCheckerFunc adapts a function to HealthChecker.
type HealthCheckerFunc func(ctx context.Context) error

// CheckHealth calls f.
func (f HealthCheckerFunc) CheckHealth(ctx context.Context) error { return f(ctx) }

// HealthResponse is the body of a successful health check.
type HealthResponse struct {
	Status    string            `json:"status"`
	Version   string            `json:"version"`
	Timestamp time.Time         `json:"timestamp"`
	Uptime    string            `json:"uptime"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// HealthManager runs registered checks for the health endpoints.
type HealthManager struct {
	version   string
	startTime time.Time
	timeout   time.Duration

	mu       sync.RWMutex
	checkers map[string]HealthChecker
}

// NewHealthManager creates a manager reporting version.
func NewHealthManager(version string) *HealthManager {
	return &HealthManager{
		version:   version,
		startTime: time.Now(),
		timeout:   DefaultCheckTimeout,
		checkers:  make(map[string]HealthChecker),
	}
}

// RegisterChecker adds or replaces a named check.
func (m *HealthManager) RegisterChecker(name string, checker HealthChecker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkers[name] = checker
}

// HealthHandler runs every check. Unhealthy checks produce a 503 with the
// per-check results in the error details.
func (m *HealthManager) HealthHandler(w http.ResponseWriter, r *http.Request) {
	m.respond(w, r, m.runChecks(r.Context()))
}

// LivenessHandler reports that the process is serving requests. It runs no
// checks.
func (m *HealthManager) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	m.respond(w, r, nil)
}

// ReadinessHandler runs every check, like HealthHandler.
func (m *HealthManager) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	m.respond(w, r, m.runChecks(r.Context()))
}

// StartupHandler reports that initialization finished.
func (m *HealthManager) StartupHandler(w http.ResponseWriter, r *http.Request) {
	m.respond(w, r, nil)
}

func (m *HealthManager) respond(w http.ResponseWriter, r *http.Request, checks map[string]string) {
	status := m.determineOverallStatus(checks)
	if status == StatusUnhealthy {
		respondWithError(w, r, apperrors.ServiceUnavailable("service is unhealthy").
			WithDetails("checks", checks))
		return
	}

	apperrors.WriteJSON(w, http.StatusOK, HealthResponse{
		Status:    status,
		Version:   m.version,
		Timestamp: time.Now().UTC(),
		Uptime:    time.Since(m.startTime).Round(time.Second).String(),
		Checks:    checks,
	})
}

func (m *HealthManager) runChecks(ctx context.Context) map[string]string {
	m.mu.RLock()
	names := make([]string, 0, len(m.checkers))
	for name := range m.checkers {
		names = append(names, name)
	}
	checkers := make(map[string]HealthChecker, len(m.checkers))
	for k, v := range m.checkers {
		checkers[k] = v
	}
	m.mu.RUnlock()
	sort.Strings(names)

	results := make(map[string]string, len(names))
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, name := range names {
		wg.Add(1)
		go func(name string, checker HealthChecker) {
			defer wg.Done()
			cctx, cancel := context.WithTimeout(ctx, m.timeout)
			defer cancel()

			status := StatusHealthy
			if err := checker.CheckHealth(cctx); err != nil {
				status = StatusUnhealthy
				if errors.Is(err, context.DeadlineExceeded) {
					status = StatusTimeout
				}
			}
			mu.Lock()
			results[name] = status
			mu.Unlock()
		}(name, checkers[name])
	}
	wg.Wait()
	return results
}

func (m *HealthManager) determineOverallStatus(checks map[string]string) string {
	status := StatusHealthy
	for _, s := range checks {
		switch s {
		case StatusUnhealthy:
			return StatusUnhealthy
		case StatusTimeout:
			status = StatusDegraded
		}
	}
	return status
}

// CredentialsChecker verifies that credentials of Type resolve.
type CredentialsChecker struct {
	Resolver workflow.CredentialResolver
	Type     string
}

// CheckHealth resolves the credentials without contacting the vendor.
func (c CredentialsChecker) CheckHealth(ctx context.Context) error {
	_, err := c.Resolver.Get(ctx, c.Type)
	return err
}

var (
	globalMu            sync.RWMutex
	globalHealthManager *HealthManager
)

// InitHealthManager installs the process-wide manager used by the package
// level handlers.
func InitHealthManager(version string) *HealthManager {
	m := NewHealthManager(version)
	globalMu.Lock()
	globalHealthManager = m
	globalMu.Unlock()
	return m
}

// GetHealthManager returns the process-wide manager, or nil.
func GetHealthManager() *HealthManager {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalHealthManager
}

func withManager(fn func(*HealthManager, http.ResponseWriter, *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m := GetHealthManager()
		if m == nil {
			respondWithError(w, r, apperrors.ServiceUnavailable("health manager not initialized"))
			return
		}
		fn(m, w, r)
	}
}

// Package level handlers delegate to the process-wide manager and return 503
// before InitHealthManager.
var (
	HealthHandler    = withManager((*HealthManager).HealthHandler)
	LivenessHandler  = withManager((*HealthManager).LivenessHandler)
	ReadinessHandler = withManager((*HealthManager).ReadinessHandler)
	StartupHandler   = withManager((*HealthManager).StartupHandler)
)
