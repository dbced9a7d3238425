package observability

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// HealthStatus represents the health status of the service
type HealthStatus struct {
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
	Status    string            `json:"status"`
}

// CheckFunc probes a single dependency
type CheckFunc func(ctx context.Context) error

// HealthChecker manages health checks for the service
type HealthChecker struct {
	dbPool *pgxpool.Pool
	checks map[string]CheckFunc
	mu     sync.RWMutex
}

// NewHealthChecker creates a new HealthChecker. dbPool may be nil when
// the service runs on the in-memory store.
func NewHealthChecker(dbPool *pgxpool.Pool) *HealthChecker {
	return &HealthChecker{
		dbPool: dbPool,
		checks: make(map[string]CheckFunc),
	}
}

// AddCheck registers an additional dependency probe (redis, object storage, ...)
func (h *HealthChecker) AddCheck(name string, fn CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = fn
}

// Check performs health checks and returns the status
func (h *HealthChecker) Check(ctx context.Context) HealthStatus {
	checks := make(map[string]string)
	overallStatus := "healthy"

	probe := func(name string, fn CheckFunc) {
		probeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()

		if err := fn(probeCtx); err != nil {
			checks[name] = "unhealthy: " + err.Error()
			overallStatus = "unhealthy"
			return
		}
		checks[name] = "healthy"
	}

	if h.dbPool != nil {
		probe("database", h.dbPool.Ping)
	} else {
		checks["database"] = "not configured"
	}

	h.mu.RLock()
	for name, fn := range h.checks {
		probe(name, fn)
	}
	h.mu.RUnlock()

	return HealthStatus{
		Status:    overallStatus,
		Timestamp: time.Now().UTC(),
		Checks:    checks,
	}
}

// HealthHandler returns an HTTP handler for health checks
func (h *HealthChecker) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := h.Check(r.Context())

		w.Header().Set("Content-Type", "application/json")
		if status.Status != "healthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}

		_ = json.NewEncoder(w).Encode(status)
	}
}
