package observability

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// HealthStatus represents the health status of the service
type HealthStatus struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
}

// CheckFunc reports a dependency problem as an error
type CheckFunc func(ctx context.Context) error

// HealthChecker runs named dependency checks
type HealthChecker struct {
	mu     sync.RWMutex
	checks map[string]CheckFunc
	ready  atomic.Bool
}

// NewHealthChecker creates an empty HealthChecker. It reports not ready until
// SetReady(true) is called.
func NewHealthChecker() *HealthChecker {
	return &HealthChecker{checks: make(map[string]CheckFunc)}
}

// Register adds a named check
func (h *HealthChecker) Register(name string, check CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = check
}

// SetReady flips the readiness probe
func (h *HealthChecker) SetReady(ready bool) {
	h.ready.Store(ready)
}

// Check runs every check with a 2s budget each
func (h *HealthChecker) Check(ctx context.Context) HealthStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()

	results := make(map[string]string, len(h.checks))
	overall := "healthy"
	for name, check := range h.checks {
		checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := check(checkCtx)
		cancel()

		if err != nil {
			results[name] = "unhealthy: " + err.Error()
			overall = "unhealthy"
		} else {
			results[name] = "healthy"
		}
	}

	return HealthStatus{
		Status:    overall,
		Timestamp: time.Now().UTC(),
		Checks:    results,
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

// ReadyHandler answers 200 once the service is ready and 503 otherwise
func (h *HealthChecker) ReadyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !h.ready.Load() {
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	}
}
