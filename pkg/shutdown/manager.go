package shutdown

import (
	"context"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

var (
	shutdownDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "shutdown_duration_seconds",
		Help:    "Total time taken to shutdown gracefully",
		Buckets: []float64{1, 5, 10, 15, 20, 25, 30, 60},
	})

	shutdownErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shutdown_errors_total",
		Help: "Total number of shutdown errors by component",
	}, []string{"component"})
)

// ShutdownFunc shuts down one component
type ShutdownFunc func(context.Context) error

type component struct {
	name string
	fn   ShutdownFunc
}

// Manager shuts components down one at a time in reverse registration order,
// so register workers and servers after the stores they depend on.
type Manager struct {
	logger     *zap.Logger
	components []component
	mu         sync.Mutex
	timeout    time.Duration
}

// NewManager creates a new shutdown manager
func NewManager(logger *zap.Logger, timeout time.Duration) *Manager {
	return &Manager{
		logger:  logger,
		timeout: timeout,
	}
}

// Register adds a component to shut down
func (sm *Manager) Register(name string, fn ShutdownFunc) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	sm.components = append(sm.components, component{name: name, fn: fn})
	sm.logger.Debug("Registered shutdown component",
		zap.String("component", name),
		zap.Int("registration_order", len(sm.components)),
	)
}

// RegisterCloser registers a component with a Close() error method
func (sm *Manager) RegisterCloser(name string, closer interface{ Close() error }) {
	sm.Register(name, func(context.Context) error { return closer.Close() })
}

// RegisterNoErr registers a shutdown function that cannot fail
func (sm *Manager) RegisterNoErr(name string, fn func()) {
	sm.Register(name, func(context.Context) error {
		fn()
		return nil
	})
}

// WaitForShutdown blocks until SIGINT, SIGTERM or ctx is done, then shuts down.
func (sm *Manager) WaitForShutdown(ctx context.Context) {
	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-sigCtx.Done()
	sm.logger.Info("Shutdown requested - initiating graceful shutdown",
		zap.Duration("timeout", sm.timeout),
	)
	sm.Shutdown()
}

// Shutdown runs every registered component's shutdown and returns the failures by name.
func (sm *Manager) Shutdown() map[string]error {
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), sm.timeout)
	defer cancel()

	sm.mu.Lock()
	components := make([]component, len(sm.components))
	copy(components, sm.components)
	sm.mu.Unlock()

	failures := make(map[string]error)
	for i := len(components) - 1; i >= 0; i-- {
		c := components[i]
		compStart := time.Now()
		if err := c.fn(ctx); err != nil {
			failures[c.name] = err
			shutdownErrors.WithLabelValues(c.name).Inc()
			sm.logger.Error("Component shutdown failed",
				zap.String("component", c.name),
				zap.Duration("elapsed", time.Since(compStart)),
				zap.Error(err),
			)
			continue
		}
		sm.logger.Info("Component shut down",
			zap.String("component", c.name),
			zap.Duration("elapsed", time.Since(compStart)),
		)
	}

	shutdownDuration.Observe(time.Since(start).Seconds())
	sm.logger.Info("Graceful shutdown completed",
		zap.Int("errors", len(failures)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return failures
}
