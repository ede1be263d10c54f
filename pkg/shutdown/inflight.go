package shutdown

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// InFlightTracker lets shutdown wait for started work and refuse new work.
type InFlightTracker struct {
	mu       sync.Mutex
	wg       sync.WaitGroup
	stopping bool
	logger   *zap.Logger
	name     string
}

// NewInFlightTracker creates a new in-flight work tracker
func NewInFlightTracker(name string, logger *zap.Logger) *InFlightTracker {
	return &InFlightTracker{
		logger: logger,
		name:   name,
	}
}

// Add registers one unit of work. It returns false once shutdown has started.
func (ift *InFlightTracker) Add() bool {
	ift.mu.Lock()
	defer ift.mu.Unlock()

	if ift.stopping {
		return false
	}
	ift.wg.Add(1)
	return true
}

// Done marks one unit of work as finished
func (ift *InFlightTracker) Done() {
	ift.wg.Done()
}

// IsShuttingDown reports whether Shutdown has been called
func (ift *InFlightTracker) IsShuttingDown() bool {
	ift.mu.Lock()
	defer ift.mu.Unlock()
	return ift.stopping
}

// Shutdown refuses new work and waits for in-flight work or ctx.
func (ift *InFlightTracker) Shutdown(ctx context.Context) error {
	ift.mu.Lock()
	ift.stopping = true
	ift.mu.Unlock()

	ift.logger.Info("Waiting for in-flight work to complete",
		zap.String("tracker", ift.name),
	)

	done := make(chan struct{})
	go func() {
		ift.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		ift.logger.Info("All in-flight work completed",
			zap.String("tracker", ift.name),
		)
		return nil
	case <-ctx.Done():
		ift.logger.Warn("Shutdown timeout - some work may be incomplete",
			zap.String("tracker", ift.name),
		)
		return ctx.Err()
	}
}

// RunWithContext runs fn as tracked work. It returns false without running fn
// when shutdown is in progress.
func (ift *InFlightTracker) RunWithContext(ctx context.Context, fn func(context.Context)) bool {
	if !ift.Add() {
		return false
	}
	defer ift.Done()

	fn(ctx)
	return true
}

// PeriodicWorker runs work on a fixed interval until stopped.
type PeriodicWorker struct {
	name     string
	interval time.Duration
	logger   *zap.Logger
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewPeriodicWorker creates a new periodic worker
func NewPeriodicWorker(name string, interval time.Duration, logger *zap.Logger) *PeriodicWorker {
	ctx, cancel := context.WithCancel(context.Background())
	return &PeriodicWorker{
		name:     name,
		interval: interval,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start runs work immediately and then on every tick. work must honour ctx.
func (pw *PeriodicWorker) Start(work func(ctx context.Context)) {
	pw.wg.Add(1)
	go func() {
		defer pw.wg.Done()

		pw.logger.Info("Periodic worker started",
			zap.String("worker", pw.name),
			zap.Duration("interval", pw.interval),
		)

		ticker := time.NewTicker(pw.interval)
		defer ticker.Stop()

		work(pw.ctx)
		for {
			select {
			case <-pw.ctx.Done():
				pw.logger.Info("Periodic worker stopped", zap.String("worker", pw.name))
				return
			case <-ticker.C:
				work(pw.ctx)
			}
		}
	}()
}

// Shutdown cancels the worker and waits for the current run or ctx.
func (pw *PeriodicWorker) Shutdown(ctx context.Context) error {
	pw.stopOnce.Do(pw.cancel)

	done := make(chan struct{})
	go func() {
		pw.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		pw.logger.Warn("Periodic worker shutdown timeout",
			zap.String("worker", pw.name),
		)
		return ctx.Err()
	}
}
