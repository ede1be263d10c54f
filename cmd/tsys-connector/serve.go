package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/kevin07696/tsys-connector/internal/adapters/merchantware"
	"github.com/kevin07696/tsys-connector/internal/config"
	"github.com/kevin07696/tsys-connector/internal/handlers"
	cronHandler "github.com/kevin07696/tsys-connector/internal/handlers/cron"
	paymentHandler "github.com/kevin07696/tsys-connector/internal/handlers/payment"
	"github.com/kevin07696/tsys-connector/pkg/middleware"
	"github.com/kevin07696/tsys-connector/pkg/observability"
	"github.com/kevin07696/tsys-connector/pkg/resilience"
	"github.com/kevin07696/tsys-connector/pkg/shutdown"
	"github.com/kevin07696/tsys-connector/pkg/timeutil"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the payment API, cron endpoint and metrics server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := opts.load(true)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			return serve(cmd.Context(), cfg, logger)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	logger.Info("Starting tsys-connector",
		zap.Int("port", cfg.Server.Port),
		zap.Int("metrics_port", cfg.Server.MetricsPort),
		zap.String("gateway_endpoint", cfg.Gateway.Endpoint),
		zap.String("host_endpoint", cfg.Host.Endpoint),
		zap.String("secret_backend", cfg.Secrets.Backend),
	)

	initCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	deps, err := initDependencies(initCtx, cfg, logger)
	cancel()
	if err != nil {
		return err
	}

	monitorCtx, stopMonitor := context.WithCancel(context.Background())
	deps.db.StartPoolMonitoring(monitorCtx, 30*time.Second)

	healthChecker := observability.NewHealthChecker()
	healthChecker.Register("database", deps.db.HealthCheck)
	healthChecker.Register("merchantware", func(context.Context) error {
		if state := deps.gateway.BreakerState(); state == merchantware.StateOpen {
			return fmt.Errorf("circuit breaker %s", state)
		}
		return nil
	})

	timeouts := resilience.DefaultTimeoutConfig()
	tracker := shutdown.NewInFlightTracker("recurring", logger)

	var rateLimiter *middleware.RateLimiter
	if cfg.Server.RateLimitRPS > 0 {
		rateLimiter = middleware.NewRateLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst, logger)
	}

	router := handlers.NewRouter(handlers.RouterConfig{
		Payment: paymentHandler.NewHandler(deps.processor, deps.credentials, timeouts, logger),
		Recurring: cronHandler.NewRecurringHandler(
			deps.recurring,
			tracker,
			timeouts,
			logger,
			cfg.Recurring.CronSecret,
			cfg.Recurring.BatchSize,
		),
		RateLimiter: rateLimiter,
		APIToken:    cfg.Server.APIToken,
		Timeouts:    timeouts,
		Logger:      logger,
	})

	httpServer := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}
	metricsServer := observability.StartMetricsServer(
		net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.MetricsPort)),
		healthChecker,
		logger,
	)

	// Components shut down in reverse registration order.
	manager := shutdown.NewManager(logger, cfg.Server.ShutdownTimeout)
	manager.RegisterNoErr("database", deps.Close)
	manager.RegisterNoErr("db-pool-monitor", stopMonitor)
	manager.Register("recurring-batches", tracker.Shutdown)
	if cfg.Recurring.Interval > 0 {
		worker := shutdown.NewPeriodicWorker("recurring-scheduler", cfg.Recurring.Interval, logger)
		worker.Start(func(ctx context.Context) {
			runRecurringBatch(ctx, deps, tracker, timeouts, cfg.Recurring.BatchSize, logger)
		})
		manager.Register("recurring-scheduler", worker.Shutdown)
	}
	if rateLimiter != nil {
		manager.RegisterNoErr("rate-limiter", rateLimiter.Shutdown)
	}
	manager.Register("metrics-server", metricsServer.Shutdown)
	manager.Register("http-server", httpServer.Shutdown)
	manager.RegisterNoErr("readiness", func() { healthChecker.SetReady(false) })

	waitCtx, stopWait := context.WithCancel(ctx)
	defer stopWait()

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server failed", zap.Error(err))
			serveErr <- err
			stopWait()
		}
	}()
	healthChecker.SetReady(true)

	manager.WaitForShutdown(waitCtx)
	logger.Info("tsys-connector stopped")

	select {
	case err := <-serveErr:
		return err
	default:
		return nil
	}
}

// runRecurringBatch charges series due today. Like the cron endpoint, a batch
// that has started runs to completion; shutdown waits for it through tracker.
func runRecurringBatch(
	ctx context.Context,
	deps *dependencies,
	tracker *shutdown.InFlightTracker,
	timeouts *resilience.TimeoutConfig,
	batchSize int,
	logger *zap.Logger,
) {
	tracker.RunWithContext(ctx, func(ctx context.Context) {
		ctx, cancel := timeouts.CronContext(context.WithoutCancel(ctx))
		defer cancel()

		summary, err := deps.recurring.ProcessDue(ctx, timeutil.Now(), batchSize)
		if err != nil {
			logger.Error("Scheduled recurring batch failed", zap.Error(err))
			return
		}
		logger.Info("Scheduled recurring batch finished",
			zap.Int("processed", summary.ProcessedCount),
			zap.Int("succeeded", summary.SuccessCount),
			zap.Int("failed", summary.FailedCount),
		)
	})
}
