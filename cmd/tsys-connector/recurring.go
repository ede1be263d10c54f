package main

import (
	"context"
	"fmt"
	"time"

	"github.com/kevin07696/tsys-connector/internal/handlers/cron"
	"github.com/kevin07696/tsys-connector/pkg/resilience"
	"github.com/kevin07696/tsys-connector/pkg/timeutil"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newRunRecurringCmd(opts *rootOptions) *cobra.Command {
	var (
		asOfDate  string
		batchSize int
	)

	cmd := &cobra.Command{
		Use:   "run-recurring",
		Short: "Charge recurring series that are due, once, and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := opts.load(false)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			asOf := timeutil.Now()
			if asOfDate != "" {
				asOf, err = time.Parse(timeutil.HostDateLayout, asOfDate)
				if err != nil {
					return fmt.Errorf("--as-of must be YYYY-MM-DD: %w", err)
				}
			}
			if batchSize == 0 {
				batchSize = cfg.Recurring.BatchSize
			}
			if batchSize < 1 || batchSize > cron.MaxBatchSize {
				return fmt.Errorf("--batch-size must be between 1 and %d", cron.MaxBatchSize)
			}

			deps, err := initDependencies(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer deps.Close()

			ctx, cancel := resilience.DefaultTimeoutConfig().CronContext(cmd.Context())
			defer cancel()
			return runOnce(ctx, deps, asOf, batchSize, logger)
		},
	}
	cmd.Flags().StringVar(&asOfDate, "as-of", "", "charge series due on or before this date (YYYY-MM-DD, default today)")
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "maximum series to charge (default recurring.batch_size)")
	return cmd
}

func runOnce(ctx context.Context, deps *dependencies, asOf time.Time, batchSize int, logger *zap.Logger) error {
	summary, err := deps.recurring.ProcessDue(ctx, asOf, batchSize)
	if err != nil {
		return fmt.Errorf("process due recurring series: %w", err)
	}

	for _, batchErr := range summary.Errors {
		logger.Warn("Recurring series failed",
			zap.Int64("recur_id", batchErr.RecurSeriesID),
			zap.String("error", batchErr.Error),
			zap.Bool("retriable", batchErr.Retriable),
		)
	}
	logger.Info("Recurring batch finished",
		zap.Time("as_of", asOf),
		zap.Int("processed", summary.ProcessedCount),
		zap.Int("succeeded", summary.SuccessCount),
		zap.Int("failed", summary.FailedCount),
	)
	if summary.FailedCount > 0 {
		return fmt.Errorf("%d of %d recurring series failed", summary.FailedCount, summary.ProcessedCount)
	}
	return nil
}
