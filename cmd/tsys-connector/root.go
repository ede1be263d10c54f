package main

import (
	"fmt"

	"github.com/kevin07696/tsys-connector/internal/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "tsys-connector",
		Short:         "TSYS Merchantware payment connector for CiviCRM",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "config file (default ./config.yml, TSYS_* env vars override)")

	cmd.AddCommand(
		newServeCmd(opts),
		newMigrateCmd(opts),
		newRunRecurringCmd(opts),
	)
	return cmd
}

// load reads and validates the config and builds the process logger.
func (o *rootOptions) load(validate bool) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, nil, err
	}
	if validate {
		if err := cfg.Validate(); err != nil {
			return nil, nil, err
		}
	}
	logger, err := cfg.Logger.NewLogger()
	if err != nil {
		return nil, nil, fmt.Errorf("build logger: %w", err)
	}
	return cfg, logger, nil
}
