package main

import (
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/kevin07696/tsys-connector/internal/db/migrations"
	"github.com/pressly/goose/v3"
	"github.com/spf13/cobra"
)

const dialect = "postgres"

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or inspect the connector's database migrations",
	}

	run := func(command string) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load(false)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			if cfg.Database.URL == "" {
				return fmt.Errorf("database.url is required")
			}

			db, err := sql.Open("pgx", cfg.Database.URL)
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer db.Close()

			if err := db.PingContext(cmd.Context()); err != nil {
				return fmt.Errorf("failed to connect to database: %w", err)
			}

			goose.SetBaseFS(migrations.FS)
			if err := goose.SetDialect(dialect); err != nil {
				return fmt.Errorf("failed to set dialect: %w", err)
			}
			if err := goose.RunContext(cmd.Context(), command, db, ".", args...); err != nil {
				return fmt.Errorf("goose %s: %w", command, err)
			}
			return nil
		}
	}

	cmd.AddCommand(
		&cobra.Command{Use: "up", Short: "Migrate to the most recent version", Args: cobra.NoArgs, RunE: run("up")},
		&cobra.Command{Use: "down", Short: "Roll back one version", Args: cobra.NoArgs, RunE: run("down")},
		&cobra.Command{Use: "status", Short: "Print the migration status", Args: cobra.NoArgs, RunE: run("status")},
		&cobra.Command{Use: "version", Short: "Print the current version", Args: cobra.NoArgs, RunE: run("version")},
	)
	return cmd
}
