package main

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/clinical-risk-scorer/internal/config"
	"github.com/clinical-risk-scorer/internal/database"
)

// migrationRunner opens a runner for the configured audit backend.
func migrationRunner(mgr *config.Manager, logger *logrus.Logger) (*database.MigrationRunner, error) {
	switch strings.ToLower(mgr.GetConfig().Audit.Backend) {
	case config.AuditBackendPostgres:
		return database.NewMigrationRunner(mgr.GetDatabaseURL(), logger)
	case config.AuditBackendSQLite, "":
		if err := mgr.EnsureDataDir(); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		return database.NewSQLiteMigrationRunner(mgr.AuditDBPath(), logger)
	default:
		return nil, fmt.Errorf("audit backend %q has no migrations", mgr.GetConfig().Audit.Backend)
	}
}

func newMigrateCmd(o *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the audit database schema",
	}

	run := func(use, short string, fn func(*cobra.Command, *database.MigrationRunner) error) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				mgr, logger, err := o.load(cmd)
				if err != nil {
					return err
				}
				runner, err := migrationRunner(mgr, logger)
				if err != nil {
					return err
				}
				defer runner.Close()
				return fn(cmd, runner)
			},
		}
	}

	cmd.AddCommand(run("up", "Apply pending migrations", func(cmd *cobra.Command, r *database.MigrationRunner) error {
		if err := r.Up(cmd.Context()); err != nil {
			return err
		}
		return printVersion(cmd, r)
	}))
	cmd.AddCommand(run("down", "Roll back the last migration", func(cmd *cobra.Command, r *database.MigrationRunner) error {
		if err := r.Down(cmd.Context()); err != nil {
			return err
		}
		return printVersion(cmd, r)
	}))
	cmd.AddCommand(run("version", "Show the current schema version", printVersion))

	return cmd
}

func printVersion(cmd *cobra.Command, r *database.MigrationRunner) error {
	version, dirty, err := r.Version()
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	state := "clean"
	if dirty {
		state = "dirty"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Schema version %d (%s)\n", version, state)
	return nil
}
