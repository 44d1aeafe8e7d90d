package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/turtacn/leadscope/internal/config"
	"github.com/turtacn/leadscope/internal/infrastructure/database/postgres"
	"github.com/turtacn/leadscope/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/leadscope/pkg/errors"
)

// schemaMigrator is the part of *postgres.Migrator the commands use.
type schemaMigrator interface {
	Up() error
	Down(steps int) error
	Status() (postgres.MigrationStatus, error)
	Force(version int) error
}

// newMigrator is replaced in tests.
var newMigrator = func(cfg *config.Config, log logging.Logger) (schemaMigrator, error) {
	if !cfg.Database.Enabled {
		return nil, errors.InvalidParam("database is disabled; set database.enabled to true")
	}
	dsn := postgres.DSN(postgresConfig(cfg.Database))
	return postgres.NewMigrator(dsn, cfg.Database.MigrationPath, log), nil
}

// NewMigrateCmd creates the migrate command.
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the PostgreSQL schema",
	}
	cmd.AddCommand(
		newMigrateUpCmd(),
		newMigrateDownCmd(),
		newMigrateStatusCmd(),
		newMigrateForceCmd(),
	)
	return cmd
}

func migratorFor(cmd *cobra.Command) (schemaMigrator, error) {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return nil, err
	}
	return newMigrator(cliCtx.Config, cliCtx.Logger)
}

func newMigrateUpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := migratorFor(cmd)
			if err != nil {
				return err
			}
			if err := m.Up(); err != nil {
				return err
			}
			PrintSuccess(cmd, "migrations applied")
			return nil
		},
	}
}

func newMigrateDownCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "down [N]",
		Short: "Roll back the last N migrations (default 1)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			steps := 1
			if len(args) == 1 {
				n, err := strconv.Atoi(args[0])
				if err != nil || n < 1 {
					return errors.InvalidParam("N must be a positive integer").WithDetail(args[0])
				}
				steps = n
			}
			m, err := migratorFor(cmd)
			if err != nil {
				return err
			}
			if err := m.Down(steps); err != nil {
				return err
			}
			PrintSuccess(cmd, fmt.Sprintf("rolled back %d migration(s)", steps))
			return nil
		},
	}
}

// MigrationStatusView is the printable schema status.
type MigrationStatusView struct {
	postgres.MigrationStatus
}

func (v MigrationStatusView) String() string {
	if v.Dirty {
		return fmt.Sprintf("version %d (dirty)", v.Version)
	}
	return fmt.Sprintf("version %d", v.Version)
}

func newMigrateStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print the current schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := migratorFor(cmd)
			if err != nil {
				return err
			}
			st, err := m.Status()
			if err != nil {
				return err
			}
			return PrintResult(cmd, MigrationStatusView{st})
		},
	}
}

func newMigrateForceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "force VERSION",
		Short: "Set the schema version without running migrations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := strconv.Atoi(args[0])
			if err != nil {
				return errors.InvalidParam("VERSION must be an integer").WithDetail(args[0])
			}
			m, err := migratorFor(cmd)
			if err != nil {
				return err
			}
			if err := m.Force(v); err != nil {
				return err
			}
			PrintSuccess(cmd, fmt.Sprintf("schema version forced to %d", v))
			return nil
		},
	}
}
