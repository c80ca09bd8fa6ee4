// Package commands provides CLI commands for the admin tool
package commands

import (
	"context"
	"database/sql"
	"fmt"

	"learnanalytics/internal/database"
	"learnanalytics/internal/observability"
	contextutils "learnanalytics/internal/utils"

	"github.com/spf13/cobra"
)

// Migrator is the part of database.Manager the db commands drive
type Migrator interface {
	RunMigrations(ctx context.Context, db *sql.DB, migrationsPath string) error
	Status(ctx context.Context, db *sql.DB, migrationsPath string) (database.MigrationStatus, error)
}

// DatabaseCommands returns the database management commands
func DatabaseCommands(migrator Migrator, db *sql.DB, databaseURL, migrationsPath string, logger *observability.Logger) *cobra.Command {
	dbCmd := &cobra.Command{
		Use:   "db",
		Short: "Database management commands",
		Long: `Database management commands for the learning analytics store.

Available commands:
  migrate   - Apply schema.sql and pending migrations
  status    - Show the current migration version
  info      - Show connection details`,
	}

	dbCmd.AddCommand(migrateCmd(migrator, db, migrationsPath, logger))
	dbCmd.AddCommand(statusCmd(migrator, db, migrationsPath, logger))
	dbCmd.AddCommand(infoCmd(db, databaseURL))

	return dbCmd
}

func migrateCmd(migrator Migrator, db *sql.DB, migrationsPath string, logger *observability.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the schema and pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()

			logger.Info(ctx, "Running database migrations", map[string]interface{}{"migrations_path": migrationsPath})
			if err := migrator.RunMigrations(ctx, db, migrationsPath); err != nil {
				logger.Error(ctx, "Migration failed", err, nil)
				return contextutils.WrapError(err, "failed to run migrations")
			}

			status, err := migrator.Status(ctx, db, migrationsPath)
			if err != nil {
				return contextutils.WrapError(err, "failed to read migration status")
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Migrations applied, version %d\n", status.Version)
			return err
		},
	}
}

func statusCmd(migrator Migrator, db *sql.DB, migrationsPath string, logger *observability.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the current migration version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()

			status, err := migrator.Status(ctx, db, migrationsPath)
			if err != nil {
				logger.Error(ctx, "Failed to read migration status", err, nil)
				return contextutils.WrapError(err, "failed to read migration status")
			}
			return printJSON(cmd.OutOrStdout(), status)
		},
	}
}

func infoCmd(db *sql.DB, databaseURL string) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show database connection details",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()

			out := cmd.OutOrStdout()
			if _, err := fmt.Fprintf(out, "URL:    %s\n", maskDatabaseURL(databaseURL)); err != nil {
				return err
			}
			_, err := fmt.Fprintf(out, "Status: %s\n", getDatabaseInfo(ctx, db))
			return err
		},
	}
}
