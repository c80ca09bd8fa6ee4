// Package main provides the entry point for the learning analytics admin CLI.
package main

import (
	"context"
	"fmt"
	"os"

	"learnanalytics/cmd/adm/commands"
	"learnanalytics/internal/config"
	"learnanalytics/internal/database"
	"learnanalytics/internal/di"
	"learnanalytics/internal/observability"
	contextutils "learnanalytics/internal/utils"
	"learnanalytics/internal/version"

	"github.com/spf13/cobra"
)

func main() {
	if err := run(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	if os.Getenv(config.ConfigFileEnv) == "" {
		defaultPaths := []string{
			"config.yaml",
			"../config.yaml",
			"../../config.yaml",
		}

		for _, path := range defaultPaths {
			if _, err := os.Stat(path); err == nil {
				if err := os.Setenv(config.ConfigFileEnv, path); err != nil {
					return contextutils.WrapErrorf(err, "failed to set %s", config.ConfigFileEnv)
				}
				break
			}
		}
	}

	cfg, err := config.NewConfig()
	if err != nil {
		return contextutils.WrapError(err, "failed to load configuration")
	}

	// Exporters would only add connection errors to short-lived commands
	cfg.OpenTelemetry.EnableTracing = false
	cfg.OpenTelemetry.EnableMetrics = false
	cfg.OpenTelemetry.EnableLogging = false

	_, _, logger, err := observability.SetupObservability(&cfg.OpenTelemetry, "learnanalytics-adm", "error")
	if err != nil {
		return contextutils.WrapError(err, "failed to initialize observability")
	}

	dbManager := database.NewManager(logger)

	// Migrations run only through "db migrate"
	db, err := dbManager.InitDBWithoutMigrations(ctx, cfg.Database)
	if err != nil {
		return contextutils.WrapError(err, "failed to connect to database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Warn(ctx, "Warning: failed to close database connection", map[string]interface{}{"error": err.Error()})
		}
	}()

	container := di.NewServiceContainer(cfg, logger)
	if err := container.InitializeWithDB(ctx, db); err != nil {
		return contextutils.WrapError(err, "failed to initialize services")
	}
	defer func() {
		if err := container.Shutdown(ctx); err != nil {
			logger.Warn(ctx, "Service shutdown failed", map[string]interface{}{"error": err.Error()})
		}
	}()

	rootCmd, err := newRootCommand(container, dbManager)
	if err != nil {
		return contextutils.WrapError(err, "failed to build commands")
	}

	return rootCmd.ExecuteContext(ctx)
}

// newRootCommand assembles the command tree from an initialized container
func newRootCommand(container di.ServiceContainerInterface, migrator commands.Migrator) (*cobra.Command, error) {
	recommendationService, err := container.GetRecommendationService()
	if err != nil {
		return nil, err
	}
	performanceService, err := container.GetPerformanceService()
	if err != nil {
		return nil, err
	}
	completionService, err := container.GetCompletionService()
	if err != nil {
		return nil, err
	}
	analyticsService, err := container.GetAnalyticsService()
	if err != nil {
		return nil, err
	}
	mistakeService, err := container.GetMistakeService()
	if err != nil {
		return nil, err
	}
	snapshotService, err := container.GetSnapshotService()
	if err != nil {
		return nil, err
	}

	cfg := container.GetConfig()
	logger := container.GetLogger()

	rootCmd := &cobra.Command{
		Use:   "adm",
		Short: "Learning analytics administration tool",
		Long: `Learning analytics administration tool

Runs migrations and prints the same recommendations and analytics the API serves,
straight from the database.`,
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		Run: func(cmd *cobra.Command, _ []string) {
			if err := cmd.Help(); err != nil {
				fmt.Printf("Error showing help: %v\n", err)
			}
		},
	}

	rootCmd.AddCommand(commands.DatabaseCommands(migrator, container.GetDatabase(), cfg.Database.URL, cfg.Database.MigrationsPath, logger))
	rootCmd.AddCommand(commands.LearnerCommands(commands.LearnerServices{
		Recommendations: recommendationService,
		Performance:     performanceService,
		Completion:      completionService,
		Analytics:       analyticsService,
	}))
	rootCmd.AddCommand(commands.MistakeCommands(mistakeService, cfg.Analytics))
	rootCmd.AddCommand(commands.AnalyticsCommands(snapshotService, logger))

	return rootCmd, nil
}
