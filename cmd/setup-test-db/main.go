// Package main seeds a database with fixture data for integration and manual testing.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"learnanalytics/internal/config"
	"learnanalytics/internal/database"
	"learnanalytics/internal/observability"
	contextutils "learnanalytics/internal/utils"

	"go.uber.org/zap/zapcore"
)

func main() {
	verbose := flag.Bool("verbose", false, "enable verbose logging")
	dataPath := flag.String("data", filepath.Join("cmd", "setup-test-db", "testdata", "seed.yaml"), "fixture file")
	outPath := flag.String("out", "", "write the assigned ids as JSON to this file")
	reset := flag.Bool("reset", true, "truncate seeded tables first")
	flag.Parse()

	if err := run(context.Background(), *verbose, *dataPath, *outPath, *reset); err != nil {
		fmt.Fprintf(os.Stderr, "setup-test-db: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, verbose bool, dataPath, outPath string, reset bool) error {
	cfg, err := config.NewConfig()
	if err != nil {
		return contextutils.WrapError(err, "failed to load config")
	}
	if url := os.Getenv("DATABASE_URL"); url != "" {
		cfg.Database.URL = url
	}

	logLevel := zapcore.WarnLevel
	if verbose {
		logLevel = zapcore.InfoLevel
	}
	logger := observability.NewLoggerWithLevel(&config.OpenTelemetryConfig{EnableLogging: verbose}, logLevel)

	fixture, err := LoadFixture(dataPath)
	if err != nil {
		return err
	}

	dbManager := database.NewManager(logger)
	db, err := dbManager.InitDBWithConfig(ctx, cfg.Database)
	if err != nil {
		return contextutils.WrapError(err, "failed to initialize database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Warn(ctx, "Warning: failed to close database", map[string]interface{}{"error": err.Error()})
		}
	}()

	seeder := NewSeeder(db, logger, time.Now())
	if reset {
		if err := seeder.Reset(ctx); err != nil {
			return err
		}
	}

	result, err := seeder.Seed(ctx, fixture)
	if err != nil {
		return err
	}

	return writeResult(result, outPath)
}

// writeResult prints the id map, or writes it to path when given
func writeResult(result *SeedResult, path string) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return contextutils.WrapError(err, "failed to marshal seed result")
	}

	if path == "" {
		_, err = fmt.Println(string(data))
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return contextutils.WrapErrorf(err, "failed to create output directory for %s", path)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return contextutils.WrapErrorf(err, "failed to write seed result to %s", path)
	}
	return nil
}
