// Package database provides database connection and migration functionality.
package database

import (
	"context"
	"database/sql"
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"learnanalytics/internal/config"
	"learnanalytics/internal/observability"
	contextutils "learnanalytics/internal/utils"

	// PostgreSQL driver for database/sql
	_ "github.com/lib/pq"

	"github.com/golang-migrate/migrate/v4"
	migratepostgres "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file" // file:// migration source

	"go.nhat.io/otelsql"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
)

// Manager handles database operations with proper logging
type Manager struct {
	logger *observability.Logger
}

var (
	otelDriverNameCache string
	otelDriverOnce      sync.Once
	otelDriverErr       error
)

// NewManager creates a new database manager with the provided logger
func NewManager(logger *observability.Logger) *Manager {
	return &Manager{
		logger: logger,
	}
}

// MigrationStatus describes the golang-migrate state of the database.
type MigrationStatus struct {
	Version uint `json:"version"`
	Dirty   bool `json:"dirty"`
	// Applied is false when no migration has ever run
	Applied bool `json:"applied"`
}

// DefaultDatabaseConfig returns the default database configuration
func DefaultDatabaseConfig() config.DatabaseConfig {
	cfg := config.DatabaseConfig{
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: config.DatabaseConnMaxLifetime,
	}

	if testURL := os.Getenv("TEST_DATABASE_URL"); testURL != "" {
		cfg.URL = testURL
	}

	return cfg
}

// InitDBWithConfig opens the connection pool, applies schema.sql and runs pending migrations
func (dm *Manager) InitDBWithConfig(ctx context.Context, cfg config.DatabaseConfig) (result0 *sql.DB, err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "init_db",
		attribute.String("db.name", extractDatabaseName(cfg.URL)),
		attribute.String("db.system", "postgresql"),
		attribute.Int("db.max_open_conns", cfg.MaxOpenConns),
		attribute.Int("db.max_idle_conns", cfg.MaxIdleConns),
		attribute.String("db.conn_max_lifetime", cfg.ConnMaxLifetime.String()),
	)
	defer observability.FinishSpan(span, &err)

	db, err := dm.InitDBWithoutMigrations(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if err := dm.RunMigrations(ctx, db, cfg.MigrationsPath); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			dm.logger.Error(ctx, "Failed to close database after migration failure", closeErr)
		}
		return nil, err
	}

	return db, nil
}

// extractDatabaseName extracts the database name from a PostgreSQL connection string
func extractDatabaseName(databaseURL string) string {
	if u, err := url.Parse(databaseURL); err == nil && u.Path != "" {
		if dbName := strings.TrimPrefix(u.Path, "/"); dbName != "" {
			return dbName
		}
	}

	// key=value DSN form: "host=... dbname=learn sslmode=disable"
	for _, part := range strings.Fields(databaseURL) {
		if strings.HasPrefix(part, "dbname=") {
			return strings.TrimPrefix(part, "dbname=")
		}
	}

	return "learnanalytics"
}

// InitDBWithoutMigrations initializes and returns a database connection without running migrations
func (dm *Manager) InitDBWithoutMigrations(ctx context.Context, cfg config.DatabaseConfig) (result0 *sql.DB, err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "open_pool",
		attribute.String("db.name", extractDatabaseName(cfg.URL)),
	)
	defer observability.FinishSpan(span, &err)

	if cfg.URL == "" {
		return nil, contextutils.WrapError(contextutils.ErrDatabaseConnection, "database url is empty")
	}

	// Register the instrumented driver once per process and reuse the name
	otelDriverOnce.Do(func() {
		otelDriverNameCache, otelDriverErr = otelsql.Register("postgres",
			otelsql.WithDatabaseName(extractDatabaseName(cfg.URL)),
			otelsql.TraceQueryWithArgs(),
			otelsql.WithSystem(semconv.DBSystemPostgreSQL),
			otelsql.TraceRowsAffected(),
		)
	})
	if otelDriverErr != nil {
		return nil, contextutils.WrapError(otelDriverErr, "failed to register otelsql driver")
	}

	db, err := sql.Open(otelDriverNameCache, cfg.URL)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to open database connection")
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			dm.logger.Error(ctx, "Failed to close database connection after ping failure", closeErr)
		}
		return nil, contextutils.WrapErrorf(contextutils.ErrDatabaseConnection, "failed to ping database: %v", err)
	}

	dm.logger.Info(ctx, "Database connection established", map[string]interface{}{
		"max_open_conns":    cfg.MaxOpenConns,
		"max_idle_conns":    cfg.MaxIdleConns,
		"conn_max_lifetime": cfg.ConnMaxLifetime.String(),
	})

	return db, nil
}

// RunMigrations applies schema.sql and then any pending golang-migrate migrations.
// An empty migrationsPath searches upward from the working directory.
func (dm *Manager) RunMigrations(ctx context.Context, db *sql.DB, migrationsPath string) (err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "run_migrations")
	defer observability.FinishSpan(span, &err)

	schemaPath, err := findUpward("schema.sql")
	if err != nil {
		return contextutils.WrapError(err, "failed to find schema file")
	}
	schemaSQL, err := os.ReadFile(schemaPath)
	if err != nil {
		return contextutils.WrapError(err, "failed to read schema file")
	}
	if err := dm.ApplySchema(ctx, db, string(schemaSQL)); err != nil {
		return contextutils.WrapError(err, "failed to run application schema")
	}
	dm.logger.Info(ctx, "Application schema applied", map[string]interface{}{"schema_path": schemaPath})

	m, err := dm.newMigrator(db, migrationsPath)
	if err != nil {
		return err
	}

	err = m.Up()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return contextutils.WrapError(err, "golang-migrate up failed")
	}
	if errors.Is(err, migrate.ErrNoChange) {
		dm.logger.Info(ctx, "No new migrations to apply")
	} else {
		dm.logger.Info(ctx, "Migrations applied")
	}
	return nil
}

// Status reports the current migration version without changing anything.
func (dm *Manager) Status(ctx context.Context, db *sql.DB, migrationsPath string) (result0 MigrationStatus, err error) {
	_, span := observability.TraceDatabaseFunction(ctx, "migration_status")
	defer observability.FinishSpan(span, &err)

	m, err := dm.newMigrator(db, migrationsPath)
	if err != nil {
		return MigrationStatus{}, err
	}

	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return MigrationStatus{}, nil
	}
	if err != nil {
		return MigrationStatus{}, contextutils.WrapError(err, "failed to read migration version")
	}
	return MigrationStatus{Version: version, Dirty: dirty, Applied: true}, nil
}

// newMigrator builds a golang-migrate instance that reuses the open pool.
func (dm *Manager) newMigrator(db *sql.DB, migrationsPath string) (*migrate.Migrate, error) {
	if migrationsPath == "" {
		found, err := findUpward("migrations")
		if err != nil {
			return nil, contextutils.WrapError(err, "failed to find migrations directory")
		}
		migrationsPath = found
	}

	absPath, err := filepath.Abs(migrationsPath)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to resolve migrations path")
	}

	driver, err := migratepostgres.WithInstance(db, &migratepostgres.Config{})
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to create migration driver")
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+filepath.ToSlash(absPath), "postgres", driver)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to initialize golang-migrate")
	}
	return m, nil
}

// ApplySchema executes every statement of schemaSQL, tables before indexes.
// "already exists" failures are ignored so the schema can be replayed.
func (dm *Manager) ApplySchema(ctx context.Context, db *sql.DB, schemaSQL string) (err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "apply_schema",
		attribute.Int("schema.file.size", len(schemaSQL)),
	)
	defer observability.FinishSpan(span, &err)

	statements := parseSchemaStatements(schemaSQL)
	span.SetAttributes(attribute.Int("schema.statements.count", len(statements)))

	var indexStatements []string
	for _, statement := range statements {
		if strings.HasPrefix(strings.ToUpper(statement), "CREATE INDEX") ||
			strings.HasPrefix(strings.ToUpper(statement), "CREATE UNIQUE INDEX") {
			indexStatements = append(indexStatements, statement)
			continue
		}

		if _, execErr := db.ExecContext(ctx, statement); execErr != nil && !isAlreadyExistsError(execErr) {
			return contextutils.WrapErrorf(execErr, "failed to execute schema statement: %s", statement)
		}
	}

	for _, statement := range indexStatements {
		if _, execErr := db.ExecContext(ctx, statement); execErr != nil && !isAlreadyExistsError(execErr) {
			return contextutils.WrapErrorf(execErr, "failed to execute index statement: %s", statement)
		}
	}

	return nil
}

// findUpward looks for name in the working directory and each parent.
func findUpward(name string) (string, error) {
	currentDir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		candidate := filepath.Join(currentDir, name)
		if _, statErr := os.Stat(candidate); statErr == nil {
			return candidate, nil
		}

		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			return "", contextutils.ErrorWithContextf("%s not found in any parent directory", name)
		}
		currentDir = parentDir
	}
}

// parseSchemaStatements strips comments from a schema file and splits it on semicolons
func parseSchemaStatements(schemaSQL string) []string {
	lines := strings.Split(schemaSQL, "\n")
	var cleanedLines []string
	inComment := false

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/*") {
			inComment = !strings.HasSuffix(line, "*/")
			continue
		}
		if inComment {
			if strings.HasSuffix(line, "*/") {
				inComment = false
			}
			continue
		}

		if strings.HasPrefix(line, "--") {
			continue
		}
		if commentIndex := strings.Index(line, "--"); commentIndex != -1 {
			line = strings.TrimSpace(line[:commentIndex])
		}

		cleanedLines = append(cleanedLines, line)
	}

	var result []string
	for _, stmt := range strings.Split(strings.Join(cleanedLines, " "), ";") {
		if stmt = strings.TrimSpace(stmt); stmt != "" {
			result = append(result, stmt)
		}
	}
	return result
}

func isAlreadyExistsError(err error) bool {
	return strings.Contains(err.Error(), "already exists")
}
