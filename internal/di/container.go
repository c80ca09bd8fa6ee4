// Package di provides dependency injection container for managing service lifecycle and dependencies.
package di

import (
	"context"
	"database/sql"
	"sort"
	"sync"

	"learnanalytics/internal/config"
	"learnanalytics/internal/database"
	"learnanalytics/internal/middleware"
	"learnanalytics/internal/observability"
	"learnanalytics/internal/services"
	serviceinterfaces "learnanalytics/internal/services/interfaces"
	"learnanalytics/internal/textgen"
	contextutils "learnanalytics/internal/utils"
)

// Service names used as registry keys
const (
	ServiceRepository     = "repository"
	ServicePerformance    = "performance"
	ServiceCompletion     = "completion"
	ServiceRecommendation = "recommendation"
	ServiceAnalytics      = "analytics"
	ServiceMistake        = "mistake"
	ServiceSnapshot       = "snapshot"
)

// ServiceContainerInterface defines the interface for service containers
type ServiceContainerInterface interface {
	GetService(name string) (interface{}, error)
	GetRepository() (*services.AnalyticsRepositoryImpl, error)
	GetPerformanceService() (services.PerformanceServiceInterface, error)
	GetCompletionService() (services.CompletionServiceInterface, error)
	GetRecommendationService() (services.RecommendationServiceInterface, error)
	GetAnalyticsService() (services.AnalyticsServiceInterface, error)
	GetMistakeService() (services.MistakeServiceInterface, error)
	GetSnapshotService() (*services.AnalyticsSnapshotService, error)
	GetSchemaLoader() *middleware.SchemaLoader
	GetDatabase() *sql.DB
	GetConfig() *config.Config
	GetLogger() *observability.Logger
	Initialize(ctx context.Context) error
	IsReady() bool
	Shutdown(ctx context.Context) error
}

// ServiceContainer manages all service dependencies and lifecycle
type ServiceContainer struct {
	cfg           *config.Config
	logger        *observability.Logger
	dbManager     *database.Manager
	db            *sql.DB
	schemas       *middleware.SchemaLoader
	services      map[string]interface{}
	mu            sync.RWMutex
	shutdownFuncs []func(context.Context) error
}

// NewServiceContainer creates a new dependency injection container
func NewServiceContainer(cfg *config.Config, logger *observability.Logger) *ServiceContainer {
	return &ServiceContainer{
		cfg:      cfg,
		logger:   logger,
		services: make(map[string]interface{}),
	}
}

// Initialize opens the database, runs migrations and sets up all services
func (sc *ServiceContainer) Initialize(ctx context.Context) error {
	sc.dbManager = database.NewManager(sc.logger)
	db, err := sc.dbManager.InitDBWithConfig(ctx, sc.cfg.Database)
	if err != nil {
		return contextutils.WrapErrorf(err, "failed to initialize database")
	}

	sc.mu.Lock()
	sc.shutdownFuncs = append(sc.shutdownFuncs, func(_ context.Context) error {
		return db.Close()
	})
	sc.mu.Unlock()

	return sc.InitializeWithDB(ctx, db)
}

// InitializeWithDB wires every service over an already opened database
func (sc *ServiceContainer) InitializeWithDB(ctx context.Context, db *sql.DB) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	sc.db = db

	schemas, err := middleware.LoadEmbeddedSchemas()
	if err != nil {
		return contextutils.WrapErrorf(err, "failed to load request schemas")
	}
	sc.schemas = schemas

	if err := sc.initializeServices(); err != nil {
		return err
	}

	// Startup lifecycle services
	if err := sc.startupServices(ctx); err != nil {
		// Cleanup on failure
		_ = sc.cleanup(ctx)
		return contextutils.WrapErrorf(err, "failed to startup services")
	}

	return nil
}

// GetService retrieves a service by name with type assertion
func (sc *ServiceContainer) GetService(name string) (interface{}, error) {
	sc.mu.RLock()
	defer sc.mu.RUnlock()

	service, exists := sc.services[name]
	if !exists {
		return nil, contextutils.WrapErrorf(contextutils.ErrServiceUnavailable, "service %s not found", name)
	}
	return service, nil
}

// GetServiceAs performs type-safe service retrieval
func GetServiceAs[T any](sc *ServiceContainer, name string) (T, error) {
	var zero T
	service, err := sc.GetService(name)
	if err != nil {
		return zero, err
	}

	typed, ok := service.(T)
	if !ok {
		return zero, contextutils.ErrorWithContextf("service %s is not of expected type %T", name, zero)
	}
	return typed, nil
}

// GetRepository returns the Postgres repository. It also serves as the user lookup for role checks.
func (sc *ServiceContainer) GetRepository() (*services.AnalyticsRepositoryImpl, error) {
	return GetServiceAs[*services.AnalyticsRepositoryImpl](sc, ServiceRepository)
}

// GetPerformanceService returns the performance service
func (sc *ServiceContainer) GetPerformanceService() (services.PerformanceServiceInterface, error) {
	return GetServiceAs[services.PerformanceServiceInterface](sc, ServicePerformance)
}

// GetCompletionService returns the completion service
func (sc *ServiceContainer) GetCompletionService() (services.CompletionServiceInterface, error) {
	return GetServiceAs[services.CompletionServiceInterface](sc, ServiceCompletion)
}

// GetRecommendationService returns the recommendation service
func (sc *ServiceContainer) GetRecommendationService() (services.RecommendationServiceInterface, error) {
	return GetServiceAs[services.RecommendationServiceInterface](sc, ServiceRecommendation)
}

// GetAnalyticsService returns the analytics service
func (sc *ServiceContainer) GetAnalyticsService() (services.AnalyticsServiceInterface, error) {
	return GetServiceAs[services.AnalyticsServiceInterface](sc, ServiceAnalytics)
}

// GetMistakeService returns the mistake service
func (sc *ServiceContainer) GetMistakeService() (services.MistakeServiceInterface, error) {
	return GetServiceAs[services.MistakeServiceInterface](sc, ServiceMistake)
}

// GetSnapshotService returns the analytics snapshot writer
func (sc *ServiceContainer) GetSnapshotService() (*services.AnalyticsSnapshotService, error) {
	return GetServiceAs[*services.AnalyticsSnapshotService](sc, ServiceSnapshot)
}

// GetSchemaLoader returns the compiled request schemas
func (sc *ServiceContainer) GetSchemaLoader() *middleware.SchemaLoader {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.schemas
}

// GetDatabase returns the database instance
func (sc *ServiceContainer) GetDatabase() *sql.DB {
	return sc.db
}

// GetConfig returns the configuration
func (sc *ServiceContainer) GetConfig() *config.Config {
	return sc.cfg
}

// GetLogger returns the logger
func (sc *ServiceContainer) GetLogger() *observability.Logger {
	return sc.logger
}

// IsReady reports whether every lifecycle service is ready
func (sc *ServiceContainer) IsReady() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()

	if len(sc.services) == 0 {
		return false
	}
	for _, service := range sc.services {
		if lifecycleService, ok := service.(serviceinterfaces.Lifecycle); ok && !lifecycleService.IsReady() {
			return false
		}
	}
	return true
}

// Shutdown gracefully shuts down all services
func (sc *ServiceContainer) Shutdown(ctx context.Context) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	return sc.cleanup(ctx)
}

// lifecycleNames lists lifecycle services in a stable order
func (sc *ServiceContainer) lifecycleNames() []string {
	names := make([]string, 0, len(sc.services))
	for name, service := range sc.services {
		if _, ok := service.(serviceinterfaces.Lifecycle); ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// startupServices starts all services that implement the Lifecycle interface
func (sc *ServiceContainer) startupServices(ctx context.Context) error {
	for _, name := range sc.lifecycleNames() {
		lifecycleService := sc.services[name].(serviceinterfaces.Lifecycle)
		sc.logger.Info(ctx, "Starting service", map[string]interface{}{"service": name})
		if err := lifecycleService.Startup(ctx); err != nil {
			return contextutils.WrapErrorf(err, "failed to startup service %s", name)
		}
		sc.logger.Info(ctx, "Service started successfully", map[string]interface{}{"service": name})
	}
	return nil
}

// cleanup handles shutdown of all services
func (sc *ServiceContainer) cleanup(ctx context.Context) error {
	var errors []error

	names := sc.lifecycleNames()
	for i := len(names) - 1; i >= 0; i-- {
		name := names[i]
		lifecycleService := sc.services[name].(serviceinterfaces.Lifecycle)
		sc.logger.Info(ctx, "Shutting down service", map[string]interface{}{"service": name})
		if err := lifecycleService.Shutdown(ctx); err != nil {
			sc.logger.Error(ctx, "Failed to shutdown service", err, map[string]interface{}{"service": name})
			errors = append(errors, contextutils.WrapErrorf(err, "service %s shutdown failed", name))
		}
	}

	// Shutdown resources in reverse order of acquisition
	for i := len(sc.shutdownFuncs) - 1; i >= 0; i-- {
		if err := sc.shutdownFuncs[i](ctx); err != nil {
			errors = append(errors, err)
		}
	}
	sc.shutdownFuncs = nil

	if len(errors) > 0 {
		return contextutils.ErrorWithContextf("shutdown errors: %v", errors)
	}
	return nil
}

// initializeServices sets up all service dependencies
func (sc *ServiceContainer) initializeServices() error {
	analyticsCfg := sc.cfg.Analytics
	metrics := observability.NewEngineMetrics()

	// The repository is the single store behind every component
	repo := services.NewAnalyticsRepository(sc.db, sc.logger)
	sc.services[ServiceRepository] = repo

	performance := services.NewPerformanceService(repo, analyticsCfg, sc.logger)
	sc.services[ServicePerformance] = performance

	completion := services.NewCompletionService(repo, sc.logger)
	sc.services[ServiceCompletion] = completion

	sc.services[ServiceRecommendation] = services.NewRecommendationService(performance, completion, repo, analyticsCfg, sc.logger, metrics)

	analytics := services.NewAnalyticsService(repo, performance, completion, analyticsCfg, sc.logger)
	sc.services[ServiceAnalytics] = analytics

	// Explanations are optional; a nil generator keeps the templated text
	generator, err := textgen.New(sc.cfg.TextGen, sc.logger)
	if err != nil {
		return contextutils.WrapErrorf(err, "failed to create text generator")
	}
	mistakes, err := services.NewMistakeService(repo, repo, generator, analyticsCfg, sc.logger, metrics)
	if err != nil {
		return contextutils.WrapErrorf(err, "failed to create mistake service")
	}
	sc.services[ServiceMistake] = mistakes

	sc.services[ServiceSnapshot] = services.NewAnalyticsSnapshotService(analytics, repo, sc.logger)

	return nil
}
