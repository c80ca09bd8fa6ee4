// Package main provides the entry point for the learning analytics API server.
// It loads configuration, opens the database, wires services and serves the HTTP API.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"learnanalytics/internal/config"
	"learnanalytics/internal/di"
	"learnanalytics/internal/handlers"
	"learnanalytics/internal/observability"
	contextutils "learnanalytics/internal/utils"

	"github.com/gin-gonic/gin"
)

// Application encapsulates the main application logic and can be tested
type Application struct {
	container di.ServiceContainerInterface
	router    *gin.Engine
	server    *http.Server
}

// NewApplication builds the router from an initialized container
func NewApplication(container di.ServiceContainerInterface) (*Application, error) {
	repository, err := container.GetRepository()
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to get repository")
	}

	performanceService, err := container.GetPerformanceService()
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to get performance service")
	}

	completionService, err := container.GetCompletionService()
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to get completion service")
	}

	recommendationService, err := container.GetRecommendationService()
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to get recommendation service")
	}

	analyticsService, err := container.GetAnalyticsService()
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to get analytics service")
	}

	mistakeService, err := container.GetMistakeService()
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to get mistake service")
	}

	router := handlers.NewRouter(
		container.GetConfig(),
		recommendationService,
		performanceService,
		completionService,
		analyticsService,
		mistakeService,
		repository,
		container.GetSchemaLoader(),
		container.GetLogger(),
	)

	return &Application{
		container: container,
		router:    router,
	}, nil
}

// Run serves HTTP until the context is cancelled or the listener fails
func (a *Application) Run(ctx context.Context, port string) error {
	cfg := a.container.GetConfig()
	a.server = &http.Server{
		Addr:              ":" + port,
		Handler:           a.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	if cfg != nil && cfg.Server.RequestTimeout > 0 {
		a.server.WriteTimeout = cfg.Server.RequestTimeout
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-serverErr:
		return contextutils.WrapError(err, "server failed")
	}
}

// Shutdown stops accepting requests, then shuts down every service
func (a *Application) Shutdown(ctx context.Context) error {
	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil {
			return contextutils.WrapError(err, "http server shutdown failed")
		}
	}
	return a.container.Shutdown(ctx)
}

type shutdowner interface {
	Shutdown(ctx context.Context) error
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	cfg, err := config.NewConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	tp, mp, logger, err := observability.SetupObservability(&cfg.OpenTelemetry, handlers.ServiceName, cfg.Server.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize observability: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()

		if sdk, ok := tp.(shutdowner); ok {
			if err := sdk.Shutdown(shutdownCtx); err != nil {
				logger.Warn(ctx, "Error shutting down tracer provider", map[string]interface{}{"error": err.Error(), "provider": "tracer"})
			}
		}
		if mp != nil {
			if err := mp.Shutdown(shutdownCtx); err != nil {
				logger.Warn(ctx, "Error shutting down meter provider", map[string]interface{}{"error": err.Error(), "provider": "meter"})
			}
		}
		_ = logger.Sync()
	}()

	logger.Info(ctx, "Starting learning analytics service", map[string]interface{}{
		"port":     cfg.Server.Port,
		"logLevel": cfg.Server.LogLevel,
		"textgen":  cfg.TextGen.Provider,
	})

	container := di.NewServiceContainer(cfg, logger)
	if err := container.Initialize(ctx); err != nil {
		logger.Error(ctx, "Failed to initialize services", err, nil)
		os.Exit(1)
	}

	app, err := NewApplication(container)
	if err != nil {
		logger.Error(ctx, "Failed to create application", err, nil)
		os.Exit(1)
	}

	appErr := make(chan error, 1)
	go func() {
		if err := app.Run(ctx, cfg.Server.Port); err != nil {
			appErr <- err
		}
	}()

	select {
	case <-shutdownCh:
		logger.Info(ctx, "Received shutdown signal, shutting down gracefully", nil)
	case err := <-appErr:
		logger.Error(ctx, "Application failed", err, nil)
		os.Exit(1)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()

	if err := app.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "Error during application shutdown", err, nil)
		os.Exit(1)
	}

	logger.Info(ctx, "Shutdown completed successfully", nil)
}
