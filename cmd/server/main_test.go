package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"learnanalytics/internal/config"
	"learnanalytics/internal/di"
	"learnanalytics/internal/observability"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestContainer(t *testing.T) *di.ServiceContainer {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	mock.ExpectPing()

	cfg := &config.Config{
		Server:    config.ServerConfig{SessionSecret: "test-secret"},
		Analytics: config.DefaultAnalyticsConfig(),
		TextGen:   config.TextGenConfig{Provider: "none"},
	}
	logger := observability.NewLogger(&config.OpenTelemetryConfig{EnableLogging: false})

	container := di.NewServiceContainer(cfg, logger)
	require.NoError(t, container.InitializeWithDB(context.Background(), db))
	return container
}

func TestNewApplication_ServesHealth(t *testing.T) {
	container := newTestContainer(t)

	app, err := NewApplication(container)
	require.NoError(t, err)
	require.NotNil(t, app.router)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	app.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestNewApplication_RequiresSession(t *testing.T) {
	app, err := NewApplication(newTestContainer(t))
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/recommendations", nil)
	app.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestApplication_ShutdownWithoutRun(t *testing.T) {
	container := newTestContainer(t)
	app, err := NewApplication(container)
	require.NoError(t, err)

	require.NoError(t, app.Shutdown(context.Background()))
	assert.False(t, container.IsReady())
}

func TestNewApplication_UninitializedContainer(t *testing.T) {
	container := di.NewServiceContainer(&config.Config{}, observability.NewLogger(&config.OpenTelemetryConfig{}))

	_, err := NewApplication(container)
	assert.Error(t, err)
}
