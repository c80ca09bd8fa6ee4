//go:build integration

package database

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitDBWithConfig_Integration(t *testing.T) {
	if os.Getenv("TEST_DATABASE_URL") == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	dm := newTestManager()
	db, err := dm.InitDBWithConfig(context.Background(), DefaultDatabaseConfig())
	require.NoError(t, err)
	defer db.Close()

	// Re-running is a no-op
	require.NoError(t, dm.RunMigrations(context.Background(), db, ""))

	status, err := dm.Status(context.Background(), db, "")
	require.NoError(t, err)
	assert.True(t, status.Applied)
	assert.False(t, status.Dirty)
	assert.GreaterOrEqual(t, status.Version, uint(1))

	var tables int
	err = db.QueryRow(`SELECT COUNT(*) FROM information_schema.tables
		WHERE table_name IN ('quiz_results', 'lesson_progress', 'mistake_analyses', 'learning_analytics')`).Scan(&tables)
	require.NoError(t, err)
	assert.Equal(t, 4, tables)
}
