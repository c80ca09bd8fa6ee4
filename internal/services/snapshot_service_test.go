package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"learnanalytics/internal/config"
	"learnanalytics/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyticsSnapshotService_Snapshot(t *testing.T) {
	repo := newFakeRepository()
	seedTwoTopics(repo, 1)
	repo.addQuiz(30, 1, 300, "Middling")
	repo.addResult(1, 30, 70)

	at := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	svc := NewAnalyticsSnapshotService(newTestAnalyticsService(repo), repo, newTestLogger()).
		WithClock(func() time.Time { return at })

	n, err := svc.Snapshot(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	records := repo.snapshots[1]
	require.Len(t, records, 2)

	assert.Equal(t, 200, records[0].TopicID)
	require.NotNil(t, records[0].StrengthScore)
	assert.InDelta(t, 92.5, *records[0].StrengthScore, 0.001)
	assert.Nil(t, records[0].WeaknessScore)
	assert.Equal(t, at, records[0].AnalyzedAt)

	assert.Equal(t, 100, records[1].TopicID)
	require.NotNil(t, records[1].WeaknessScore)
	assert.InDelta(t, 50.0, *records[1].WeaknessScore, 0.001)
	assert.Nil(t, records[1].StrengthScore)
	assert.NotEqual(t, records[0].Recommendation, records[1].Recommendation)
}

func TestAnalyticsSnapshotService_ReplacesPreviousRows(t *testing.T) {
	repo := newFakeRepository()
	repo.snapshots[1] = []models.LearningAnalyticsRecord{{UserID: 1, TopicID: 42}}

	n, err := NewAnalyticsSnapshotService(newTestAnalyticsService(repo), repo, newTestLogger()).Snapshot(context.Background(), 1)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, repo.snapshots[1])
}

func TestAnalyticsSnapshotService_StoreFailure(t *testing.T) {
	repo := newFakeRepository()
	repo.err = errors.New("down")

	_, err := NewAnalyticsSnapshotService(newTestAnalyticsService(repo), repo, newTestLogger()).Snapshot(context.Background(), 1)
	assert.Error(t, err)
}

// scoresDown fails score reads while the rest of the fake keeps working
type scoresDown struct {
	*fakeRepository
}

func (scoresDown) TopicScores(context.Context, int, *int) ([]models.TopicScore, error) {
	return nil, errors.New("connection reset")
}

func TestAnalyticsSnapshotService_ReadFailureKeepsStoredRows(t *testing.T) {
	repo := newFakeRepository()
	score := 85.0
	repo.snapshots[1] = []models.LearningAnalyticsRecord{{UserID: 1, TopicID: 42, StrengthScore: &score}}

	cfg := config.DefaultAnalyticsConfig()
	logger := newTestLogger()
	reads := scoresDown{repo}
	analytics := NewAnalyticsService(reads, NewPerformanceService(reads, cfg, logger), NewCompletionService(repo, logger), cfg, logger)

	n, err := NewAnalyticsSnapshotService(analytics, repo, logger).Snapshot(context.Background(), 1)
	require.Error(t, err)
	assert.Zero(t, n)
	require.Len(t, repo.snapshots[1], 1)
	assert.Equal(t, 42, repo.snapshots[1][0].TopicID)
}
