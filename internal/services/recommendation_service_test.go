package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"learnanalytics/internal/config"
	"learnanalytics/internal/models"
	"learnanalytics/internal/observability"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRecommendationService(repo *fakeRepository) *RecommendationService {
	cfg := config.DefaultAnalyticsConfig()
	logger := newTestLogger()
	return NewRecommendationService(
		NewPerformanceService(repo, cfg, logger),
		NewCompletionService(repo, logger),
		repo,
		cfg,
		logger,
		observability.NewEngineMetrics(),
	).WithClock(func() time.Time { return repo.now })
}

func lessonIDs(recs []models.Recommendation) []int {
	ids := make([]int, 0, len(recs))
	for _, r := range recs {
		ids = append(ids, r.LessonID)
	}
	return ids
}

func TestRecommendationService_WeakAreaFirstAndDeduplicated(t *testing.T) {
	repo := newFakeRepository()
	seedTwoTopics(repo, 1)
	repo.addLesson(1, 1, 1, "Intro")
	repo.addLesson(2, 1, 2, "Practice")
	repo.addLesson(3, 1, 3, "Review")
	repo.addProgress(1, 1, true, repo.now.Add(-48*time.Hour), 20)
	repo.addProgress(1, 3, false, repo.now.Add(-24*time.Hour), 5)

	recs := newTestRecommendationService(repo).GenerateRecommendations(context.Background(), 1, nil)

	require.Len(t, recs, 2)
	assert.Equal(t, []int{2, 3}, lessonIDs(recs))
	for _, r := range recs {
		assert.Equal(t, models.KindWeakAreaReview, r.Kind)
		assert.Equal(t, models.PriorityHigh, r.Priority)
		require.NotNil(t, r.WeakArea)
		assert.Equal(t, "Topic A", r.WeakArea.TopicName)
		assert.Nil(t, r.InProgress)
	}
	assert.Equal(t, "Your average score for 'Topic A' is 50.0%. Review this lesson to strengthen it.", recs[0].Reason)
}

func TestRecommendationService_IncompleteAndInProgress(t *testing.T) {
	repo := newFakeRepository()
	repo.addLesson(1, 1, 1, "Intro")
	repo.addLesson(2, 1, 2, "Practice")
	repo.addLesson(3, 2, 1, "Elsewhere")
	repo.addProgress(1, 1, true, repo.now.Add(-time.Hour), 30)
	repo.addProgress(1, 3, false, repo.now.Add(-2*time.Hour), 12)

	course := 1
	recs := newTestRecommendationService(repo).GenerateRecommendations(context.Background(), 1, &course)

	require.Len(t, recs, 2)
	assert.Equal(t, models.KindIncompleteLesson, recs[0].Kind)
	assert.Equal(t, 2, recs[0].LessonID)
	assert.Equal(t, models.PriorityMedium, recs[0].Priority)

	// in-progress lessons are not limited to the requested course
	assert.Equal(t, models.KindInProgress, recs[1].Kind)
	assert.Equal(t, 3, recs[1].LessonID)
	require.NotNil(t, recs[1].InProgress)
	assert.Equal(t, 12, recs[1].InProgress.TimeSpentMinutes)
}

func TestRecommendationService_InProgressWindow(t *testing.T) {
	repo := newFakeRepository()
	repo.addLesson(1, 1, 1, "Recent")
	repo.addLesson(2, 1, 2, "Stale")
	repo.addProgress(1, 1, false, repo.now.Add(-6*24*time.Hour), 3)
	repo.addProgress(1, 2, false, repo.now.Add(-8*24*time.Hour), 3)

	recs := newTestRecommendationService(repo).GenerateRecommendations(context.Background(), 1, nil)

	require.Len(t, recs, 1)
	assert.Equal(t, 1, recs[0].LessonID)
	assert.Equal(t, models.KindInProgress, recs[0].Kind)
}

func TestRecommendationService_InProgressLimit(t *testing.T) {
	repo := newFakeRepository()
	for i := 1; i <= 5; i++ {
		repo.addLesson(i, 1, i, fmt.Sprintf("Lesson %d", i))
		repo.addProgress(1, i, false, repo.now.Add(-time.Duration(i)*time.Hour), i)
	}

	recs := newTestRecommendationService(repo).GenerateRecommendations(context.Background(), 1, nil)

	assert.Equal(t, []int{1, 2, 3}, lessonIDs(recs))
}

func TestRecommendationService_BoundedAndUnique(t *testing.T) {
	repo := newFakeRepository()
	repo.addQuiz(1, 1, 1, "Weak one")
	repo.addQuiz(2, 1, 2, "Weak two")
	repo.addResult(1, 1, 10)
	repo.addResult(1, 2, 20)
	for i := 1; i <= 25; i++ {
		repo.addLesson(i, 1, i, fmt.Sprintf("Lesson %d", i))
	}
	repo.addProgress(1, 4, false, repo.now.Add(-time.Hour), 1)

	recs := newTestRecommendationService(repo).GenerateRecommendations(context.Background(), 1, nil)

	require.Len(t, recs, 10)
	seen := map[int]bool{}
	for _, r := range recs {
		assert.False(t, seen[r.LessonID], "duplicate lesson %d", r.LessonID)
		seen[r.LessonID] = true
		assert.Equal(t, models.KindWeakAreaReview, r.Kind)
		// the weakest topic is emitted first
		assert.Equal(t, 1, r.WeakArea.TopicID)
	}
}

func TestRecommendationService_NoData(t *testing.T) {
	recs := newTestRecommendationService(newFakeRepository()).GenerateRecommendations(context.Background(), 1, nil)
	assert.NotNil(t, recs)
	assert.Empty(t, recs)
}

func TestRecommendationService_StoreFailure(t *testing.T) {
	repo := newFakeRepository()
	seedTwoTopics(repo, 1)
	repo.addLesson(1, 1, 1, "Intro")
	repo.err = errors.New("store down")

	recs := newTestRecommendationService(repo).GenerateRecommendations(context.Background(), 1, nil)
	assert.NotNil(t, recs)
	assert.Empty(t, recs)
}

func TestRankRecommendations(t *testing.T) {
	lesson := func(id int) models.Lesson { return models.Lesson{LessonID: id, CourseID: 1, Title: fmt.Sprintf("L%d", id)} }
	topic := models.TopicPerformance{TopicID: 1, TopicName: "T", CourseID: 1, AvgScore: 40}

	candidates := []models.Recommendation{
		models.NewIncompleteLessonRecommendation(lesson(1)),
		models.NewWeakAreaRecommendation(lesson(2), topic),
		models.NewInProgressRecommendation(models.InProgressLesson{Lesson: lesson(1), TimeSpentMinutes: 4}),
		models.NewWeakAreaRecommendation(lesson(1), topic),
		models.NewIncompleteLessonRecommendation(lesson(3)),
	}

	ranked := rankRecommendations(candidates, 10)

	require.Len(t, ranked, 3)
	assert.Equal(t, []int{2, 1, 3}, lessonIDs(ranked))
	// the weak-area entry for lesson 1 wins and keeps only its own reason
	assert.Equal(t, models.KindWeakAreaReview, ranked[1].Kind)
	assert.Nil(t, ranked[1].InProgress)

	assert.Len(t, rankRecommendations(candidates, 2), 2)
	assert.Empty(t, rankRecommendations(nil, 10))
}
