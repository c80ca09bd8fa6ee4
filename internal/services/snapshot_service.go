package services

import (
	"context"
	"time"

	"learnanalytics/internal/models"
	"learnanalytics/internal/observability"
	contextutils "learnanalytics/internal/utils"
)

const (
	strengthRecommendation = "Keep practicing to maintain this strength."
	weaknessRecommendation = "Review the lessons for this topic and retake its quizzes."
)

// TopicClassifier buckets a learner's topics and reports store failures
type TopicClassifier interface {
	ClassifyTopics(ctx context.Context, learnerID int) (models.StrengthsWeaknesses, error)
}

// AnalyticsSnapshotService persists the strength/weakness classification of a learner
type AnalyticsSnapshotService struct {
	analytics TopicClassifier
	store     SnapshotStore
	logger    *observability.Logger
	now       func() time.Time
}

// NewAnalyticsSnapshotService creates a new snapshot service
func NewAnalyticsSnapshotService(analytics TopicClassifier, store SnapshotStore, logger *observability.Logger) *AnalyticsSnapshotService {
	return &AnalyticsSnapshotService{
		analytics: analytics,
		store:     store,
		logger:    logger,
		now:       time.Now,
	}
}

// WithClock replaces the clock used for analyzed_at
func (s *AnalyticsSnapshotService) WithClock(now func() time.Time) *AnalyticsSnapshotService {
	s.now = now
	return s
}

// Snapshot replaces the learner's stored classification and returns the number of rows written
func (s *AnalyticsSnapshotService) Snapshot(ctx context.Context, learnerID int) (result int, err error) {
	ctx, span := observability.TraceAnalyticsFunction(ctx, "snapshot",
		observability.AttributeUserID(learnerID),
	)
	defer observability.FinishSpan(span, &err)

	// A failed read must leave the stored rows alone
	sw, err := s.analytics.ClassifyTopics(ctx, learnerID)
	if err != nil {
		return 0, contextutils.WrapErrorf(err, "failed to classify topics for user %d", learnerID)
	}

	records := SnapshotRecords(learnerID, sw, s.now().UTC())
	if err = s.store.ReplaceLearningAnalytics(ctx, learnerID, records); err != nil {
		return 0, contextutils.WrapErrorf(err, "failed to store analytics snapshot for user %d", learnerID)
	}

	s.logger.Info(ctx, "Stored analytics snapshot", map[string]interface{}{
		"user_id": learnerID,
		"records": len(records),
	})
	return len(records), nil
}

// SnapshotRecords converts a classification into storable rows, strengths first
func SnapshotRecords(learnerID int, sw models.StrengthsWeaknesses, at time.Time) []models.LearningAnalyticsRecord {
	records := make([]models.LearningAnalyticsRecord, 0, len(sw.Strengths)+len(sw.Weaknesses))
	for _, tp := range sw.Strengths {
		score := tp.AvgScore
		records = append(records, models.LearningAnalyticsRecord{
			UserID:         learnerID,
			TopicID:        tp.TopicID,
			CourseID:       tp.CourseID,
			StrengthScore:  &score,
			Recommendation: strengthRecommendation,
			AnalyzedAt:     at,
		})
	}
	for _, tp := range sw.Weaknesses {
		score := tp.AvgScore
		records = append(records, models.LearningAnalyticsRecord{
			UserID:         learnerID,
			TopicID:        tp.TopicID,
			CourseID:       tp.CourseID,
			WeaknessScore:  &score,
			Recommendation: weaknessRecommendation,
			AnalyzedAt:     at,
		})
	}
	return records
}
