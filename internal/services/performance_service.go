package services

import (
	"context"
	"sort"

	"learnanalytics/internal/config"
	"learnanalytics/internal/models"
	"learnanalytics/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

// PerformanceServiceInterface defines the per-topic performance operations
type PerformanceServiceInterface interface {
	// WeakTopics returns topics averaging below the weak threshold, worst first.
	// Store failures yield an empty list.
	WeakTopics(ctx context.Context, learnerID int, courseID *int) []models.TopicPerformance
	// TopicAverages returns every attempted topic with its mean score, ordered by topic id
	TopicAverages(ctx context.Context, learnerID int, courseID *int) ([]models.TopicPerformance, error)
}

// PerformanceService aggregates quiz results by topic
type PerformanceService struct {
	results QuizResultStore
	cfg     config.AnalyticsConfig
	logger  *observability.Logger
}

// NewPerformanceService creates a new performance service
func NewPerformanceService(results QuizResultStore, cfg config.AnalyticsConfig, logger *observability.Logger) *PerformanceService {
	return &PerformanceService{
		results: results,
		cfg:     cfg,
		logger:  logger,
	}
}

// TopicAverages returns every attempted topic with its mean score, ordered by topic id
func (s *PerformanceService) TopicAverages(ctx context.Context, learnerID int, courseID *int) (result []models.TopicPerformance, err error) {
	ctx, span := observability.TraceAnalyticsFunction(ctx, "topic_averages",
		observability.AttributeUserID(learnerID),
		observability.AttributeCourseID(courseID),
	)
	defer observability.FinishSpan(span, &err)

	scores, err := s.results.TopicScores(ctx, learnerID, courseID)
	if err != nil {
		return nil, err
	}
	return foldTopicScores(scores), nil
}

// WeakTopics returns topics averaging below the weak threshold, worst first
func (s *PerformanceService) WeakTopics(ctx context.Context, learnerID int, courseID *int) []models.TopicPerformance {
	ctx, span := observability.TraceAnalyticsFunction(ctx, "weak_topics",
		observability.AttributeUserID(learnerID),
		observability.AttributeCourseID(courseID),
	)
	defer span.End()

	averages, err := s.TopicAverages(ctx, learnerID, courseID)
	if err != nil {
		s.logger.Error(ctx, "Failed to compute weak topics", err, map[string]interface{}{
			"user_id": learnerID,
		})
		return []models.TopicPerformance{}
	}

	weak := []models.TopicPerformance{}
	for _, tp := range averages {
		if tp.AvgScore < s.cfg.WeakTopicThreshold {
			weak = append(weak, tp)
		}
	}

	// averages arrive ordered by topic id, so a stable sort keeps ties in that order
	sort.SliceStable(weak, func(i, j int) bool {
		return weak[i].AvgScore < weak[j].AvgScore
	})

	span.SetAttributes(attribute.Int("weak_topics.count", len(weak)))
	return weak
}

type topicAccumulator struct {
	topic models.TopicPerformance
	sum   float64
}

// foldTopicScores groups raw scores by topic into mean and count, ordered by topic id
func foldTopicScores(scores []models.TopicScore) []models.TopicPerformance {
	acc := make(map[int]*topicAccumulator)
	for _, s := range scores {
		a, ok := acc[s.TopicID]
		if !ok {
			a = &topicAccumulator{topic: models.TopicPerformance{
				TopicID:   s.TopicID,
				TopicName: s.TopicName,
				CourseID:  s.CourseID,
			}}
			acc[s.TopicID] = a
		}
		a.sum += s.Score
		a.topic.AttemptCount++
	}

	result := make([]models.TopicPerformance, 0, len(acc))
	for _, a := range acc {
		a.topic.AvgScore = a.sum / float64(a.topic.AttemptCount)
		result = append(result, a.topic)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].TopicID < result[j].TopicID
	})
	return result
}
