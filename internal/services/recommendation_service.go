package services

import (
	"context"
	"sort"
	"time"

	"learnanalytics/internal/config"
	"learnanalytics/internal/models"
	"learnanalytics/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

// RecommendationServiceInterface defines the lesson recommendation operation
type RecommendationServiceInterface interface {
	// GenerateRecommendations returns a deduplicated, priority-ordered list of lessons.
	// Any store failure yields an empty list.
	GenerateRecommendations(ctx context.Context, learnerID int, courseID *int) []models.Recommendation
}

// RecommendationService merges weak-topic, unstarted and in-progress lessons into one list
type RecommendationService struct {
	performance PerformanceServiceInterface
	completion  CompletionServiceInterface
	lessons     LessonStore
	cfg         config.AnalyticsConfig
	logger      *observability.Logger
	metrics     *observability.EngineMetrics
	now         func() time.Time
}

// NewRecommendationService creates a new recommendation service
func NewRecommendationService(
	performance PerformanceServiceInterface,
	completion CompletionServiceInterface,
	lessons LessonStore,
	cfg config.AnalyticsConfig,
	logger *observability.Logger,
	metrics *observability.EngineMetrics,
) *RecommendationService {
	return &RecommendationService{
		performance: performance,
		completion:  completion,
		lessons:     lessons,
		cfg:         cfg,
		logger:      logger,
		metrics:     metrics,
		now:         time.Now,
	}
}

// WithClock replaces the evaluation clock used for the in-progress window
func (s *RecommendationService) WithClock(now func() time.Time) *RecommendationService {
	s.now = now
	return s
}

// GenerateRecommendations returns a deduplicated, priority-ordered list of lessons
func (s *RecommendationService) GenerateRecommendations(ctx context.Context, learnerID int, courseID *int) []models.Recommendation {
	ctx, span := observability.TraceRecommendationFunction(ctx, "generate_recommendations",
		observability.AttributeUserID(learnerID),
		observability.AttributeCourseID(courseID),
	)
	defer span.End()

	candidates, err := s.collectCandidates(ctx, learnerID, courseID)
	if err != nil {
		s.logger.Error(ctx, "Failed to generate recommendations", err, map[string]interface{}{
			"user_id": learnerID,
		})
		span.SetAttributes(attribute.Bool("recommendations.degraded", true))
		return []models.Recommendation{}
	}

	result := rankRecommendations(candidates, s.cfg.MaxRecommendations)

	span.SetAttributes(
		attribute.Int("recommendations.candidates", len(candidates)),
		attribute.Int("recommendations.count", len(result)),
	)
	s.metrics.RecordRecommendations(ctx, len(result))
	s.logger.Info(ctx, "Generated recommendations", map[string]interface{}{
		"user_id": learnerID,
		"count":   len(result),
	})
	return result
}

// collectCandidates emits weak-area, unstarted and in-progress candidates in that order
func (s *RecommendationService) collectCandidates(ctx context.Context, learnerID int, courseID *int) ([]models.Recommendation, error) {
	progress, err := s.lessons.LearnerProgress(ctx, learnerID)
	if err != nil {
		return nil, err
	}
	progressByLesson := make(map[int]models.LessonProgress, len(progress))
	for _, p := range progress {
		progressByLesson[p.LessonID] = p
	}

	var candidates []models.Recommendation

	// Weak topics: every unfinished lesson of the topic's course
	courseLessons := make(map[int][]models.Lesson)
	for _, topic := range s.performance.WeakTopics(ctx, learnerID, courseID) {
		lessons, ok := courseLessons[topic.CourseID]
		if !ok {
			lessons, err = s.lessons.LessonsByCourse(ctx, topic.CourseID)
			if err != nil {
				return nil, err
			}
			courseLessons[topic.CourseID] = lessons
		}
		for _, lesson := range lessons {
			if p, ok := progressByLesson[lesson.LessonID]; ok && p.IsCompleted {
				continue
			}
			candidates = append(candidates, models.NewWeakAreaRecommendation(lesson, topic))
		}
	}

	// Incomplete lessons the learner never opened
	for _, lesson := range s.completion.IncompleteLessons(ctx, learnerID, courseID) {
		if _, started := progressByLesson[lesson.LessonID]; started {
			continue
		}
		candidates = append(candidates, models.NewIncompleteLessonRecommendation(lesson))
	}

	// Recently opened but unfinished
	since := s.now().AddDate(0, 0, -s.cfg.InProgressWindowDays)
	recent, err := s.lessons.RecentInProgress(ctx, learnerID, since, s.cfg.InProgressLimit)
	if err != nil {
		return nil, err
	}
	for _, p := range recent {
		candidates = append(candidates, models.NewInProgressRecommendation(p))
	}

	return candidates, nil
}

// rankRecommendations stable-sorts by priority, keeps the first entry per lesson and truncates.
// A dropped duplicate's reason is not merged into the kept entry.
func rankRecommendations(candidates []models.Recommendation, limit int) []models.Recommendation {
	sorted := make([]models.Recommendation, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority < sorted[j].Priority
	})

	seen := make(map[int]bool, len(sorted))
	result := make([]models.Recommendation, 0, limit)
	for _, rec := range sorted {
		if seen[rec.LessonID] {
			continue
		}
		seen[rec.LessonID] = true
		result = append(result, rec)
		if len(result) == limit {
			break
		}
	}
	return result
}
