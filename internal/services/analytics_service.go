package services

import (
	"context"
	"sort"

	"learnanalytics/internal/config"
	"learnanalytics/internal/models"
	"learnanalytics/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

// AnalyticsServiceInterface defines the learning-pattern and classification operations
type AnalyticsServiceInterface interface {
	AnalyzeLearningPatterns(ctx context.Context, learnerID int, courseID *int) models.LearningPatterns
	StrengthsAndWeaknesses(ctx context.Context, learnerID int) models.StrengthsWeaknesses
	// Overview bundles patterns, classification, weak areas and course progress
	Overview(ctx context.Context, learnerID int, courseID *int) models.AnalyticsOverview
}

// AnalyticsService computes score statistics, trends and topic classification
type AnalyticsService struct {
	results     QuizResultStore
	performance PerformanceServiceInterface
	completion  CompletionServiceInterface
	cfg         config.AnalyticsConfig
	logger      *observability.Logger
}

// NewAnalyticsService creates a new analytics service
func NewAnalyticsService(
	results QuizResultStore,
	performance PerformanceServiceInterface,
	completion CompletionServiceInterface,
	cfg config.AnalyticsConfig,
	logger *observability.Logger,
) *AnalyticsService {
	return &AnalyticsService{
		results:     results,
		performance: performance,
		completion:  completion,
		cfg:         cfg,
		logger:      logger,
	}
}

// AnalyzeLearningPatterns summarizes the learner's quiz results in submission order.
// No results, or a store failure, yields the insufficient_data summary.
func (s *AnalyticsService) AnalyzeLearningPatterns(ctx context.Context, learnerID int, courseID *int) models.LearningPatterns {
	ctx, span := observability.TraceAnalyticsFunction(ctx, "analyze_learning_patterns",
		observability.AttributeUserID(learnerID),
		observability.AttributeCourseID(courseID),
	)
	defer span.End()

	results, err := s.results.QuizResults(ctx, learnerID, courseID)
	if err != nil {
		s.logger.Error(ctx, "Failed to analyze learning patterns", err, map[string]interface{}{
			"user_id": learnerID,
		})
		return models.EmptyLearningPatterns()
	}
	if len(results) == 0 {
		return models.EmptyLearningPatterns()
	}

	patterns := models.LearningPatterns{
		TotalQuizzes: len(results),
		Scores:       make([]float64, 0, len(results)),
		BestScore:    results[0].Score,
		WorstScore:   results[0].Score,
	}

	var sum float64
	for _, r := range results {
		patterns.Scores = append(patterns.Scores, r.Score)
		sum += r.Score
		if r.Score > patterns.BestScore {
			patterns.BestScore = r.Score
		}
		if r.Score < patterns.WorstScore {
			patterns.WorstScore = r.Score
		}
		if r.TimeTakenMinutes.Valid {
			patterns.TotalTimeMinutes += int(r.TimeTakenMinutes.Int32)
		}
	}
	patterns.AverageScore = sum / float64(len(results))
	patterns.ImprovementTrend = ClassifyTrend(patterns.Scores, s.cfg.TrendMinResults, s.cfg.TrendWindow, s.cfg.TrendDelta)

	span.SetAttributes(
		attribute.Int("quizzes.count", patterns.TotalQuizzes),
		attribute.String("trend", patterns.ImprovementTrend),
	)
	return patterns
}

// ClassifyTrend compares the mean of the first window scores against the last window.
// Fewer than minResults scores is always stable.
func ClassifyTrend(scores []float64, minResults, window int, delta float64) string {
	if len(scores) < minResults || window <= 0 || len(scores) < window {
		return models.TrendStable
	}

	firstAvg := mean(scores[:window])
	lastAvg := mean(scores[len(scores)-window:])

	switch {
	case lastAvg > firstAvg+delta:
		return models.TrendImproving
	case lastAvg < firstAvg-delta:
		return models.TrendDeclining
	default:
		return models.TrendStable
	}
}

func mean(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// StrengthsAndWeaknesses buckets every attempted topic by its average score.
// Store failures yield empty buckets.
func (s *AnalyticsService) StrengthsAndWeaknesses(ctx context.Context, learnerID int) models.StrengthsWeaknesses {
	ctx, span := observability.TraceAnalyticsFunction(ctx, "strengths_and_weaknesses",
		observability.AttributeUserID(learnerID),
	)
	defer span.End()

	result, err := s.ClassifyTopics(ctx, learnerID)
	if err != nil {
		s.logger.Error(ctx, "Failed to classify strengths and weaknesses", err, map[string]interface{}{
			"user_id": learnerID,
		})
		return models.StrengthsWeaknesses{Strengths: []models.TopicPerformance{}, Weaknesses: []models.TopicPerformance{}}
	}

	span.SetAttributes(
		attribute.Int("strengths.count", len(result.Strengths)),
		attribute.Int("weaknesses.count", len(result.Weaknesses)),
	)
	return result
}

// ClassifyTopics is StrengthsAndWeaknesses without the degrade: store failures are returned
func (s *AnalyticsService) ClassifyTopics(ctx context.Context, learnerID int) (models.StrengthsWeaknesses, error) {
	averages, err := s.performance.TopicAverages(ctx, learnerID, nil)
	if err != nil {
		return models.StrengthsWeaknesses{}, err
	}
	return classifyTopics(averages, s.cfg.StrengthThreshold, s.cfg.WeaknessThreshold), nil
}

// classifyTopics puts avg >= strong into strengths (descending) and avg < weak into weaknesses (ascending)
func classifyTopics(averages []models.TopicPerformance, strong, weak float64) models.StrengthsWeaknesses {
	result := models.StrengthsWeaknesses{
		Strengths:  []models.TopicPerformance{},
		Weaknesses: []models.TopicPerformance{},
	}
	for _, tp := range averages {
		switch {
		case tp.AvgScore >= strong:
			result.Strengths = append(result.Strengths, tp)
		case tp.AvgScore < weak:
			result.Weaknesses = append(result.Weaknesses, tp)
		}
	}

	sort.SliceStable(result.Strengths, func(i, j int) bool {
		return result.Strengths[i].AvgScore > result.Strengths[j].AvgScore
	})
	sort.SliceStable(result.Weaknesses, func(i, j int) bool {
		return result.Weaknesses[i].AvgScore < result.Weaknesses[j].AvgScore
	})
	return result
}

// Overview bundles patterns, classification, weak areas and course progress
func (s *AnalyticsService) Overview(ctx context.Context, learnerID int, courseID *int) models.AnalyticsOverview {
	ctx, span := observability.TraceAnalyticsFunction(ctx, "overview",
		observability.AttributeUserID(learnerID),
		observability.AttributeCourseID(courseID),
	)
	defer span.End()

	sw := s.StrengthsAndWeaknesses(ctx, learnerID)
	return models.AnalyticsOverview{
		LearningPatterns: s.AnalyzeLearningPatterns(ctx, learnerID, courseID),
		Strengths:        sw.Strengths,
		Weaknesses:       sw.Weaknesses,
		WeakAreas:        s.performance.WeakTopics(ctx, learnerID, courseID),
		CourseProgress:   s.completion.CourseProgress(ctx, learnerID),
	}
}
