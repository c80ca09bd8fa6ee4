package services

import (
	"context"

	"learnanalytics/internal/models"
	"learnanalytics/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

// CompletionServiceInterface defines the lesson completion operations
type CompletionServiceInterface interface {
	// IncompleteLessons returns lessons the learner has not completed, in lesson order
	IncompleteLessons(ctx context.Context, learnerID int, courseID *int) []models.Lesson
	// CourseProgress returns completion per enrolled course
	CourseProgress(ctx context.Context, learnerID int) []models.CourseProgress
	// OverallProgress totals CourseProgress across courses
	OverallProgress(ctx context.Context, learnerID int) models.ProgressSummary
}

// CompletionService tracks lesson completion
type CompletionService struct {
	lessons LessonStore
	logger  *observability.Logger
}

// NewCompletionService creates a new completion service
func NewCompletionService(lessons LessonStore, logger *observability.Logger) *CompletionService {
	return &CompletionService{
		lessons: lessons,
		logger:  logger,
	}
}

// IncompleteLessons returns lessons the learner has not completed, in lesson order.
// Store failures yield an empty list.
func (s *CompletionService) IncompleteLessons(ctx context.Context, learnerID int, courseID *int) []models.Lesson {
	ctx, span := observability.TraceAnalyticsFunction(ctx, "incomplete_lessons",
		observability.AttributeUserID(learnerID),
		observability.AttributeCourseID(courseID),
	)
	defer span.End()

	lessons, err := s.lessons.IncompleteLessons(ctx, learnerID, courseID)
	if err != nil {
		s.logger.Error(ctx, "Failed to get incomplete lessons", err, map[string]interface{}{
			"user_id": learnerID,
		})
		return []models.Lesson{}
	}

	span.SetAttributes(attribute.Int("lessons.count", len(lessons)))
	return lessons
}

// CourseProgress returns completion per enrolled course. Store failures yield an empty list.
func (s *CompletionService) CourseProgress(ctx context.Context, learnerID int) []models.CourseProgress {
	ctx, span := observability.TraceAnalyticsFunction(ctx, "course_progress",
		observability.AttributeUserID(learnerID),
	)
	defer span.End()

	courses, err := s.lessons.CourseProgressCounts(ctx, learnerID)
	if err != nil {
		s.logger.Error(ctx, "Failed to get course progress", err, map[string]interface{}{
			"user_id": learnerID,
		})
		return []models.CourseProgress{}
	}

	for i := range courses {
		courses[i].ProgressPercentage = models.Percentage(courses[i].CompletedLessons, courses[i].TotalLessons)
	}
	return courses
}

// OverallProgress totals CourseProgress across courses
func (s *CompletionService) OverallProgress(ctx context.Context, learnerID int) models.ProgressSummary {
	courses := s.CourseProgress(ctx, learnerID)

	summary := models.ProgressSummary{Courses: courses}
	for _, c := range courses {
		summary.TotalLessons += c.TotalLessons
		summary.CompletedLessons += c.CompletedLessons
	}
	summary.OverallProgress = models.Percentage(summary.CompletedLessons, summary.TotalLessons)
	return summary
}
