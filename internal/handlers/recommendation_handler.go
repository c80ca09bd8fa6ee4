package handlers

import (
	"net/http"

	"learnanalytics/internal/models"
	"learnanalytics/internal/observability"
	"learnanalytics/internal/services"
	contextutils "learnanalytics/internal/utils"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// RecommendationHandler serves lesson recommendations and the read-side analytics views
type RecommendationHandler struct {
	recommendations services.RecommendationServiceInterface
	performance     services.PerformanceServiceInterface
	completion      services.CompletionServiceInterface
	analytics       services.AnalyticsServiceInterface
	logger          *observability.Logger
}

// NewRecommendationHandler creates a new RecommendationHandler
func NewRecommendationHandler(
	recommendations services.RecommendationServiceInterface,
	performance services.PerformanceServiceInterface,
	completion services.CompletionServiceInterface,
	analytics services.AnalyticsServiceInterface,
	logger *observability.Logger,
) *RecommendationHandler {
	return &RecommendationHandler{
		recommendations: recommendations,
		performance:     performance,
		completion:      completion,
		analytics:       analytics,
		logger:          logger,
	}
}

// currentLearner resolves the authenticated learner or writes a 401
func currentLearner(c *gin.Context) (int, bool) {
	learnerID, err := GetCurrentUserID(c)
	if err != nil {
		HandleAppError(c, contextutils.ErrUnauthorized)
		return 0, false
	}
	return learnerID, true
}

// courseFilter parses the optional course_id query parameter or writes a 400
func courseFilter(c *gin.Context) (*int, bool) {
	courseID, err := ParseOptionalID(c, "course_id")
	if err != nil {
		HandleValidationError(c, "course_id", c.Query("course_id"), "must be a positive integer")
		return nil, false
	}
	return courseID, true
}

// GetRecommendations handles GET /v1/recommendations
func (h *RecommendationHandler) GetRecommendations(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "get_recommendations")
	defer observability.FinishSpan(span, nil)

	learnerID, ok := currentLearner(c)
	if !ok {
		return
	}
	courseID, ok := courseFilter(c)
	if !ok {
		return
	}
	includeAnalytics := ParseBool(c, "include_analytics")
	span.SetAttributes(
		observability.AttributeUserID(learnerID),
		observability.AttributeCourseID(courseID),
		attribute.Bool("include_analytics", includeAnalytics),
	)

	recommendations := h.recommendations.GenerateRecommendations(ctx, learnerID, courseID)
	if recommendations == nil {
		recommendations = []models.Recommendation{}
	}

	response := gin.H{
		"recommendations":       recommendations,
		"total_recommendations": len(recommendations),
	}

	if includeAnalytics {
		sw := h.analytics.StrengthsAndWeaknesses(ctx, learnerID)
		response["analytics"] = gin.H{
			"patterns":        h.analytics.AnalyzeLearningPatterns(ctx, learnerID, courseID),
			"strengths":       nonNilTopics(sw.Strengths),
			"weaknesses":      nonNilTopics(sw.Weaknesses),
			"course_progress": nonNilProgress(h.completion.CourseProgress(ctx, learnerID)),
		}
	}

	h.logger.Info(ctx, "Retrieved recommendations", map[string]interface{}{
		"user_id": learnerID,
		"count":   len(recommendations),
	})
	c.JSON(http.StatusOK, response)
}

// GetAnalytics handles GET /v1/analytics
func (h *RecommendationHandler) GetAnalytics(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "get_analytics")
	defer observability.FinishSpan(span, nil)

	learnerID, ok := currentLearner(c)
	if !ok {
		return
	}
	courseID, ok := courseFilter(c)
	if !ok {
		return
	}
	span.SetAttributes(observability.AttributeUserID(learnerID), observability.AttributeCourseID(courseID))

	c.JSON(http.StatusOK, h.analytics.Overview(ctx, learnerID, courseID))
}

// GetWeakTopics handles GET /v1/analytics/weak-topics
func (h *RecommendationHandler) GetWeakTopics(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "get_weak_topics")
	defer observability.FinishSpan(span, nil)

	learnerID, ok := currentLearner(c)
	if !ok {
		return
	}
	courseID, ok := courseFilter(c)
	if !ok {
		return
	}
	span.SetAttributes(observability.AttributeUserID(learnerID), observability.AttributeCourseID(courseID))

	weak := nonNilTopics(h.performance.WeakTopics(ctx, learnerID, courseID))
	c.JSON(http.StatusOK, gin.H{
		"weak_areas":       weak,
		"total_weak_areas": len(weak),
	})
}

// GetLearningPatterns handles GET /v1/analytics/patterns
func (h *RecommendationHandler) GetLearningPatterns(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "get_learning_patterns")
	defer observability.FinishSpan(span, nil)

	learnerID, ok := currentLearner(c)
	if !ok {
		return
	}
	courseID, ok := courseFilter(c)
	if !ok {
		return
	}
	span.SetAttributes(observability.AttributeUserID(learnerID), observability.AttributeCourseID(courseID))

	c.JSON(http.StatusOK, h.analytics.AnalyzeLearningPatterns(ctx, learnerID, courseID))
}

// GetStrengthsAndWeaknesses handles GET /v1/analytics/strengths
func (h *RecommendationHandler) GetStrengthsAndWeaknesses(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "get_strengths_and_weaknesses")
	defer observability.FinishSpan(span, nil)

	learnerID, ok := currentLearner(c)
	if !ok {
		return
	}
	span.SetAttributes(observability.AttributeUserID(learnerID))

	sw := h.analytics.StrengthsAndWeaknesses(ctx, learnerID)
	c.JSON(http.StatusOK, models.StrengthsWeaknesses{
		Strengths:  nonNilTopics(sw.Strengths),
		Weaknesses: nonNilTopics(sw.Weaknesses),
	})
}

// GetProgress handles GET /v1/progress
func (h *RecommendationHandler) GetProgress(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "get_progress")
	defer observability.FinishSpan(span, nil)

	learnerID, ok := currentLearner(c)
	if !ok {
		return
	}
	span.SetAttributes(observability.AttributeUserID(learnerID))

	summary := h.completion.OverallProgress(ctx, learnerID)
	summary.Courses = nonNilProgress(summary.Courses)
	c.JSON(http.StatusOK, summary)
}

// GetIncompleteLessons handles GET /v1/lessons/incomplete
func (h *RecommendationHandler) GetIncompleteLessons(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "get_incomplete_lessons")
	defer observability.FinishSpan(span, nil)

	learnerID, ok := currentLearner(c)
	if !ok {
		return
	}
	courseID, ok := courseFilter(c)
	if !ok {
		return
	}
	span.SetAttributes(observability.AttributeUserID(learnerID), observability.AttributeCourseID(courseID))

	lessons := h.completion.IncompleteLessons(ctx, learnerID, courseID)
	if lessons == nil {
		lessons = []models.Lesson{}
	}
	c.JSON(http.StatusOK, gin.H{
		"lessons": lessons,
		"total":   len(lessons),
	})
}

func nonNilTopics(topics []models.TopicPerformance) []models.TopicPerformance {
	if topics == nil {
		return []models.TopicPerformance{}
	}
	return topics
}

func nonNilProgress(progress []models.CourseProgress) []models.CourseProgress {
	if progress == nil {
		return []models.CourseProgress{}
	}
	return progress
}
