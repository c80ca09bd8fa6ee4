package handlers

import (
	"net/http"

	"learnanalytics/internal/config"
	"learnanalytics/internal/models"
	"learnanalytics/internal/observability"
	"learnanalytics/internal/services"
	contextutils "learnanalytics/internal/utils"

	"github.com/gin-gonic/gin"
)

// MistakeHandler serves incorrect-answer analysis and the mistake views built on it
type MistakeHandler struct {
	mistakes services.MistakeServiceInterface
	cfg      config.AnalyticsConfig
	logger   *observability.Logger
}

// NewMistakeHandler creates a new MistakeHandler
func NewMistakeHandler(mistakes services.MistakeServiceInterface, cfg config.AnalyticsConfig, logger *observability.Logger) *MistakeHandler {
	return &MistakeHandler{
		mistakes: mistakes,
		cfg:      cfg,
		logger:   logger,
	}
}

// analyzeRequest is the body of POST /v1/mistakes/analyze. The learner comes from the session.
type analyzeRequest struct {
	QuestionID    int `json:"question_id" validate:"gt=0"`
	UserAnswer    int `json:"user_answer" validate:"gte=0"`
	CorrectAnswer int `json:"correct_answer" validate:"gte=0"`
	QuizID        int `json:"quiz_id" validate:"gt=0"`
}

// AnalyzeIncorrectAnswer handles POST /v1/mistakes/analyze
func (h *MistakeHandler) AnalyzeIncorrectAnswer(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "analyze_incorrect_answer")
	defer observability.FinishSpan(span, nil)

	learnerID, ok := currentLearner(c)
	if !ok {
		return
	}

	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleAppError(c, contextutils.WrapError(contextutils.ErrInvalidInput, "invalid request body"))
		return
	}
	if err := contextutils.ValidateStruct(req); err != nil {
		HandleAppError(c, err)
		return
	}

	span.SetAttributes(
		observability.AttributeUserID(learnerID),
		observability.AttributeQuestionID(req.QuestionID),
		observability.AttributeQuizID(req.QuizID),
	)

	analysis := h.mistakes.AnalyzeIncorrectAnswer(ctx, models.AnswerSubmission{
		LearnerID:     learnerID,
		QuestionID:    req.QuestionID,
		UserAnswer:    req.UserAnswer,
		CorrectAnswer: req.CorrectAnswer,
		QuizID:        req.QuizID,
	})
	if analysis == nil {
		HandleAppError(c, contextutils.ErrAnalysisUnavailable)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"analysis": analysis,
		"message":  "Answer analyzed successfully",
	})
}

// GetInsights handles GET /v1/mistakes/insights
func (h *MistakeHandler) GetInsights(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "get_mistake_insights")
	defer observability.FinishSpan(span, nil)

	learnerID, ok := currentLearner(c)
	if !ok {
		return
	}
	courseID, ok := courseFilter(c)
	if !ok {
		return
	}
	limit := ParseLimit(c, h.cfg.InsightsDefaultLimit, h.cfg.InsightsMaxLimit)
	span.SetAttributes(
		observability.AttributeUserID(learnerID),
		observability.AttributeCourseID(courseID),
		observability.AttributeLimit(limit),
	)

	insights := h.mistakes.Insights(ctx, learnerID, courseID, limit)
	if insights == nil {
		insights = []models.MistakeInsight{}
	}

	c.JSON(http.StatusOK, gin.H{
		"insights": insights,
		"total":    len(insights),
	})
}

// GetCommonMistakes handles GET /v1/mistakes/common. Callers must hold an instructor role.
func (h *MistakeHandler) GetCommonMistakes(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "get_common_mistakes")
	defer observability.FinishSpan(span, nil)

	courseID, ok := courseFilter(c)
	if !ok {
		return
	}
	if courseID == nil {
		HandleAppError(c, contextutils.WrapError(contextutils.ErrMissingRequired, "course_id is required"))
		return
	}
	topicID, err := ParseOptionalID(c, "topic_id")
	if err != nil {
		HandleValidationError(c, "topic_id", c.Query("topic_id"), "must be a positive integer")
		return
	}
	limit := ParseLimit(c, h.cfg.CommonMistakesDefault, h.cfg.CommonMistakesMaxLimit)
	span.SetAttributes(
		observability.AttributeCourseID(courseID),
		observability.AttributeTopicID(topicID),
		observability.AttributeLimit(limit),
		observability.AttributeUserRole(CurrentRole(c)),
	)

	mistakes := h.mistakes.CommonMistakesByTopic(ctx, *courseID, topicID, limit)
	if mistakes == nil {
		mistakes = []models.CommonMistake{}
	}

	c.JSON(http.StatusOK, gin.H{
		"common_mistakes": mistakes,
		"total":           len(mistakes),
	})
}

// GetMistakeDetail handles GET /v1/mistakes/:id
func (h *MistakeHandler) GetMistakeDetail(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "get_mistake_detail")
	defer observability.FinishSpan(span, nil)

	learnerID, ok := currentLearner(c)
	if !ok {
		return
	}
	analysisID, err := ParsePathID(c, "id")
	if err != nil {
		HandleValidationError(c, "id", c.Param("id"), "must be a positive integer")
		return
	}
	span.SetAttributes(observability.AttributeUserID(learnerID))

	detail, err := h.mistakes.Detail(ctx, learnerID, analysisID)
	if err != nil {
		HandleAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

// GetMistakeStats handles GET /v1/mistakes/stats
func (h *MistakeHandler) GetMistakeStats(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "get_mistake_stats")
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

	stats, err := h.mistakes.Stats(ctx, learnerID, courseID)
	if err != nil {
		h.logger.Error(ctx, "Failed to get mistake stats", err, map[string]interface{}{"user_id": learnerID})
		HandleAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// GetLessonMistakes handles GET /v1/lessons/:id/mistakes
func (h *MistakeHandler) GetLessonMistakes(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "get_lesson_mistakes")
	defer observability.FinishSpan(span, nil)

	learnerID, ok := currentLearner(c)
	if !ok {
		return
	}
	lessonID, err := ParsePathID(c, "id")
	if err != nil {
		HandleValidationError(c, "id", c.Param("id"), "must be a positive integer")
		return
	}
	span.SetAttributes(observability.AttributeUserID(learnerID), observability.AttributeLessonID(lessonID))

	result, err := h.mistakes.RelatedToLesson(ctx, learnerID, lessonID)
	if err != nil {
		HandleAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
