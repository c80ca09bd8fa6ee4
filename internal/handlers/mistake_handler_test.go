package handlers

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"learnanalytics/internal/config"
	"learnanalytics/internal/models"
	contextutils "learnanalytics/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func setupMistakeRouter(learnerID int) (*gin.Engine, *MockMistakeService) {
	gin.SetMode(gin.TestMode)
	svc := &MockMistakeService{}
	handler := NewMistakeHandler(svc, config.DefaultAnalyticsConfig(), newTestLogger())

	router := setupGinWithSessions()
	if learnerID > 0 {
		router.Use(asLearner(learnerID))
	}
	router.POST("/v1/mistakes/analyze", handler.AnalyzeIncorrectAnswer)
	router.GET("/v1/mistakes/insights", handler.GetInsights)
	router.GET("/v1/mistakes/stats", handler.GetMistakeStats)
	router.GET("/v1/mistakes/common", handler.GetCommonMistakes)
	router.GET("/v1/mistakes/:id", handler.GetMistakeDetail)
	router.GET("/v1/lessons/:id/mistakes", handler.GetLessonMistakes)
	return router, svc
}

func postJSON(t *testing.T, router *gin.Engine, path, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	req, _ := http.NewRequest("POST", path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response), w.Body.String())
	return w, response
}

func sampleAnalysis() *models.MistakeAnalysis {
	return &models.MistakeAnalysis{
		AnalysisID:         11,
		UserID:             testLearnerID,
		QuestionID:         7,
		TopicID:            3,
		CourseID:           1,
		LessonID:           sql.NullInt32{Int32: 10, Valid: true},
		QuizID:             2,
		QuestionText:       "What does defer do?",
		UserAnswer:         1,
		CorrectAnswer:      0,
		DifficultyLevel:    1,
		ErrorType:          sql.NullString{String: models.ErrorTypeConceptual, Valid: true},
		AIAnalysis:         sql.NullString{String: "Learner answered this question incorrectly 0 time(s). This may indicate a conceptual gap.", Valid: true},
		RecommendedLessons: []int{10, 11},
		CreatedAt:          time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestMistakeHandler_AnalyzeIncorrectAnswer(t *testing.T) {
	router, svc := setupMistakeRouter(testLearnerID)
	svc.On("AnalyzeIncorrectAnswer", mock.Anything, models.AnswerSubmission{
		LearnerID: testLearnerID, QuestionID: 7, UserAnswer: 1, CorrectAnswer: 0, QuizID: 2,
	}).Return(sampleAnalysis())

	w, body := postJSON(t, router, "/v1/mistakes/analyze", `{"question_id": 7, "user_answer": 1, "correct_answer": 0, "quiz_id": 2}`)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "Answer analyzed successfully", body["message"])
	analysis := body["analysis"].(map[string]interface{})
	assert.Equal(t, float64(11), analysis["analysis_id"])
	assert.Equal(t, "conceptual", analysis["error_type"])
	assert.Equal(t, float64(10), analysis["lesson_id"])
	assert.Equal(t, []interface{}{float64(10), float64(11)}, analysis["recommended_lessons"])
	svc.AssertExpectations(t)
}

func TestMistakeHandler_AnalyzeIncorrectAnswer_Unavailable(t *testing.T) {
	router, svc := setupMistakeRouter(testLearnerID)
	svc.On("AnalyzeIncorrectAnswer", mock.Anything, mock.Anything).Return(nil)

	w, body := postJSON(t, router, "/v1/mistakes/analyze", `{"question_id": 999, "user_answer": 1, "correct_answer": 0, "quiz_id": 2}`)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, string(contextutils.ErrorCodeAnalysisUnavailable), body["code"])
}

func TestMistakeHandler_AnalyzeIncorrectAnswer_InvalidBody(t *testing.T) {
	router, svc := setupMistakeRouter(testLearnerID)

	tests := []struct {
		name string
		body string
		code string
	}{
		{"malformed", `{"question_id":`, "INVALID_INPUT"},
		{"missing question", `{"user_answer": 1, "correct_answer": 0, "quiz_id": 2}`, "VALIDATION_FAILED"},
		{"negative answer", `{"question_id": 7, "user_answer": -1, "correct_answer": 0, "quiz_id": 2}`, "VALIDATION_FAILED"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, body := postJSON(t, router, "/v1/mistakes/analyze", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tt.code, body["code"])
		})
	}
	svc.AssertNotCalled(t, "AnalyzeIncorrectAnswer", mock.Anything, mock.Anything)
}

func TestMistakeHandler_GetInsights(t *testing.T) {
	router, svc := setupMistakeRouter(testLearnerID)
	insight := models.NewMistakeInsight(*sampleAnalysis(), []models.LessonSummary{{LessonID: 10, LessonTitle: "Defer"}})
	svc.On("Insights", mock.Anything, testLearnerID, intPtr(1), 50).Return([]models.MistakeInsight{insight})

	w, body := getJSON(t, router, "/v1/mistakes/insights?course_id=1&limit=500")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), body["total"])
	first := body["insights"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, float64(1), first["times_wrong"])
	svc.AssertExpectations(t)
}

func TestMistakeHandler_GetInsights_DefaultLimitAndEmpty(t *testing.T) {
	router, svc := setupMistakeRouter(testLearnerID)
	svc.On("Insights", mock.Anything, testLearnerID, (*int)(nil), 10).Return(nil)

	w, body := getJSON(t, router, "/v1/mistakes/insights")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(0), body["total"])
	assert.Equal(t, []interface{}{}, body["insights"])
	svc.AssertExpectations(t)
}

func TestMistakeHandler_GetCommonMistakes(t *testing.T) {
	router, svc := setupMistakeRouter(testLearnerID)
	svc.On("CommonMistakesByTopic", mock.Anything, 1, intPtr(3), 20).Return([]models.CommonMistake{
		{TopicID: 3, TopicName: "Control flow", ErrorType: "systematic", TotalMistakes: 6, AffectedStudents: 2, Severity: "high"},
	})

	w, body := getJSON(t, router, "/v1/mistakes/common?course_id=1&topic_id=3&limit=99")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), body["total"])
	first := body["common_mistakes"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "high", first["severity"])
	svc.AssertExpectations(t)
}

func TestMistakeHandler_GetCommonMistakes_RequiresCourse(t *testing.T) {
	router, svc := setupMistakeRouter(testLearnerID)

	w, body := getJSON(t, router, "/v1/mistakes/common")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "MISSING_REQUIRED_FIELD", body["code"])
	svc.AssertNotCalled(t, "CommonMistakesByTopic", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestMistakeHandler_GetMistakeDetail(t *testing.T) {
	router, svc := setupMistakeRouter(testLearnerID)
	svc.On("Detail", mock.Anything, testLearnerID, 11).Return(&models.MistakeDetail{
		Analysis:                 *sampleAnalysis(),
		RecommendedLessonsDetail: []models.Lesson{{LessonID: 10, CourseID: 1, Title: "Defer", Order: 1}},
	}, nil)
	svc.On("Detail", mock.Anything, testLearnerID, 12).
		Return(nil, contextutils.WrapErrorf(contextutils.ErrRecordNotFound, "mistake analysis %d not found", 12))

	w, body := getJSON(t, router, "/v1/mistakes/11")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(11), body["analysis_id"])
	assert.Len(t, body["recommended_lessons_detail"], 1)

	w, body = getJSON(t, router, "/v1/mistakes/12")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "RECORD_NOT_FOUND", body["code"])

	w, _ = getJSON(t, router, "/v1/mistakes/abc")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMistakeHandler_GetMistakeStats(t *testing.T) {
	router, svc := setupMistakeRouter(testLearnerID)
	svc.On("Stats", mock.Anything, testLearnerID, (*int)(nil)).Return(&models.MistakeStats{
		TotalIncorrectAnswers: 3,
		ErrorBreakdown:        []models.ErrorTypeCount{{ErrorType: "conceptual", Count: 2}, {ErrorType: "unknown", Count: 1}},
		MostProblematicTopic:  &models.ProblematicTopic{TopicID: 3, TopicName: "Control flow", MistakesCount: 2},
	}, nil)

	w, body := getJSON(t, router, "/v1/mistakes/stats")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(3), body["total_incorrect_answers"])
	assert.Len(t, body["error_breakdown"], 2)
	topic := body["most_problematic_topic"].(map[string]interface{})
	assert.Equal(t, float64(2), topic["mistakes_count"])
}

func TestMistakeHandler_GetLessonMistakes(t *testing.T) {
	router, svc := setupMistakeRouter(testLearnerID)
	svc.On("RelatedToLesson", mock.Anything, testLearnerID, 10).Return(&models.LessonMistakes{
		LessonID:        10,
		LessonTitle:     "Defer",
		RelatedMistakes: []models.MistakeAnalysis{},
		Message:         "No quiz questions for this lesson",
	}, nil)
	svc.On("RelatedToLesson", mock.Anything, testLearnerID, 99).
		Return(nil, contextutils.WrapErrorf(contextutils.ErrLessonNotFound, "lesson %d not found", 99))

	w, body := getJSON(t, router, "/v1/lessons/10/mistakes")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "No quiz questions for this lesson", body["message"])
	assert.Equal(t, []interface{}{}, body["related_mistakes"])

	w, body = getJSON(t, router, "/v1/lessons/99/mistakes")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "LESSON_NOT_FOUND", body["code"])
}

func TestMistakeHandler_RequiresLearner(t *testing.T) {
	router, _ := setupMistakeRouter(0)

	w, body := postJSON(t, router, "/v1/mistakes/analyze", `{"question_id": 7, "user_answer": 1, "correct_answer": 0, "quiz_id": 2}`)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "UNAUTHORIZED", body["code"])
}
