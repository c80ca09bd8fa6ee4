package handlers

import (
	"context"

	"learnanalytics/internal/config"
	"learnanalytics/internal/middleware"
	"learnanalytics/internal/models"
	"learnanalytics/internal/observability"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
)

const testLearnerID = 42

type MockRecommendationService struct {
	mock.Mock
}

func (m *MockRecommendationService) GenerateRecommendations(ctx context.Context, learnerID int, courseID *int) []models.Recommendation {
	args := m.Called(ctx, learnerID, courseID)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]models.Recommendation)
}

type MockPerformanceService struct {
	mock.Mock
}

func (m *MockPerformanceService) WeakTopics(ctx context.Context, learnerID int, courseID *int) []models.TopicPerformance {
	args := m.Called(ctx, learnerID, courseID)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]models.TopicPerformance)
}

func (m *MockPerformanceService) TopicAverages(ctx context.Context, learnerID int, courseID *int) ([]models.TopicPerformance, error) {
	args := m.Called(ctx, learnerID, courseID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.TopicPerformance), args.Error(1)
}

type MockCompletionService struct {
	mock.Mock
}

func (m *MockCompletionService) IncompleteLessons(ctx context.Context, learnerID int, courseID *int) []models.Lesson {
	args := m.Called(ctx, learnerID, courseID)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]models.Lesson)
}

func (m *MockCompletionService) CourseProgress(ctx context.Context, learnerID int) []models.CourseProgress {
	args := m.Called(ctx, learnerID)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]models.CourseProgress)
}

func (m *MockCompletionService) OverallProgress(ctx context.Context, learnerID int) models.ProgressSummary {
	args := m.Called(ctx, learnerID)
	return args.Get(0).(models.ProgressSummary)
}

type MockAnalyticsService struct {
	mock.Mock
}

func (m *MockAnalyticsService) AnalyzeLearningPatterns(ctx context.Context, learnerID int, courseID *int) models.LearningPatterns {
	args := m.Called(ctx, learnerID, courseID)
	return args.Get(0).(models.LearningPatterns)
}

func (m *MockAnalyticsService) StrengthsAndWeaknesses(ctx context.Context, learnerID int) models.StrengthsWeaknesses {
	args := m.Called(ctx, learnerID)
	return args.Get(0).(models.StrengthsWeaknesses)
}

func (m *MockAnalyticsService) Overview(ctx context.Context, learnerID int, courseID *int) models.AnalyticsOverview {
	args := m.Called(ctx, learnerID, courseID)
	return args.Get(0).(models.AnalyticsOverview)
}

type MockMistakeService struct {
	mock.Mock
}

func (m *MockMistakeService) AnalyzeIncorrectAnswer(ctx context.Context, sub models.AnswerSubmission) *models.MistakeAnalysis {
	args := m.Called(ctx, sub)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(*models.MistakeAnalysis)
}

func (m *MockMistakeService) CommonMistakesByTopic(ctx context.Context, courseID int, topicID *int, limit int) []models.CommonMistake {
	args := m.Called(ctx, courseID, topicID, limit)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]models.CommonMistake)
}

func (m *MockMistakeService) Insights(ctx context.Context, learnerID int, courseID *int, limit int) []models.MistakeInsight {
	args := m.Called(ctx, learnerID, courseID, limit)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]models.MistakeInsight)
}

func (m *MockMistakeService) Detail(ctx context.Context, learnerID, analysisID int) (*models.MistakeDetail, error) {
	args := m.Called(ctx, learnerID, analysisID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.MistakeDetail), args.Error(1)
}

func (m *MockMistakeService) Stats(ctx context.Context, learnerID int, courseID *int) (*models.MistakeStats, error) {
	args := m.Called(ctx, learnerID, courseID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.MistakeStats), args.Error(1)
}

func (m *MockMistakeService) RelatedToLesson(ctx context.Context, learnerID, lessonID int) (*models.LessonMistakes, error) {
	args := m.Called(ctx, learnerID, lessonID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.LessonMistakes), args.Error(1)
}

type MockUserLookup struct {
	mock.Mock
}

func (m *MockUserLookup) GetUser(ctx context.Context, userID int) (*models.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func newTestLogger() *observability.Logger {
	return observability.NewLogger(&config.OpenTelemetryConfig{EnableLogging: false})
}

// asLearner stands in for RequireAuth by putting the learner id on the gin context
func asLearner(learnerID int) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.UserIDKey, learnerID)
		c.Next()
	}
}

func intPtr(v int) *int {
	return &v
}
