package models

import "time"

// Improvement trend values
const (
	TrendInsufficientData = "insufficient_data"
	TrendStable           = "stable"
	TrendImproving        = "improving"
	TrendDeclining        = "declining"
)

// TopicPerformance is a learner's mean score and attempt count on one topic
type TopicPerformance struct {
	TopicID      int     `json:"topic_id"`
	TopicName    string  `json:"topic_name"`
	CourseID     int     `json:"course_id"`
	AvgScore     float64 `json:"avg_score"`
	AttemptCount int     `json:"attempt_count"`
}

// LearningPatterns summarizes a learner's quiz history
type LearningPatterns struct {
	TotalQuizzes     int       `json:"total_quizzes"`
	AverageScore     float64   `json:"average_score"`
	BestScore        float64   `json:"best_score"`
	WorstScore       float64   `json:"worst_score"`
	TotalTimeMinutes int       `json:"total_time_minutes"`
	ImprovementTrend string    `json:"improvement_trend"`
	Scores           []float64 `json:"scores"`
}

// EmptyLearningPatterns is the result for a learner with no quiz results
func EmptyLearningPatterns() LearningPatterns {
	return LearningPatterns{
		ImprovementTrend: TrendInsufficientData,
		Scores:           []float64{},
	}
}

// StrengthsWeaknesses buckets topics by average score
type StrengthsWeaknesses struct {
	Strengths  []TopicPerformance `json:"strengths"`
	Weaknesses []TopicPerformance `json:"weaknesses"`
}

// AnalyticsOverview combines every read-side analysis for one learner
type AnalyticsOverview struct {
	LearningPatterns LearningPatterns   `json:"learning_patterns"`
	Strengths        []TopicPerformance `json:"strengths"`
	Weaknesses       []TopicPerformance `json:"weaknesses"`
	WeakAreas        []TopicPerformance `json:"weak_areas"`
	CourseProgress   []CourseProgress   `json:"course_progress"`
}

// LearningAnalyticsRecord is a persisted strength/weakness classification of one topic
type LearningAnalyticsRecord struct {
	UserID         int       `json:"user_id"`
	TopicID        int       `json:"topic_id"`
	CourseID       int       `json:"course_id"`
	StrengthScore  *float64  `json:"strength_score"`
	WeaknessScore  *float64  `json:"weakness_score"`
	Recommendation string    `json:"recommendation"`
	AnalyzedAt     time.Time `json:"analyzed_at"`
}
