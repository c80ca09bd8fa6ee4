package models

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	contextutils "learnanalytics/internal/utils"
)

// Mistake error types
const (
	ErrorTypeConceptual = "conceptual"
	ErrorTypeSystematic = "systematic"
	// ErrorTypeUnknown labels stored rows whose error type is empty
	ErrorTypeUnknown = "unknown"
)

// Mistake severity tiers for the instructor view
const (
	SeverityHigh   = "high"
	SeverityMedium = "medium"
	SeverityLow    = "low"
)

// MistakeSeverity maps a mistake count onto a severity tier
func MistakeSeverity(count int) string {
	switch {
	case count > 5:
		return SeverityHigh
	case count > 2:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// AnswerSubmission is one incorrect answer reported by the quiz flow
type AnswerSubmission struct {
	LearnerID     int `json:"-" validate:"gt=0"`
	QuestionID    int `json:"question_id" validate:"gt=0"`
	UserAnswer    int `json:"user_answer" validate:"gte=0"`
	CorrectAnswer int `json:"correct_answer" validate:"gte=0"`
	QuizID        int `json:"quiz_id" validate:"gt=0"`
}

// Question is a stored quiz question. Options holds a JSON array of answer texts.
type Question struct {
	QuestionID      int            `json:"question_id"`
	TopicID         int            `json:"topic_id"`
	CourseID        int            `json:"course_id"`
	LessonID        sql.NullInt32  `json:"-"`
	QuestionText    string         `json:"question_text"`
	Options         sql.NullString `json:"-"`
	CorrectAnswer   int            `json:"correct_answer"`
	Explanation     sql.NullString `json:"-"`
	DifficultyLevel int            `json:"difficulty_level"`
}

// OptionList decodes the stored options. A NULL or blank column yields an empty list.
func (q *Question) OptionList() ([]string, error) {
	if !q.Options.Valid || strings.TrimSpace(q.Options.String) == "" {
		return []string{}, nil
	}

	var raw []interface{}
	if err := json.Unmarshal([]byte(q.Options.String), &raw); err != nil {
		return []string{}, contextutils.WrapErrorf(contextutils.ErrMalformedData, "invalid options for question %d: %v", q.QuestionID, err)
	}

	options := make([]string, 0, len(raw))
	for _, opt := range raw {
		options = append(options, fmt.Sprint(opt))
	}
	return options, nil
}

// MistakeAnalysis is the write-once record of one incorrect answer per (learner, question, quiz)
type MistakeAnalysis struct {
	AnalysisID         int            `json:"analysis_id"`
	UserID             int            `json:"user_id"`
	QuestionID         int            `json:"question_id"`
	TopicID            int            `json:"topic_id"`
	CourseID           int            `json:"course_id"`
	LessonID           sql.NullInt32  `json:"lesson_id"`
	QuizID             int            `json:"quiz_id"`
	QuestionText       string         `json:"question_text"`
	UserAnswer         int            `json:"user_answer"`
	CorrectAnswer      int            `json:"correct_answer"`
	DifficultyLevel    int            `json:"difficulty_level"`
	ErrorType          sql.NullString `json:"error_type"`
	AIAnalysis         sql.NullString `json:"ai_analysis"`
	RecommendedLessons []int          `json:"recommended_lessons"`
	TimesSimilarWrong  int            `json:"times_similar_wrong"`
	CreatedAt          time.Time      `json:"created_at"`
	AnalyzedAt         sql.NullTime   `json:"analyzed_at"`
}

type mistakeAnalysisJSON struct {
	AnalysisID         int        `json:"analysis_id"`
	UserID             int        `json:"user_id"`
	QuestionID         int        `json:"question_id"`
	TopicID            int        `json:"topic_id"`
	CourseID           int        `json:"course_id"`
	LessonID           *int32     `json:"lesson_id"`
	QuizID             int        `json:"quiz_id"`
	QuestionText       string     `json:"question_text"`
	UserAnswer         int        `json:"user_answer"`
	CorrectAnswer      int        `json:"correct_answer"`
	DifficultyLevel    int        `json:"difficulty_level"`
	ErrorType          *string    `json:"error_type"`
	AIAnalysis         *string    `json:"ai_analysis"`
	RecommendedLessons []int      `json:"recommended_lessons"`
	TimesSimilarWrong  int        `json:"times_similar_wrong"`
	CreatedAt          time.Time  `json:"created_at"`
	AnalyzedAt         *time.Time `json:"analyzed_at"`
}

func (m MistakeAnalysis) toJSON() mistakeAnalysisJSON {
	recommended := m.RecommendedLessons
	if recommended == nil {
		recommended = []int{}
	}
	return mistakeAnalysisJSON{
		AnalysisID:         m.AnalysisID,
		UserID:             m.UserID,
		QuestionID:         m.QuestionID,
		TopicID:            m.TopicID,
		CourseID:           m.CourseID,
		LessonID:           nullInt32ToPointer(m.LessonID),
		QuizID:             m.QuizID,
		QuestionText:       m.QuestionText,
		UserAnswer:         m.UserAnswer,
		CorrectAnswer:      m.CorrectAnswer,
		DifficultyLevel:    m.DifficultyLevel,
		ErrorType:          nullStringToPointer(m.ErrorType),
		AIAnalysis:         nullStringToPointer(m.AIAnalysis),
		RecommendedLessons: recommended,
		TimesSimilarWrong:  m.TimesSimilarWrong,
		CreatedAt:          m.CreatedAt,
		AnalyzedAt:         nullTimeToPointer(m.AnalyzedAt),
	}
}

// MarshalJSON customizes JSON marshaling for MistakeAnalysis to handle the sql.Null fields
func (m MistakeAnalysis) MarshalJSON() (result0 []byte, err error) {
	return json.Marshal(m.toJSON())
}

// TimesWrong counts this miss together with the earlier ones
func (m *MistakeAnalysis) TimesWrong() int {
	return m.TimesSimilarWrong + 1
}

// ParseLessonIDs decodes a stored recommended-lesson list. Blank input is an empty list.
func ParseLessonIDs(raw string) ([]int, error) {
	if strings.TrimSpace(raw) == "" {
		return []int{}, nil
	}
	var ids []int
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return []int{}, contextutils.WrapErrorf(contextutils.ErrMalformedData, "invalid lesson id list: %v", err)
	}
	if ids == nil {
		ids = []int{}
	}
	return ids, nil
}

// EncodeLessonIDs is the storage form of a recommended-lesson list
func EncodeLessonIDs(ids []int) string {
	if len(ids) == 0 {
		return "[]"
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprint(id)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// MistakeDetail is one analysis with its recommended lessons resolved
type MistakeDetail struct {
	Analysis                 MistakeAnalysis
	RecommendedLessonsDetail []Lesson
}

// MarshalJSON renders the analysis fields with recommended_lessons_detail alongside
func (d MistakeDetail) MarshalJSON() (result0 []byte, err error) {
	lessons := d.RecommendedLessonsDetail
	if lessons == nil {
		lessons = []Lesson{}
	}
	return json.Marshal(&struct {
		mistakeAnalysisJSON
		RecommendedLessonsDetail []Lesson `json:"recommended_lessons_detail"`
	}{
		mistakeAnalysisJSON:      d.Analysis.toJSON(),
		RecommendedLessonsDetail: lessons,
	})
}

// MistakeRow is a single stored mistake reduced to the fields the aggregators fold over
type MistakeRow struct {
	UserID    int
	TopicID   int
	TopicName sql.NullString
	ErrorType sql.NullString
}

// CommonMistake is one (topic, error type) group in the instructor view
type CommonMistake struct {
	TopicID          int    `json:"topic_id"`
	TopicName        string `json:"topic_name"`
	ErrorType        string `json:"error_type"`
	TotalMistakes    int    `json:"total_mistakes"`
	AffectedStudents int    `json:"affected_students"`
	Severity         string `json:"severity"`
}

// MistakeInsight is a learner-facing view of a recent mistake
type MistakeInsight struct {
	AnalysisID         int             `json:"analysis_id"`
	QuestionText       string          `json:"question_text"`
	ErrorType          *string         `json:"error_type"`
	TimesWrong         int             `json:"times_wrong"`
	AIAnalysis         *string         `json:"ai_analysis"`
	RecommendedLessons []LessonSummary `json:"recommended_lessons"`
	WrongAt            time.Time       `json:"wrong_at"`
}

// NewMistakeInsight builds an insight from an analysis and its resolved lessons
func NewMistakeInsight(m MistakeAnalysis, lessons []LessonSummary) MistakeInsight {
	if lessons == nil {
		lessons = []LessonSummary{}
	}
	return MistakeInsight{
		AnalysisID:         m.AnalysisID,
		QuestionText:       m.QuestionText,
		ErrorType:          nullStringToPointer(m.ErrorType),
		TimesWrong:         m.TimesWrong(),
		AIAnalysis:         nullStringToPointer(m.AIAnalysis),
		RecommendedLessons: lessons,
		WrongAt:            m.CreatedAt,
	}
}

// ErrorTypeCount is one bucket of the error breakdown
type ErrorTypeCount struct {
	ErrorType string `json:"error_type"`
	Count     int    `json:"count"`
}

// ProblematicTopic is the topic with the most mistakes
type ProblematicTopic struct {
	TopicID       int    `json:"topic_id"`
	TopicName     string `json:"topic_name"`
	MistakesCount int    `json:"mistakes_count"`
}

// MistakeStats summarizes a learner's mistakes
type MistakeStats struct {
	TotalIncorrectAnswers int               `json:"total_incorrect_answers"`
	ErrorBreakdown        []ErrorTypeCount  `json:"error_breakdown"`
	MostProblematicTopic  *ProblematicTopic `json:"most_problematic_topic"`
}

// LessonMistakes lists a learner's mistakes on the questions attached to one lesson
type LessonMistakes struct {
	LessonID             int               `json:"lesson_id"`
	LessonTitle          string            `json:"lesson_title"`
	RelatedMistakes      []MistakeAnalysis `json:"related_mistakes"`
	TotalRelatedMistakes int               `json:"total_related_mistakes"`
	Message              string            `json:"message,omitempty"`
}
