// Package models defines data structures used throughout the learning analytics engine.
package models

import (
	"database/sql"
	"encoding/json"
	"time"
)

// User roles
const (
	RoleStudent    = "student"
	RoleInstructor = "instructor"
	RoleAdmin      = "admin"
)

// User represents a platform account. Only the fields the engine reads are mapped.
type User struct {
	ID       int    `json:"user_id" yaml:"user_id"`
	Username string `json:"username" yaml:"username"`
	Role     string `json:"role" yaml:"role"`
	IsActive bool   `json:"is_active" yaml:"is_active"`
}

// CanViewCourseMistakes reports whether the user may see aggregated mistakes of other learners
func (u *User) CanViewCourseMistakes() bool {
	return u != nil && (u.Role == RoleInstructor || u.Role == RoleAdmin)
}

// Lesson is a unit of course content, ordered within its course
type Lesson struct {
	LessonID        int           `json:"lesson_id" yaml:"lesson_id"`
	CourseID        int           `json:"course_id" yaml:"course_id"`
	Title           string        `json:"lesson_title" yaml:"lesson_title"`
	Order           int           `json:"lesson_order" yaml:"lesson_order"`
	DurationMinutes sql.NullInt32 `json:"duration_minutes" yaml:"duration_minutes"`
}

// MarshalJSON renders a NULL duration as null rather than the sql.NullInt32 struct
func (l Lesson) MarshalJSON() (result0 []byte, err error) {
	return json.Marshal(&struct {
		LessonID        int    `json:"lesson_id"`
		CourseID        int    `json:"course_id"`
		Title           string `json:"lesson_title"`
		Order           int    `json:"lesson_order"`
		DurationMinutes *int32 `json:"duration_minutes"`
	}{
		LessonID:        l.LessonID,
		CourseID:        l.CourseID,
		Title:           l.Title,
		Order:           l.Order,
		DurationMinutes: nullInt32ToPointer(l.DurationMinutes),
	})
}

// Summary returns the short form used inside mistake insights
func (l Lesson) Summary() LessonSummary {
	return LessonSummary{
		LessonID:        l.LessonID,
		LessonTitle:     l.Title,
		DurationMinutes: nullInt32ToPointer(l.DurationMinutes),
	}
}

// LessonSummary is the compact lesson reference attached to mistake insights
type LessonSummary struct {
	LessonID        int    `json:"lesson_id"`
	LessonTitle     string `json:"lesson_title"`
	DurationMinutes *int32 `json:"duration_minutes"`
}

// LessonProgress is a learner's state on a single lesson. At most one row exists per (learner, lesson).
type LessonProgress struct {
	UserID           int          `json:"user_id"`
	LessonID         int          `json:"lesson_id"`
	IsCompleted      bool         `json:"is_completed"`
	CompletionDate   sql.NullTime `json:"-"`
	TimeSpentMinutes int          `json:"time_spent_minutes"`
	LastAccessed     time.Time    `json:"last_accessed"`
}

// InProgressLesson is a started but unfinished lesson joined with its lesson row
type InProgressLesson struct {
	Lesson           Lesson    `json:"lesson"`
	TimeSpentMinutes int       `json:"time_spent_minutes"`
	LastAccessed     time.Time `json:"last_accessed"`
}

// QuizResult is one submitted quiz attempt. Rows are immutable; retakes add rows.
type QuizResult struct {
	ResultID         int           `json:"result_id"`
	UserID           int           `json:"user_id"`
	QuizID           int           `json:"quiz_id"`
	Score            float64       `json:"score"`
	TimeTakenMinutes sql.NullInt32 `json:"-"`
	SubmittedAt      time.Time     `json:"submitted_at"`
}

// TopicScore is a single quiz result attributed to the topic of its quiz
type TopicScore struct {
	TopicID   int
	TopicName string
	CourseID  int
	Score     float64
}

// CourseProgress is a learner's completion state in one enrolled course
type CourseProgress struct {
	CourseID           int        `json:"course_id"`
	CourseName         string     `json:"course_name"`
	TotalLessons       int        `json:"total_lessons"`
	CompletedLessons   int        `json:"completed_lessons"`
	ProgressPercentage float64    `json:"progress_percentage"`
	EnrolledAt         *time.Time `json:"enrolled_at"`
}

// ProgressSummary totals completion across every enrolled course
type ProgressSummary struct {
	OverallProgress  float64          `json:"overall_progress"`
	TotalLessons     int              `json:"total_lessons"`
	CompletedLessons int              `json:"completed_lessons"`
	Courses          []CourseProgress `json:"courses"`
}

// Percentage returns part/total*100, or 0 when total is 0
func Percentage(part, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}

func nullInt32ToPointer(ni sql.NullInt32) *int32 {
	if ni.Valid {
		return &ni.Int32
	}
	return nil
}

func nullTimeToPointer(nt sql.NullTime) *time.Time {
	if nt.Valid {
		return &nt.Time
	}
	return nil
}

func nullStringToPointer(ns sql.NullString) *string {
	if ns.Valid {
		return &ns.String
	}
	return nil
}
