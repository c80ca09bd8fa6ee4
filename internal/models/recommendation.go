package models

import (
	"encoding/json"
	"fmt"
)

// RecommendationKind discriminates the Recommendation variants
type RecommendationKind string

// Recommendation kinds
const (
	KindWeakAreaReview   RecommendationKind = "weak_area_review"
	KindIncompleteLesson RecommendationKind = "incomplete_lesson"
	KindInProgress       RecommendationKind = "in_progress"
)

// Recommendation priorities; lower sorts first
const (
	PriorityHigh   = 1
	PriorityMedium = 2
)

// Recommendation is a tagged variant. Exactly one of WeakArea and InProgress is set
// for the matching Kind, and neither for KindIncompleteLesson.
type Recommendation struct {
	Kind        RecommendationKind
	Priority    int
	LessonID    int
	LessonTitle string
	CourseID    int
	Reason      string

	WeakArea   *WeakAreaDetail
	InProgress *InProgressDetail
}

// WeakAreaDetail carries the topic that triggered a weak_area_review
type WeakAreaDetail struct {
	TopicID   int
	TopicName string
	AvgScore  float64
}

// InProgressDetail carries the time already spent on an in_progress lesson
type InProgressDetail struct {
	TimeSpentMinutes int
}

// NewWeakAreaRecommendation recommends reviewing lesson because topic is weak
func NewWeakAreaRecommendation(lesson Lesson, topic TopicPerformance) Recommendation {
	return Recommendation{
		Kind:        KindWeakAreaReview,
		Priority:    PriorityHigh,
		LessonID:    lesson.LessonID,
		LessonTitle: lesson.Title,
		CourseID:    topic.CourseID,
		Reason: fmt.Sprintf("Your average score for '%s' is %.1f%%. Review this lesson to strengthen it.",
			topic.TopicName, topic.AvgScore),
		WeakArea: &WeakAreaDetail{
			TopicID:   topic.TopicID,
			TopicName: topic.TopicName,
			AvgScore:  topic.AvgScore,
		},
	}
}

// NewIncompleteLessonRecommendation recommends a lesson the learner never opened
func NewIncompleteLessonRecommendation(lesson Lesson) Recommendation {
	return Recommendation{
		Kind:        KindIncompleteLesson,
		Priority:    PriorityMedium,
		LessonID:    lesson.LessonID,
		LessonTitle: lesson.Title,
		CourseID:    lesson.CourseID,
		Reason:      "You haven't started this lesson yet. Complete it to keep making progress.",
	}
}

// NewInProgressRecommendation recommends finishing a recently opened lesson
func NewInProgressRecommendation(p InProgressLesson) Recommendation {
	return Recommendation{
		Kind:        KindInProgress,
		Priority:    PriorityMedium,
		LessonID:    p.Lesson.LessonID,
		LessonTitle: p.Lesson.Title,
		CourseID:    p.Lesson.CourseID,
		Reason:      "You recently opened this lesson. Continue and finish it.",
		InProgress:  &InProgressDetail{TimeSpentMinutes: p.TimeSpentMinutes},
	}
}

type recommendationJSON struct {
	Type        RecommendationKind `json:"type"`
	Priority    int                `json:"priority"`
	LessonID    int                `json:"lesson_id"`
	LessonTitle string             `json:"lesson_title"`
	CourseID    int                `json:"course_id"`
	Reason      string             `json:"reason"`
	TopicID     *int               `json:"topic_id,omitempty"`
	TopicName   *string            `json:"topic_name,omitempty"`
	AvgScore    *float64           `json:"avg_score,omitempty"`
	TimeSpent   *int               `json:"time_spent,omitempty"`
}

// MarshalJSON flattens the variant detail into the common record
func (r Recommendation) MarshalJSON() (result0 []byte, err error) {
	out := recommendationJSON{
		Type:        r.Kind,
		Priority:    r.Priority,
		LessonID:    r.LessonID,
		LessonTitle: r.LessonTitle,
		CourseID:    r.CourseID,
		Reason:      r.Reason,
	}
	if r.WeakArea != nil {
		out.TopicID = &r.WeakArea.TopicID
		out.TopicName = &r.WeakArea.TopicName
		out.AvgScore = &r.WeakArea.AvgScore
	}
	if r.InProgress != nil {
		out.TimeSpent = &r.InProgress.TimeSpentMinutes
	}
	return json.Marshal(out)
}

// UnmarshalJSON rebuilds the variant from its flattened form
func (r *Recommendation) UnmarshalJSON(data []byte) error {
	var in recommendationJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	*r = Recommendation{
		Kind:        in.Type,
		Priority:    in.Priority,
		LessonID:    in.LessonID,
		LessonTitle: in.LessonTitle,
		CourseID:    in.CourseID,
		Reason:      in.Reason,
	}

	switch in.Type {
	case KindWeakAreaReview:
		detail := &WeakAreaDetail{}
		if in.TopicID != nil {
			detail.TopicID = *in.TopicID
		}
		if in.TopicName != nil {
			detail.TopicName = *in.TopicName
		}
		if in.AvgScore != nil {
			detail.AvgScore = *in.AvgScore
		}
		r.WeakArea = detail
	case KindInProgress:
		detail := &InProgressDetail{}
		if in.TimeSpent != nil {
			detail.TimeSpentMinutes = *in.TimeSpent
		}
		r.InProgress = detail
	case KindIncompleteLesson:
	default:
		return fmt.Errorf("unknown recommendation type %q", in.Type)
	}
	return nil
}
