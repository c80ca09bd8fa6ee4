package services

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"learnanalytics/internal/config"
	"learnanalytics/internal/models"
	"learnanalytics/internal/observability"
	"learnanalytics/internal/textgen"
	contextutils "learnanalytics/internal/utils"

	"go.opentelemetry.io/otel/attribute"
)

// MistakeServiceInterface defines the mistake analysis and aggregation operations
type MistakeServiceInterface interface {
	// AnalyzeIncorrectAnswer records one incorrect answer. A nil result means the analysis
	// is unavailable, never that no mistake occurred.
	AnalyzeIncorrectAnswer(ctx context.Context, sub models.AnswerSubmission) *models.MistakeAnalysis
	CommonMistakesByTopic(ctx context.Context, courseID int, topicID *int, limit int) []models.CommonMistake
	Insights(ctx context.Context, learnerID int, courseID *int, limit int) []models.MistakeInsight
	Detail(ctx context.Context, learnerID, analysisID int) (*models.MistakeDetail, error)
	Stats(ctx context.Context, learnerID int, courseID *int) (*models.MistakeStats, error)
	RelatedToLesson(ctx context.Context, learnerID, lessonID int) (*models.LessonMistakes, error)
}

// MistakeService classifies incorrect answers and summarizes them
type MistakeService struct {
	mistakes  MistakeStore
	lessons   LessonStore
	generator textgen.Generator
	templates *PromptTemplateManager
	cfg       config.AnalyticsConfig
	logger    *observability.Logger
	metrics   *observability.EngineMetrics
	now       func() time.Time
}

// NewMistakeService creates a new mistake service. generator may be nil, in which case
// analyses keep their templated explanation.
func NewMistakeService(
	mistakes MistakeStore,
	lessons LessonStore,
	generator textgen.Generator,
	cfg config.AnalyticsConfig,
	logger *observability.Logger,
	metrics *observability.EngineMetrics,
) (*MistakeService, error) {
	templates, err := NewPromptTemplateManager()
	if err != nil {
		return nil, err
	}
	return &MistakeService{
		mistakes:  mistakes,
		lessons:   lessons,
		generator: generator,
		templates: templates,
		cfg:       cfg,
		logger:    logger,
		metrics:   metrics,
		now:       time.Now,
	}, nil
}

// WithClock replaces the clock used for analyzed_at
func (s *MistakeService) WithClock(now func() time.Time) *MistakeService {
	s.now = now
	return s
}

// templatedAnalysis is the explanation stored before, or instead of, generated text
func templatedAnalysis(timesWrong int) string {
	return fmt.Sprintf("Learner answered this question incorrectly %d time(s). This may indicate a conceptual gap.", timesWrong)
}

// AnalyzeIncorrectAnswer records one incorrect answer, returning the existing record for a
// (learner, question, quiz) triple that was already analyzed.
func (s *MistakeService) AnalyzeIncorrectAnswer(ctx context.Context, sub models.AnswerSubmission) *models.MistakeAnalysis {
	ctx, span := observability.TraceMistakeFunction(ctx, "analyze_incorrect_answer",
		observability.AttributeUserID(sub.LearnerID),
		observability.AttributeQuestionID(sub.QuestionID),
		observability.AttributeQuizID(sub.QuizID),
	)
	defer span.End()

	fields := map[string]interface{}{
		"user_id":     sub.LearnerID,
		"question_id": sub.QuestionID,
		"quiz_id":     sub.QuizID,
	}

	question, err := s.mistakes.GetQuestion(ctx, sub.QuestionID)
	if err != nil {
		s.logger.Error(ctx, "Failed to look up question", err, fields)
		return nil
	}
	if question == nil {
		s.logger.Debug(ctx, "Question not found for mistake analysis", fields)
		return nil
	}

	existing, err := s.mistakes.FindMistake(ctx, sub.LearnerID, sub.QuestionID, sub.QuizID)
	if err != nil {
		s.logger.Error(ctx, "Failed to look up existing mistake analysis", err, fields)
		return nil
	}
	if existing != nil {
		span.SetAttributes(attribute.Bool("mistake.existing", true))
		return existing
	}

	priorCount, err := s.mistakes.CountMistakes(ctx, sub.LearnerID, sub.QuestionID)
	if err != nil {
		s.logger.Error(ctx, "Failed to count prior mistakes", err, fields)
		return nil
	}

	errorType := models.ErrorTypeConceptual
	if priorCount > s.cfg.SystematicAfter {
		errorType = models.ErrorTypeSystematic
	}

	courseLessons, err := s.lessons.LessonsByCourse(ctx, question.CourseID)
	if err != nil {
		s.logger.Error(ctx, "Failed to load remedial lessons", err, fields)
		return nil
	}
	recommended := make([]int, 0, s.cfg.RemedialLessons)
	for i := 0; i < len(courseLessons) && i < s.cfg.RemedialLessons; i++ {
		recommended = append(recommended, courseLessons[i].LessonID)
	}

	analysis := &models.MistakeAnalysis{
		UserID:             sub.LearnerID,
		QuestionID:         sub.QuestionID,
		TopicID:            question.TopicID,
		CourseID:           question.CourseID,
		QuizID:             sub.QuizID,
		QuestionText:       question.QuestionText,
		UserAnswer:         sub.UserAnswer,
		CorrectAnswer:      sub.CorrectAnswer,
		DifficultyLevel:    question.DifficultyLevel,
		ErrorType:          sql.NullString{String: errorType, Valid: true},
		AIAnalysis:         sql.NullString{String: templatedAnalysis(priorCount + 1), Valid: true},
		RecommendedLessons: recommended,
		TimesSimilarWrong:  priorCount,
		AnalyzedAt:         sql.NullTime{Time: s.now().UTC(), Valid: true},
	}
	if len(courseLessons) > 0 {
		analysis.LessonID = sql.NullInt32{Int32: int32(courseLessons[0].LessonID), Valid: true}
	}

	stored, created, err := s.mistakes.InsertMistake(ctx, analysis)
	if err != nil {
		s.logger.Error(ctx, "Failed to store mistake analysis", err, fields)
		return nil
	}
	if !created {
		span.SetAttributes(attribute.Bool("mistake.existing", true))
		return stored
	}

	s.metrics.RecordMistake(ctx, errorType)
	s.logger.Info(ctx, "Analyzed incorrect answer", map[string]interface{}{
		"user_id":     sub.LearnerID,
		"question_id": sub.QuestionID,
		"analysis_id": stored.AnalysisID,
		"error_type":  errorType,
	})

	if s.generator != nil {
		s.explain(ctx, stored, question, sub)
	}
	return stored
}

// explain asks the generator for a richer explanation and stores it over the templated text.
// Any failure leaves the templated explanation in place.
func (s *MistakeService) explain(ctx context.Context, analysis *models.MistakeAnalysis, question *models.Question, sub models.AnswerSubmission) {
	ctx, span := observability.TraceTextGenFunction(ctx, "explain_mistake",
		attribute.Int("mistake.analysis_id", analysis.AnalysisID),
	)
	defer span.End()

	fields := map[string]interface{}{
		"analysis_id": analysis.AnalysisID,
		"question_id": question.QuestionID,
	}

	prompt, err := s.templates.RenderTemplate(MistakeExplanationTemplate, NewMistakeExplanationData(question, sub.UserAnswer, sub.CorrectAnswer))
	if err != nil {
		s.logger.Warn(ctx, "Failed to render explanation prompt", fields, map[string]interface{}{"error": err.Error()})
		return
	}

	text, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		s.metrics.RecordTextGen(ctx, "error")
		s.logger.Warn(ctx, "Explanation generation failed", fields, map[string]interface{}{"error": err.Error()})
		return
	}
	if text == "" {
		s.metrics.RecordTextGen(ctx, "empty")
		s.logger.Warn(ctx, "Explanation generator returned no text", fields)
		return
	}
	s.metrics.RecordTextGen(ctx, "ok")

	if err := s.mistakes.UpdateAIAnalysis(ctx, analysis.AnalysisID, text); err != nil {
		s.logger.Warn(ctx, "Failed to store generated explanation", fields, map[string]interface{}{"error": err.Error()})
		return
	}
	analysis.AIAnalysis = sql.NullString{String: text, Valid: true}
}

// clampLimit applies def to non-positive limits and caps the result at maxLimit
func clampLimit(limit, def, maxLimit int) int {
	if limit <= 0 {
		limit = def
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return limit
}

func errorTypeLabel(ns sql.NullString) string {
	if !ns.Valid || ns.String == "" {
		return models.ErrorTypeUnknown
	}
	return ns.String
}

func topicLabel(ns sql.NullString) string {
	if !ns.Valid || ns.String == "" {
		return unknownOption
	}
	return ns.String
}

// CommonMistakesByTopic groups the course's mistakes by (topic, error type), most frequent first.
// Store failures yield an empty list.
func (s *MistakeService) CommonMistakesByTopic(ctx context.Context, courseID int, topicID *int, limit int) []models.CommonMistake {
	ctx, span := observability.TraceMistakeFunction(ctx, "common_mistakes_by_topic",
		attribute.Int("course.id", courseID),
		observability.AttributeTopicID(topicID),
		observability.AttributeLimit(limit),
	)
	defer span.End()

	rows, err := s.mistakes.CourseMistakeRows(ctx, courseID, topicID)
	if err != nil {
		s.logger.Error(ctx, "Failed to aggregate common mistakes", err, map[string]interface{}{
			"course_id": courseID,
		})
		return []models.CommonMistake{}
	}

	result := foldCommonMistakes(rows)
	limit = clampLimit(limit, s.cfg.CommonMistakesDefault, s.cfg.CommonMistakesMaxLimit)
	if len(result) > limit {
		result = result[:limit]
	}
	span.SetAttributes(attribute.Int("groups.count", len(result)))
	return result
}

type mistakeGroupKey struct {
	topicID   int
	errorType string
}

// foldCommonMistakes counts rows and distinct learners per (topic, error type)
func foldCommonMistakes(rows []models.MistakeRow) []models.CommonMistake {
	groups := make(map[mistakeGroupKey]*models.CommonMistake)
	learners := make(map[mistakeGroupKey]map[int]struct{})

	for _, row := range rows {
		key := mistakeGroupKey{topicID: row.TopicID, errorType: errorTypeLabel(row.ErrorType)}
		group, ok := groups[key]
		if !ok {
			group = &models.CommonMistake{
				TopicID:   row.TopicID,
				TopicName: topicLabel(row.TopicName),
				ErrorType: key.errorType,
			}
			groups[key] = group
			learners[key] = make(map[int]struct{})
		}
		group.TotalMistakes++
		learners[key][row.UserID] = struct{}{}
	}

	result := make([]models.CommonMistake, 0, len(groups))
	for key, group := range groups {
		group.AffectedStudents = len(learners[key])
		group.Severity = models.MistakeSeverity(group.TotalMistakes)
		result = append(result, *group)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].TotalMistakes != result[j].TotalMistakes {
			return result[i].TotalMistakes > result[j].TotalMistakes
		}
		if result[i].TopicID != result[j].TopicID {
			return result[i].TopicID < result[j].TopicID
		}
		return result[i].ErrorType < result[j].ErrorType
	})
	return result
}

// resolveLessons returns the lessons for ids in the stored order, skipping ids that no longer exist
func (s *MistakeService) resolveLessons(ctx context.Context, ids []int) ([]models.Lesson, error) {
	if len(ids) == 0 {
		return []models.Lesson{}, nil
	}
	found, err := s.lessons.LessonsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[int]models.Lesson, len(found))
	for _, l := range found {
		byID[l.LessonID] = l
	}
	result := make([]models.Lesson, 0, len(ids))
	for _, id := range ids {
		if l, ok := byID[id]; ok {
			result = append(result, l)
		}
	}
	return result, nil
}

// Insights returns the learner's most recent mistakes with their remedial lessons resolved.
// Store failures yield an empty list; a failed lesson lookup only empties that entry's lessons.
func (s *MistakeService) Insights(ctx context.Context, learnerID int, courseID *int, limit int) []models.MistakeInsight {
	ctx, span := observability.TraceMistakeFunction(ctx, "insights",
		observability.AttributeUserID(learnerID),
		observability.AttributeCourseID(courseID),
		observability.AttributeLimit(limit),
	)
	defer span.End()

	limit = clampLimit(limit, s.cfg.InsightsDefaultLimit, s.cfg.InsightsMaxLimit)
	mistakes, err := s.mistakes.RecentMistakes(ctx, learnerID, courseID, limit)
	if err != nil {
		s.logger.Error(ctx, "Failed to load recent mistakes", err, map[string]interface{}{
			"user_id": learnerID,
		})
		return []models.MistakeInsight{}
	}

	result := make([]models.MistakeInsight, 0, len(mistakes))
	for _, m := range mistakes {
		summaries := []models.LessonSummary{}
		lessons, err := s.resolveLessons(ctx, m.RecommendedLessons)
		if err != nil {
			s.logger.Error(ctx, "Failed to resolve recommended lessons", err, map[string]interface{}{
				"user_id":     learnerID,
				"analysis_id": m.AnalysisID,
			})
		}
		for _, l := range lessons {
			summaries = append(summaries, l.Summary())
		}
		result = append(result, models.NewMistakeInsight(m, summaries))
	}
	span.SetAttributes(attribute.Int("insights.count", len(result)))
	return result
}

// Detail returns one of the learner's analyses with its recommended lessons.
// It returns ErrRecordNotFound when the analysis is missing or belongs to another learner.
func (s *MistakeService) Detail(ctx context.Context, learnerID, analysisID int) (result *models.MistakeDetail, err error) {
	ctx, span := observability.TraceMistakeFunction(ctx, "detail",
		observability.AttributeUserID(learnerID),
		attribute.Int("mistake.analysis_id", analysisID),
	)
	defer observability.FinishSpan(span, &err)

	m, err := s.mistakes.GetMistake(ctx, learnerID, analysisID)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to load mistake analysis")
	}
	if m == nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrRecordNotFound, "mistake analysis %d not found", analysisID)
	}

	lessons, err := s.resolveLessons(ctx, m.RecommendedLessons)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to resolve recommended lessons")
	}
	return &models.MistakeDetail{Analysis: *m, RecommendedLessonsDetail: lessons}, nil
}

// Stats summarizes the learner's mistakes by error type and topic
func (s *MistakeService) Stats(ctx context.Context, learnerID int, courseID *int) (result *models.MistakeStats, err error) {
	ctx, span := observability.TraceMistakeFunction(ctx, "stats",
		observability.AttributeUserID(learnerID),
		observability.AttributeCourseID(courseID),
	)
	defer observability.FinishSpan(span, &err)

	rows, err := s.mistakes.LearnerMistakeRows(ctx, learnerID, courseID)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to load learner mistakes")
	}
	return foldMistakeStats(rows), nil
}

func foldMistakeStats(rows []models.MistakeRow) *models.MistakeStats {
	stats := &models.MistakeStats{
		TotalIncorrectAnswers: len(rows),
		ErrorBreakdown:        []models.ErrorTypeCount{},
	}

	byType := make(map[string]int)
	byTopic := make(map[int]*models.ProblematicTopic)
	for _, row := range rows {
		byType[errorTypeLabel(row.ErrorType)]++
		topic, ok := byTopic[row.TopicID]
		if !ok {
			topic = &models.ProblematicTopic{TopicID: row.TopicID, TopicName: topicLabel(row.TopicName)}
			byTopic[row.TopicID] = topic
		}
		topic.MistakesCount++
	}

	for errorType, count := range byType {
		stats.ErrorBreakdown = append(stats.ErrorBreakdown, models.ErrorTypeCount{ErrorType: errorType, Count: count})
	}
	sort.Slice(stats.ErrorBreakdown, func(i, j int) bool {
		if stats.ErrorBreakdown[i].Count != stats.ErrorBreakdown[j].Count {
			return stats.ErrorBreakdown[i].Count > stats.ErrorBreakdown[j].Count
		}
		return stats.ErrorBreakdown[i].ErrorType < stats.ErrorBreakdown[j].ErrorType
	})

	for _, topic := range byTopic {
		best := stats.MostProblematicTopic
		if best == nil || topic.MistakesCount > best.MistakesCount ||
			(topic.MistakesCount == best.MistakesCount && topic.TopicID < best.TopicID) {
			stats.MostProblematicTopic = topic
		}
	}
	return stats
}

// RelatedToLesson lists the learner's mistakes on questions attached to a lesson.
// It returns ErrLessonNotFound for an unknown lesson.
func (s *MistakeService) RelatedToLesson(ctx context.Context, learnerID, lessonID int) (result *models.LessonMistakes, err error) {
	ctx, span := observability.TraceMistakeFunction(ctx, "related_to_lesson",
		observability.AttributeUserID(learnerID),
		observability.AttributeLessonID(lessonID),
	)
	defer observability.FinishSpan(span, &err)

	lesson, err := s.lessons.GetLesson(ctx, lessonID)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to load lesson")
	}
	if lesson == nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrLessonNotFound, "lesson %d not found", lessonID)
	}

	result = &models.LessonMistakes{
		LessonID:        lesson.LessonID,
		LessonTitle:     lesson.Title,
		RelatedMistakes: []models.MistakeAnalysis{},
	}

	questions, err := s.mistakes.LessonQuestionCount(ctx, lessonID)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to count lesson questions")
	}
	if questions == 0 {
		result.Message = "No quiz questions for this lesson"
		return result, nil
	}

	mistakes, err := s.mistakes.MistakesForLesson(ctx, learnerID, lessonID)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to load lesson mistakes")
	}
	result.RelatedMistakes = mistakes
	result.TotalRelatedMistakes = len(mistakes)
	return result, nil
}
