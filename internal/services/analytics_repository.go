package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"learnanalytics/internal/models"
	"learnanalytics/internal/observability"
	serviceinterfaces "learnanalytics/internal/services/interfaces"
	contextutils "learnanalytics/internal/utils"

	"github.com/lib/pq"
	"go.opentelemetry.io/otel/attribute"
)

// QuizResultStore reads quiz attempts
type QuizResultStore interface {
	// TopicScores returns every quiz result of the learner attributed to its quiz's topic
	TopicScores(ctx context.Context, userID int, courseID *int) ([]models.TopicScore, error)
	// QuizResults returns the learner's results in submission order
	QuizResults(ctx context.Context, userID int, courseID *int) ([]models.QuizResult, error)
}

// LessonStore reads lessons and lesson progress
type LessonStore interface {
	LessonsByCourse(ctx context.Context, courseID int) ([]models.Lesson, error)
	LessonsByIDs(ctx context.Context, ids []int) ([]models.Lesson, error)
	// GetLesson returns (nil, nil) when the lesson does not exist
	GetLesson(ctx context.Context, lessonID int) (*models.Lesson, error)
	IncompleteLessons(ctx context.Context, userID int, courseID *int) ([]models.Lesson, error)
	LearnerProgress(ctx context.Context, userID int) ([]models.LessonProgress, error)
	RecentInProgress(ctx context.Context, userID int, since time.Time, limit int) ([]models.InProgressLesson, error)
	// CourseProgressCounts returns enrolled courses with lesson totals; percentages are left to the caller
	CourseProgressCounts(ctx context.Context, userID int) ([]models.CourseProgress, error)
}

// MistakeStore reads and writes mistake analyses
type MistakeStore interface {
	// GetQuestion returns (nil, nil) when the question does not exist
	GetQuestion(ctx context.Context, questionID int) (*models.Question, error)
	// FindMistake returns (nil, nil) when the triple has not been analyzed
	FindMistake(ctx context.Context, userID, questionID, quizID int) (*models.MistakeAnalysis, error)
	CountMistakes(ctx context.Context, userID, questionID int) (int, error)
	// InsertMistake stores m unless the triple already exists. The returned bool is false
	// when another writer got there first, in which case the existing row is returned.
	InsertMistake(ctx context.Context, m *models.MistakeAnalysis) (*models.MistakeAnalysis, bool, error)
	UpdateAIAnalysis(ctx context.Context, analysisID int, text string) error
	CourseMistakeRows(ctx context.Context, courseID int, topicID *int) ([]models.MistakeRow, error)
	LearnerMistakeRows(ctx context.Context, userID int, courseID *int) ([]models.MistakeRow, error)
	RecentMistakes(ctx context.Context, userID int, courseID *int, limit int) ([]models.MistakeAnalysis, error)
	// GetMistake returns (nil, nil) when the analysis does not exist or belongs to someone else
	GetMistake(ctx context.Context, userID, analysisID int) (*models.MistakeAnalysis, error)
	LessonQuestionCount(ctx context.Context, lessonID int) (int, error)
	MistakesForLesson(ctx context.Context, userID, lessonID int) ([]models.MistakeAnalysis, error)
}

// UserStore reads platform accounts
type UserStore interface {
	// GetUser returns (nil, nil) when the user does not exist
	GetUser(ctx context.Context, userID int) (*models.User, error)
}

// SnapshotStore persists strength/weakness snapshots
type SnapshotStore interface {
	// ReplaceLearningAnalytics swaps the learner's stored snapshot for records in one transaction
	ReplaceLearningAnalytics(ctx context.Context, userID int, records []models.LearningAnalyticsRecord) error
}

// AnalyticsRepository is the full store surface used by the engine
type AnalyticsRepository interface {
	QuizResultStore
	LessonStore
	MistakeStore
	UserStore
	SnapshotStore
}

// AnalyticsRepositoryImpl implements AnalyticsRepository over PostgreSQL
type AnalyticsRepositoryImpl struct {
	db     *sql.DB
	logger *observability.Logger
	ready  atomic.Bool
}

var _ serviceinterfaces.Lifecycle = (*AnalyticsRepositoryImpl)(nil)

// NewAnalyticsRepository creates a new analytics repository
func NewAnalyticsRepository(db *sql.DB, logger *observability.Logger) *AnalyticsRepositoryImpl {
	return &AnalyticsRepositoryImpl{
		db:     db,
		logger: logger,
	}
}

// Startup verifies the database answers before the repository is marked ready
func (r *AnalyticsRepositoryImpl) Startup(ctx context.Context) (err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "repository_startup")
	defer observability.FinishSpan(span, &err)

	if err := r.db.PingContext(ctx); err != nil {
		return contextutils.WrapError(contextutils.ErrDatabaseConnection, err.Error())
	}
	r.ready.Store(true)
	return nil
}

// Shutdown marks the repository as not ready. The connection pool is owned by the caller.
func (r *AnalyticsRepositoryImpl) Shutdown(_ context.Context) error {
	r.ready.Store(false)
	return nil
}

// IsReady reports whether Startup succeeded and Shutdown has not run
func (r *AnalyticsRepositoryImpl) IsReady() bool {
	return r.ready.Load()
}

const lessonColumns = `l.lesson_id, l.course_id, l.lesson_title, l.lesson_order, l.duration_minutes`

const mistakeColumns = `ma.analysis_id, ma.user_id, ma.question_id, ma.topic_id, ma.course_id, ma.lesson_id,
	ma.quiz_id, ma.question_text, ma.user_answer, ma.correct_answer, ma.difficulty_level,
	ma.error_type, ma.ai_analysis, ma.recommended_lessons, ma.times_similar_wrong, ma.created_at, ma.analyzed_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanLesson(row rowScanner) (models.Lesson, error) {
	var l models.Lesson
	err := row.Scan(&l.LessonID, &l.CourseID, &l.Title, &l.Order, &l.DurationMinutes)
	return l, err
}

func (r *AnalyticsRepositoryImpl) scanMistake(ctx context.Context, row rowScanner) (*models.MistakeAnalysis, error) {
	var m models.MistakeAnalysis
	var recommended sql.NullString
	err := row.Scan(
		&m.AnalysisID,
		&m.UserID,
		&m.QuestionID,
		&m.TopicID,
		&m.CourseID,
		&m.LessonID,
		&m.QuizID,
		&m.QuestionText,
		&m.UserAnswer,
		&m.CorrectAnswer,
		&m.DifficultyLevel,
		&m.ErrorType,
		&m.AIAnalysis,
		&recommended,
		&m.TimesSimilarWrong,
		&m.CreatedAt,
		&m.AnalyzedAt,
	)
	if err != nil {
		return nil, err
	}

	ids, parseErr := models.ParseLessonIDs(recommended.String)
	if parseErr != nil {
		r.logger.Debug(ctx, "Failed to parse recommended lessons", map[string]interface{}{
			"analysis_id": m.AnalysisID,
			"raw":         recommended.String,
			"error":       parseErr.Error(),
		})
	}
	m.RecommendedLessons = ids
	return &m, nil
}

func (r *AnalyticsRepositoryImpl) queryLessons(ctx context.Context, query string, args ...interface{}) ([]models.Lesson, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			r.logger.Warn(ctx, "Failed to close rows", map[string]interface{}{"error": closeErr.Error()})
		}
	}()

	lessons := []models.Lesson{}
	for rows.Next() {
		lesson, err := scanLesson(rows)
		if err != nil {
			return nil, err
		}
		lessons = append(lessons, lesson)
	}
	return lessons, rows.Err()
}

func (r *AnalyticsRepositoryImpl) queryMistakes(ctx context.Context, query string, args ...interface{}) ([]models.MistakeAnalysis, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			r.logger.Warn(ctx, "Failed to close rows", map[string]interface{}{"error": closeErr.Error()})
		}
	}()

	mistakes := []models.MistakeAnalysis{}
	for rows.Next() {
		m, err := r.scanMistake(ctx, rows)
		if err != nil {
			return nil, err
		}
		mistakes = append(mistakes, *m)
	}
	return mistakes, rows.Err()
}

func (r *AnalyticsRepositoryImpl) queryMistakeRows(ctx context.Context, query string, args ...interface{}) ([]models.MistakeRow, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			r.logger.Warn(ctx, "Failed to close rows", map[string]interface{}{"error": closeErr.Error()})
		}
	}()

	result := []models.MistakeRow{}
	for rows.Next() {
		var row models.MistakeRow
		if err := rows.Scan(&row.UserID, &row.TopicID, &row.TopicName, &row.ErrorType); err != nil {
			return nil, err
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

// TopicScores returns every quiz result of the learner attributed to its quiz's topic
func (r *AnalyticsRepositoryImpl) TopicScores(ctx context.Context, userID int, courseID *int) (result []models.TopicScore, err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "topic_scores",
		observability.AttributeUserID(userID),
		observability.AttributeCourseID(courseID),
	)
	defer observability.FinishSpan(span, &err)

	query := `
		SELECT t.topic_id, t.topic_name, t.course_id, qr.score
		FROM quiz_results qr
		JOIN quizzes q ON q.quiz_id = qr.quiz_id
		JOIN topics t ON t.topic_id = q.topic_id
		WHERE qr.user_id = $1`
	args := []interface{}{userID}
	if courseID != nil {
		query += ` AND t.course_id = $2`
		args = append(args, *courseID)
	}
	query += ` ORDER BY qr.submitted_at, qr.result_id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to query topic scores")
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			r.logger.Warn(ctx, "Failed to close rows", map[string]interface{}{"error": closeErr.Error()})
		}
	}()

	result = []models.TopicScore{}
	for rows.Next() {
		var ts models.TopicScore
		if err = rows.Scan(&ts.TopicID, &ts.TopicName, &ts.CourseID, &ts.Score); err != nil {
			return nil, contextutils.WrapError(err, "failed to scan topic score")
		}
		result = append(result, ts)
	}
	if err = rows.Err(); err != nil {
		return nil, contextutils.WrapError(err, "failed to iterate topic scores")
	}

	span.SetAttributes(attribute.Int("rows", len(result)))
	return result, nil
}

// QuizResults returns the learner's results in submission order
func (r *AnalyticsRepositoryImpl) QuizResults(ctx context.Context, userID int, courseID *int) (result []models.QuizResult, err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "quiz_results",
		observability.AttributeUserID(userID),
		observability.AttributeCourseID(courseID),
	)
	defer observability.FinishSpan(span, &err)

	query := `
		SELECT qr.result_id, qr.user_id, qr.quiz_id, qr.score, qr.time_taken_minutes, qr.submitted_at
		FROM quiz_results qr`
	args := []interface{}{userID}
	if courseID != nil {
		query += ` JOIN quizzes q ON q.quiz_id = qr.quiz_id AND q.course_id = $2`
		args = append(args, *courseID)
	}
	query += ` WHERE qr.user_id = $1 ORDER BY qr.submitted_at, qr.result_id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to query quiz results")
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			r.logger.Warn(ctx, "Failed to close rows", map[string]interface{}{"error": closeErr.Error()})
		}
	}()

	result = []models.QuizResult{}
	for rows.Next() {
		var qr models.QuizResult
		if err = rows.Scan(&qr.ResultID, &qr.UserID, &qr.QuizID, &qr.Score, &qr.TimeTakenMinutes, &qr.SubmittedAt); err != nil {
			return nil, contextutils.WrapError(err, "failed to scan quiz result")
		}
		result = append(result, qr)
	}
	if err = rows.Err(); err != nil {
		return nil, contextutils.WrapError(err, "failed to iterate quiz results")
	}
	return result, nil
}

// LessonsByCourse returns the course's lessons in lesson order
func (r *AnalyticsRepositoryImpl) LessonsByCourse(ctx context.Context, courseID int) (result []models.Lesson, err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "lessons_by_course",
		attribute.Int("course.id", courseID),
	)
	defer observability.FinishSpan(span, &err)

	query := `SELECT ` + lessonColumns + ` FROM lessons l WHERE l.course_id = $1 ORDER BY l.lesson_order, l.lesson_id`
	result, err = r.queryLessons(ctx, query, courseID)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to query lessons by course")
	}
	return result, nil
}

// LessonsByIDs returns the lessons that exist among ids, in no particular order
func (r *AnalyticsRepositoryImpl) LessonsByIDs(ctx context.Context, ids []int) (result []models.Lesson, err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "lessons_by_ids",
		attribute.Int("lesson.count", len(ids)),
	)
	defer observability.FinishSpan(span, &err)

	if len(ids) == 0 {
		return []models.Lesson{}, nil
	}

	query := `SELECT ` + lessonColumns + ` FROM lessons l WHERE l.lesson_id = ANY($1)`
	result, err = r.queryLessons(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to query lessons by id")
	}
	return result, nil
}

// GetLesson returns (nil, nil) when the lesson does not exist
func (r *AnalyticsRepositoryImpl) GetLesson(ctx context.Context, lessonID int) (result *models.Lesson, err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "get_lesson",
		observability.AttributeLessonID(lessonID),
	)
	defer observability.FinishSpan(span, &err)

	query := `SELECT ` + lessonColumns + ` FROM lessons l WHERE l.lesson_id = $1`
	lesson, err := scanLesson(r.db.QueryRowContext(ctx, query, lessonID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to query lesson")
	}
	return &lesson, nil
}

// IncompleteLessons returns lessons without a completed progress row for the learner, in lesson order
func (r *AnalyticsRepositoryImpl) IncompleteLessons(ctx context.Context, userID int, courseID *int) (result []models.Lesson, err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "incomplete_lessons",
		observability.AttributeUserID(userID),
		observability.AttributeCourseID(courseID),
	)
	defer observability.FinishSpan(span, &err)

	query := `SELECT ` + lessonColumns + `
		FROM lessons l
		WHERE NOT EXISTS (
			SELECT 1 FROM lesson_progress lp
			WHERE lp.lesson_id = l.lesson_id AND lp.user_id = $1 AND lp.is_completed = TRUE
		)`
	args := []interface{}{userID}
	if courseID != nil {
		query += ` AND l.course_id = $2`
		args = append(args, *courseID)
	}
	query += ` ORDER BY l.lesson_order, l.course_id, l.lesson_id`

	result, err = r.queryLessons(ctx, query, args...)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to query incomplete lessons")
	}
	return result, nil
}

// LearnerProgress returns every lesson progress row of the learner
func (r *AnalyticsRepositoryImpl) LearnerProgress(ctx context.Context, userID int) (result []models.LessonProgress, err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "learner_progress",
		observability.AttributeUserID(userID),
	)
	defer observability.FinishSpan(span, &err)

	query := `
		SELECT user_id, lesson_id, is_completed, completion_date, time_spent_minutes, last_accessed
		FROM lesson_progress
		WHERE user_id = $1`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to query lesson progress")
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			r.logger.Warn(ctx, "Failed to close rows", map[string]interface{}{"error": closeErr.Error()})
		}
	}()

	result = []models.LessonProgress{}
	for rows.Next() {
		var p models.LessonProgress
		if err = rows.Scan(&p.UserID, &p.LessonID, &p.IsCompleted, &p.CompletionDate, &p.TimeSpentMinutes, &p.LastAccessed); err != nil {
			return nil, contextutils.WrapError(err, "failed to scan lesson progress")
		}
		result = append(result, p)
	}
	if err = rows.Err(); err != nil {
		return nil, contextutils.WrapError(err, "failed to iterate lesson progress")
	}
	return result, nil
}

// RecentInProgress returns unfinished lessons accessed since the given time, most recent first
func (r *AnalyticsRepositoryImpl) RecentInProgress(ctx context.Context, userID int, since time.Time, limit int) (result []models.InProgressLesson, err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "recent_in_progress",
		observability.AttributeUserID(userID),
		observability.AttributeLimit(limit),
	)
	defer observability.FinishSpan(span, &err)

	query := `SELECT ` + lessonColumns + `, lp.time_spent_minutes, lp.last_accessed
		FROM lesson_progress lp
		JOIN lessons l ON l.lesson_id = lp.lesson_id
		WHERE lp.user_id = $1 AND lp.is_completed = FALSE AND lp.last_accessed >= $2
		ORDER BY lp.last_accessed DESC, lp.lesson_id
		LIMIT $3`

	rows, err := r.db.QueryContext(ctx, query, userID, since, limit)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to query in-progress lessons")
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			r.logger.Warn(ctx, "Failed to close rows", map[string]interface{}{"error": closeErr.Error()})
		}
	}()

	result = []models.InProgressLesson{}
	for rows.Next() {
		var p models.InProgressLesson
		if err = rows.Scan(
			&p.Lesson.LessonID, &p.Lesson.CourseID, &p.Lesson.Title, &p.Lesson.Order, &p.Lesson.DurationMinutes,
			&p.TimeSpentMinutes, &p.LastAccessed,
		); err != nil {
			return nil, contextutils.WrapError(err, "failed to scan in-progress lesson")
		}
		result = append(result, p)
	}
	if err = rows.Err(); err != nil {
		return nil, contextutils.WrapError(err, "failed to iterate in-progress lessons")
	}
	return result, nil
}

// CourseProgressCounts returns enrolled courses with lesson totals; percentages are left to the caller
func (r *AnalyticsRepositoryImpl) CourseProgressCounts(ctx context.Context, userID int) (result []models.CourseProgress, err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "course_progress_counts",
		observability.AttributeUserID(userID),
	)
	defer observability.FinishSpan(span, &err)

	query := `
		SELECT c.course_id, c.course_name, e.enrolled_at,
		       (SELECT COUNT(*) FROM lessons l WHERE l.course_id = c.course_id) AS total_lessons,
		       (SELECT COUNT(*) FROM lesson_progress lp
		          JOIN lessons l ON l.lesson_id = lp.lesson_id
		         WHERE l.course_id = c.course_id AND lp.user_id = e.user_id AND lp.is_completed = TRUE) AS completed_lessons
		FROM enrollments e
		JOIN courses c ON c.course_id = e.course_id
		WHERE e.user_id = $1
		ORDER BY e.enrolled_at, c.course_id`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to query course progress")
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			r.logger.Warn(ctx, "Failed to close rows", map[string]interface{}{"error": closeErr.Error()})
		}
	}()

	result = []models.CourseProgress{}
	for rows.Next() {
		var cp models.CourseProgress
		var enrolledAt time.Time
		if err = rows.Scan(&cp.CourseID, &cp.CourseName, &enrolledAt, &cp.TotalLessons, &cp.CompletedLessons); err != nil {
			return nil, contextutils.WrapError(err, "failed to scan course progress")
		}
		cp.EnrolledAt = &enrolledAt
		result = append(result, cp)
	}
	if err = rows.Err(); err != nil {
		return nil, contextutils.WrapError(err, "failed to iterate course progress")
	}
	return result, nil
}

// GetQuestion returns (nil, nil) when the question does not exist
func (r *AnalyticsRepositoryImpl) GetQuestion(ctx context.Context, questionID int) (result *models.Question, err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "get_question",
		observability.AttributeQuestionID(questionID),
	)
	defer observability.FinishSpan(span, &err)

	query := `
		SELECT question_id, topic_id, course_id, lesson_id, question_text, options,
		       correct_answer, explanation, difficulty_level
		FROM quiz_questions
		WHERE question_id = $1`

	var q models.Question
	err = r.db.QueryRowContext(ctx, query, questionID).Scan(
		&q.QuestionID, &q.TopicID, &q.CourseID, &q.LessonID, &q.QuestionText, &q.Options,
		&q.CorrectAnswer, &q.Explanation, &q.DifficultyLevel,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to query question")
	}
	return &q, nil
}

// FindMistake returns (nil, nil) when the triple has not been analyzed
func (r *AnalyticsRepositoryImpl) FindMistake(ctx context.Context, userID, questionID, quizID int) (result *models.MistakeAnalysis, err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "find_mistake",
		observability.AttributeUserID(userID),
		observability.AttributeQuestionID(questionID),
		observability.AttributeQuizID(quizID),
	)
	defer observability.FinishSpan(span, &err)

	query := `SELECT ` + mistakeColumns + ` FROM mistake_analyses ma
		WHERE ma.user_id = $1 AND ma.question_id = $2 AND ma.quiz_id = $3`

	result, err = r.scanMistake(ctx, r.db.QueryRowContext(ctx, query, userID, questionID, quizID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to query mistake analysis")
	}
	return result, nil
}

// CountMistakes counts the learner's stored analyses for a question across all quizzes
func (r *AnalyticsRepositoryImpl) CountMistakes(ctx context.Context, userID, questionID int) (result int, err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "count_mistakes",
		observability.AttributeUserID(userID),
		observability.AttributeQuestionID(questionID),
	)
	defer observability.FinishSpan(span, &err)

	query := `SELECT COUNT(*) FROM mistake_analyses WHERE user_id = $1 AND question_id = $2`
	if err = r.db.QueryRowContext(ctx, query, userID, questionID).Scan(&result); err != nil {
		return 0, contextutils.WrapError(err, "failed to count mistakes")
	}
	return result, nil
}

// InsertMistake stores m unless the triple already exists
func (r *AnalyticsRepositoryImpl) InsertMistake(ctx context.Context, m *models.MistakeAnalysis) (result *models.MistakeAnalysis, created bool, err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "insert_mistake",
		observability.AttributeUserID(m.UserID),
		observability.AttributeQuestionID(m.QuestionID),
		observability.AttributeQuizID(m.QuizID),
	)
	defer observability.FinishSpan(span, &err)

	query := `
		INSERT INTO mistake_analyses (
			user_id, question_id, topic_id, course_id, lesson_id, quiz_id, question_text,
			user_answer, correct_answer, difficulty_level, error_type, ai_analysis,
			recommended_lessons, times_similar_wrong, analyzed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (user_id, question_id, quiz_id) DO NOTHING
		RETURNING analysis_id, created_at`

	stored := *m
	err = r.db.QueryRowContext(ctx, query,
		m.UserID, m.QuestionID, m.TopicID, m.CourseID, m.LessonID, m.QuizID, m.QuestionText,
		m.UserAnswer, m.CorrectAnswer, m.DifficultyLevel, m.ErrorType, m.AIAnalysis,
		models.EncodeLessonIDs(m.RecommendedLessons), m.TimesSimilarWrong, m.AnalyzedAt,
	).Scan(&stored.AnalysisID, &stored.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		// Lost the race on the unique triple; hand back the winner's row
		span.SetAttributes(attribute.Bool("mistake.conflict", true))
		existing, findErr := r.FindMistake(ctx, m.UserID, m.QuestionID, m.QuizID)
		if findErr != nil {
			return nil, false, findErr
		}
		if existing == nil {
			return nil, false, contextutils.WrapError(contextutils.ErrRecordNotFound, "conflicting mistake analysis vanished")
		}
		return existing, false, nil
	}
	if err != nil {
		return nil, false, contextutils.WrapError(err, "failed to insert mistake analysis")
	}

	return &stored, true, nil
}

// UpdateAIAnalysis overwrites the stored explanation text
func (r *AnalyticsRepositoryImpl) UpdateAIAnalysis(ctx context.Context, analysisID int, text string) (err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "update_ai_analysis",
		attribute.Int("mistake.analysis_id", analysisID),
	)
	defer observability.FinishSpan(span, &err)

	res, err := r.db.ExecContext(ctx, `UPDATE mistake_analyses SET ai_analysis = $2 WHERE analysis_id = $1`, analysisID, text)
	if err != nil {
		return contextutils.WrapError(err, "failed to update ai analysis")
	}
	if n, rowsErr := res.RowsAffected(); rowsErr == nil && n == 0 {
		return contextutils.WrapErrorf(contextutils.ErrRecordNotFound, "mistake analysis %d not found", analysisID)
	}
	return nil
}

// CourseMistakeRows returns every stored mistake of the course, optionally limited to one topic
func (r *AnalyticsRepositoryImpl) CourseMistakeRows(ctx context.Context, courseID int, topicID *int) (result []models.MistakeRow, err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "course_mistake_rows",
		attribute.Int("course.id", courseID),
		observability.AttributeTopicID(topicID),
	)
	defer observability.FinishSpan(span, &err)

	query := `
		SELECT ma.user_id, ma.topic_id, t.topic_name, ma.error_type
		FROM mistake_analyses ma
		LEFT JOIN topics t ON t.topic_id = ma.topic_id
		WHERE ma.course_id = $1`
	args := []interface{}{courseID}
	if topicID != nil {
		query += ` AND ma.topic_id = $2`
		args = append(args, *topicID)
	}

	result, err = r.queryMistakeRows(ctx, query, args...)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to query course mistakes")
	}
	span.SetAttributes(attribute.Int("rows", len(result)))
	return result, nil
}

// LearnerMistakeRows returns every stored mistake of the learner, optionally limited to one course
func (r *AnalyticsRepositoryImpl) LearnerMistakeRows(ctx context.Context, userID int, courseID *int) (result []models.MistakeRow, err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "learner_mistake_rows",
		observability.AttributeUserID(userID),
		observability.AttributeCourseID(courseID),
	)
	defer observability.FinishSpan(span, &err)

	query := `
		SELECT ma.user_id, ma.topic_id, t.topic_name, ma.error_type
		FROM mistake_analyses ma
		LEFT JOIN topics t ON t.topic_id = ma.topic_id
		WHERE ma.user_id = $1`
	args := []interface{}{userID}
	if courseID != nil {
		query += ` AND ma.course_id = $2`
		args = append(args, *courseID)
	}

	result, err = r.queryMistakeRows(ctx, query, args...)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to query learner mistakes")
	}
	return result, nil
}

// RecentMistakes returns the learner's newest analyses first
func (r *AnalyticsRepositoryImpl) RecentMistakes(ctx context.Context, userID int, courseID *int, limit int) (result []models.MistakeAnalysis, err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "recent_mistakes",
		observability.AttributeUserID(userID),
		observability.AttributeCourseID(courseID),
		observability.AttributeLimit(limit),
	)
	defer observability.FinishSpan(span, &err)

	query := `SELECT ` + mistakeColumns + ` FROM mistake_analyses ma WHERE ma.user_id = $1`
	args := []interface{}{userID}
	if courseID != nil {
		args = append(args, *courseID)
		query += fmt.Sprintf(` AND ma.course_id = $%d`, len(args))
	}
	args = append(args, limit)
	query += fmt.Sprintf(` ORDER BY ma.created_at DESC, ma.analysis_id DESC LIMIT $%d`, len(args))

	result, err = r.queryMistakes(ctx, query, args...)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to query recent mistakes")
	}
	return result, nil
}

// GetMistake returns (nil, nil) when the analysis does not exist or belongs to someone else
func (r *AnalyticsRepositoryImpl) GetMistake(ctx context.Context, userID, analysisID int) (result *models.MistakeAnalysis, err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "get_mistake",
		observability.AttributeUserID(userID),
		attribute.Int("mistake.analysis_id", analysisID),
	)
	defer observability.FinishSpan(span, &err)

	query := `SELECT ` + mistakeColumns + ` FROM mistake_analyses ma WHERE ma.analysis_id = $1 AND ma.user_id = $2`
	result, err = r.scanMistake(ctx, r.db.QueryRowContext(ctx, query, analysisID, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to query mistake analysis")
	}
	return result, nil
}

// LessonQuestionCount counts quiz questions attached to a lesson
func (r *AnalyticsRepositoryImpl) LessonQuestionCount(ctx context.Context, lessonID int) (result int, err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "lesson_question_count",
		observability.AttributeLessonID(lessonID),
	)
	defer observability.FinishSpan(span, &err)

	if err = r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM quiz_questions WHERE lesson_id = $1`, lessonID).Scan(&result); err != nil {
		return 0, contextutils.WrapError(err, "failed to count lesson questions")
	}
	return result, nil
}

// MistakesForLesson returns the learner's analyses on questions attached to a lesson, newest first
func (r *AnalyticsRepositoryImpl) MistakesForLesson(ctx context.Context, userID, lessonID int) (result []models.MistakeAnalysis, err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "mistakes_for_lesson",
		observability.AttributeUserID(userID),
		observability.AttributeLessonID(lessonID),
	)
	defer observability.FinishSpan(span, &err)

	query := `SELECT ` + mistakeColumns + `
		FROM mistake_analyses ma
		JOIN quiz_questions q ON q.question_id = ma.question_id
		WHERE ma.user_id = $1 AND q.lesson_id = $2
		ORDER BY ma.created_at DESC, ma.analysis_id DESC`

	result, err = r.queryMistakes(ctx, query, userID, lessonID)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to query lesson mistakes")
	}
	return result, nil
}

// GetUser returns (nil, nil) when the user does not exist
func (r *AnalyticsRepositoryImpl) GetUser(ctx context.Context, userID int) (result *models.User, err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "get_user",
		observability.AttributeUserID(userID),
	)
	defer observability.FinishSpan(span, &err)

	var u models.User
	err = r.db.QueryRowContext(ctx, `SELECT user_id, username, role, is_active FROM users WHERE user_id = $1`, userID).
		Scan(&u.ID, &u.Username, &u.Role, &u.IsActive)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to query user")
	}
	return &u, nil
}

// ReplaceLearningAnalytics swaps the learner's stored snapshot for records in one transaction
func (r *AnalyticsRepositoryImpl) ReplaceLearningAnalytics(ctx context.Context, userID int, records []models.LearningAnalyticsRecord) (err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "replace_learning_analytics",
		observability.AttributeUserID(userID),
		attribute.Int("records", len(records)),
	)
	defer observability.FinishSpan(span, &err)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return contextutils.WrapError(err, "failed to begin snapshot transaction")
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				r.logger.Error(ctx, "Failed to roll back snapshot transaction", rbErr)
			}
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM learning_analytics WHERE user_id = $1`, userID); err != nil {
		return contextutils.WrapError(err, "failed to clear learning analytics")
	}

	insert := `
		INSERT INTO learning_analytics (user_id, topic_id, course_id, strength_score, weakness_score, recommendation, analyzed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	for _, rec := range records {
		if _, err = tx.ExecContext(ctx, insert,
			rec.UserID, rec.TopicID, rec.CourseID, rec.StrengthScore, rec.WeaknessScore, rec.Recommendation, rec.AnalyzedAt,
		); err != nil {
			return contextutils.WrapErrorf(err, "failed to insert learning analytics for topic %d", rec.TopicID)
		}
	}

	if err = tx.Commit(); err != nil {
		return contextutils.WrapError(err, "failed to commit learning analytics")
	}
	return nil
}
