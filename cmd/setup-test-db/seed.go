package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"learnanalytics/internal/models"
	"learnanalytics/internal/observability"
	contextutils "learnanalytics/internal/utils"
)

// seededTables lists every table in dependency order; truncation cascades from users
var seededTables = []string{
	"learning_analytics", "mistake_analyses", "quiz_results", "quiz_questions", "quizzes",
	"lesson_progress", "enrollments", "lessons", "topics", "courses", "users",
}

// SeedResult maps fixture names to the ids the database assigned
type SeedResult struct {
	Users   map[string]int `json:"users"`
	Courses map[string]int `json:"courses"`
	Lessons map[string]int `json:"lessons"`
	Quizzes map[string]int `json:"quizzes"`
}

// Seeder writes a Fixture in one transaction
type Seeder struct {
	db     *sql.DB
	logger *observability.Logger
	now    time.Time
}

// NewSeeder creates a seeder; now anchors every days_ago offset
func NewSeeder(db *sql.DB, logger *observability.Logger, now time.Time) *Seeder {
	return &Seeder{db: db, logger: logger, now: now.UTC()}
}

// Reset empties every seeded table and restarts id sequences
func (s *Seeder) Reset(ctx context.Context) error {
	stmt := "TRUNCATE TABLE "
	for i, table := range seededTables {
		if i > 0 {
			stmt += ", "
		}
		stmt += table
	}
	stmt += " RESTART IDENTITY CASCADE"

	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed to reset tables: %v", err)
	}
	s.logger.Info(ctx, "Reset seeded tables", map[string]interface{}{"tables": len(seededTables)})
	return nil
}

// Seed inserts the fixture and returns the assigned ids
func (s *Seeder) Seed(ctx context.Context, f *Fixture) (result *SeedResult, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrDatabaseConnection, "failed to begin transaction: %v", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	result = &SeedResult{
		Users:   make(map[string]int),
		Courses: make(map[string]int),
		Lessons: make(map[string]int),
		Quizzes: make(map[string]int),
	}

	for _, u := range f.Users {
		role := u.Role
		if role == "" {
			role = models.RoleStudent
		}
		var id int
		err = tx.QueryRowContext(ctx,
			`INSERT INTO users (username, email, full_name, role) VALUES ($1, $2, $3, $4) RETURNING user_id`,
			u.Username, nullString(u.Email), nullString(u.FullName), role,
		).Scan(&id)
		if err != nil {
			return nil, contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed to insert user %s: %v", u.Username, err)
		}
		result.Users[u.Username] = id
	}

	for _, c := range f.Courses {
		if err = s.seedCourse(ctx, tx, c, result); err != nil {
			return nil, err
		}
	}

	for _, e := range f.Enrollments {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO enrollments (user_id, course_id, enrolled_at) VALUES ($1, $2, $3)`,
			result.Users[e.Username], result.Courses[e.Course], s.daysAgo(e.DaysAgo),
		)
		if err != nil {
			return nil, contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed to enroll %s in %s: %v", e.Username, e.Course, err)
		}
	}

	for _, p := range f.Progress {
		accessed := s.daysAgo(p.DaysAgo)
		var completedAt *time.Time
		if p.Completed {
			completedAt = &accessed
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO lesson_progress (user_id, lesson_id, is_completed, completion_date, time_spent_minutes, last_accessed)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			result.Users[p.Username], result.Lessons[p.Lesson], p.Completed, completedAt, p.TimeSpentMinutes, accessed,
		)
		if err != nil {
			return nil, contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed to insert progress %s/%s: %v", p.Username, p.Lesson, err)
		}
	}

	for _, r := range f.QuizResults {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO quiz_results (user_id, quiz_id, score, total_questions, correct_answers, time_taken_minutes, submitted_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			result.Users[r.Username], result.Quizzes[r.Quiz], r.Score, r.TotalQuestions, r.CorrectAnswers, r.TimeTakenMinutes, s.daysAgo(r.DaysAgo),
		)
		if err != nil {
			return nil, contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed to insert quiz result %s/%s: %v", r.Username, r.Quiz, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed to commit seed: %v", err)
	}

	s.logger.Info(ctx, "Seeded test data", map[string]interface{}{
		"users":        len(result.Users),
		"courses":      len(result.Courses),
		"lessons":      len(result.Lessons),
		"quizzes":      len(result.Quizzes),
		"quiz_results": len(f.QuizResults),
	})
	return result, nil
}

func (s *Seeder) seedCourse(ctx context.Context, tx *sql.Tx, c FixtureCourse, result *SeedResult) error {
	var instructor *int
	if c.Instructor != "" {
		id := result.Users[c.Instructor]
		instructor = &id
	}

	var courseID int
	if err := tx.QueryRowContext(ctx,
		`INSERT INTO courses (course_name, instructor_id) VALUES ($1, $2) RETURNING course_id`,
		c.Name, instructor,
	).Scan(&courseID); err != nil {
		return contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed to insert course %s: %v", c.Name, err)
	}
	result.Courses[c.Name] = courseID

	for _, l := range c.Lessons {
		var lessonID int
		if err := tx.QueryRowContext(ctx,
			`INSERT INTO lessons (course_id, lesson_title, lesson_order, duration_minutes) VALUES ($1, $2, $3, $4) RETURNING lesson_id`,
			courseID, l.Title, l.Order, nullInt(l.Duration),
		).Scan(&lessonID); err != nil {
			return contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed to insert lesson %s: %v", l.Title, err)
		}
		result.Lessons[l.Title] = lessonID
	}

	for _, t := range c.Topics {
		var topicID int
		if err := tx.QueryRowContext(ctx,
			`INSERT INTO topics (topic_name, course_id) VALUES ($1, $2) RETURNING topic_id`,
			t.Name, courseID,
		).Scan(&topicID); err != nil {
			return contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed to insert topic %s: %v", t.Name, err)
		}

		for _, q := range t.Quizzes {
			var quizID int
			if err := tx.QueryRowContext(ctx,
				`INSERT INTO quizzes (quiz_name, course_id, topic_id) VALUES ($1, $2, $3) RETURNING quiz_id`,
				q.Name, courseID, topicID,
			).Scan(&quizID); err != nil {
				return contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed to insert quiz %s: %v", q.Name, err)
			}
			result.Quizzes[q.Name] = quizID

			for _, question := range q.Questions {
				if err := insertQuestion(ctx, tx, question, topicID, courseID, result.Lessons); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func insertQuestion(ctx context.Context, tx *sql.Tx, q FixtureQuestion, topicID, courseID int, lessons map[string]int) error {
	options, err := json.Marshal(q.Options)
	if err != nil {
		return contextutils.WrapErrorf(err, "failed to encode options for %q", q.Text)
	}

	var lessonID *int
	if q.Lesson != "" {
		id := lessons[q.Lesson]
		lessonID = &id
	}
	difficulty := q.Difficulty
	if difficulty == 0 {
		difficulty = 1
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO quiz_questions (topic_id, course_id, lesson_id, question_text, options, correct_answer, difficulty_level)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		topicID, courseID, lessonID, q.Text, string(options), q.CorrectAnswer, difficulty,
	)
	if err != nil {
		return contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed to insert question %q: %v", q.Text, err)
	}
	return nil
}

func (s *Seeder) daysAgo(days int) time.Time {
	return s.now.AddDate(0, 0, -days)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt(i int) sql.NullInt32 {
	return sql.NullInt32{Int32: int32(i), Valid: i > 0}
}
