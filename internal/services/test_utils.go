//go:build integration

package services

import (
	"context"
	"database/sql"
	"os"
	"testing"

	"learnanalytics/internal/config"
	"learnanalytics/internal/database"
	"learnanalytics/internal/observability"

	"github.com/stretchr/testify/require"
)

// SharedTestDBSetup opens TEST_DATABASE_URL, applies migrations and empties every table
func SharedTestDBSetup(t *testing.T) *sql.DB {
	t.Helper()

	databaseURL := os.Getenv("TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	logger := observability.NewLogger(&config.OpenTelemetryConfig{EnableLogging: false})
	dbManager := database.NewManager(logger)

	dbConfig := database.DefaultDatabaseConfig()
	dbConfig.URL = databaseURL
	db, err := dbManager.InitDBWithConfig(context.Background(), dbConfig)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	CleanupTestDatabase(db, t)
	return db
}

// CleanupTestDatabase truncates every table and restarts id sequences
func CleanupTestDatabase(db *sql.DB, t *testing.T) {
	t.Helper()
	_, err := db.ExecContext(context.Background(), `
		TRUNCATE TABLE learning_analytics, mistake_analyses, quiz_results, quiz_questions, quizzes,
			lesson_progress, enrollments, lessons, topics, courses, users
		RESTART IDENTITY CASCADE`)
	require.NoError(t, err)
}

// testCourse holds the ids created by insertTestCourse
type testCourse struct {
	learnerID  int
	courseID   int
	topicID    int
	quizID     int
	questionID int
	lessonIDs  []int
}

// insertTestCourse creates one learner enrolled in a course with three lessons, one topic,
// one quiz and one question attached to the second lesson
func insertTestCourse(t *testing.T, db *sql.DB) testCourse {
	t.Helper()
	ctx := context.Background()
	var tc testCourse

	require.NoError(t, db.QueryRowContext(ctx,
		`INSERT INTO users (username, role) VALUES ('learner', 'student') RETURNING user_id`).Scan(&tc.learnerID))
	require.NoError(t, db.QueryRowContext(ctx,
		`INSERT INTO courses (course_name) VALUES ('Go Basics') RETURNING course_id`).Scan(&tc.courseID))
	for order, title := range []string{"Variables", "Pointers", "Slices"} {
		var id int
		require.NoError(t, db.QueryRowContext(ctx,
			`INSERT INTO lessons (course_id, lesson_title, lesson_order) VALUES ($1, $2, $3) RETURNING lesson_id`,
			tc.courseID, title, order+1).Scan(&id))
		tc.lessonIDs = append(tc.lessonIDs, id)
	}
	require.NoError(t, db.QueryRowContext(ctx,
		`INSERT INTO topics (topic_name, course_id) VALUES ('Pointers', $1) RETURNING topic_id`, tc.courseID).Scan(&tc.topicID))
	require.NoError(t, db.QueryRowContext(ctx,
		`INSERT INTO quizzes (quiz_name, course_id, topic_id) VALUES ('Pointers Quiz', $1, $2) RETURNING quiz_id`,
		tc.courseID, tc.topicID).Scan(&tc.quizID))
	require.NoError(t, db.QueryRowContext(ctx,
		`INSERT INTO quiz_questions (topic_id, course_id, lesson_id, question_text, options, correct_answer)
		 VALUES ($1, $2, $3, 'What is &x?', '["value","address"]', 1) RETURNING question_id`,
		tc.topicID, tc.courseID, tc.lessonIDs[1]).Scan(&tc.questionID))
	_, err := db.ExecContext(ctx, `INSERT INTO enrollments (user_id, course_id) VALUES ($1, $2)`, tc.learnerID, tc.courseID)
	require.NoError(t, err)

	return tc
}
