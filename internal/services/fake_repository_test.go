package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"learnanalytics/internal/config"
	"learnanalytics/internal/models"
	"learnanalytics/internal/observability"
	contextutils "learnanalytics/internal/utils"
)

func newTestLogger() *observability.Logger {
	return observability.NewLogger(&config.OpenTelemetryConfig{EnableLogging: false})
}

type fakeQuiz struct {
	quizID    int
	courseID  int
	topicID   int
	topicName string
}

type fakeCourse struct {
	courseID   int
	courseName string
	enrolledAt time.Time
}

// fakeRepository is an in-memory AnalyticsRepository. Setting err makes every call fail.
type fakeRepository struct {
	mu sync.Mutex

	err error

	quizzes     map[int]fakeQuiz
	results     []models.QuizResult
	lessons     []models.Lesson
	progress    []models.LessonProgress
	enrollments map[int][]fakeCourse
	questions   map[int]models.Question
	topics      map[int]string
	mistakes    []models.MistakeAnalysis
	users       map[int]models.User
	snapshots   map[int][]models.LearningAnalyticsRecord

	nextAnalysisID int
	insertCalls    int
	updateCalls    int
	now            time.Time
}

var _ AnalyticsRepository = (*fakeRepository)(nil)

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		quizzes:        make(map[int]fakeQuiz),
		enrollments:    make(map[int][]fakeCourse),
		questions:      make(map[int]models.Question),
		topics:         make(map[int]string),
		users:          make(map[int]models.User),
		snapshots:      make(map[int][]models.LearningAnalyticsRecord),
		nextAnalysisID: 1,
		now:            time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (f *fakeRepository) addQuiz(quizID, courseID, topicID int, topicName string) {
	f.quizzes[quizID] = fakeQuiz{quizID: quizID, courseID: courseID, topicID: topicID, topicName: topicName}
	f.topics[topicID] = topicName
}

func (f *fakeRepository) addResult(userID, quizID int, score float64, minutes ...int32) {
	r := models.QuizResult{
		ResultID:    len(f.results) + 1,
		UserID:      userID,
		QuizID:      quizID,
		Score:       score,
		SubmittedAt: f.now.Add(time.Duration(len(f.results)) * time.Minute),
	}
	if len(minutes) > 0 {
		r.TimeTakenMinutes.Int32 = minutes[0]
		r.TimeTakenMinutes.Valid = true
	}
	f.results = append(f.results, r)
}

func (f *fakeRepository) addLesson(lessonID, courseID, order int, title string) {
	f.lessons = append(f.lessons, models.Lesson{LessonID: lessonID, CourseID: courseID, Order: order, Title: title})
}

func (f *fakeRepository) addProgress(userID, lessonID int, completed bool, lastAccessed time.Time, minutes int) {
	f.progress = append(f.progress, models.LessonProgress{
		UserID:           userID,
		LessonID:         lessonID,
		IsCompleted:      completed,
		TimeSpentMinutes: minutes,
		LastAccessed:     lastAccessed,
	})
}

func (f *fakeRepository) enroll(userID, courseID int, name string) {
	f.enrollments[userID] = append(f.enrollments[userID], fakeCourse{
		courseID:   courseID,
		courseName: name,
		enrolledAt: f.now.Add(time.Duration(len(f.enrollments[userID])) * time.Hour),
	})
}

func (f *fakeRepository) lessonByID(id int) (models.Lesson, bool) {
	for _, l := range f.lessons {
		if l.LessonID == id {
			return l, true
		}
	}
	return models.Lesson{}, false
}

func sortLessons(lessons []models.Lesson) {
	sort.SliceStable(lessons, func(i, j int) bool {
		if lessons[i].Order != lessons[j].Order {
			return lessons[i].Order < lessons[j].Order
		}
		return lessons[i].LessonID < lessons[j].LessonID
	})
}

func (f *fakeRepository) TopicScores(ctx context.Context, userID int, courseID *int) ([]models.TopicScore, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	result := []models.TopicScore{}
	for _, r := range f.results {
		q := f.quizzes[r.QuizID]
		if r.UserID != userID || (courseID != nil && q.courseID != *courseID) {
			continue
		}
		result = append(result, models.TopicScore{TopicID: q.topicID, TopicName: q.topicName, CourseID: q.courseID, Score: r.Score})
	}
	return result, nil
}

func (f *fakeRepository) QuizResults(ctx context.Context, userID int, courseID *int) ([]models.QuizResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	result := []models.QuizResult{}
	for _, r := range f.results {
		if r.UserID != userID || (courseID != nil && f.quizzes[r.QuizID].courseID != *courseID) {
			continue
		}
		result = append(result, r)
	}
	return result, nil
}

func (f *fakeRepository) LessonsByCourse(ctx context.Context, courseID int) ([]models.Lesson, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	result := []models.Lesson{}
	for _, l := range f.lessons {
		if l.CourseID == courseID {
			result = append(result, l)
		}
	}
	sortLessons(result)
	return result, nil
}

func (f *fakeRepository) LessonsByIDs(ctx context.Context, ids []int) ([]models.Lesson, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	wanted := make(map[int]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	result := []models.Lesson{}
	// reverse order so callers cannot rely on the store's ordering
	for i := len(f.lessons) - 1; i >= 0; i-- {
		if wanted[f.lessons[i].LessonID] {
			result = append(result, f.lessons[i])
		}
	}
	return result, nil
}

func (f *fakeRepository) GetLesson(ctx context.Context, lessonID int) (*models.Lesson, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if l, ok := f.lessonByID(lessonID); ok {
		return &l, nil
	}
	return nil, nil
}

func (f *fakeRepository) IncompleteLessons(ctx context.Context, userID int, courseID *int) ([]models.Lesson, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	completed := make(map[int]bool)
	for _, p := range f.progress {
		if p.UserID == userID && p.IsCompleted {
			completed[p.LessonID] = true
		}
	}
	result := []models.Lesson{}
	for _, l := range f.lessons {
		if completed[l.LessonID] || (courseID != nil && l.CourseID != *courseID) {
			continue
		}
		result = append(result, l)
	}
	sortLessons(result)
	return result, nil
}

func (f *fakeRepository) LearnerProgress(ctx context.Context, userID int) ([]models.LessonProgress, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	result := []models.LessonProgress{}
	for _, p := range f.progress {
		if p.UserID == userID {
			result = append(result, p)
		}
	}
	return result, nil
}

func (f *fakeRepository) RecentInProgress(ctx context.Context, userID int, since time.Time, limit int) ([]models.InProgressLesson, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	result := []models.InProgressLesson{}
	for _, p := range f.progress {
		if p.UserID != userID || p.IsCompleted || p.LastAccessed.Before(since) {
			continue
		}
		l, _ := f.lessonByID(p.LessonID)
		result = append(result, models.InProgressLesson{Lesson: l, TimeSpentMinutes: p.TimeSpentMinutes, LastAccessed: p.LastAccessed})
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].LastAccessed.After(result[j].LastAccessed)
	})
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (f *fakeRepository) CourseProgressCounts(ctx context.Context, userID int) ([]models.CourseProgress, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	completed := make(map[int]bool)
	for _, p := range f.progress {
		if p.UserID == userID && p.IsCompleted {
			completed[p.LessonID] = true
		}
	}
	result := []models.CourseProgress{}
	for _, c := range f.enrollments[userID] {
		enrolledAt := c.enrolledAt
		cp := models.CourseProgress{CourseID: c.courseID, CourseName: c.courseName, EnrolledAt: &enrolledAt}
		for _, l := range f.lessons {
			if l.CourseID != c.courseID {
				continue
			}
			cp.TotalLessons++
			if completed[l.LessonID] {
				cp.CompletedLessons++
			}
		}
		result = append(result, cp)
	}
	return result, nil
}

func (f *fakeRepository) GetQuestion(ctx context.Context, questionID int) (*models.Question, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	q, ok := f.questions[questionID]
	if !ok {
		return nil, nil
	}
	return &q, nil
}

func (f *fakeRepository) findMistakeLocked(userID, questionID, quizID int) *models.MistakeAnalysis {
	for _, m := range f.mistakes {
		if m.UserID == userID && m.QuestionID == questionID && m.QuizID == quizID {
			found := m
			return &found
		}
	}
	return nil
}

func (f *fakeRepository) FindMistake(ctx context.Context, userID, questionID, quizID int) (*models.MistakeAnalysis, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.findMistakeLocked(userID, questionID, quizID), nil
}

func (f *fakeRepository) CountMistakes(ctx context.Context, userID, questionID int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	count := 0
	for _, m := range f.mistakes {
		if m.UserID == userID && m.QuestionID == questionID {
			count++
		}
	}
	return count, nil
}

func (f *fakeRepository) InsertMistake(ctx context.Context, m *models.MistakeAnalysis) (*models.MistakeAnalysis, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.insertCalls++
	if f.err != nil {
		return nil, false, f.err
	}
	if existing := f.findMistakeLocked(m.UserID, m.QuestionID, m.QuizID); existing != nil {
		return existing, false, nil
	}
	stored := *m
	stored.RecommendedLessons = append([]int{}, m.RecommendedLessons...)
	stored.AnalysisID = f.nextAnalysisID
	stored.CreatedAt = f.now.Add(time.Duration(f.nextAnalysisID) * time.Second)
	f.nextAnalysisID++
	f.mistakes = append(f.mistakes, stored)
	result := stored
	return &result, true, nil
}

func (f *fakeRepository) UpdateAIAnalysis(ctx context.Context, analysisID int, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateCalls++
	if f.err != nil {
		return f.err
	}
	for i := range f.mistakes {
		if f.mistakes[i].AnalysisID == analysisID {
			f.mistakes[i].AIAnalysis.String = text
			f.mistakes[i].AIAnalysis.Valid = true
			return nil
		}
	}
	return contextutils.ErrRecordNotFound
}

func (f *fakeRepository) mistakeRow(m models.MistakeAnalysis) models.MistakeRow {
	row := models.MistakeRow{UserID: m.UserID, TopicID: m.TopicID, ErrorType: m.ErrorType}
	if name, ok := f.topics[m.TopicID]; ok {
		row.TopicName.String = name
		row.TopicName.Valid = true
	}
	return row
}

func (f *fakeRepository) CourseMistakeRows(ctx context.Context, courseID int, topicID *int) ([]models.MistakeRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	result := []models.MistakeRow{}
	for _, m := range f.mistakes {
		if m.CourseID != courseID || (topicID != nil && m.TopicID != *topicID) {
			continue
		}
		result = append(result, f.mistakeRow(m))
	}
	return result, nil
}

func (f *fakeRepository) LearnerMistakeRows(ctx context.Context, userID int, courseID *int) ([]models.MistakeRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	result := []models.MistakeRow{}
	for _, m := range f.mistakes {
		if m.UserID != userID || (courseID != nil && m.CourseID != *courseID) {
			continue
		}
		result = append(result, f.mistakeRow(m))
	}
	return result, nil
}

func (f *fakeRepository) newestFirst(keep func(models.MistakeAnalysis) bool) []models.MistakeAnalysis {
	result := []models.MistakeAnalysis{}
	for i := len(f.mistakes) - 1; i >= 0; i-- {
		if keep(f.mistakes[i]) {
			result = append(result, f.mistakes[i])
		}
	}
	return result
}

func (f *fakeRepository) RecentMistakes(ctx context.Context, userID int, courseID *int, limit int) ([]models.MistakeAnalysis, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	result := f.newestFirst(func(m models.MistakeAnalysis) bool {
		return m.UserID == userID && (courseID == nil || m.CourseID == *courseID)
	})
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (f *fakeRepository) GetMistake(ctx context.Context, userID, analysisID int) (*models.MistakeAnalysis, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	for _, m := range f.mistakes {
		if m.AnalysisID == analysisID && m.UserID == userID {
			found := m
			return &found, nil
		}
	}
	return nil, nil
}

func (f *fakeRepository) LessonQuestionCount(ctx context.Context, lessonID int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	count := 0
	for _, q := range f.questions {
		if q.LessonID.Valid && int(q.LessonID.Int32) == lessonID {
			count++
		}
	}
	return count, nil
}

func (f *fakeRepository) MistakesForLesson(ctx context.Context, userID, lessonID int) ([]models.MistakeAnalysis, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.newestFirst(func(m models.MistakeAnalysis) bool {
		q := f.questions[m.QuestionID]
		return m.UserID == userID && q.LessonID.Valid && int(q.LessonID.Int32) == lessonID
	}), nil
}

func (f *fakeRepository) GetUser(ctx context.Context, userID int) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	u, ok := f.users[userID]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (f *fakeRepository) ReplaceLearningAnalytics(ctx context.Context, userID int, records []models.LearningAnalyticsRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.snapshots[userID] = append([]models.LearningAnalyticsRecord{}, records...)
	return nil
}
