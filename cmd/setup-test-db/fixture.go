package main

import (
	"os"

	contextutils "learnanalytics/internal/utils"

	"gopkg.in/yaml.v3"
)

// Fixture is the YAML seed file. Courses, lessons and quizzes are referenced by name;
// times are given as days before the seeding run so recency windows stay meaningful.
type Fixture struct {
	Users       []FixtureUser       `yaml:"users" validate:"required,dive"`
	Courses     []FixtureCourse     `yaml:"courses" validate:"dive"`
	Enrollments []FixtureEnrollment `yaml:"enrollments" validate:"dive"`
	Progress    []FixtureProgress   `yaml:"lesson_progress" validate:"dive"`
	QuizResults []FixtureQuizResult `yaml:"quiz_results" validate:"dive"`
}

// FixtureUser is one account
type FixtureUser struct {
	Username string `yaml:"username" validate:"required,max=50"`
	Email    string `yaml:"email" validate:"omitempty,email"`
	FullName string `yaml:"full_name"`
	Role     string `yaml:"role" validate:"omitempty,oneof=student instructor admin"`
}

// FixtureCourse holds a course with its lessons and topics
type FixtureCourse struct {
	Name       string          `yaml:"name" validate:"required"`
	Instructor string          `yaml:"instructor"`
	Lessons    []FixtureLesson `yaml:"lessons" validate:"dive"`
	Topics     []FixtureTopic  `yaml:"topics" validate:"dive"`
}

// FixtureLesson is an ordered lesson; titles are unique across the file
type FixtureLesson struct {
	Title    string `yaml:"title" validate:"required"`
	Order    int    `yaml:"order" validate:"gte=1"`
	Duration int    `yaml:"duration_minutes" validate:"gte=0"`
}

// FixtureTopic groups quizzes
type FixtureTopic struct {
	Name    string        `yaml:"name" validate:"required"`
	Quizzes []FixtureQuiz `yaml:"quizzes" validate:"dive"`
}

// FixtureQuiz is a quiz; names are unique across the file
type FixtureQuiz struct {
	Name      string            `yaml:"name" validate:"required"`
	Questions []FixtureQuestion `yaml:"questions" validate:"dive"`
}

// FixtureQuestion is a multiple-choice question, optionally attached to a lesson
type FixtureQuestion struct {
	Text          string   `yaml:"text" validate:"required"`
	Options       []string `yaml:"options" validate:"min=2"`
	CorrectAnswer int      `yaml:"correct_answer" validate:"gte=0"`
	Difficulty    int      `yaml:"difficulty" validate:"omitempty,gte=1,lte=5"`
	Lesson        string   `yaml:"lesson"`
}

// FixtureEnrollment enrolls a user in a course
type FixtureEnrollment struct {
	Username string `yaml:"username" validate:"required"`
	Course   string `yaml:"course" validate:"required"`
	DaysAgo  int    `yaml:"days_ago" validate:"gte=0"`
}

// FixtureProgress is a lesson_progress row
type FixtureProgress struct {
	Username         string `yaml:"username" validate:"required"`
	Lesson           string `yaml:"lesson" validate:"required"`
	Completed        bool   `yaml:"completed"`
	TimeSpentMinutes int    `yaml:"time_spent_minutes" validate:"gte=0"`
	DaysAgo          int    `yaml:"days_ago" validate:"gte=0"`
}

// FixtureQuizResult is one quiz attempt
type FixtureQuizResult struct {
	Username         string  `yaml:"username" validate:"required"`
	Quiz             string  `yaml:"quiz" validate:"required"`
	Score            float64 `yaml:"score" validate:"gte=0,lte=100"`
	TotalQuestions   int     `yaml:"total_questions" validate:"gte=0"`
	CorrectAnswers   int     `yaml:"correct_answers" validate:"gte=0"`
	TimeTakenMinutes *int    `yaml:"time_taken_minutes"`
	DaysAgo          int     `yaml:"days_ago" validate:"gte=0"`
}

// LoadFixture reads, decodes and validates a seed file
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, contextutils.WrapErrorf(err, "failed to read fixture %s", path)
	}
	return ParseFixture(data)
}

// ParseFixture decodes and validates seed YAML
func ParseFixture(data []byte) (*Fixture, error) {
	var fixture Fixture
	if err := yaml.Unmarshal(data, &fixture); err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrInvalidInput, "failed to parse fixture: %v", err)
	}
	if err := contextutils.ValidateStruct(&fixture); err != nil {
		return nil, err
	}
	if err := fixture.checkReferences(); err != nil {
		return nil, err
	}
	return &fixture, nil
}

// checkReferences verifies every by-name reference resolves and names are unique
func (f *Fixture) checkReferences() error {
	users := make(map[string]bool, len(f.Users))
	for _, u := range f.Users {
		if users[u.Username] {
			return contextutils.WrapErrorf(contextutils.ErrValidationFailed, "duplicate user %q", u.Username)
		}
		users[u.Username] = true
	}

	courses := make(map[string]bool)
	lessons := make(map[string]bool)
	quizzes := make(map[string]bool)
	for _, c := range f.Courses {
		if courses[c.Name] {
			return contextutils.WrapErrorf(contextutils.ErrValidationFailed, "duplicate course %q", c.Name)
		}
		courses[c.Name] = true
		if c.Instructor != "" && !users[c.Instructor] {
			return contextutils.WrapErrorf(contextutils.ErrValidationFailed, "course %q: unknown instructor %q", c.Name, c.Instructor)
		}
		for _, l := range c.Lessons {
			if lessons[l.Title] {
				return contextutils.WrapErrorf(contextutils.ErrValidationFailed, "duplicate lesson %q", l.Title)
			}
			lessons[l.Title] = true
		}
	}

	for _, c := range f.Courses {
		for _, t := range c.Topics {
			for _, q := range t.Quizzes {
				if quizzes[q.Name] {
					return contextutils.WrapErrorf(contextutils.ErrValidationFailed, "duplicate quiz %q", q.Name)
				}
				quizzes[q.Name] = true
				for _, question := range q.Questions {
					if question.CorrectAnswer >= len(question.Options) {
						return contextutils.WrapErrorf(contextutils.ErrValidationFailed, "quiz %q: correct_answer out of range for %q", q.Name, question.Text)
					}
					if question.Lesson != "" && !lessons[question.Lesson] {
						return contextutils.WrapErrorf(contextutils.ErrValidationFailed, "quiz %q: unknown lesson %q", q.Name, question.Lesson)
					}
				}
			}
		}
	}

	for _, e := range f.Enrollments {
		if !users[e.Username] || !courses[e.Course] {
			return contextutils.WrapErrorf(contextutils.ErrValidationFailed, "enrollment %s/%s references unknown user or course", e.Username, e.Course)
		}
	}
	for _, p := range f.Progress {
		if !users[p.Username] || !lessons[p.Lesson] {
			return contextutils.WrapErrorf(contextutils.ErrValidationFailed, "progress %s/%s references unknown user or lesson", p.Username, p.Lesson)
		}
	}
	for _, r := range f.QuizResults {
		if !users[r.Username] || !quizzes[r.Quiz] {
			return contextutils.WrapErrorf(contextutils.ErrValidationFailed, "quiz result %s/%s references unknown user or quiz", r.Username, r.Quiz)
		}
	}
	return nil
}
