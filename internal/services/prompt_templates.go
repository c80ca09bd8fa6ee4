package services

import (
	"embed"
	"strings"
	"text/template"

	"learnanalytics/internal/models"
	contextutils "learnanalytics/internal/utils"
)

//go:embed templates/*.tmpl
var promptTemplatesFS embed.FS

// Template names as constants
const (
	MistakeExplanationTemplate = "mistake_explanation.tmpl"
)

// unknownOption labels an answer index that falls outside the option list
const unknownOption = "Unknown"

// PromptTemplateData holds data for rendering prompt templates
type PromptTemplateData struct {
	Question      string
	Options       []string
	UserAnswer    string // text of the chosen option
	CorrectAnswer string // text of the correct option
	Explanation   string
}

// PromptTemplateManager manages prompt templates
type PromptTemplateManager struct {
	templates *template.Template
}

// NewPromptTemplateManager parses the embedded templates
func NewPromptTemplateManager() (result0 *PromptTemplateManager, err error) {
	templates, err := template.New("").ParseFS(promptTemplatesFS, "templates/*.tmpl")
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to parse prompt templates")
	}

	return &PromptTemplateManager{
		templates: templates,
	}, nil
}

// RenderTemplate renders a template with the given data
func (tm *PromptTemplateManager) RenderTemplate(templateName string, data PromptTemplateData) (result0 string, err error) {
	var buf strings.Builder
	err = tm.templates.ExecuteTemplate(&buf, templateName, data)
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

// NewMistakeExplanationData builds the template data for explaining one incorrect answer.
// Options that cannot be decoded are treated as an empty list.
func NewMistakeExplanationData(q *models.Question, userAnswer, correctAnswer int) PromptTemplateData {
	options, err := q.OptionList()
	if err != nil {
		options = []string{}
	}
	return PromptTemplateData{
		Question:      q.QuestionText,
		Options:       options,
		UserAnswer:    optionText(options, userAnswer),
		CorrectAnswer: optionText(options, correctAnswer),
		Explanation:   q.Explanation.String,
	}
}

func optionText(options []string, index int) string {
	if index < 0 || index >= len(options) {
		return unknownOption
	}
	return options[index]
}
