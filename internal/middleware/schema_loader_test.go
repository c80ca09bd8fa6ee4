package middleware

import (
	"errors"
	"testing"

	contextutils "learnanalytics/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEmbeddedSchemas(t *testing.T) {
	loader, err := LoadEmbeddedSchemas()
	require.NoError(t, err)
	assert.True(t, loader.HasSchema(AnalyzeMistakeRequestSchema))
	assert.False(t, loader.HasSchema("Missing"))
}

func TestSchemaLoader_ValidateAnalyzeRequest(t *testing.T) {
	loader, err := LoadEmbeddedSchemas()
	require.NoError(t, err)

	tests := []struct {
		name  string
		body  string
		valid bool
	}{
		{"valid", `{"question_id": 1, "user_answer": 0, "correct_answer": 2, "quiz_id": 3}`, true},
		{"missing quiz", `{"question_id": 1, "user_answer": 0, "correct_answer": 2}`, false},
		{"zero question", `{"question_id": 0, "user_answer": 0, "correct_answer": 2, "quiz_id": 3}`, false},
		{"negative answer", `{"question_id": 1, "user_answer": -1, "correct_answer": 2, "quiz_id": 3}`, false},
		{"string id", `{"question_id": "1", "user_answer": 0, "correct_answer": 2, "quiz_id": 3}`, false},
		{"fractional answer", `{"question_id": 1, "user_answer": 0.5, "correct_answer": 2, "quiz_id": 3}`, false},
		{"extra field", `{"question_id": 1, "user_answer": 0, "correct_answer": 2, "quiz_id": 3, "user_id": 9}`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := loader.ValidateJSON([]byte(tt.body), AnalyzeMistakeRequestSchema)
			if tt.valid {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, contextutils.ErrValidationFailed))
		})
	}
}

func TestSchemaLoader_InvalidJSON(t *testing.T) {
	loader, err := LoadEmbeddedSchemas()
	require.NoError(t, err)

	err = loader.ValidateJSON([]byte(`{"question_id":`), AnalyzeMistakeRequestSchema)
	assert.True(t, errors.Is(err, contextutils.ErrInvalidInput))
}

func TestSchemaLoader_UnknownSchema(t *testing.T) {
	err := NewSchemaLoader().ValidateJSON([]byte(`{}`), "Nope")
	assert.Error(t, err)
}

func TestSchemaLoader_AddSchemaRejectsBrokenDocument(t *testing.T) {
	err := NewSchemaLoader().AddSchema("Broken", []byte(`{"type": 12}`))
	assert.Error(t, err)
}
