package contextutils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleRequest struct {
	QuestionID int `validate:"gt=0"`
	Answer     int `validate:"gte=0"`
}

func TestValidateStruct(t *testing.T) {
	require.NoError(t, ValidateStruct(sampleRequest{QuestionID: 1, Answer: 0}))

	err := ValidateStruct(sampleRequest{QuestionID: 0, Answer: -1})
	require.Error(t, err)
	assert.True(t, IsError(err, ErrValidationFailed))

	appErr, ok := err.(*AppError)
	require.True(t, ok)
	assert.Contains(t, appErr.Details, "QuestionID must satisfy gt=0")
	assert.Contains(t, appErr.Details, "Answer must satisfy gte=0")
}

func TestIsValidRole(t *testing.T) {
	assert.True(t, IsValidRole("student"))
	assert.True(t, IsValidRole("instructor"))
	assert.True(t, IsValidRole("admin"))
	assert.False(t, IsValidRole(""))
	assert.False(t, IsValidRole("teacher"))
}
