package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	contextutils "learnanalytics/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serveError(t *testing.T, handler gin.HandlerFunc) (*httptest.ResponseRecorder, map[string]interface{}) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/test", handler)

	req, _ := http.NewRequest("GET", "/test", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	return w, response
}

func TestStandardizeHTTPError(t *testing.T) {
	tests := []struct {
		status int
		code   contextutils.ErrorCode
	}{
		{http.StatusBadRequest, contextutils.ErrorCodeInvalidInput},
		{http.StatusUnauthorized, contextutils.ErrorCodeUnauthorized},
		{http.StatusForbidden, contextutils.ErrorCodeForbidden},
		{http.StatusNotFound, contextutils.ErrorCodeRecordNotFound},
		{http.StatusServiceUnavailable, contextutils.ErrorCodeServiceUnavailable},
		{http.StatusInternalServerError, contextutils.ErrorCodeInternalError},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			w, response := serveError(t, func(c *gin.Context) {
				StandardizeHTTPError(c, tt.status, "Something failed", "details here")
			})

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, string(tt.code), response["code"])
			assert.Equal(t, "Something failed", response["message"])
			assert.Equal(t, "details here", response["details"])
			assert.Contains(t, response, "retryable")
		})
	}
}

func TestHandleValidationError(t *testing.T) {
	w, response := serveError(t, func(c *gin.Context) {
		HandleValidationError(c, "course_id", "abc", "must be a positive integer")
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid course_id", response["message"])
	assert.Equal(t, "Value 'abc' is invalid: must be a positive integer", response["details"])
	assert.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))
}

func TestHandleAppError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
		code     contextutils.ErrorCode
	}{
		{"app error", contextutils.ErrLessonNotFound, http.StatusNotFound, contextutils.ErrorCodeLessonNotFound},
		{"wrapped app error", contextutils.WrapErrorf(contextutils.ErrRecordNotFound, "mistake analysis %d not found", 3), http.StatusNotFound, contextutils.ErrorCodeRecordNotFound},
		{"fmt wrapped app error", fmt.Errorf("lookup: %w", contextutils.ErrForbidden), http.StatusForbidden, contextutils.ErrorCodeForbidden},
		{"analysis unavailable", contextutils.ErrAnalysisUnavailable, http.StatusInternalServerError, contextutils.ErrorCodeAnalysisUnavailable},
		{"plain error", assert.AnError, http.StatusInternalServerError, contextutils.ErrorCodeInternalError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, response := serveError(t, func(c *gin.Context) {
				HandleAppError(c, tt.err)
			})

			assert.Equal(t, tt.expected, w.Code)
			assert.Equal(t, string(tt.code), response["code"])
		})
	}
}
