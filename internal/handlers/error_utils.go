package handlers

import (
	"fmt"
	"net/http"

	"learnanalytics/internal/middleware"
	contextutils "learnanalytics/internal/utils"

	"github.com/gin-gonic/gin"
)

// StandardizeHTTPError creates consistent HTTP error responses with structured error information
func StandardizeHTTPError(c *gin.Context, statusCode int, message, details string) {
	// Map HTTP status code to appropriate error code
	var errorCode contextutils.ErrorCode
	var severity contextutils.SeverityLevel

	switch statusCode {
	case http.StatusBadRequest:
		errorCode = contextutils.ErrorCodeInvalidInput
		severity = contextutils.SeverityWarn
	case http.StatusUnauthorized:
		errorCode = contextutils.ErrorCodeUnauthorized
		severity = contextutils.SeverityWarn
	case http.StatusForbidden:
		errorCode = contextutils.ErrorCodeForbidden
		severity = contextutils.SeverityWarn
	case http.StatusNotFound:
		errorCode = contextutils.ErrorCodeRecordNotFound
		severity = contextutils.SeverityInfo
	case http.StatusServiceUnavailable:
		errorCode = contextutils.ErrorCodeServiceUnavailable
		severity = contextutils.SeverityError
	default:
		errorCode = contextutils.ErrorCodeInternalError
		severity = contextutils.SeverityError
	}

	appErr := contextutils.NewAppError(errorCode, severity, message, details)

	// Send response with the original status code
	c.JSON(statusCode, appErr.ToJSON())
}

// HandleValidationError handles input validation errors consistently
func HandleValidationError(c *gin.Context, field string, value interface{}, reason string) {
	appErr := contextutils.NewAppError(
		contextutils.ErrorCodeInvalidInput,
		contextutils.SeverityWarn,
		fmt.Sprintf("Invalid %s", field),
		fmt.Sprintf("Value '%v' is invalid: %s", value, reason),
	)

	middleware.StandardizeAppError(c, appErr)
}

// HandleAppError handles any AppError and sends appropriate HTTP response.
// Wrapped AppErrors keep the status of their code.
func HandleAppError(c *gin.Context, err error) {
	if _, ok := err.(*contextutils.AppError); ok {
		middleware.HandleAppError(c, err)
		return
	}
	if code := contextutils.GetErrorCode(err); code != contextutils.ErrorCodeInternalError {
		c.JSON(middleware.MapErrorCodeToHTTPStatus(code), contextutils.NewAppErrorWithCause(
			code, contextutils.GetErrorSeverity(err), err.Error(), "", err,
		).ToJSON())
		return
	}
	StandardizeHTTPError(c, http.StatusInternalServerError, "Internal server error", err.Error())
}
