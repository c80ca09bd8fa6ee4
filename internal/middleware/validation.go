package middleware

import (
	"bytes"
	"io"

	"learnanalytics/internal/observability"
	contextutils "learnanalytics/internal/utils"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// ValidateJSONBody rejects requests whose body does not satisfy the named schema.
// The body is restored so the handler can bind it again.
func ValidateJSONBody(loader *SchemaLoader, schemaName string, logger *observability.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "request_validation",
			attribute.String("schema.name", schemaName),
		)
		defer span.End()

		body, err := c.GetRawData()
		if err != nil {
			HandleAppError(c, contextutils.WrapError(contextutils.ErrInvalidInput, "failed to read request body"))
			c.Abort()
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewBuffer(body))

		if len(bytes.TrimSpace(body)) == 0 {
			HandleAppError(c, contextutils.WrapError(contextutils.ErrMissingRequired, "request body is required"))
			c.Abort()
			return
		}

		if err := loader.ValidateJSON(body, schemaName); err != nil {
			logger.Warn(ctx, "Request validation failed", map[string]interface{}{
				"method":      c.Request.Method,
				"path":        c.Request.URL.Path,
				"schema_name": schemaName,
				"error":       err.Error(),
			})
			span.SetAttributes(attribute.Bool("validation.failed", true))
			HandleAppError(c, err)
			c.Abort()
			return
		}

		c.Next()
	}
}
