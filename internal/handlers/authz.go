package handlers

import (
	"errors"

	"learnanalytics/internal/middleware"
	contextutils "learnanalytics/internal/utils"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

var (
	// ErrUnauthenticated indicates no current user could be determined
	ErrUnauthenticated = errors.New("user not authenticated")
	// ErrInvalidUserID indicates the stored user identifier is malformed
	ErrInvalidUserID = errors.New("invalid user id")
)

// GetCurrentUserID returns the current authenticated learner's ID.
// It checks the Gin context and then the request context (both set by RequireAuth),
// then falls back to the session store.
func GetCurrentUserID(c *gin.Context) (int, error) {
	if rawID, exists := c.Get(middleware.UserIDKey); exists {
		if id, ok := rawID.(int); ok && id > 0 {
			return id, nil
		}
		return 0, ErrInvalidUserID
	}
	if id := contextutils.GetUserIDFromContext(c.Request.Context()); id > 0 {
		return id, nil
	}

	// Fallback to session lookup if context not populated
	userID := sessions.Default(c).Get(middleware.UserIDKey)
	if userID == nil {
		return 0, ErrUnauthenticated
	}
	id, ok := userID.(int)
	if !ok || id <= 0 {
		return 0, ErrInvalidUserID
	}
	return id, nil
}

// CurrentRole returns the role resolved by RequireRole, or "" on routes without a role gate
func CurrentRole(c *gin.Context) string {
	if role := contextutils.GetRoleFromContext(c.Request.Context()); role != "" {
		return role
	}
	return c.GetString(middleware.RoleKey)
}
