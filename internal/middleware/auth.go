// Package middleware provides authentication, authorization and request validation middleware for the Gin web framework.
package middleware

import (
	"context"
	"net/http"

	"learnanalytics/internal/models"
	contextutils "learnanalytics/internal/utils"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

// Session and gin context keys for the authenticated user
const (
	// UserIDKey is the key used to store user ID in session
	UserIDKey = "user_id"
	// UsernameKey is the key used to store username in session
	UsernameKey = "username"
	// RoleKey is the gin context key holding the role resolved by RequireRole
	RoleKey = "role"
)

// UserLookup resolves the account behind a session
type UserLookup interface {
	// GetUser returns (nil, nil) when the user does not exist
	GetUser(ctx context.Context, userID int) (*models.User, error)
}

func abortUnauthorized(c *gin.Context) {
	c.JSON(http.StatusUnauthorized, gin.H{
		"error": "Authentication required",
		"code":  "UNAUTHORIZED",
	})
	c.Abort()
}

// sessionUserID reads the user id from the session. Numbers decoded from JSON arrive as float64.
func sessionUserID(c *gin.Context) (int, bool) {
	switch v := sessions.Default(c).Get(UserIDKey).(type) {
	case int:
		return v, v > 0
	case int64:
		return int(v), v > 0
	case float64:
		return int(v), v > 0
	default:
		return 0, false
	}
}

// RequireAuth returns a middleware that requires a session with a user id.
// The id is stored in the gin context and in the request context.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := sessionUserID(c)
		if !ok {
			abortUnauthorized(c)
			return
		}

		c.Set(UserIDKey, userID)
		if username, ok := sessions.Default(c).Get(UsernameKey).(string); ok && username != "" {
			c.Set(UsernameKey, username)
		}
		c.Request = c.Request.WithContext(contextutils.WithUserID(c.Request.Context(), userID))

		c.Next()
	}
}

// RequireRole returns a middleware that requires an authenticated, active user holding one of roles.
// It must run after RequireAuth.
func RequireRole(users UserLookup, roles ...string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}

	return func(c *gin.Context) {
		userID := c.GetInt(UserIDKey)
		if userID == 0 {
			abortUnauthorized(c)
			return
		}

		user, err := users.GetUser(c.Request.Context(), userID)
		if err != nil {
			HandleAppError(c, contextutils.WrapError(err, "failed to check user role"))
			c.Abort()
			return
		}
		if user == nil || !user.IsActive {
			abortUnauthorized(c)
			return
		}

		if !allowed[user.Role] {
			c.JSON(http.StatusForbidden, gin.H{
				"error": "Insufficient role for this resource",
				"code":  "FORBIDDEN",
			})
			c.Abort()
			return
		}

		c.Set(RoleKey, user.Role)
		c.Request = c.Request.WithContext(contextutils.WithRole(c.Request.Context(), user.Role))
		c.Next()
	}
}

// RequireInstructor allows instructors and admins through
func RequireInstructor(users UserLookup) gin.HandlerFunc {
	return RequireRole(users, models.RoleInstructor, models.RoleAdmin)
}
