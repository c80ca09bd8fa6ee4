package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"learnanalytics/internal/middleware"
	contextutils "learnanalytics/internal/utils"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func setupGinWithSessions() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	store := cookie.NewStore([]byte("test-secret"))
	r.Use(sessions.Sessions("test-session", store))
	return r
}

func TestGetCurrentUserID_Context(t *testing.T) {
	r := setupGinWithSessions()
	r.GET("/test", func(c *gin.Context) {
		c.Set(middleware.UserIDKey, 42)
		id, err := GetCurrentUserID(c)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": id})
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "\"id\":42")
}

func TestGetCurrentUserID_SessionFallback(t *testing.T) {
	r := setupGinWithSessions()
	r.GET("/test", func(c *gin.Context) {
		// No context value; set session value and then read via helper
		sess := sessions.Default(c)
		sess.Set(middleware.UserIDKey, 99)
		_ = sess.Save()

		id, err := GetCurrentUserID(c)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": id})
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "\"id\":99")
}

func TestGetCurrentUserID_Unauthenticated(t *testing.T) {
	r := setupGinWithSessions()
	r.GET("/test", func(c *gin.Context) {
		_, err := GetCurrentUserID(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Contains(t, rr.Body.String(), ErrUnauthenticated.Error())
}

func TestGetCurrentUserID_InvalidType(t *testing.T) {
	r := setupGinWithSessions()
	r.GET("/test", func(c *gin.Context) {
		c.Set(middleware.UserIDKey, "not-an-int")
		_, err := GetCurrentUserID(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Contains(t, rr.Body.String(), ErrInvalidUserID.Error())
}

func TestGetCurrentUserID_RejectsNonPositive(t *testing.T) {
	r := setupGinWithSessions()
	r.GET("/test", func(c *gin.Context) {
		c.Set(middleware.UserIDKey, 0)
		_, err := GetCurrentUserID(c)
		assert.ErrorIs(t, err, ErrInvalidUserID)
		c.Status(http.StatusOK)
	})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/test", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestGetCurrentUserID_RequestContext(t *testing.T) {
	r := setupGinWithSessions()
	r.GET("/test", func(c *gin.Context) {
		c.Request = c.Request.WithContext(contextutils.WithUserID(c.Request.Context(), 17))
		id, err := GetCurrentUserID(c)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": id})
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "\"id\":17")
}

func TestCurrentRole(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(c *gin.Context)
		want    string
	}{
		{
			name: "request context",
			prepare: func(c *gin.Context) {
				c.Request = c.Request.WithContext(contextutils.WithRole(c.Request.Context(), "instructor"))
			},
			want: "instructor",
		},
		{
			name:    "gin context",
			prepare: func(c *gin.Context) { c.Set(middleware.RoleKey, "admin") },
			want:    "admin",
		},
		{
			name:    "no role gate",
			prepare: func(*gin.Context) {},
			want:    "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := setupGinWithSessions()
			var got string
			r.GET("/test", func(c *gin.Context) {
				tt.prepare(c)
				got = CurrentRole(c)
				c.Status(http.StatusOK)
			})

			r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/test", nil))
			assert.Equal(t, tt.want, got)
		})
	}
}
