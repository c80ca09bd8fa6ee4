package handlers

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/secure"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"

	"learnanalytics/internal/config"
	"learnanalytics/internal/middleware"
	"learnanalytics/internal/observability"
	"learnanalytics/internal/services"
	"learnanalytics/internal/version"
)

// ServiceName identifies the API in traces and the route listing
const ServiceName = "learnanalytics"

// NewRouter creates the gin engine with all middleware and routes
func NewRouter(
	cfg *config.Config,
	recommendationService services.RecommendationServiceInterface,
	performanceService services.PerformanceServiceInterface,
	completionService services.CompletionServiceInterface,
	analyticsService services.AnalyticsServiceInterface,
	mistakeService services.MistakeServiceInterface,
	users middleware.UserLookup,
	schemas *middleware.SchemaLoader,
	logger *observability.Logger,
) *gin.Engine {
	// Setup Gin mode
	gin.SetMode(gin.ReleaseMode)
	if cfg.Server.Debug {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	router.Use(middleware.ErrorRecoveryMiddleware(logger))
	router.Use(requestLogger(logger))

	// Health check endpoint (defined before any middleware)
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": ServiceName,
			"version": version.Version,
			"commit":  version.Commit,
		})
	})

	// OpenTelemetry spans for every request, marked as failed on 4xx/5xx
	router.Use(observability.GinMiddleware(ServiceName))
	router.Use(observability.GinErrorSpanMiddleware())

	// Disable automatic redirection for trailing slashes, which is better for APIs
	router.RedirectTrailingSlash = false

	// Setup CORS middleware
	corsConfig := cors.DefaultConfig()
	if len(cfg.Server.CORSOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.Server.CORSOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowCredentials = len(cfg.Server.CORSOrigins) > 0
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "X-Requested-With"}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	// Setup session middleware
	store := cookie.NewStore([]byte(cfg.Server.SessionSecret))
	sessionOpts := sessions.Options{
		Path:     config.SessionPath,
		MaxAge:   int(config.SessionMaxAge.Seconds()),
		HttpOnly: config.SessionHTTPOnly,
		Secure:   config.SessionSecure,
	}
	if cfg.Server.Debug {
		sessionOpts.SameSite = http.SameSiteDefaultMode
	} else {
		sessionOpts.SameSite = http.SameSiteLaxMode
		sessionOpts.Secure = true
	}
	store.Options(sessionOpts)
	router.Use(sessions.Sessions(config.SessionName, store))

	// Security middleware
	secureConfig := secure.DefaultConfig()
	secureConfig.SSLRedirect = false
	secureConfig.ContentSecurityPolicy = config.DefaultCSP
	router.Use(secure.New(secureConfig))

	recommendationHandler := NewRecommendationHandler(recommendationService, performanceService, completionService, analyticsService, logger)
	mistakeHandler := NewMistakeHandler(mistakeService, cfg.Analytics, logger)

	v1 := router.Group("/v1")
	v1.Use(middleware.RequireAuth())
	{
		v1.GET("/recommendations", recommendationHandler.GetRecommendations)
		v1.GET("/progress", recommendationHandler.GetProgress)

		analytics := v1.Group("/analytics")
		{
			analytics.GET("", recommendationHandler.GetAnalytics)
			analytics.GET("/weak-topics", recommendationHandler.GetWeakTopics)
			analytics.GET("/patterns", recommendationHandler.GetLearningPatterns)
			analytics.GET("/strengths", recommendationHandler.GetStrengthsAndWeaknesses)
		}

		lessons := v1.Group("/lessons")
		{
			lessons.GET("/incomplete", recommendationHandler.GetIncompleteLessons)
			lessons.GET("/:id/mistakes", mistakeHandler.GetLessonMistakes)
		}

		mistakes := v1.Group("/mistakes")
		{
			mistakes.POST("/analyze",
				middleware.ValidateJSONBody(schemas, middleware.AnalyzeMistakeRequestSchema, logger),
				mistakeHandler.AnalyzeIncorrectAnswer,
			)
			mistakes.GET("/insights", mistakeHandler.GetInsights)
			mistakes.GET("/stats", mistakeHandler.GetMistakeStats)
			mistakes.GET("/common", middleware.RequireInstructor(users), mistakeHandler.GetCommonMistakes)
			mistakes.GET("/:id", mistakeHandler.GetMistakeDetail)
		}
	}

	// Route listing for local debugging
	if cfg.Server.Debug {
		routeListing := NewRouteListingHandler(ServiceName)
		router.GET("/routes", routeListing.GetRouteListingJSON)
		routeListing.CollectRoutes(router)
	}

	return router
}

// requestLogger logs every request with its status and latency at a level matching the status
func requestLogger(logger *observability.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		statusCode := c.Writer.Status()
		fields := map[string]interface{}{
			"http.method":      c.Request.Method,
			"http.path":        c.FullPath(),
			"http.status_code": statusCode,
			"http.latency_ms":  time.Since(start).Milliseconds(),
			"http.client_ip":   c.ClientIP(),
		}
		if len(c.Errors) > 0 {
			fields["http.error"] = c.Errors.String()
		}

		switch {
		case statusCode >= 500:
			fields["http.error_type"] = "server_error"
			logger.Error(c.Request.Context(), "HTTP request failed", nil, fields)
		case statusCode >= 400:
			fields["http.error_type"] = "client_error"
			logger.Warn(c.Request.Context(), "HTTP request warning", fields)
		default:
			logger.Debug(c.Request.Context(), "HTTP request", fields)
		}
	}
}
