package handlers

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/secure"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"

	"examprep/internal/config"
	"examprep/internal/middleware"
	"examprep/internal/observability"
	"examprep/internal/services"
	"examprep/internal/store"
	"examprep/internal/version"
)

// NewRouter creates the application router with all middleware and routes.
func NewRouter(
	cfg *config.Config,
	userService *services.UserService,
	ledgerService *services.LedgerService,
	selectorService *services.SelectorService,
	statsService *services.StatsService,
	s store.Store,
	logger *observability.Logger,
) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	if cfg.Server.Debug {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	// HTTP request logging through the observability logger
	router.Use(func(c *gin.Context) {
		start := time.Now()

		c.Next()

		latency := time.Since(start)
		statusCode := c.Writer.Status()
		fields := map[string]interface{}{
			"http.method":      c.Request.Method,
			"http.path":        c.Request.URL.Path,
			"http.status_code": statusCode,
			"http.latency_ms":  latency.Milliseconds(),
			"http.client_ip":   c.ClientIP(),
		}
		if len(c.Errors) > 0 {
			fields["http.error"] = c.Errors.String()
		}

		switch {
		case statusCode >= 500:
			logger.Error(c.Request.Context(), "HTTP request failed", nil, fields)
		case statusCode >= 400:
			logger.Warn(c.Request.Context(), "HTTP request warning", fields)
		default:
			logger.Info(c.Request.Context(), "HTTP request", fields)
		}
	})

	// Health check endpoint (defined before any middleware)
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "examprep"})
	})

	// OpenTelemetry tracing with automatic error attributes
	router.Use(observability.GinMiddlewareWithErrorHandling(cfg.OpenTelemetry.ServiceName))

	// Disable automatic redirection for trailing slashes, which is better for APIs
	router.RedirectTrailingSlash = false

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.Server.CORSOrigins
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "X-Requested-With"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	sessionStore := cookie.NewStore([]byte(cfg.Server.SessionSecret))
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
	sessionStore.Options(sessionOpts)
	router.Use(sessions.Sessions(config.SessionName, sessionStore))

	secureConfig := secure.DefaultConfig()
	secureConfig.SSLRedirect = false
	secureConfig.ContentSecurityPolicy = config.DefaultCSP
	router.Use(secure.New(secureConfig))

	router.Use(middleware.ErrorRecoveryMiddleware(logger))

	authHandler := NewAuthHandler(userService, cfg, logger)
	quizHandler := NewQuizHandler(ledgerService, selectorService, s, cfg, logger)
	statsHandler := NewStatsHandler(statsService, cfg, logger)

	v1 := router.Group("/v1")
	{
		v1.GET("/version", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"service":   "examprep",
				"version":   version.Version,
				"commit":    version.Commit,
				"buildTime": version.BuildTime,
			})
		})

		auth := v1.Group("/auth")
		{
			auth.POST("/login", authHandler.Login)
			auth.POST("/logout", authHandler.Logout)
			auth.GET("/status", authHandler.Status)
		}

		quiz := v1.Group("/quiz")
		quiz.Use(middleware.RequireAuth())
		{
			quiz.GET("/question", quizHandler.NextQuestion)
			quiz.GET("/question/:id", quizHandler.GetQuestion)
			quiz.POST("/answer", quizHandler.SubmitAnswer)
			quiz.GET("/batch", quizHandler.Batch)
			quiz.GET("/exam", quizHandler.ExamBatch)
			quiz.GET("/topics", quizHandler.Topics)
			quiz.GET("/next-topic", quizHandler.NextTopic)
		}

		stats := v1.Group("/stats")
		stats.Use(middleware.RequireAuth())
		{
			stats.GET("", statsHandler.UserStats)
			stats.GET("/topics", statsHandler.TopicPerformance)
			stats.GET("/mastery", statsHandler.TopicMastery)
			stats.GET("/weakest-topic", statsHandler.WeakestTopic)
			stats.GET("/history", statsHandler.History)
			stats.DELETE("/progress", statsHandler.ResetProgress)
		}
	}

	return router
}
