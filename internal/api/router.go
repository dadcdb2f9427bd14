// Package api wires together all HTTP routes for the OpenRide backend.
//
// Route grouping philosophy:
//   - /health and /version are unauthenticated so load balancers and deploy
//     tooling can check the service without credentials.
//   - /api/v1/auth/login is public but sits behind a stricter rate limit than
//     the rest of the API.
//   - Everything else requires a valid JWT. Audit trail listing is open to any
//     authenticated user (scoped to their own records unless they are an
//     admin); the admin CRUD surface additionally requires the admin role.
package api

import (
	"context"
	"database/sql"
	"log"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	adminsvc "github.com/openride/openride/internal/admin"
	adminapi "github.com/openride/openride/internal/api/admin"
	authapi "github.com/openride/openride/internal/api/auth"
	"github.com/openride/openride/internal/audit"
	"github.com/openride/openride/internal/config"
	"github.com/openride/openride/internal/db/models"
	"github.com/openride/openride/internal/db/repositories"
	"github.com/openride/openride/internal/jobs"
	"github.com/openride/openride/internal/middleware"
	"github.com/openride/openride/internal/safego"
)

// BackgroundServices holds references to background resources that must be
// stopped during graceful shutdown. The caller (cmd/server) is responsible for
// calling Shutdown() when the process receives a termination signal.
type BackgroundServices struct {
	shipper      *audit.MultiShipper
	rateLimiters []middleware.Limiter
	redisClient  *redis.Client
	sweeper      *jobs.SuspensionSweeper
}

// Shutdown stops all background goroutines and flushes the audit shippers. It
// should be called after the HTTP server has been shut down so that in-flight
// requests are drained first.
func (bg *BackgroundServices) Shutdown() {
	slog.Info("stopping background services")
	if bg.sweeper != nil {
		bg.sweeper.Stop()
	}
	for _, rl := range bg.rateLimiters {
		rl.Stop()
	}
	if bg.shipper != nil {
		if err := bg.shipper.Close(); err != nil {
			slog.Error("failed to close audit shippers", "error", err)
		}
	}
	if bg.redisClient != nil {
		if err := bg.redisClient.Close(); err != nil {
			slog.Error("failed to close redis client", "error", err)
		}
	}
	slog.Info("all background services stopped")
}

// NewRouter creates and configures the Gin router
func NewRouter(cfg *config.Config, db *sql.DB) (*gin.Engine, *BackgroundServices) {
	router := gin.New()

	// Initialize repositories
	userRepo := repositories.NewUserRepository(db)
	rideRepo := repositories.NewRideRepository(db)
	paymentRepo := repositories.NewPaymentRepository(db)
	auditRepo := repositories.NewAuditLogRepository(db)

	// Audit write path: append-only store plus optional secondary shippers.
	shipper, err := audit.NewMultiShipper(cfg.Audit.Shippers)
	if err != nil {
		log.Fatalf("Failed to initialize audit shippers: %v", err)
	}
	recorder := audit.NewRecorder(auditRepo, shipper)

	// Admin mutation layer, fail-closed onto the recorder.
	service := adminsvc.NewService(userRepo, rideRepo, paymentRepo, recorder)

	// Lift expired suspensions in the background.
	sweeper := jobs.NewSuspensionSweeper(userRepo, recorder, cfg.Jobs.SuspensionSweepMinutes)
	safego.Go(func() {
		sweeper.Start(context.Background())
	})

	// Wrap *sql.DB with sqlx for the stats aggregation handler
	sqlxDB := sqlx.NewDb(db, "postgres")

	// Rate limiters: Redis-backed GCRA when an address is configured, else
	// per-process token buckets.
	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	generalLimiter := newLimiter(redisClient, middleware.RateLimitConfig{
		RequestsPerMinute: cfg.Security.RateLimiting.RequestsPerMinute,
		BurstSize:         cfg.Security.RateLimiting.Burst,
	})
	authLimiter := newLimiter(redisClient, middleware.AuthRateLimitConfig())

	// Add middleware
	router.Use(gin.Recovery())
	router.Use(middleware.SecurityHeadersMiddleware(middleware.APISecurityHeadersConfig()))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.MetricsMiddleware())
	router.Use(LoggerMiddleware(cfg))
	router.Use(CORSMiddleware(cfg))

	// Health check endpoint
	router.GET("/health", healthCheckHandler(db))

	// API version
	router.GET("/version", versionHandler())

	// Initialize handlers
	loginHandlers := authapi.NewLoginHandlers(cfg, userRepo, recorder)
	auditHandlers := adminapi.NewAuditHandlers(db)
	statsHandlers := adminapi.NewStatsHandler(sqlxDB)
	userHandlers := adminapi.NewUserHandlers(service)
	rideHandlers := adminapi.NewRideHandlers(service)
	paymentHandlers := adminapi.NewPaymentHandlers(service)

	apiV1 := router.Group("/api/v1")
	{
		// Public authentication endpoints (no auth required, strictly rate limited)
		authGroup := apiV1.Group("/auth")
		if cfg.Security.RateLimiting.Enabled {
			authGroup.Use(middleware.RateLimitMiddleware(authLimiter))
		}
		{
			authGroup.POST("/login", loginHandlers.LoginHandler())
		}

		// Authenticated endpoints
		authenticatedGroup := apiV1.Group("")
		authenticatedGroup.Use(middleware.AuthMiddleware(userRepo))
		if cfg.Security.RateLimiting.Enabled {
			authenticatedGroup.Use(middleware.RateLimitMiddleware(generalLimiter))
		}
		authenticatedGroup.Use(middleware.RequestAuditMiddleware(recorder, cfg.Audit))
		{
			// Audit trail listing is open to every authenticated user; the
			// handler scopes non-admin callers to their own records.
			authenticatedGroup.GET("/audit-logs", auditHandlers.ListAuditLogsHandler())

			// Admin-only surface
			adminGroup := authenticatedGroup.Group("")
			adminGroup.Use(middleware.RequireRole(models.RoleAdmin))
			{
				adminGroup.GET("/audit-logs/stats", statsHandlers.GetAuditStats)
				adminGroup.GET("/audit-logs/:id", auditHandlers.GetAuditLogHandler())

				adminGroup.GET("/admin/users", userHandlers.ListUsersHandler())
				adminGroup.GET("/admin/users/:id", userHandlers.GetUserHandler())
				adminGroup.PUT("/admin/users/:id", userHandlers.UpdateUserHandler())
				adminGroup.POST("/admin/users/:id/suspend", userHandlers.SuspendUserHandler())

				adminGroup.GET("/admin/rides", rideHandlers.ListRidesHandler())
				adminGroup.GET("/admin/rides/:id", rideHandlers.GetRideHandler())
				adminGroup.PUT("/admin/rides/:id", rideHandlers.UpdateRideHandler())

				adminGroup.GET("/admin/payments", paymentHandlers.ListPaymentsHandler())
				adminGroup.GET("/admin/payments/:id", paymentHandlers.GetPaymentHandler())
				adminGroup.PUT("/admin/payments/:id", paymentHandlers.UpdatePaymentHandler())
			}
		}
	}

	bg := &BackgroundServices{
		shipper:      shipper,
		rateLimiters: []middleware.Limiter{authLimiter, generalLimiter},
		redisClient:  redisClient,
		sweeper:      sweeper,
	}

	return router, bg
}

// newLimiter picks the Redis-backed limiter when a client is available.
func newLimiter(redisClient *redis.Client, config middleware.RateLimitConfig) middleware.Limiter {
	if redisClient != nil {
		return middleware.NewRedisLimiter(redisClient, config)
	}
	return middleware.NewMemoryLimiter(config)
}

// @Summary      Health check
// @Description  Returns the health status of the service, including database connectivity.
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "status: healthy, time: RFC3339 timestamp"
// @Failure      503  {object}  map[string]interface{}  "status: unhealthy, error: database connection failed"
// @Router       /health [get]
// healthCheckHandler returns the health status of the service
func healthCheckHandler(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Check database connection
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  "database connection failed",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status": "healthy",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// @Summary      API version
// @Description  Returns the current API version.
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "version, api_version"
// @Router       /version [get]
// versionHandler returns the API version
func versionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":     "0.1.0",
			"api_version": "v1",
		})
	}
}

// LoggerMiddleware provides structured request logging through slog.
func LoggerMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)

		slog.LogAttrs(
			c.Request.Context(),
			slog.LevelInfo,
			"http request",
			slog.String("method", c.Request.Method),
			slog.String("path", path),
			slog.String("query", query),
			slog.Int("status", c.Writer.Status()),
			slog.Int("size", c.Writer.Size()),
			slog.Duration("latency", latency),
			slog.String("ip", c.ClientIP()),
			slog.String("request_id", c.GetString(middleware.RequestIDKey)),
			slog.String("user_agent", c.Request.UserAgent()),
		)
	}
}

// CORSMiddleware handles CORS
func CORSMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		// Check if origin is allowed
		allowed := false
		for _, allowedOrigin := range cfg.Security.CORS.AllowedOrigins {
			if allowedOrigin == "*" || allowedOrigin == origin {
				allowed = true
				break
			}
		}

		if allowed {
			if origin == "" {
				c.Header("Access-Control-Allow-Origin", "*")
			} else {
				c.Header("Access-Control-Allow-Origin", origin)
			}
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-Requested-With")
			c.Header("Access-Control-Max-Age", "3600")
		}

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
