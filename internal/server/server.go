// Package server
//
// @title Investly API
// @version 1.0
// @description Investment platform API
// @host localhost:8080
// @BasePath /
package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
	"unicode"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/investly/investly/internal/auth"
	"github.com/investly/investly/internal/config"
	"github.com/investly/investly/internal/database"
	"github.com/investly/investly/internal/investments"
	"github.com/investly/investly/internal/metrics"
	"github.com/investly/investly/internal/models"
	"github.com/investly/investly/internal/ratelimit"
	"github.com/investly/investly/internal/storage"
	"github.com/investly/investly/internal/tasks"
)

// Server represents the HTTP server
type Server struct {
	router             *gin.Engine
	db                 *gorm.DB
	config             *config.Config
	logger             zerolog.Logger
	validator          *validator.Validate
	issuer             *auth.Issuer
	enqueuer           tasks.Enqueuer
	signinLimiter      ratelimit.Limiter
	store              storage.Store
	investmentsService *investments.Service
	version            string
	closers            []func() error
}

// Deps are the collaborators a Server is built from
type Deps struct {
	DB            *gorm.DB
	Enqueuer      tasks.Enqueuer
	SigninLimiter ratelimit.Limiter
	Store         storage.Store
}

// New creates a new server instance with production dependencies
func New(cfg *config.Config, zlog zerolog.Logger, version string) (*Server, error) {
	if err := cfg.ValidateServer(); err != nil {
		return nil, err
	}

	db, err := database.Open(cfg.Database.URL, zlog)
	if err != nil {
		return nil, err
	}

	// Run database migrations
	if err := models.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	// Initialize Asynq client for enqueueing tasks
	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr: cfg.Redis.Address,
	})

	var limiter ratelimit.Limiter = ratelimit.Unlimited{}
	closers := []func() error{asynqClient.Close}
	if cfg.Auth.SigninRateLimit > 0 {
		redisClient, err := ratelimit.Connect(context.Background(), cfg.Redis.Address)
		if err != nil {
			zlog.Warn().Err(err).Msg("Redis unavailable - signin rate limiting disabled")
		} else {
			limiter = ratelimit.NewRedisLimiter(redisClient, "signin", cfg.Auth.SigninRateLimit, time.Minute)
			closers = append(closers, redisClient.Close)
		}
	}

	store, err := storage.NewDiskStore(cfg.Uploads.Dir)
	if err != nil {
		return nil, err
	}

	srv := NewWithDeps(cfg, zlog, version, Deps{
		DB:            db,
		Enqueuer:      asynqClient,
		SigninLimiter: limiter,
		Store:         store,
	})
	srv.closers = closers
	return srv, nil
}

// NewWithDeps creates a server from already constructed dependencies
func NewWithDeps(cfg *config.Config, zlog zerolog.Logger, version string, deps Deps) *Server {
	limiter := deps.SigninLimiter
	if limiter == nil {
		limiter = ratelimit.Unlimited{}
	}

	server := &Server{
		db:                 deps.DB,
		config:             cfg,
		logger:             zlog,
		validator:          newValidator(),
		issuer:             auth.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL),
		enqueuer:           deps.Enqueuer,
		signinLimiter:      limiter,
		store:              deps.Store,
		investmentsService: investments.NewService(deps.DB, zlog),
		version:            version,
	}

	server.setupRouter()
	return server
}

func newValidator() *validator.Validate {
	validate := validator.New()

	// Rejects strings that are empty once whitespace is trimmed
	validate.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})

	// Person names: letters, spaces, apostrophes, hyphens and dots only
	validate.RegisterValidation("personname", func(fl validator.FieldLevel) bool {
		for _, r := range fl.Field().String() {
			if !unicode.IsLetter(r) && r != ' ' && r != '\'' && r != '-' && r != '.' {
				return false
			}
		}
		return true
	})

	return validate
}

// setupRouter configures the Gin router with routes and middleware
func (s *Server) setupRouter() {
	gin.SetMode(gin.ReleaseMode)

	s.router = gin.New()

	s.router.Use(gin.Recovery())
	s.router.Use(s.loggingMiddleware())
	s.router.Use(metrics.GinMiddleware())

	s.router.Use(cors.New(cors.Config{
		AllowOrigins:     s.config.Server.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Health and metrics (no auth required)
	s.router.GET("/health", s.healthCheck)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Uploaded files are public so plan images can be embedded
	s.router.GET("/uploads/*path", s.serveUpload)

	// Public API
	public := s.router.Group("/api")
	{
		public.POST("/auth/signup", s.signup)
		public.POST("/auth/signin", s.signin)
		public.POST("/auth/verify-email", s.verifyEmail)

		public.GET("/plans", s.listPlans)
		public.GET("/plans/:id", s.getPlan)
	}

	// Authenticated API routes (JWT required)
	api := s.router.Group("/api")
	api.Use(JWTAuthMiddleware(s.db, s.issuer, s.logger))
	{
		api.GET("/auth/me", s.getCurrentUser)
		api.POST("/auth/resend-verification", s.resendVerification)

		api.POST("/uploads", s.uploadFile)

		api.GET("/investments", s.listInvestments)
		api.POST("/investments", s.createInvestment)
		api.GET("/transactions", s.listTransactions)
		api.POST("/deposits", s.createDeposit)

		api.GET("/tickets", s.listTickets)
		api.POST("/tickets", s.createTicket)

		api.GET("/payment-methods", s.listPaymentMethods)
		api.POST("/payment-methods", s.createPaymentMethod)
		api.DELETE("/payment-methods/:id", s.deletePaymentMethod)

		// Administration
		admin := api.Group("/admin")
		admin.Use(AdminOnlyMiddleware(s.logger))
		{
			admin.GET("/stats", s.getStats)

			admin.GET("/users", s.listUsers)
			admin.PATCH("/users/:id", s.updateUser)
			admin.DELETE("/users/:id", s.deleteUser)

			admin.POST("/plans", s.createPlan)
			admin.PUT("/plans/:id", s.updatePlan)
			admin.DELETE("/plans/:id", s.deletePlan)

			admin.GET("/tickets", s.listAllTickets)
			admin.POST("/tickets/:id/reply", s.replyTicket)
		}
	}
}

// loggingMiddleware creates a custom logging middleware using zerolog
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start)

		s.logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", duration).
			Str("client_ip", c.ClientIP()).
			Msg("HTTP request")
	}
}

// @Router /health [get]
// @Success 200 {object} map[string]interface{}
func (s *Server) healthCheck(c *gin.Context) {
	status := "online"
	code := http.StatusOK
	if sqlDB, err := s.db.DB(); err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	c.JSON(code, gin.H{
		"status":    status,
		"timestamp": time.Now().UTC(),
		"service":   "investly-api",
		"version":   s.version,
	})
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// GetDB returns the database connection for use by workers
func (s *Server) GetDB() *gorm.DB {
	return s.db
}

// Start starts the HTTP server and blocks until SIGINT/SIGTERM
func (s *Server) Start() error {
	addr := ":" + s.config.Server.Port

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case <-sigChan:
		s.logger.Info().Msg("Received shutdown signal, shutting down gracefully...")
	case err := <-errChan:
		s.logger.Error().Err(err).Msg("HTTP server error")
		s.Close()
		return err
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Error().Err(err).Msg("Error shutting down HTTP server")
		return err
	}

	s.Close()
	s.logger.Info().Msg("Server shutdown complete")
	return nil
}

// Close releases the queue client, redis and database connections
func (s *Server) Close() {
	for _, closeFn := range s.closers {
		if err := closeFn(); err != nil {
			s.logger.Warn().Err(err).Msg("Error closing dependency")
		}
	}
	s.closers = nil

	// Close database connection to flush WAL writes
	if err := database.Close(s.db); err != nil {
		s.logger.Error().Err(err).Msg("Error closing database")
	}
}
