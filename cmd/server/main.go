// Package main runs the conference backend HTTP server with the background
// queue, the email automation sweeps and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/confera/backend/config"
	"github.com/confera/backend/internal/auth"
	"github.com/confera/backend/internal/certificates"
	"github.com/confera/backend/internal/checkins"
	"github.com/confera/backend/internal/content"
	"github.com/confera/backend/internal/live"
	"github.com/confera/backend/internal/mailer"
	"github.com/confera/backend/internal/middleware"
	"github.com/confera/backend/internal/registrations"
	"github.com/confera/backend/internal/scheduler"
	"github.com/confera/backend/internal/sessions"
	"github.com/confera/backend/pkg/database"
	"github.com/confera/backend/pkg/queue"
	"github.com/confera/backend/pkg/redis"
	"github.com/confera/backend/pkg/response"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	contentStore, err := content.NewStore(cfg.Content.Dir, logger)
	if err != nil {
		logger.Fatal("content store", zap.Error(err))
	}

	tasks := queue.New(cfg.Queue.TaskDelay, logger)

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	pubSub := live.NewRedisPubSub(rdb.Client, logger)
	hub := live.NewHub(pubSub, pubSub, logger)

	// Auth
	authRepo := auth.NewRepository(pool)
	authHandler := auth.NewHandler(authRepo, jwtService, logger)

	// Email
	emailLogRepo := mailer.NewRepository(pool)
	mail := mailer.New(cfg.Email, cfg.Server.PublicBaseURL, emailLogRepo, logger)
	emailLogHandler := mailer.NewAdminHandler(emailLogRepo, logger)

	// Registrations
	countCache := sessions.NewRedisCountCache(rdb, logger)
	regRepo := registrations.NewRepository(pool)
	regSvc := registrations.NewService(regRepo, contentStore, mail, cfg.Registration.TokenTTL, logger).
		WithCountInvalidator(countCache)
	regHandler := registrations.NewHandler(regSvc, tasks, logger)
	regAdmin := registrations.NewAdminHandler(regSvc, regRepo, tasks, logger)

	// Sessions with capacity
	sessionSvc := sessions.NewService(contentStore, regRepo, countCache, cfg.Registration.SessionCapacityCacheTTL, logger)
	sessionHandler := sessions.NewHandler(sessionSvc, contentStore, logger)

	// Check-ins
	certGen := certificates.NewGenerator(cfg.Email.FromName)
	checkInRepo := checkins.NewRepository(pool)
	engine := checkins.NewEngine(regRepo, checkInRepo, contentStore, certGen, mail, tasks, hub, logger)
	checkInHandler := checkins.NewHandler(engine, checkInRepo, logger)

	// Content admin
	contentHandler := content.NewAdminHandler(contentStore, logger)

	jwtValidate := func(token string) (userID, role string, err error) {
		claims, err := jwtService.Validate(token)
		if err != nil {
			return "", "", err
		}
		return claims.UserID.String(), claims.Role, nil
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	api := router.Group("/api/v1")

	// Public: conference content and registration
	api.GET("/conferences", sessionHandler.ListConferences)
	api.GET("/conferences/:slug", sessionHandler.GetConference)
	api.GET("/conferences/:slug/sessions", sessionHandler.ListSessions)
	api.GET("/conferences/:slug/sessions/:id/capacity", sessionHandler.GetCapacity)
	api.POST("/registrations/batch", regHandler.RegisterBatch)
	api.GET("/registrations/confirm/:token", regHandler.Confirm)

	// Auth
	api.POST("/auth/login", authHandler.Login)
	api.GET("/auth/me", middleware.JWT(jwtService), authHandler.Me)

	// Staff: scanning stations and the check-in desk
	staff := api.Group("")
	staff.Use(middleware.JWT(jwtService), middleware.RequireRole("admin", "staff"))
	{
		staff.POST("/check-ins", checkInHandler.CheckInQR)
		staff.POST("/check-ins/manual", checkInHandler.CheckInManual)
		staff.GET("/admin/sessions/:id/check-ins", checkInHandler.ListBySession)
		staff.GET("/admin/conferences/:slug/registrations", regAdmin.Search)
		staff.GET("/admin/registrations/:id", regAdmin.Get)
	}

	// Admin only
	admin := api.Group("/admin")
	admin.Use(middleware.JWT(jwtService), middleware.RequireRole("admin"))
	{
		admin.POST("/users", authHandler.CreateUser)
		admin.GET("/users", authHandler.ListUsers)
		admin.GET("/conferences", contentHandler.List)
		admin.PUT("/conferences/:slug", contentHandler.Upsert)
		admin.POST("/conferences/:slug/registrations", regAdmin.DirectAdd)
		admin.GET("/conferences/:slug/stats", regAdmin.Stats)
		admin.GET("/conferences/:slug/email-logs", emailLogHandler.List)
		admin.DELETE("/registrations/:id", regAdmin.Delete)
		admin.POST("/bulk-checkin-registrations", checkInHandler.CheckInBulk)
	}

	// WebSocket live check-in feed (token in query)
	router.GET("/ws/check-ins", live.ServeWs(hub, jwtValidate, logger))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Background: the task queue and the two email sweeps
	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()
	go tasks.Run(bgCtx)

	confirmationSweep := scheduler.NewConfirmationSweeper(contentStore, regRepo, mail,
		cfg.Registration, cfg.Scheduler.ConfirmationSweepInterval, logger)
	go confirmationSweep.Run(bgCtx)

	sessionSweep := scheduler.NewSessionSweeper(contentStore, regRepo, emailLogRepo, mail,
		cfg.Scheduler.SessionSweepInterval, logger)
	go sessionSweep.Run(bgCtx)

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	bgCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
