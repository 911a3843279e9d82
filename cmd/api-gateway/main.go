package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/campus-loan-api/api/swagger"
	"github.com/noah-isme/campus-loan-api/internal/handler"
	"github.com/noah-isme/campus-loan-api/internal/middleware"
	"github.com/noah-isme/campus-loan-api/internal/models"
	"github.com/noah-isme/campus-loan-api/internal/repository"
	"github.com/noah-isme/campus-loan-api/internal/service"
	"github.com/noah-isme/campus-loan-api/pkg/cache"
	"github.com/noah-isme/campus-loan-api/pkg/config"
	"github.com/noah-isme/campus-loan-api/pkg/database"
	"github.com/noah-isme/campus-loan-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/campus-loan-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/campus-loan-api/pkg/middleware/requestid"
)

// @title Campus Loan API
// @version 0.1.0
// @description Semester-aware student loan deduction and grace-period engine
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	// Redis is optional: without it allocation locking falls back to the
	// in-process mutex and summaries skip caching.
	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, continuing without distributed lock and cache", zap.Error(err))
		redisClient = nil
	}

	semesterRepo := repository.NewSemesterRepository(db)
	loanRepo := repository.NewLoanRepository(db)
	deductionRepo := repository.NewDeductionRepository(db)
	userRepo := repository.NewUserRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close()

	semesters, err := semesterRepo.ListAll(ctx)
	if err != nil {
		logr.Fatal("failed to load semester calendar", zap.Error(err))
	}
	calendarSvc, err := service.NewCalendarService(semesters)
	if err != nil {
		logr.Fatal("invalid semester calendar", zap.Error(err))
	}
	logr.Info("semester calendar loaded", zap.Int("semesters", len(semesters)))

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	authSvc := service.NewAuthService(userRepo, validate, logr, cfg.JWT)
	allocationSvc := service.NewAllocationService(loanRepo, deductionRepo, calendarSvc, cacheRepo, metricsSvc, validate, logr, cfg.Allocation)
	sweepSvc := service.NewSweepService(loanRepo, calendarSvc, metricsSvc, logr)
	loanSvc := service.NewLoanService(loanRepo, deductionRepo, calendarSvc, cacheRepo, validate, logr, cfg.Summary)

	dispatcher := service.NewNotificationDispatcher(service.NewLogNotifier(logr), cfg.Notifications, logr)
	dispatcher.Start(ctx)
	defer dispatcher.Stop()

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	authHandler := handler.NewAuthHandler(authSvc)
	paymentHandler := handler.NewPaymentHandler(allocationSvc, dispatcher)
	sweepHandler := handler.NewSweepHandler(sweepSvc, dispatcher)
	loanHandler := handler.NewLoanHandler(loanSvc)
	semesterHandler := handler.NewSemesterHandler(calendarSvc)

	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/login", authHandler.Login)

	protected := api.Group("")
	protected.Use(middleware.JWT(authSvc))

	staff := middleware.RequireRoles(models.RoleAdmin, models.RoleFinance)
	anyRole := middleware.RequireRoles(models.RoleAdmin, models.RoleFinance, models.RoleStudent)

	protected.POST("/payments", staff, paymentHandler.Process)
	protected.POST("/sweeps/overdue", staff, sweepHandler.Run)

	protected.POST("/loans", anyRole, loanHandler.Apply)
	protected.GET("/loans/:id", anyRole, loanHandler.Get)
	protected.POST("/loans/:id/approve", staff, loanHandler.Approve)
	protected.POST("/loans/:id/reject", staff, loanHandler.Reject)
	protected.POST("/loans/:id/disburse", staff, loanHandler.Disburse)
	protected.GET("/loans/:id/deductions", anyRole, loanHandler.DeductionHistory)
	protected.GET("/loans/:id/statement", anyRole, loanHandler.Statement)

	protected.GET("/students/:studentId/loans", anyRole, loanHandler.ListByStudent)
	protected.GET("/students/:studentId/loans/summary", anyRole, loanHandler.Summary)
	protected.GET("/students/:studentId/deductions", anyRole, loanHandler.StudentDeductions)

	protected.GET("/semesters", anyRole, semesterHandler.List)
	protected.GET("/semesters/current", anyRole, semesterHandler.Current)
	protected.GET("/semesters/:id", anyRole, semesterHandler.Get)

	if cfg.Sweep.Enabled {
		go runSweepScheduler(ctx, sweepSvc, dispatcher, cfg.Sweep.Interval, logr)
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}

// runSweepScheduler runs the overdue sweep on a fixed interval until the
// context is cancelled. Sweep failures are logged and retried next tick.
func runSweepScheduler(ctx context.Context, sweeps *service.SweepService, dispatcher *service.NotificationDispatcher, interval time.Duration, logr *zap.Logger) {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			result, err := sweeps.Run(ctx, time.Time{})
			if err != nil {
				logr.Error("scheduled sweep failed", zap.Error(err))
				continue
			}
			if dispatcher != nil && len(result.Notifications) > 0 {
				dispatcher.DispatchAll(result.Notifications)
			}
		}
	}
}
