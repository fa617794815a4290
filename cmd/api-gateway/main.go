package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/edtia/edtia-api/internal/handler"
	internalmiddleware "github.com/edtia/edtia-api/internal/middleware"
	"github.com/edtia/edtia-api/internal/repository"
	"github.com/edtia/edtia-api/internal/service"
	"github.com/edtia/edtia-api/pkg/cache"
	"github.com/edtia/edtia-api/pkg/config"
	"github.com/edtia/edtia-api/pkg/database"
	"github.com/edtia/edtia-api/pkg/logger"
	corsmiddleware "github.com/edtia/edtia-api/pkg/middleware/cors"
	reqidmiddleware "github.com/edtia/edtia-api/pkg/middleware/requestid"
)

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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, shortlist caching disabled", "error", err)
		redisClient = nil
	}

	validate := validator.New()
	metrics := service.NewMetricsService()

	requirementRepo := repository.NewCourseRequirementRepository(db)
	roomRepo := repository.NewRoomRepository(db)
	constraintRepo := repository.NewConstraintRepository(db)
	teacherLimitRepo := repository.NewTeacherLimitRepository(db)
	solutionRepo := repository.NewSolutionRepository(db)
	runRepo := repository.NewOptimizationRunRepository(db)
	substituteRepo := repository.NewSubstituteRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	optimizationSvc := service.NewOptimizationService(
		requirementRepo,
		roomRepo,
		constraintRepo,
		teacherLimitRepo,
		solutionRepo,
		runRepo,
		db,
		validate,
		metrics,
		logr,
		service.OptimizationServiceConfig{
			DefaultBudget: cfg.Solver.DefaultBudget,
			MaxBudget:     cfg.Solver.MaxBudget,
			SlotMinutes:   cfg.Solver.SlotMinutes,
			Workers:       cfg.Jobs.Workers,
			BufferSize:    cfg.Jobs.BufferSize,
		},
	)
	conflictSvc := service.NewConflictService(solutionRepo, validate, metrics, logr)
	substituteSvc := service.NewSubstituteService(substituteRepo, cacheRepo, service.SubstituteServiceConfig{
		ShortlistTTL: cfg.Substitute.ShortlistTTL,
		CacheEnabled: cfg.Substitute.CacheEnabled && redisClient != nil,
	}, validate, metrics, logr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	optimizationSvc.Start(ctx)
	defer optimizationSvc.Stop()

	optimizationHandler := handler.NewOptimizationHandler(optimizationSvc)
	conflictHandler := handler.NewConflictHandler(conflictSvc)
	substituteHandler := handler.NewSubstituteHandler(substituteSvc)
	metricsHandler := handler.NewMetricsHandler(metrics)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metrics))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)

	api := r.Group(cfg.APIPrefix)
	{
		api.POST("/timetables/solve", optimizationHandler.Solve)
		api.POST("/timetables/:id/optimizations", optimizationHandler.Start)
		api.GET("/timetables/:id/conflicts", conflictHandler.ListStored)
		api.GET("/optimizations/:id", optimizationHandler.Get)
		api.DELETE("/optimizations/:id", optimizationHandler.Cancel)
		api.POST("/conflicts/detect", conflictHandler.Detect)
		api.POST("/substitutes/rank", substituteHandler.Rank)
		api.DELETE("/substitutes/shortlists/:absenceId", substituteHandler.InvalidateShortlist)
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("server shutdown failed", "error", err)
	}
}
