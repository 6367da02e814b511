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
	"go.uber.org/zap"

	_ "github.com/noah-isme/timetable-api/api/swagger"
	"github.com/noah-isme/timetable-api/internal/handler"
	"github.com/noah-isme/timetable-api/internal/middleware"
	"github.com/noah-isme/timetable-api/internal/repository"
	"github.com/noah-isme/timetable-api/internal/router"
	"github.com/noah-isme/timetable-api/internal/scheduler"
	"github.com/noah-isme/timetable-api/internal/service"
	"github.com/noah-isme/timetable-api/migrations"
	"github.com/noah-isme/timetable-api/pkg/cache"
	"github.com/noah-isme/timetable-api/pkg/config"
	"github.com/noah-isme/timetable-api/pkg/database"
	"github.com/noah-isme/timetable-api/pkg/export"
	"github.com/noah-isme/timetable-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/timetable-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/timetable-api/pkg/middleware/requestid"
	"github.com/noah-isme/timetable-api/pkg/storage"
)

// @title Timetable API
// @version 1.0.0
// @description Weekly timetable generation and editing for student groups
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := migrations.Up(ctx, db, logr); err != nil {
			logr.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	checks := map[string]handler.Pinger{"database": db.PingContext}

	metrics := service.NewMetricsService()
	var cacheRepo service.CacheRepository
	if cfg.Cache.Enabled {
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Fatal("failed to connect to redis", zap.Error(err))
		}
		redisRepo := repository.NewCacheRepository(client, logr)
		defer redisRepo.Close() //nolint:errcheck
		cacheRepo = redisRepo
		checks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Cache.ScheduleTTL, logr, cfg.Cache.Enabled)

	files, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		logr.Fatal("failed to prepare export storage", zap.Error(err))
	}
	signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)

	validate := validator.New()
	grid := scheduler.Grid{Days: cfg.Scheduler.Days, Periods: cfg.Scheduler.Periods}

	groupRepo := repository.NewGroupRepository(db)
	teacherRepo := repository.NewTeacherRepository(db)
	subjectRepo := repository.NewSubjectRepository(db)
	scheduleRepo := repository.NewScheduleRepository(db)
	savedRepo := repository.NewSavedScheduleRepository(db)

	snapshots := service.NewSnapshotLoader(groupRepo, subjectRepo, teacherRepo, scheduleRepo, service.SnapshotConfig{
		Grid:               grid,
		CrossGroupTeachers: cfg.Scheduler.CrossGroupTeachers,
	})
	writer := service.NewScheduleWriter(scheduleRepo, cacheSvc, logr, service.ScheduleWriterConfig{
		CrossGroupTeachers: cfg.Scheduler.CrossGroupTeachers,
	})

	authSvc := service.NewAuthService(validate, logr, service.AuthConfig{
		AdminEmail:        cfg.Admin.Email,
		AdminPasswordHash: cfg.Admin.PasswordHash,
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
	})
	groupSvc := service.NewGroupService(groupRepo, validate, logr)
	teacherSvc := service.NewTeacherService(teacherRepo, grid, validate, logr)
	subjectSvc := service.NewSubjectService(subjectRepo, groupRepo, teacherRepo, writer, grid, validate, logr)
	scheduleSvc := service.NewScheduleService(scheduleRepo, snapshots, writer, cacheSvc, metrics, validate, logr)
	generatorSvc := service.NewScheduleGeneratorService(snapshots, writer, metrics, validate, logr, service.ScheduleGeneratorConfig{
		ProposalTTL: cfg.Scheduler.ProposalTTL,
	})
	batchSvc := service.NewScheduleBatchService(generatorSvc, validate, logr, service.ScheduleBatchConfig{
		Workers:    cfg.Scheduler.Workers,
		MaxRetries: cfg.Scheduler.WorkerRetries,
	})
	savedSvc := service.NewSavedScheduleService(savedRepo, snapshots, writer, validate, logr)
	transferSvc := service.NewTransferService(snapshots, writer, files, signer,
		[]service.ExportRenderer{export.NewCSVExporter(), export.NewPDFExporter()},
		validate, logr, service.TransferConfig{DownloadPath: cfg.APIPrefix + "/exports/download"})

	batchSvc.Start(ctx)
	defer batchSvc.Stop()
	go cleanupExports(ctx, transferSvc, cfg.Exports.CleanupInterval, logr)

	engine := router.New(router.Handlers{
		Auth:           handler.NewAuthHandler(authSvc),
		Groups:         handler.NewGroupHandler(groupSvc),
		Teachers:       handler.NewTeacherHandler(teacherSvc),
		Subjects:       handler.NewSubjectHandler(subjectSvc),
		Schedule:       handler.NewScheduleHandler(scheduleSvc),
		Generator:      handler.NewScheduleGeneratorHandler(generatorSvc, batchSvc),
		SavedSchedules: handler.NewSavedScheduleHandler(savedSvc),
		Transfer:       handler.NewTransferHandler(transferSvc),
		Metrics:        handler.NewMetricsHandler(metrics, checks),
	}, router.Options{
		APIPrefix: cfg.APIPrefix,
		Tokens:    authSvc,
		Docs:      cfg.Env != config.EnvProduction,
	},
		gin.Recovery(),
		reqidmiddleware.Middleware(),
		logger.GinMiddleware(logr),
		corsmiddleware.New(cfg.CORS.AllowedOrigins),
		middleware.Metrics(metrics),
		middleware.WithResponseMeta(),
	)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           engine,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logr.Error("http shutdown failed", zap.Error(err))
		}
	}()

	logr.Sugar().Infow("server starting", "addr", server.Addr, "env", cfg.Env)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logr.Fatal("server failed", zap.Error(err))
	}
	logr.Info("server stopped")
}

func cleanupExports(ctx context.Context, transfer *service.TransferService, interval time.Duration, logr *zap.Logger) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := transfer.Cleanup(ctx); err != nil {
				logr.Warn("export cleanup failed", zap.Error(err))
			}
		}
	}
}
