package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/inkwell-press/editorial-api/api/swagger"
	"github.com/inkwell-press/editorial-api/internal/handler"
	"github.com/inkwell-press/editorial-api/internal/repository"
	"github.com/inkwell-press/editorial-api/internal/service"
	"github.com/inkwell-press/editorial-api/pkg/cache"
	"github.com/inkwell-press/editorial-api/pkg/config"
	"github.com/inkwell-press/editorial-api/pkg/database"
	"github.com/inkwell-press/editorial-api/pkg/logger"
	"github.com/inkwell-press/editorial-api/pkg/mailer"
)

// @title Inkwell Editorial API
// @version 1.0.0
// @description Editorial submission workflow: state machine, assignments, plagiarism gate, notifications
// @BasePath /
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("database connection failed", "error", err)
	}
	defer db.Close()

	queryTimeout := cfg.Database.QueryTimeout

	submissionRepo := repository.NewSubmissionRepository(db, queryTimeout)
	eventRepo := repository.NewEventRepository(db, queryTimeout)
	notificationRepo := repository.NewNotificationRepository(db, queryTimeout)
	scanRepo := repository.NewScanRepository(db, queryTimeout)
	userRepo := repository.NewUserRepository(db, queryTimeout)

	metricsSvc := service.NewMetricsService()

	var cacheSvc *service.CacheService
	if cfg.Cache.Enabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Fatalw("redis connection failed", "error", err)
		}
		defer redisClient.Close()
		cacheSvc = service.NewCacheService(repository.NewCacheRepository(redisClient), metricsSvc, cfg.Cache.TTL, logr, true)
	} else {
		cacheSvc = service.NewCacheService(nil, metricsSvc, cfg.Cache.TTL, logr, false)
	}

	issuer := service.NewHTTPCertificateIssuer(cfg.Certificates.BaseURL, cfg.Certificates.Timeout)

	tokenSvc := service.NewTokenService(cfg.JWT)
	workflowSvc := service.NewWorkflowService(submissionRepo, userRepo, issuer, logr,
		service.WithWorkflowMetrics(metricsSvc), service.WithWorkflowCache(cacheSvc))
	assignmentSvc := service.NewAssignmentService(submissionRepo, userRepo, logr,
		service.WithAssignmentMetrics(metricsSvc), service.WithAssignmentCache(cacheSvc))
	plagiarismSvc := service.NewPlagiarismService(submissionRepo, scanRepo, cfg.Plagiarism, logr,
		service.WithPlagiarismMetrics(metricsSvc), service.WithPlagiarismCache(cacheSvc))
	submissionSvc := service.NewSubmissionService(submissionRepo, eventRepo, cacheSvc, cfg.Cache.TTL, logr)
	notificationSvc := service.NewNotificationService(notificationRepo, userRepo, logr)

	deps := handler.RouterDeps{
		Config:        cfg,
		Logger:        logr,
		Tokens:        tokenSvc,
		Metrics:       metricsSvc,
		Submissions:   handler.NewSubmissionHandler(submissionSvc),
		Workflow:      handler.NewWorkflowHandler(workflowSvc),
		Assignments:   handler.NewAssignmentHandler(assignmentSvc),
		Plagiarism:    handler.NewPlagiarismHandler(plagiarismSvc),
		Notifications: handler.NewNotificationHandler(notificationSvc),
	}
	if cfg.Reports.Enabled {
		deps.Reports = handler.NewReportHandler(service.NewExportService(submissionRepo, logr))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var dispatcher *service.DispatcherService
	if cfg.Dispatcher.Enabled {
		mailClient, err := mailer.New(mailer.Config{
			Host:     cfg.Dispatcher.SMTPHost,
			Port:     cfg.Dispatcher.SMTPPort,
			User:     cfg.Dispatcher.SMTPUser,
			Password: cfg.Dispatcher.SMTPPassword,
			From:     cfg.Dispatcher.SMTPFrom,
		})
		if err != nil {
			logr.Sugar().Fatalw("mailer setup failed", "error", err)
		}
		dispatcher = service.NewDispatcherService(notificationRepo, userRepo, mailClient, service.DispatcherConfig{
			PollInterval: cfg.Dispatcher.PollInterval,
			Workers:      cfg.Dispatcher.Workers,
			BatchSize:    cfg.Dispatcher.BatchSize,
		}, logr)
		dispatcher.Start(ctx)
	}

	router := handler.NewRouter(deps)
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", server.Addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("server shutdown failed", "error", err)
	}
	if dispatcher != nil {
		dispatcher.Stop()
	}
	logr.Info("server stopped")
}
