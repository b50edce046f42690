// Package main implements a standalone worker process. Multiple worker
// processes may run against the same database; the claim statement
// guarantees each job is processed by exactly one of them.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/talentforge/talentforge-api/internal/config"
	"github.com/talentforge/talentforge-api/internal/events"
	"github.com/talentforge/talentforge-api/internal/notification"
	"github.com/talentforge/talentforge-api/internal/platform/gemini"
	"github.com/talentforge/talentforge-api/internal/platform/logger"
	"github.com/talentforge/talentforge-api/internal/platform/postgres"
	"github.com/talentforge/talentforge-api/internal/service"
	"github.com/talentforge/talentforge-api/internal/task"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	appLogger, err := logger.Setup(cfg.Server)
	if err != nil {
		log.Fatalf("failed to set up logger: %v", err)
	}

	if err := run(cfg, appLogger); err != nil {
		appLogger.Error("worker exited with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, appLogger *slog.Logger) error {
	db, err := sql.Open("pgx", cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			appLogger.Warn("failed to close database", "error", err)
		}
	}()

	db.SetMaxOpenConns(cfg.Worker.Count + 2)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	jobStore := postgres.NewPostgresJobStore(db)
	stepStore := postgres.NewPostgresStepStore(db)
	logStore := postgres.NewPostgresJobLogStore(db)
	statsStore := postgres.NewPostgresStatsStore(db)

	// The bulk pipeline enqueues child jobs through the service layer.
	jobService, err := service.NewJobService(db, jobStore, stepStore, logStore, statsStore, appLogger)
	if err != nil {
		return fmt.Errorf("failed to create job service: %w", err)
	}

	generator, err := gemini.NewGenerator(context.Background(), appLogger, cfg.LLM)
	if err != nil {
		return fmt.Errorf("failed to create generator: %w", err)
	}

	registry := task.NewRegistry()
	for _, handler := range []task.Handler{
		task.NewCVGenerationHandler(generator),
		task.NewCoverLetterGenerationHandler(generator),
		task.NewJobAnalysisHandler(generator),
		task.NewBulkGenerationHandler(jobService, jobStore),
	} {
		if err := registry.Register(handler); err != nil {
			return fmt.Errorf("failed to register job handler: %w", err)
		}
	}

	emitter := events.NewInMemoryEmitter(appLogger)
	emitter.RegisterHandler(events.NewLogHandler(appLogger))
	emitter.RegisterHandler(notification.NewEventHandler(notification.NewLogNotifier(appLogger), appLogger))

	processor := task.NewProcessor(jobStore, stepStore, logStore, registry, emitter, appLogger)
	pool := task.NewWorkerPool(jobStore, processor, cfg.Worker, appLogger)

	pool.Start()
	appLogger.Info("worker pool running", "worker_count", cfg.Worker.Count)

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)
	<-shutdownCh

	appLogger.Info("shutdown signal received, draining workers")
	pool.Stop()
	appLogger.Info("worker shutdown completed")
	return nil
}
