package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/talentforge/talentforge-api/internal/config"
	"github.com/talentforge/talentforge-api/internal/events"
	"github.com/talentforge/talentforge-api/internal/notification"
	"github.com/talentforge/talentforge-api/internal/platform/gemini"
	"github.com/talentforge/talentforge-api/internal/platform/postgres"
	"github.com/talentforge/talentforge-api/internal/service"
	"github.com/talentforge/talentforge-api/internal/service/auth"
	"github.com/talentforge/talentforge-api/internal/task"
)

// application holds the assembled dependencies of the server process.
type application struct {
	config     *config.Config
	logger     *slog.Logger
	db         *sql.DB
	jobService service.JobService
	jwtService auth.JWTService
	workerPool *task.WorkerPool
}

// buildApplication wires stores, services, the generation backend, and
// the worker pool from configuration.
func buildApplication(cfg *config.Config, logger *slog.Logger) (*application, error) {
	db, err := setupDatabase(cfg, logger)
	if err != nil {
		return nil, err
	}

	jobStore := postgres.NewPostgresJobStore(db)
	stepStore := postgres.NewPostgresStepStore(db)
	logStore := postgres.NewPostgresJobLogStore(db)
	statsStore := postgres.NewPostgresStatsStore(db)

	jobService, err := service.NewJobService(db, jobStore, stepStore, logStore, statsStore, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create job service: %w", err)
	}

	jwtService, err := auth.NewJWTService(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to create JWT service: %w", err)
	}

	generator, err := gemini.NewGenerator(context.Background(), logger, cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("failed to create generator: %w", err)
	}

	registry := task.NewRegistry()
	for _, handler := range []task.Handler{
		task.NewCVGenerationHandler(generator),
		task.NewCoverLetterGenerationHandler(generator),
		task.NewJobAnalysisHandler(generator),
		task.NewBulkGenerationHandler(jobService, jobStore),
	} {
		if err := registry.Register(handler); err != nil {
			return nil, fmt.Errorf("failed to register job handler: %w", err)
		}
	}

	emitter := events.NewInMemoryEmitter(logger)
	emitter.RegisterHandler(events.NewLogHandler(logger))
	emitter.RegisterHandler(notification.NewEventHandler(notification.NewLogNotifier(logger), logger))

	processor := task.NewProcessor(jobStore, stepStore, logStore, registry, emitter, logger)
	workerPool := task.NewWorkerPool(jobStore, processor, cfg.Worker, logger)

	return &application{
		config:     cfg,
		logger:     logger,
		db:         db,
		jobService: jobService,
		jwtService: jwtService,
		workerPool: workerPool,
	}, nil
}

// cleanup releases resources owned by the application.
func (app *application) cleanup() {
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Warn("failed to close database", "error", err)
		}
	}
}

// setupDatabase opens the connection pool and verifies connectivity.
func setupDatabase(cfg *config.Config, logger *slog.Logger) (*sql.DB, error) {
	db, err := sql.Open("pgx", cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("database connection established")
	return db, nil
}
