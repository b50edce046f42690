// Package main implements the TalentForge API server: the HTTP surface
// of the asynchronous job queue plus an embedded worker pool for
// single-process deployments.
package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/talentforge/talentforge-api/internal/config"
	"github.com/talentforge/talentforge-api/internal/platform/logger"
	"github.com/talentforge/talentforge-api/internal/platform/postgres"
)

func main() {
	migrateCmd := flag.String("migrate", "", "run a migration command (up, status) and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	appLogger, err := logger.Setup(cfg.Server)
	if err != nil {
		log.Fatalf("failed to set up logger: %v", err)
	}

	if *migrateCmd != "" {
		if err := handleMigrations(cfg, *migrateCmd); err != nil {
			appLogger.Error("migration failed", "command", *migrateCmd, "error", err)
			os.Exit(1)
		}
		return
	}

	app, err := buildApplication(cfg, appLogger)
	if err != nil {
		appLogger.Error("failed to initialize application", "error", err)
		os.Exit(1)
	}
	defer app.cleanup()

	slog.Info("server configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"worker_count", cfg.Worker.Count)

	if err := app.run(); err != nil {
		appLogger.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

// handleMigrations executes a migration command against the configured
// database and returns once it completes.
func handleMigrations(cfg *config.Config, command string) error {
	db, err := setupDatabase(cfg, slog.Default())
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			slog.Warn("failed to close database", "error", err)
		}
	}()

	switch command {
	case "up":
		return postgres.RunMigrations(db)
	case "status":
		return postgres.MigrationStatus(db)
	default:
		return fmt.Errorf("unknown migration command %q", command)
	}
}
