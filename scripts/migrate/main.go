package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/mo-amir99/lms-learner-go/internal/schema"
	"github.com/mo-amir99/lms-learner-go/pkg/config"
	"github.com/mo-amir99/lms-learner-go/pkg/database"
	"github.com/mo-amir99/lms-learner-go/pkg/logger"
)

func main() {
	exportDir := flag.String("export", "", "write collection definitions as JSON into this directory instead of migrating")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLogger, err := logger.New(cfg.LogLevel, cfg.LogDir)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}

	if *exportDir != "" {
		if err := export(*exportDir); err != nil {
			appLogger.Error("Failed to export collections", slog.String("error", err.Error()))
			os.Exit(1)
		}
		appLogger.Info("Collections exported", slog.String("dir", *exportDir))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	db, err := database.ConnectWithRetry(ctx, cfg.Database, appLogger, 5, time.Second)
	if err != nil {
		appLogger.Error("Failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer database.Close(db, appLogger)

	appLogger.Info("Starting database migrations...")
	if err := database.Migrate(ctx, db, appLogger); err != nil {
		appLogger.Error("Failed to run migrations", slog.String("error", err.Error()))
		os.Exit(1)
	}

	appLogger.Info("Database migrations completed successfully")
}

func export(dir string) error {
	set, err := schema.Apply(schema.All())
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for _, c := range set.Collections() {
		data, err := schema.ExportJSON(c)
		if err != nil {
			return fmt.Errorf("export %s: %w", c.Name, err)
		}
		if err := os.WriteFile(filepath.Join(dir, c.Name+".json"), data, 0o644); err != nil {
			return err
		}
	}
	return nil
}
