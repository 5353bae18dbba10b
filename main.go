package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"path/filepath"
	"syscall"
	"tutorhub_backend/internal/app"
	"tutorhub_backend/internal/config"
	"tutorhub_backend/pkg/logger"

	"go.uber.org/zap"
)

func main() {
	configDir := flag.String("config", "configs", "directory holding config.yaml")
	migrateOnly := flag.Bool("migrate-only", false, "run database migrations and exit")
	decayOnce := flag.Bool("decay-once", false, "run a single mastery decay pass and exit")
	flag.Parse()

	cfg, err := config.LoadConfig(*configDir)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	cfg.ForceMigrate = *migrateOnly
	cfg.MigrateOnly = *migrateOnly
	cfg.DecayOnce = *decayOnce

	application := app.NewApp(cfg)
	application.ConfigPath = filepath.Join(*configDir, "config.yaml")
	defer logger.Sync()

	if cfg.MigrateOnly {
		logger.Log.Info("Database migration finished, exiting")
		return
	}

	if cfg.DecayOnce {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		if err := application.RunDecayOnce(ctx); err != nil {
			logger.Log.Error("Decay pass failed", zap.Error(err))
			logger.Sync()
			log.Fatalf("decay: %v", err)
		}
		return
	}

	application.Run()
}
