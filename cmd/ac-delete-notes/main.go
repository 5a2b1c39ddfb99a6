package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/jrodriguesgcs/ac-delete-notes/internal/config"
	"github.com/jrodriguesgcs/ac-delete-notes/internal/engine"
	"github.com/jrodriguesgcs/ac-delete-notes/pkg/log"
)

func main() {
	// .env is optional; real environments set the variables directly.
	_ = godotenv.Load()

	cfg, err := config.NewFromEnv()
	if err != nil {
		log.Fatal("Configuration error: %v", err)
	}

	fileLogger, err := log.InitFileLogger(cfg.State.LogFile, log.ParseLevel(cfg.State.LogLevel))
	if err != nil {
		log.Fatal("Failed to open log file: %v", err)
	}
	defer fileLogger.Close()

	eng, err := engine.New(*cfg)
	if err != nil {
		log.Fatal("Failed to initialize engine: %v", err)
	}

	// SIGINT/SIGTERM stop admission; concluded work is persisted before
	// the process exits.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := eng.Run(ctx); err != nil {
		log.Error("Batch failed: %v", err)
		fileLogger.Close()
		os.Exit(1)
	}
}
