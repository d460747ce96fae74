package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"tfview/internal/extension"
	"tfview/internal/logging"

	"go.uber.org/zap"
)

func main() {
	dir, err := os.Getwd()
	if err != nil {
		log.Fatal("failed to get working directory:", err)
	}

	// Load configuration
	var path string
	if len(os.Args) > 1 {
		path = os.Args[1]
	}
	cfg, err := extension.LoadConfig(path, dir)
	if err != nil {
		log.Fatal("failed to load config:", err)
	}

	// Initialize logger
	logger, err := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatal("failed to initialize logger:", err)
	}
	defer logger.Sync()

	ext, err := extension.New(cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize extension", zap.Error(err))
	}
	defer ext.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ext.Start(ctx)
	if err := ext.Serve(ctx); err != nil {
		logger.Error("server failed", zap.Error(err))
	}
}
