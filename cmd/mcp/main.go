package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/tazhate/fiscalbot/internal/logger"
	"github.com/tazhate/fiscalbot/internal/mcp"
)

var version = "dev"

func main() {
	cfg, err := mcp.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewWithOutput("production", cfg.LogLevel, os.Stderr)
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := mcp.Run(ctx, cfg, version, log); err != nil {
		log.Error("mcp server failed", zap.Error(err))
		os.Exit(1)
	}
}
