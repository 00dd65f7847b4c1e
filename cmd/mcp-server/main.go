// Command mcp-server serves the risk scorer tools over MCP on stdio.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/clinical-risk-scorer/internal/app"
	"github.com/clinical-risk-scorer/internal/config"
	"github.com/clinical-risk-scorer/internal/mcp"
)

func main() {
	// stdout carries the protocol; everything else goes to stderr.
	log.SetOutput(os.Stderr)

	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	cfg := configManager.GetConfig()
	logCfg := cfg.Logging
	logCfg.Output = "stderr"
	logger, err := config.NewLogger(logCfg)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, configManager, logger, app.Options{})
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize")
	}
	defer application.Close()

	server := mcp.NewServer(application.Evaluator, cfg.MCP, logger)
	if err := server.RunStdio(ctx); err != nil && ctx.Err() == nil {
		logger.WithError(err).Error("MCP server stopped with error")
		application.Close()
		os.Exit(1)
	}

	logger.Info("MCP server stopped")
}
