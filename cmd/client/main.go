package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"polling-chat/internal/client"
)

// Exit codes for the client application.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Client error: %v\n", err)
	}
	os.Exit(code)
}

func run() (int, error) {
	// .env is optional
	_ = godotenv.Load()

	var cfg client.Config
	if err := env.Parse(&cfg); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}

	zapCfg := zap.NewDevelopmentConfig()
	zapCfg.OutputPaths = []string{"stderr"}
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return exitConfig, fmt.Errorf("config error: LOG_LEVEL: %w", err)
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return exitRuntime, fmt.Errorf("zap.Build: %w", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	api := client.NewAPI(cfg.ServerURL, cfg.RequestTimeout)
	printer := client.NewPrinter(os.Stdout, cfg.Colors)
	terminal := client.NewTerminal(cfg, api, printer, logger.Sugar(), os.Stdin)

	if err := terminal.Run(ctx); err != nil {
		return exitRuntime, err
	}

	return exitOK, nil
}
