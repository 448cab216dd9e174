package main

import (
	"context"
	"log"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/jackc/pgx/v4"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"polling-chat/internal/server"
	"polling-chat/internal/storage"
)

func main() {
	cfg := server.EnvConfig{}
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("Cannot parse env config: %v", err)
	}

	level, err := cfg.Level()
	if err != nil {
		log.Fatalf("Cannot parse LOG_LEVEL: %v", err)
	}

	zapCfg := zap.NewDevelopmentConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	logger, err := zapCfg.Build()
	if err != nil {
		log.Fatalf("zap.Build: %v", err)
	}
	defer logger.Sync()

	sugar := logger.Sugar()
	sugar.Info("Application is starting")

	dbCfg := storage.Config{}
	if err := env.Parse(&dbCfg); err != nil {
		sugar.Fatalf("Cannot parse db env config: %v", err)
	}

	storeOpts := []storage.Option{
		storage.ConnectionTimeout(30 * time.Second),
	}
	if zapCfg.Level.Enabled(zapcore.DebugLevel) {
		storeOpts = append(storeOpts, storage.QueryLogLevel(pgx.LogLevelInfo))
	}

	store, err := storage.New(context.Background(), sugar, dbCfg, storeOpts...)
	if err != nil {
		sugar.Fatalf("Cannot create Store instance: %v", err)
	}

	serverOpts := []server.Option{
		server.WithEnvConfig(cfg),
		server.ReadTimeout(5 * time.Second),
		server.RegisterAfterShutdown(func() {
			sugar.Info("Closing store")
			store.Close()
			sugar.Info("Store is closed")
		}),
	}

	srv, err := server.NewServer(context.Background(), sugar, store, serverOpts...)
	if err != nil {
		sugar.Fatalf("Cannot create Server instance: %v", err)
	}

	if err := srv.Start(); err != nil {
		sugar.Fatalf("Cannot start http srv: %v", err)
	}
}
