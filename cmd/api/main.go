package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/acme/outreach-monitor/internal/api"
	"github.com/acme/outreach-monitor/internal/api/handlers"
	"github.com/acme/outreach-monitor/internal/app"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	configPath := flag.String("config", getEnv("CONFIG_FILE", "configs/config.yaml"), "path to configuration file")
	flag.Parse()

	container, err := app.Build(ctx, *configPath)
	if err != nil {
		log.Fatalf("failed to bootstrap application: %v", err)
	}
	defer container.Close(context.Background())

	lg := container.Logger
	lg.Info("configuration loaded", zap.String("path", *configPath), zap.String("env", container.Config.App.Env))

	if err := container.EnsureTopics(ctx); err != nil {
		lg.Fatal("failed to ensure kafka topics", zap.Error(err))
	}

	server := api.NewServer(container.Config.HTTP, handlers.NewHandlerSet(container))

	lg.Info("dashboard backend listening", zap.Int("port", container.Config.HTTP.Port))
	if err := server.Start(ctx); err != nil {
		lg.Error("server terminated", zap.Error(err))
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
