package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/gin-gonic/gin"

	"macman/internal/api"
	"macman/internal/config"
	"macman/internal/database"
	"macman/internal/metrics"
	"macman/internal/service"
	"macman/internal/store"
	"macman/internal/version"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := database.Migrate(cfg.DatabaseURL, cfg.MigrationsPath); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := database.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	licenseStore := store.NewPostgresLicenseStore(pool)
	releaseStore := store.NewPostgresReleaseStore(pool)
	logStore := store.NewPostgresLogStore(pool)
	statsStore := store.NewPostgresStatsStore(pool)

	engine := service.NewLicenseEngine(licenseStore, statsStore, cfg.PurchaseURL)
	resolver := service.NewUpdateResolver(releaseStore, statsStore, "/api/updates/download")

	server := api.NewServer(cfg, pool, engine, resolver, logStore, metrics.New())

	slog.Info("MacMan license server ("+version.Version+") listening", "port", cfg.Port)
	if err := server.Router.Run(":" + cfg.Port); err != nil {
		slog.Error("Failed to run server", "error", err)
		os.Exit(1)
	}
}
