package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"

	_ "github.com/mattn/go-sqlite3"

	"lakeboard/internal/api"
	"lakeboard/internal/app"
	"lakeboard/internal/config"
	internaldb "lakeboard/internal/db"
)

func main() {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)

	for _, warning := range cfg.Warnings {
		logger.Warn(warning)
	}

	writeDB, readDB, err := internaldb.OpenSQLitePair(cfg.MetaDBPath, 8)
	if err != nil {
		logger.Error("open metastore", "error", err)
		os.Exit(1)
	}
	defer writeDB.Close()
	defer readDB.Close()

	if err := internaldb.RunMigrations(writeDB); err != nil {
		logger.Error("run migrations", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	application, err := app.New(ctx, app.Deps{
		Cfg:     cfg,
		WriteDB: writeDB,
		ReadDB:  readDB,
		Logger:  logger,
	})
	if err != nil {
		logger.Error("wire application", "error", err)
		os.Exit(1)
	}

	if cfg.SeedFile != "" {
		if err := application.Seed(ctx, writeDB, cfg.SeedFile); err != nil {
			logger.Error("seed metastore", "file", cfg.SeedFile, "error", err)
			os.Exit(1)
		}
		logger.Info("metastore seeded", "file", cfg.SeedFile)
	}

	router := api.NewRouter(application.Handler, application.Authn, api.RouterConfig{
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimitRPS:       cfg.RateLimitRPS,
		RateLimitBurst:     cfg.RateLimitBurst,
	})

	logger.Info("listening", "addr", cfg.ListenAddr, "env", cfg.Env, "dev_mode", cfg.Auth.DevMode)
	if err := http.ListenAndServe(cfg.ListenAddr, router); err != nil {
		logger.Error("http server", "error", err)
		os.Exit(1)
	}
}
