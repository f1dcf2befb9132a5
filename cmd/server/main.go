package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	"github.com/tendant/chi-demo/app"
	"github.com/tendant/chi-demo/middleware"

	"github.com/tendant/simple-persist/pkg/persistence/api"
	"github.com/tendant/simple-persist/pkg/persistence/config"
)

// Settings are the server-level options. Catalog and storage are configured
// through the variables read by config.WithEnv, under EnvPrefix.
type Settings struct {
	ApiKeySHA256 string `env:"API_KEY_SHA256" env-default:"1"`
	EnvPrefix    string `env:"PERSIST_ENV_PREFIX" env-default:""`
	LogLevel     string `env:"LOG_LEVEL" env-default:"info"`
}

func newLogger(level string) *slog.Logger {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		l = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: l}))
}

func main() {
	// Load .env file if it exists (silently ignore if not found)
	_ = godotenv.Load()

	var settings Settings
	if err := cleanenv.ReadEnv(&settings); err != nil {
		slog.Error("Failed to read configuration", "err", err)
		os.Exit(1)
	}

	logger := newLogger(settings.LogLevel)
	slog.SetDefault(logger)

	cfg, err := config.Load(config.WithEnv(settings.EnvPrefix))
	if err != nil {
		slog.Error("Failed to load persistence configuration", "err", err)
		os.Exit(1)
	}

	ctx := context.Background()
	if cfg.DatabaseType == "postgres" {
		if err := config.PingPostgres(ctx, cfg.DatabaseURL, cfg.DBSchema); err != nil {
			slog.Error("Failed to connect to database", "err", err)
			os.Exit(1)
		}
	}

	mgr, err := cfg.BuildManager(ctx, logger)
	if err != nil {
		slog.Error("Failed to build persistence manager", "err", err)
		os.Exit(1)
	}
	defer func() {
		if err := mgr.Close(); err != nil {
			slog.Error("Failed to close persistence manager", "err", err)
		}
	}()

	apiKeyMiddleware, err := middleware.ApiKeyMiddleware(middleware.ApiKeyConfig{
		APIKeys: map[string]string{
			"key1": settings.ApiKeySHA256,
		},
	})
	if err != nil {
		slog.Error("Failed initialize API Key middleware", "err", err)
		return
	}

	server := app.DefaultApp()

	app.RoutesHealthz(server.R)
	app.RoutesHealthzReady(server.R)

	handler := api.NewHandler(mgr, logger)
	server.R.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(apiKeyMiddleware)
			r.Mount("/", handler.Routes())
		})
	})

	server.Run()
}
