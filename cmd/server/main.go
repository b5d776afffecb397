package main

import (
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/mvl-at/openkeg/internal/api"
	"github.com/mvl-at/openkeg/internal/auth"
	"github.com/mvl-at/openkeg/internal/config"
	"github.com/mvl-at/openkeg/internal/directory"
	"github.com/mvl-at/openkeg/internal/roster"
)

func main() {
	// Load .env file (if present).
	if err := config.LoadDotEnv(".env"); err != nil {
		slog.Warn("could not load .env", "error", err)
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)
	for _, warning := range cfg.Warnings {
		logger.Warn(warning)
	}

	// Missing key material degrades logins instead of refusing to boot so
	// the public roster stays available.
	var keys *auth.KeyPair
	if cfg.JWT.PrivateKeyPath != "" && cfg.JWT.PublicKeyPath != "" {
		keys, err = auth.LoadKeys(cfg.JWT.PrivateKeyPath, cfg.JWT.PublicKeyPath)
		if err != nil {
			logger.Warn("unable to load key material, logins will fail", "error", err)
			keys = nil
		}
	} else {
		logger.Warn("no key paths configured, logins will fail")
	}

	client := directory.NewClient(cfg.Directory, logger.With("component", "directory"))
	cache := roster.NewCache()
	syncer := roster.NewSyncer(client, cfg.Directory, cache, logger.With("component", "sync"))
	scheduler := roster.NewScheduler(syncer, logger.With("component", "sync"))
	if err := scheduler.Start(); err != nil {
		logger.Error("unable to start member synchronization", "error", err)
		os.Exit(1)
	}
	defer scheduler.Stop()

	handler := api.NewHandler(
		cfg,
		auth.NewIssuer(keys, cfg.JWT),
		auth.NewValidator(keys, cache),
		auth.NewAuthorizer(cache, cfg.Roles),
		client,
		cache,
		logger.With("component", "api"),
	)

	r := chi.NewRouter()
	r.Use(chimw.Logger)
	r.Mount("/api/v1", handler.Routes())

	logger.Info("HTTP API listening", "addr", cfg.ListenAddr, "env", cfg.Env)
	if err := http.ListenAndServe(cfg.ListenAddr, r); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// newLogger builds the process logger: JSON output in production, text for
// development, level taken from the configuration.
func newLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.IsProduction() {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
