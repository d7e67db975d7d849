// Package main is the camera fleet engine entry point: it wires the
// config, database, event bus, fleet supervisor, and HTTP server
// together and handles graceful shutdown.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/camfleet/camfleet/internal/api"
	"github.com/camfleet/camfleet/internal/config"
	"github.com/camfleet/camfleet/internal/database"
	"github.com/camfleet/camfleet/internal/events"
	"github.com/camfleet/camfleet/internal/fleet"
	"github.com/camfleet/camfleet/internal/logging"
	"github.com/camfleet/camfleet/internal/repository"
)

func main() {
	if err := run(); err != nil {
		slog.Error("Fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := loadConfig()

	initLogging(cfg)
	logger := slog.Default()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	dbPath := cfg.DatabasePath()
	dbCfg := database.DefaultConfig(filepath.Dir(dbPath))
	dbCfg.Path = dbPath
	db, err := database.Open(dbCfg)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	repo := repository.NewSQL(db)

	// Embedded NATS event bus
	bus, err := events.NewBus(events.BusConfig{}, logger)
	if err != nil {
		return fmt.Errorf("failed to start event bus: %w", err)
	}
	defer bus.Stop()
	dispatcher := events.NewDispatcher(bus)

	// Fleet supervisor
	fl := fleet.New(repo, dispatcher, cfg, fleet.Options{})
	defer fl.Cleanup()
	if err := fl.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize fleet: %w", err)
	}

	// Camera set follows config file edits.
	cfg.OnChange(func(c *config.Config) {
		if err := fl.Reload(ctx); err != nil {
			logger.Error("Fleet reload failed", "error", err)
		}
	})

	router, err := api.NewRouter(api.Deps{
		Repo:       repo,
		Fleet:      fl,
		Config:     cfg,
		Dispatcher: dispatcher,
		DB:         db,
	})
	if err != nil {
		return err
	}

	addr := cfg.Addr()
	server := &http.Server{
		Addr:        addr,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		logger.Info("Server starting", "address", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server error", "error", err)
			cancel()
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigChan:
	case <-ctx.Done():
	}

	logger.Info("Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}

	fl.Cleanup()
	logger.Info("Stopped")
	return nil
}

// loadConfig reads the config file named by CONFIG_PATH (default
// config.yaml), falling back to defaults when it is missing, and
// starts the file watcher.
func loadConfig() *config.Config {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}

	cfg, err := config.Load(path)
	if err != nil {
		slog.Warn("Config file not loaded, using defaults", "path", path, "error", err)
		return config.Default()
	}
	if err := cfg.Watch(); err != nil {
		slog.Warn("Config watch failed", "error", err)
	}
	return cfg
}

// initLogging installs the process-wide structured logger.
func initLogging(cfg *config.Config) {
	logLevel, logFormat := cfg.LogSettings()

	level := slog.LevelInfo
	switch logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	var out slog.Handler
	if logFormat == "text" {
		out = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	}

	// Recent entries stay queryable through /api/v1/logs.
	handler := logging.NewStreamHandler(logging.Default(), os.Stdout, level, out)
	slog.SetDefault(slog.New(handler))
}
