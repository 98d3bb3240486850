// Package cli provides common process initialization shared by cmd/ivr,
// cmd/ivr-worker and cmd/ivrctl.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"

	"ivr/internal/config"
	"ivr/internal/log"
	"ivr/internal/storage"
)

// SetupLogger initializes structured logging at the given LOG_LEVEL and
// sets it as the default logger.
func SetupLogger(level string) *log.Logger {
	cfg := log.DefaultConfig()
	cfg.Level = log.ParseLevel(level)
	logger := log.New(cfg)
	log.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it with validate,
// exiting the process on failure.
func LoadAndValidateConfig(logger *log.Logger, validate func(*config.Config) error) *config.Config {
	cfg := config.Load()
	if validate == nil {
		validate = (*config.Config).Validate
	}
	if err := validate(cfg); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	if cfg.ConfigFile != "" {
		logger.Info("Configuration file loaded", "file", cfg.ConfigFile)
	}
	return cfg
}

// InitSentry enables error tracking when a DSN is configured. The returned
// function flushes pending events.
func InitSentry(logger *log.Logger, cfg *config.Config, release string) func() {
	if cfg.SentryDSN == "" {
		return func() {}
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:         cfg.SentryDSN,
		Environment: cfg.SentryEnvironment,
		Release:     release,
	})
	if err != nil {
		logger.Warn("Sentry initialization failed, error tracking disabled", log.FieldError, err)
		return func() {}
	}
	logger.Info("Sentry enabled", log.FieldEnvironment, cfg.SentryEnvironment)
	return func() { sentry.Flush(2 * time.Second) }
}

// OpenAuditStore opens the call audit database, running its migrations.
func OpenAuditStore(logger *log.Logger, dbPath string) (*storage.AuditRepository, error) {
	repo, err := storage.NewAuditRepository(dbPath)
	if err != nil {
		logger.Error("Failed to open audit store", log.FieldError, err, "path", dbPath)
		return nil, fmt.Errorf("open audit store: %w", err)
	}
	return repo, nil
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext(logger *log.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
