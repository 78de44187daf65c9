// Package cli holds the bootstrap shared by the fintrack binaries.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"fintrack/internal/backend"
	"fintrack/internal/config"
	flog "fintrack/internal/log"
)

// LoadEnvFile loads .env files for local development. A missing file is not
// an error.
func LoadEnvFile(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	var present []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			present = append(present, f)
		}
	}
	if len(present) == 0 {
		return nil
	}
	if err := godotenv.Load(present...); err != nil {
		return fmt.Errorf("load env files: %w", err)
	}
	return nil
}

// LoadConfig loads and validates the configuration.
func LoadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SetupLogger installs the default logger at the configured level.
func SetupLogger(cfg *config.Config, component string) *flog.Logger {
	level, err := cfg.SlogLevel()
	if err != nil {
		level = slog.LevelInfo
	}
	logger := flog.New(flog.Config{Level: level, Component: component})
	flog.SetDefault(logger)
	return logger
}

// Bootstrap runs the common startup: env file, config, logger, components.
// It exits the process on failure, as a command main would.
func Bootstrap(ctx context.Context, component string) (*config.Config, *flog.Logger, *backend.Components) {
	if err := LoadEnvFile(); err != nil {
		slog.Warn("Ignoring unreadable .env file", "error", err)
	}
	cfg, err := LoadConfig()
	if err != nil {
		slog.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	logger := SetupLogger(cfg, component)

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	comps, err := backend.NewFactory(logger.Logger).Build(ctx, bcfg)
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err, "backend", bcfg.Type)
		os.Exit(1)
	}
	return cfg, logger, comps
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
