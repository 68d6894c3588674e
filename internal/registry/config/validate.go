package config

import (
	"fmt"

	"go.uber.org/zap/zapcore"

	"github.com/agentregistry-dev/promptregistry/internal/registry/database"
)

// Validate performs runtime validations on the loaded configuration.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	switch cfg.Storage {
	case database.StorageFile:
		if cfg.PromptsDir == "" {
			return fmt.Errorf("prompts directory must be specified for file storage")
		}
	case database.StorageSQLite:
		if cfg.SQLitePath == "" {
			return fmt.Errorf("sqlite path must be specified for sqlite storage")
		}
	case database.StoragePostgres:
		if cfg.DatabaseURL == "" {
			return fmt.Errorf("database URL must be specified for postgres storage")
		}
	default:
		return fmt.Errorf("unknown storage backend %q (want file, sqlite or postgres)", cfg.Storage)
	}
	if cfg.LockTimeout <= 0 {
		return fmt.Errorf("lock timeout must be positive (got %s)", cfg.LockTimeout)
	}
	switch cfg.MCPTransport {
	case "stdio", "http":
	default:
		return fmt.Errorf("unknown MCP transport %q (want stdio or http)", cfg.MCPTransport)
	}
	if _, err := zapcore.ParseLevel(cfg.LogLevel); err != nil {
		return fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}
	if r := cfg.EventLogging.SuccessSampleRate; r < 0 || r > 1 {
		return fmt.Errorf("log success sample rate must be between 0 and 1 (got %g)", r)
	}
	return nil
}

// DatabaseOptions maps the storage settings onto repository options.
func (c *Config) DatabaseOptions() database.Options {
	return database.Options{
		Storage:     c.Storage,
		PromptsDir:  c.PromptsDir,
		SQLitePath:  c.SQLitePath,
		DatabaseURL: c.DatabaseURL,
		LockTimeout: c.LockTimeout,
	}
}
