// Package config loads server configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"time"

	env "github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/agentregistry-dev/promptregistry/internal/registry/logging"
)

// EnvPrefix is prepended to every variable name below.
const EnvPrefix = "PROMPTREGISTRY_"

// Config holds the server configuration.
type Config struct {
	Storage     string        `env:"STORAGE" envDefault:"file"`
	PromptsDir  string        `env:"PROMPTS_DIR" envDefault:"./prompts"`
	SQLitePath  string        `env:"SQLITE_PATH" envDefault:"./prompts.db"`
	DatabaseURL string        `env:"DATABASE_URL"`
	LockTimeout time.Duration `env:"LOCK_TIMEOUT" envDefault:"5s"`
	SeedBuiltin bool          `env:"SEED_BUILTIN"`

	HTTPAddress string   `env:"HTTP_ADDRESS" envDefault:":12121"`
	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"*"`

	MCPTransport string `env:"MCP_TRANSPORT" envDefault:"stdio"`
	MCPAddress   string `env:"MCP_ADDRESS" envDefault:":12122"`

	LogLevel       string                     `env:"LOG_LEVEL" envDefault:"info"`
	EventLogging   logging.EventLoggingConfig `envPrefix:""`
	DisableMetrics bool                       `env:"DISABLE_METRICS"`
}

// NewConfig loads .env (when present) and parses the environment. It exits
// the process on malformed values, matching how the server treats any other
// startup failure.
func NewConfig() *Config {
	cfg, err := Load(".env")
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	return cfg
}

// Load reads envFile into the process environment without overriding
// variables already set, then parses Config. A missing envFile is ignored.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	return cfg, nil
}
