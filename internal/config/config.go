package config

import (
	"fmt"
	"log"
	"net"
	"net/url"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	DatabaseURL      string `envconfig:"DATABASE_URL"`
	DatabaseHost     string `envconfig:"DATA_SERVER_HOST"`
	DatabasePort     string `envconfig:"DATA_SERVER_PORT" default:"5432"`
	DatabaseName     string `envconfig:"DATABASE"`
	DatabaseUser     string `envconfig:"DATABASE_USER"`
	DatabasePassword string `envconfig:"DATABASE_PASSWORD"`

	DBDriver         string        `envconfig:"DB_DRIVER" default:"postgres"`
	DBBatchSize      int           `envconfig:"DB_BATCH_SIZE" default:"1000"`
	DBMaxConns       int32         `envconfig:"DB_MAX_CONNS" default:"20"`
	DBIdleTimeout    time.Duration `envconfig:"DB_IDLE_TIMEOUT" default:"30s"`
	DBConnectTimeout time.Duration `envconfig:"DB_CONNECT_TIMEOUT" default:"2s"`

	MaxConcurrentTasks int    `envconfig:"MAX_CONCURRENT_TASKS" default:"0"`
	MaxParallelConfigs int    `envconfig:"MAX_PARALLEL_CONFIGS" default:"0"`
	DataConfigPath     string `envconfig:"DATA_CONFIG_PATH" default:"data-config.json"`
	StatusAddr         string `envconfig:"STATUS_ADDR"`
}

// envFiles are read in order; a variable already set is never overridden.
var envFiles = []string{".env", "process.env"}

// Load reads the optional env files and decodes the environment.
func Load() (*Config, error) {
	for _, file := range envFiles {
		if _, err := os.Stat(file); err != nil {
			continue
		}
		if err := godotenv.Load(file); err != nil {
			log.Printf("Warning: could not load %s file: %v", file, err)
		}
	}

	return New()
}

// New decodes the configuration from the current environment only.
func New() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.DBDriver {
	case "postgres":
		if c.DatabaseURL == "" && c.DatabaseHost == "" {
			return fmt.Errorf("DATABASE_URL or DATA_SERVER_HOST environment variable must be set")
		}
	case "sqlite":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL environment variable must point to the sqlite file")
		}
	default:
		return fmt.Errorf("invalid value for DB_DRIVER: expected postgres or sqlite, got '%s'", c.DBDriver)
	}

	if c.DBBatchSize <= 0 {
		return fmt.Errorf("invalid value for DB_BATCH_SIZE: expected a positive integer, got %d", c.DBBatchSize)
	}
	if c.DBMaxConns <= 0 {
		return fmt.Errorf("invalid value for DB_MAX_CONNS: expected a positive integer, got %d", c.DBMaxConns)
	}

	return nil
}

// ConnString returns DATABASE_URL when set, otherwise a postgres URL assembled
// from the individual connection variables.
func (c *Config) ConnString() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}

	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(c.DatabaseHost, c.DatabasePort),
		Path:   "/" + c.DatabaseName,
	}
	if c.DatabaseUser != "" {
		if c.DatabasePassword != "" {
			u.User = url.UserPassword(c.DatabaseUser, c.DatabasePassword)
		} else {
			u.User = url.User(c.DatabaseUser)
		}
	}

	return u.String()
}
