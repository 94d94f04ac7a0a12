// Package config loads server configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Port               string        `env:"PORT" envDefault:"8080"`
	CachePath          string        `env:"CACHE_PATH" envDefault:"data/progress-cache.db"`
	JWTSecret          string        `env:"JWT_SECRET"`
	StagesFile         string        `env:"STAGES_FILE"`
	Timezone           string        `env:"TIMEZONE" envDefault:"UTC"`
	RemoteWriteTimeout time.Duration `env:"REMOTE_WRITE_TIMEOUT" envDefault:"10s"`
	AllowedOrigins     []string      `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`

	Database  Database  `envPrefix:"DB_"`
	Generator Generator
}

type Database struct {
	Host     string `env:"HOST" envDefault:"localhost"`
	Port     string `env:"PORT" envDefault:"5432"`
	User     string `env:"USER" envDefault:"mastery_user"`
	Password string `env:"PASSWORD" envDefault:"mastery_password"`
	Name     string `env:"NAME" envDefault:"mastery_quest"`
	SSLMode  string `env:"SSLMODE" envDefault:"disable"`
}

type Generator struct {
	UseCLI  bool   `env:"USE_CLI_GENERATOR"`
	CLIPath string `env:"CLAUDE_CLI_PATH" envDefault:"claude"`
	Mock    bool   `env:"MOCK_GENERATOR"`
	Model   string `env:"ANTHROPIC_MODEL" envDefault:"claude-opus-4-5-20251101"`
	APIKey  string `env:"ANTHROPIC_API_KEY"`
}

// Load reads an optional .env file and then parses the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return Parse()
}

// Parse builds a Config from the current environment only.
func Parse() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.JWTSecret) == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.RemoteWriteTimeout <= 0 {
		return fmt.Errorf("REMOTE_WRITE_TIMEOUT must be positive")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves the time zone used for calendar-day streak math.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// DSN returns the lib/pq connection string.
func (d Database) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
}
