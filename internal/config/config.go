// Package config handles application configuration: process settings
// from environment variables and per-typology scoring documents from
// YAML.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all process-level configuration.
type Config struct {
	// Server settings
	Port     string
	Env      string // "development", "staging", "production"
	LogLevel string
	LogFmt   string // "text" or "json"

	// Engine settings
	TypologyConfigDir string // optional directory of per-typology YAML overrides

	// HTTP hardening
	RateLimitRPS    int
	ShutdownSeconds int
}

const (
	DefaultPort            = "8080"
	DefaultEnv             = "development"
	DefaultLogLevel        = "info"
	DefaultLogFmt          = "text"
	DefaultRateLimit       = 100
	DefaultShutdownSeconds = 10
)

// Load reads configuration from environment variables. It loads a .env
// file if present (for local development).
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:              getEnv("PORT", DefaultPort),
		Env:               getEnv("ENV", DefaultEnv),
		LogLevel:          getEnv("LOG_LEVEL", DefaultLogLevel),
		LogFmt:            getEnv("LOG_FORMAT", DefaultLogFmt),
		TypologyConfigDir: os.Getenv("TYPOLOGY_CONFIG_DIR"), // optional
		RateLimitRPS:      getEnvInt("RATE_LIMIT_RPS", DefaultRateLimit),
		ShutdownSeconds:   getEnvInt("SHUTDOWN_SECONDS", DefaultShutdownSeconds),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that all configuration values are usable.
func (c *Config) Validate() error {
	if _, err := strconv.Atoi(c.Port); err != nil {
		return fmt.Errorf("PORT must be numeric, got %q", c.Port)
	}
	switch c.LogFmt {
	case "text", "json":
	default:
		return fmt.Errorf("LOG_FORMAT must be text or json, got %q", c.LogFmt)
	}
	if c.RateLimitRPS <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPS must be positive, got %d", c.RateLimitRPS)
	}
	if c.TypologyConfigDir != "" {
		info, err := os.Stat(c.TypologyConfigDir)
		if err != nil {
			return fmt.Errorf("TYPOLOGY_CONFIG_DIR: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("TYPOLOGY_CONFIG_DIR %q is not a directory", c.TypologyConfigDir)
		}
	}
	return nil
}

// IsProduction reports whether we're running in production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
