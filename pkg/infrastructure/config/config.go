// Package config loads shopfloor settings from a YAML file, an optional .env
// file and SHOPFLOOR_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Log      LogConfig      `yaml:"log"`
	Redis    RedisConfig    `yaml:"redis"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Orders   OrdersConfig   `yaml:"orders"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver" env:"SHOPFLOOR_DB_DRIVER"`
	DSN    string `yaml:"dsn" env:"SHOPFLOOR_DB_DSN"`
}

type LogConfig struct {
	Level  string `yaml:"level" env:"SHOPFLOOR_LOG_LEVEL"`
	Format string `yaml:"format" env:"SHOPFLOOR_LOG_FORMAT"`
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled" env:"SHOPFLOOR_REDIS_ENABLED"`
	Addr     string `yaml:"addr" env:"SHOPFLOOR_REDIS_ADDR"`
	Password string `yaml:"password" env:"SHOPFLOOR_REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"SHOPFLOOR_REDIS_DB"`
	Channel  string `yaml:"channel" env:"SHOPFLOOR_REDIS_CHANNEL"`
}

type MetricsConfig struct {
	Namespace string `yaml:"namespace" env:"SHOPFLOOR_METRICS_NAMESPACE"`
	// Textfile, when set, receives the collected metrics in text exposition
	// format after every command.
	Textfile string `yaml:"textfile" env:"SHOPFLOOR_METRICS_TEXTFILE"`
}

type OrdersConfig struct {
	// Backflush issues auto-issue components automatically on receipt.
	Backflush bool `yaml:"backflush" env:"SHOPFLOOR_BACKFLUSH"`
}

// Default returns the settings used when nothing else is configured
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{Driver: "sqlite", DSN: "shopfloor.db"},
		Log:      LogConfig{Level: "info", Format: "console"},
		Redis:    RedisConfig{Addr: "localhost:6379", Channel: "shopfloor.events"},
		Metrics:  MetricsConfig{Namespace: "shopfloor"},
	}
}

// Load builds the configuration. An empty or missing path or envFile is skipped.
func Load(path, envFile string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		}
	}

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load env (%s): %w", envFile, err)
		}
	}

	if err := envdecode.Decode(cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("decode environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("database.driver must be sqlite or postgres, got %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("log.format must be json or console, got %q", c.Log.Format)
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required when redis is enabled")
	}
	return nil
}
