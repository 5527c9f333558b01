// Package config provides configuration loading, validation, and defaults.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	DataFile string         `yaml:"data_file" validate:"required"`
	Source   SourceConfig   `yaml:"source"`
	Proxy    string         `yaml:"proxy"`
	Database DatabaseConfig `yaml:"database"`
	Server   ServerConfig   `yaml:"server"`
	Schedule ScheduleConfig `yaml:"schedule"`
	Log      LogConfig      `yaml:"log"`
}

// SourceConfig holds product page request settings.
type SourceConfig struct {
	URL               string `yaml:"url" validate:"omitempty,url"`
	UserAgent         string `yaml:"user_agent"`
	AcceptLanguage    string `yaml:"accept_language"`
	TimeoutSeconds    int    `yaml:"timeout_seconds" validate:"omitempty,min=1"`
	RequestsPerMinute int    `yaml:"requests_per_minute" validate:"omitempty,min=1"`
}

// Timeout returns the request timeout as a time.Duration.
func (c SourceConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// DatabaseConfig holds cycle recording settings. An empty path disables it.
type DatabaseConfig struct {
	SQLitePath string `yaml:"sqlite_path"`
}

// ServerConfig holds metrics server settings. An empty address disables it.
type ServerConfig struct {
	ListenAddress string `yaml:"listen_address" validate:"omitempty,hostname_port"`
}

// ScheduleConfig holds cron specs for background tasks.
type ScheduleConfig struct {
	DigestCron string `yaml:"digest_cron"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level" validate:"omitempty,oneof=trace debug info warn error fatal panic"`
	Format string `yaml:"format" validate:"omitempty,oneof=text json"`
}

// Load reads config from a YAML file, then applies environment variable overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("PRICESENTRY_DATA_FILE"); v != "" {
		cfg.DataFile = v
	}
	if v := os.Getenv("PRICESENTRY_SOURCE_URL"); v != "" {
		cfg.Source.URL = v
	}
	if v := os.Getenv("PRICESENTRY_USER_AGENT"); v != "" {
		cfg.Source.UserAgent = v
	}
	if v := os.Getenv("PRICESENTRY_REQUESTS_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Source.RequestsPerMinute = n
		}
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.Proxy = v
	}
	if v := os.Getenv("PRICESENTRY_SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("PRICESENTRY_LISTEN_ADDRESS"); v != "" {
		cfg.Server.ListenAddress = v
	}
	if v := os.Getenv("PRICESENTRY_DIGEST_CRON"); v != "" {
		cfg.Schedule.DigestCron = v
	}
	if v := os.Getenv("PRICESENTRY_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("PRICESENTRY_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}

	// Defaults
	if cfg.DataFile == "" {
		cfg.DataFile = "price_data.csv"
	}
	if cfg.Schedule.DigestCron == "" {
		cfg.Schedule.DigestCron = "0 0 9 * * *"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}

	return cfg, nil
}

// Validate checks the configuration against its struct tags.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}
