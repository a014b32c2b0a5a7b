// Package config loads castvault settings from the environment or a YAML file.
package config

import (
	"errors"
	"os"
	"strconv"
	"time"
)

// ErrMissingCatalogURL is returned when no catalog reference is configured.
var ErrMissingCatalogURL = errors.New("CATALOG_URL is required")

// Defaults.
const (
	DefaultServerPort  = "8080"
	DefaultUserAgent   = "castvault/1.0"
	DefaultTimeout     = 30 * time.Second
	DefaultDocumentTTL = 5 * time.Minute
)

// Config holds application configuration. Only CatalogURL is required;
// DatabaseURL and RedisURL enable snapshot persistence and document caching.
type Config struct {
	CatalogURL  string        `yaml:"catalog_url" env:"CATALOG_URL"`
	AssetRoot   string        `yaml:"asset_root" env:"CATALOG_ASSET_ROOT"`
	WatchAsset  bool          `yaml:"watch_asset" env:"CATALOG_WATCH"`
	DatabaseURL string        `yaml:"database_url" env:"DATABASE_URL"`
	RedisURL    string        `yaml:"redis_url" env:"REDIS_URL"`
	ServerPort  string        `yaml:"server_port" env:"SERVER_PORT"`
	UserAgent   string        `yaml:"user_agent" env:"FETCHER_USER_AGENT"`
	Timeout     time.Duration `yaml:"timeout" env:"FETCHER_TIMEOUT"`
	LogLevel    string        `yaml:"log_level" env:"LOG_LEVEL"`
	DocumentTTL time.Duration `yaml:"document_ttl" env:"CATALOG_DOCUMENT_TTL"`
	ExportPath  string        `yaml:"export_path" env:"CATALOG_EXPORT_PATH"`
}

// Load builds config from environment variables. If CATALOG_URL is not set,
// Load first reads .env.local and .env from the working directory and the
// executable's directory.
func Load() (*Config, error) {
	if os.Getenv("CATALOG_URL") == "" {
		loadEnvFiles(envDirs()...)
	}
	c := &Config{
		CatalogURL:  os.Getenv("CATALOG_URL"),
		AssetRoot:   os.Getenv("CATALOG_ASSET_ROOT"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    os.Getenv("REDIS_URL"),
		ServerPort:  os.Getenv("SERVER_PORT"),
		UserAgent:   os.Getenv("FETCHER_USER_AGENT"),
		LogLevel:    os.Getenv("LOG_LEVEL"),
		ExportPath:  os.Getenv("CATALOG_EXPORT_PATH"),
		Timeout:     parseDuration(os.Getenv("FETCHER_TIMEOUT")),
		DocumentTTL: parseDuration(os.Getenv("CATALOG_DOCUMENT_TTL")),
	}
	if b, err := strconv.ParseBool(os.Getenv("CATALOG_WATCH")); err == nil {
		c.WatchAsset = b
	}
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate reports missing required settings.
func (c *Config) Validate() error {
	if c.CatalogURL == "" {
		return ErrMissingCatalogURL
	}
	return nil
}

// applyDefaults fills unset values. Durations are always positive afterwards;
// documents cached in Redis never live forever.
func (c *Config) applyDefaults() {
	if c.ServerPort == "" {
		c.ServerPort = DefaultServerPort
	}
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.DocumentTTL <= 0 {
		c.DocumentTTL = DefaultDocumentTTL
	}
}

// parseDuration returns 0 for empty or invalid input so defaults apply.
func parseDuration(s string) time.Duration {
	if s == "" {
		return 0
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}
	return d
}
