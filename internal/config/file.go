package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type fileConfig struct {
	CatalogURL  string `yaml:"catalog_url"`
	AssetRoot   string `yaml:"asset_root"`
	WatchAsset  bool   `yaml:"watch_asset"`
	DatabaseURL string `yaml:"database_url"`
	RedisURL    string `yaml:"redis_url"`
	ServerPort  string `yaml:"server_port"`
	UserAgent   string `yaml:"user_agent"`
	Timeout     string `yaml:"timeout"`
	LogLevel    string `yaml:"log_level"`
	DocumentTTL string `yaml:"document_ttl"`
	ExportPath  string `yaml:"export_path"`
}

// LoadFromFile loads config from a YAML file. catalog_url is required.
// Durations use Go syntax ("30s", "5m").
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f fileConfig
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	c := &Config{
		CatalogURL:  f.CatalogURL,
		AssetRoot:   f.AssetRoot,
		WatchAsset:  f.WatchAsset,
		DatabaseURL: f.DatabaseURL,
		RedisURL:    f.RedisURL,
		ServerPort:  f.ServerPort,
		UserAgent:   f.UserAgent,
		LogLevel:    f.LogLevel,
		ExportPath:  f.ExportPath,
		Timeout:     parseDuration(f.Timeout),
		DocumentTTL: parseDuration(f.DocumentTTL),
	}
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}
