// Package config loads bootstrap configuration from YAML and the environment,
// and exposes runtime settings persisted in the database.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

// Config defines bootstrap configuration for the service.
type Config struct {
	Port                     int
	DatabaseURL              string
	MaxSimultaneousDownloads int
	DataDir                  string
	StagingDir               string
	LogLevel                 string
	RedisURL                 string
	ModrinthURL              string
	UserAgent                string
	DownloadTimeout          time.Duration
	CacheTTL                 time.Duration
	ProviderRateLimit        float64
	BandwidthLimit           int64
	APIMaxConcurrent         int
}

// Default returns a Config with sensible defaults.
func Default() Config {
	dataDir := "rtranslator-data"
	if dir, err := os.UserConfigDir(); err == nil {
		dataDir = filepath.Join(dir, "RTranslator")
	}

	return Config{
		Port:                     8080,
		DatabaseURL:              "sqlite::memory:",
		MaxSimultaneousDownloads: 10,
		DataDir:                  dataDir,
		StagingDir:               filepath.Join(os.TempDir(), "rtranslator-backend", "archives"),
		LogLevel:                 "info",
		ModrinthURL:              "https://api.modrinth.com",
		UserAgent:                "rtranslator/1.0 (+https://github.com/rtranslator)",
		CacheTTL:                 10 * time.Minute,
		ProviderRateLimit:        5,
		APIMaxConcurrent:         32,
	}
}

// yamlConfig is used for YAML unmarshaling with string durations and sizes.
type yamlConfig struct {
	Port                     int     `yaml:"port"`
	DatabaseURL              string  `yaml:"database_url"`
	MaxSimultaneousDownloads int     `yaml:"max_simultaneous_downloads"`
	DataDir                  string  `yaml:"data_dir"`
	StagingDir               string  `yaml:"staging_dir"`
	LogLevel                 string  `yaml:"log_level"`
	RedisURL                 string  `yaml:"redis_url"`
	ModrinthURL              string  `yaml:"modrinth_url"`
	UserAgent                string  `yaml:"user_agent"`
	DownloadTimeout          string  `yaml:"download_timeout"`
	CacheTTL                 string  `yaml:"cache_ttl"`
	ProviderRateLimit        float64 `yaml:"provider_rate_limit"`
	BandwidthLimit           string  `yaml:"bandwidth_limit"`
	APIMaxConcurrent         int     `yaml:"api_max_concurrent"`
}

// LoadFromFile loads configuration from a YAML file on top of the defaults.
func LoadFromFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	var yc yamlConfig
	if err := yaml.Unmarshal(data, &yc); err != nil {
		return Config{}, fmt.Errorf("parse config file: %w", err)
	}

	cfg := Default()

	if yc.Port != 0 {
		cfg.Port = yc.Port
	}
	if yc.DatabaseURL != "" {
		cfg.DatabaseURL = yc.DatabaseURL
	}
	if yc.MaxSimultaneousDownloads != 0 {
		cfg.MaxSimultaneousDownloads = yc.MaxSimultaneousDownloads
	}
	if yc.DataDir != "" {
		cfg.DataDir = yc.DataDir
	}
	if yc.StagingDir != "" {
		cfg.StagingDir = yc.StagingDir
	}
	if yc.LogLevel != "" {
		cfg.LogLevel = yc.LogLevel
	}
	if yc.RedisURL != "" {
		cfg.RedisURL = yc.RedisURL
	}
	if yc.ModrinthURL != "" {
		cfg.ModrinthURL = yc.ModrinthURL
	}
	if yc.UserAgent != "" {
		cfg.UserAgent = yc.UserAgent
	}
	if yc.DownloadTimeout != "" {
		d, err := time.ParseDuration(yc.DownloadTimeout)
		if err != nil {
			return Config{}, fmt.Errorf("parse download_timeout: %w", err)
		}
		cfg.DownloadTimeout = d
	}
	if yc.CacheTTL != "" {
		d, err := time.ParseDuration(yc.CacheTTL)
		if err != nil {
			return Config{}, fmt.Errorf("parse cache_ttl: %w", err)
		}
		cfg.CacheTTL = d
	}
	if yc.ProviderRateLimit != 0 {
		cfg.ProviderRateLimit = yc.ProviderRateLimit
	}
	if yc.BandwidthLimit != "" {
		n, err := humanize.ParseBytes(yc.BandwidthLimit)
		if err != nil {
			return Config{}, fmt.Errorf("parse bandwidth_limit: %w", err)
		}
		cfg.BandwidthLimit = int64(n)
	}
	if yc.APIMaxConcurrent != 0 {
		cfg.APIMaxConcurrent = yc.APIMaxConcurrent
	}

	return cfg, nil
}

// LoadFromEnv applies environment overrides. PORT, DATABASE_URL and
// MAX_SIMULTANEOUS_DOWNLOADS are read unprefixed; everything else uses the
// RTRANSLATOR_ prefix.
func (c *Config) LoadFromEnv() error {
	if v := os.Getenv("PORT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse PORT: %w", err)
		}
		c.Port = n
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.DatabaseURL = v
	}
	if v := os.Getenv("MAX_SIMULTANEOUS_DOWNLOADS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse MAX_SIMULTANEOUS_DOWNLOADS: %w", err)
		}
		c.MaxSimultaneousDownloads = n
	}
	if v := os.Getenv("RTRANSLATOR_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("RTRANSLATOR_STAGING_DIR"); v != "" {
		c.StagingDir = v
	}
	if v := os.Getenv("RTRANSLATOR_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("RTRANSLATOR_REDIS_URL"); v != "" {
		c.RedisURL = v
	}
	if v := os.Getenv("RTRANSLATOR_MODRINTH_URL"); v != "" {
		c.ModrinthURL = v
	}
	if v := os.Getenv("RTRANSLATOR_DOWNLOAD_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse RTRANSLATOR_DOWNLOAD_TIMEOUT: %w", err)
		}
		c.DownloadTimeout = d
	}
	if v := os.Getenv("RTRANSLATOR_BANDWIDTH_LIMIT"); v != "" {
		n, err := humanize.ParseBytes(v)
		if err != nil {
			return fmt.Errorf("parse RTRANSLATOR_BANDWIDTH_LIMIT: %w", err)
		}
		c.BandwidthLimit = int64(n)
	}

	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config: port %d out of range", c.Port)
	}
	if c.MaxSimultaneousDownloads < 1 {
		return errors.New("config: max_simultaneous_downloads must be at least 1")
	}
	if c.StagingDir == "" {
		return errors.New("config: staging_dir is required")
	}
	if c.ModrinthURL == "" {
		return errors.New("config: modrinth_url is required")
	}
	if c.DownloadTimeout < 0 {
		return errors.New("config: download_timeout must not be negative")
	}
	if c.BandwidthLimit < 0 {
		return errors.New("config: bandwidth_limit must not be negative")
	}
	return nil
}
