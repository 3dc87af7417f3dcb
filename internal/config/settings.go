package config

import (
	"strconv"

	"rtranslator/internal/storage"
)

// Keys for AppSettings in DB
const (
	KeyMaxSimultaneousDownloads = "max_simultaneous_downloads"
	KeyBandwidthLimit           = "bandwidth_limit"
	KeyAPIMaxConcurrent         = "api_max_concurrent"
)

// ConfigManager reads runtime settings from the database, falling back to
// the bootstrap configuration when a key is unset or unparsable.
type ConfigManager struct {
	storage  *storage.Storage
	defaults Config
}

func NewConfigManager(s *storage.Storage, defaults Config) *ConfigManager {
	return &ConfigManager{storage: s, defaults: defaults}
}

func (c *ConfigManager) getInt(key string, fallback int64) int64 {
	valStr, err := c.storage.GetString(key)
	if err != nil || valStr == "" {
		return fallback
	}
	val, err := strconv.ParseInt(valStr, 10, 64)
	if err != nil {
		return fallback
	}
	return val
}

func (c *ConfigManager) GetMaxSimultaneousDownloads() int {
	n := int(c.getInt(KeyMaxSimultaneousDownloads, int64(c.defaults.MaxSimultaneousDownloads)))
	if n < 1 {
		return 1
	}
	return n
}

func (c *ConfigManager) SetMaxSimultaneousDownloads(n int) error {
	return c.storage.SetString(KeyMaxSimultaneousDownloads, strconv.Itoa(n))
}

// GetBandwidthLimit returns the global transfer limit in bytes per second. 0 means unlimited.
func (c *ConfigManager) GetBandwidthLimit() int64 {
	return c.getInt(KeyBandwidthLimit, c.defaults.BandwidthLimit)
}

func (c *ConfigManager) SetBandwidthLimit(bytesPerSec int64) error {
	return c.storage.SetString(KeyBandwidthLimit, strconv.FormatInt(bytesPerSec, 10))
}

func (c *ConfigManager) GetAPIMaxConcurrent() int {
	return int(c.getInt(KeyAPIMaxConcurrent, int64(c.defaults.APIMaxConcurrent)))
}

func (c *ConfigManager) SetAPIMaxConcurrent(max int) error {
	return c.storage.SetString(KeyAPIMaxConcurrent, strconv.Itoa(max))
}

// Settings is the JSON view of all runtime settings.
type Settings struct {
	MaxSimultaneousDownloads int   `json:"max_simultaneous_downloads"`
	BandwidthLimit           int64 `json:"bandwidth_limit"`
	APIMaxConcurrent         int   `json:"api_max_concurrent"`
}

func (c *ConfigManager) Snapshot() Settings {
	return Settings{
		MaxSimultaneousDownloads: c.GetMaxSimultaneousDownloads(),
		BandwidthLimit:           c.GetBandwidthLimit(),
		APIMaxConcurrent:         c.GetAPIMaxConcurrent(),
	}
}
