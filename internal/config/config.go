// Package config defines the RecRadio configuration format and helpers for
// loading or saving it to disk.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	// AppID is the stable application identifier used for config storage.
	AppID = "recradio"
	// AppConfigSubdir is the OS-specific directory that holds the config file.
	AppConfigSubdir = "RecRadio"
	// AppConfigName is the JSON file stored on disk.
	AppConfigName = "config.json"

	DefaultWidth  = 520
	DefaultHeight = 420
	// MinWindowWidth keeps the transport buttons visible on first launch.
	MinWindowWidth = 420

	// DefaultVolume sets the initial playback level.
	DefaultVolume              = 80
	DefaultBufferingTimeoutSec = 30
	DefaultPollIntervalMs      = 1000
	// MinPollIntervalMs stops a hand-edited config from spinning the poller.
	MinPollIntervalMs = 100
)

// Config aggregates every user-facing preference persisted between sessions.
type Config struct {
	Volume      int    `json:"volume"`
	LastGenre   string `json:"lastGenre"`
	LastStation string `json:"lastStation"`
	// CatalogPath points at a .json or .toml station list. Empty means the
	// built-in catalog.
	CatalogPath string `json:"catalogPath,omitempty"`
	// MusicDir overrides <home>/Music as the recording destination.
	MusicDir string `json:"musicDir,omitempty"`
	// BufferingTimeoutSec bounds the buffering phase; 0 disables the bound.
	BufferingTimeoutSec int `json:"bufferingTimeoutSec"`
	PollIntervalMs      int `json:"pollIntervalMs"`
	WindowW             int `json:"windowW"`
	WindowH             int `json:"windowH"`
}

// ConfigDir resolves the writable directory that should contain the config file.
func ConfigDir() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, AppConfigSubdir), nil
}

// ConfigPath is a helper that returns the full path to config.json.
func ConfigPath() (string, error) {
	d, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(d, AppConfigName), nil
}

// Load reads the config from disk. A missing file yields defaults, which are
// written back on a best-effort basis. Keys absent from the file keep their
// default values.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := newDefaultConfig()
			// Try saving an initial config, but still return defaults even if it fails.
			_ = cfg.Save()
			return cfg, nil
		}
		return nil, err
	}

	cfg := newDefaultConfig()
	if err := json.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("config parse error: %w", err)
	}
	cfg.applyRuntimeDefaults()
	return cfg, nil
}

// Save persists the configuration to disk, creating directories as needed.
func (c *Config) Save() error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

// AppID returns the stable identifier used by the GUI framework.
func (c *Config) AppID() string { return AppID }

// BufferingTimeout returns the configured bound as a duration.
func (c *Config) BufferingTimeout() time.Duration {
	return time.Duration(c.BufferingTimeoutSec) * time.Second
}

func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

// Default returns a config populated with defaults. It is not saved.
func Default() *Config { return newDefaultConfig() }

// newDefaultConfig builds an in-memory config populated with safe defaults.
func newDefaultConfig() *Config {
	cfg := &Config{
		Volume:              DefaultVolume,
		BufferingTimeoutSec: DefaultBufferingTimeoutSec,
		PollIntervalMs:      DefaultPollIntervalMs,
		WindowW:             DefaultWidth,
		WindowH:             DefaultHeight,
	}
	cfg.applyRuntimeDefaults()
	return cfg
}

// applyRuntimeDefaults normalizes config values after a load or when defaults
// are constructed.
func (c *Config) applyRuntimeDefaults() {
	if c.Volume < 0 {
		c.Volume = 0
	}
	if c.Volume > 100 {
		c.Volume = 100
	}
	if c.BufferingTimeoutSec < 0 {
		c.BufferingTimeoutSec = DefaultBufferingTimeoutSec
	}
	if c.PollIntervalMs <= 0 {
		c.PollIntervalMs = DefaultPollIntervalMs
	}
	if c.PollIntervalMs < MinPollIntervalMs {
		c.PollIntervalMs = MinPollIntervalMs
	}
	if c.WindowW == 0 {
		c.WindowW = DefaultWidth
	}
	if c.WindowW < MinWindowWidth {
		c.WindowW = MinWindowWidth
	}
	if c.WindowH == 0 {
		c.WindowH = DefaultHeight
	}
	c.LastGenre = strings.TrimSpace(c.LastGenre)
	c.LastStation = strings.TrimSpace(c.LastStation)
	c.CatalogPath = strings.TrimSpace(c.CatalogPath)
	c.MusicDir = strings.TrimSpace(c.MusicDir)
}
