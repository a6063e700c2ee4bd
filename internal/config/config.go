// Package config loads the Reverie service configuration from a TOML
// file, applying defaults for any omitted key.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config holds all tunables for the service.
type Config struct {
	// Host is the bind address for the HTTP server.
	Host string `toml:"host"`

	// Port is the HTTP server port.
	Port int `toml:"port"`

	// APIKey, when set, is required in the X-API-Key header.
	APIKey string `toml:"api_key"`

	// QueueSize is the capacity of each subscriber queue.
	QueueSize int `toml:"queue_size"`

	// MaxSubscribers caps concurrent bus subscribers.
	MaxSubscribers int `toml:"max_subscribers"`

	// HeartbeatIntervalSeconds is the maximum gap between stream frames.
	HeartbeatIntervalSeconds float64 `toml:"heartbeat_interval_seconds"`

	// DebounceWindowMS is the per-path coalescing window.
	DebounceWindowMS int `toml:"debounce_window_ms"`

	// HandoffTimeoutMS bounds the watcher-to-pipeline handoff wait.
	HandoffTimeoutMS int `toml:"handoff_timeout_ms"`

	// ThoughtsDir is the watched root for thought entries.
	ThoughtsDir string `toml:"thoughts_dir"`

	// DreamsDir is the watched root for dream entries.
	DreamsDir string `toml:"dreams_dir"`
}

// Default returns the configuration used when no file is provided.
func Default() Config {
	return Config{
		Host:                     "127.0.0.1",
		Port:                     8000,
		QueueSize:                100,
		MaxSubscribers:           100,
		HeartbeatIntervalSeconds: 15.0,
		DebounceWindowMS:         50,
		HandoffTimeoutMS:         5000,
		ThoughtsDir:              "/claude-home/thoughts",
		DreamsDir:                "/claude-home/dreams",
	}
}

// Load reads a TOML config file, layering it over the defaults.
// An empty path returns the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config file: %w", err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks that every tunable is in a usable range.
func (c Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.QueueSize < 1 {
		return fmt.Errorf("queue_size must be positive, got %d", c.QueueSize)
	}
	if c.MaxSubscribers < 1 {
		return fmt.Errorf("max_subscribers must be positive, got %d", c.MaxSubscribers)
	}
	if c.HeartbeatIntervalSeconds <= 0 {
		return fmt.Errorf("heartbeat_interval_seconds must be positive, got %g", c.HeartbeatIntervalSeconds)
	}
	if c.DebounceWindowMS < 1 {
		return fmt.Errorf("debounce_window_ms must be positive, got %d", c.DebounceWindowMS)
	}
	if c.HandoffTimeoutMS < 1 {
		return fmt.Errorf("handoff_timeout_ms must be positive, got %d", c.HandoffTimeoutMS)
	}
	if c.ThoughtsDir == "" || c.DreamsDir == "" {
		return fmt.Errorf("thoughts_dir and dreams_dir must be set")
	}
	return nil
}

// HeartbeatInterval returns the heartbeat interval as a duration.
func (c Config) HeartbeatInterval() time.Duration {
	return time.Duration(c.HeartbeatIntervalSeconds * float64(time.Second))
}

// DebounceWindow returns the debounce window as a duration.
func (c Config) DebounceWindow() time.Duration {
	return time.Duration(c.DebounceWindowMS) * time.Millisecond
}

// HandoffTimeout returns the handoff timeout as a duration.
func (c Config) HandoffTimeout() time.Duration {
	return time.Duration(c.HandoffTimeoutMS) * time.Millisecond
}

// WatchPaths returns the directories monitored for changes.
func (c Config) WatchPaths() []string {
	return []string{c.ThoughtsDir, c.DreamsDir}
}

// Addr returns the host:port bind address for the HTTP server.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
