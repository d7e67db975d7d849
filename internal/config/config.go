// Package config provides configuration management for the camera
// fleet engine.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// Config is the main engine configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Media    MediaConfig    `yaml:"media"`
	Stream   StreamConfig   `yaml:"stream"`
	Video    VideoConfig    `yaml:"video"`
	Logging  LoggingConfig  `yaml:"logging"`

	// Internal fields
	mu       sync.RWMutex    `yaml:"-"`
	path     string          `yaml:"-"`
	watchers []func(*Config) `yaml:"-"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DatabaseConfig holds database settings.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// MediaConfig holds artifact storage locations.
type MediaConfig struct {
	// BaseDir is the root for screenshots and recordings
	// (media/screenshots, media/recordings).
	BaseDir string `yaml:"base_dir"`
	// SnapshotDir is the root for on-demand snapshots
	// (screenshots/current).
	SnapshotDir string `yaml:"snapshot_dir"`
}

// StreamConfig holds per-camera pipeline settings.
type StreamConfig struct {
	FPS                   int `yaml:"fps"`
	MaxQueueSize          int `yaml:"max_queue_size"`
	ConnectTimeoutSeconds int `yaml:"connect_timeout_seconds"`
	FrameTimeoutSeconds   int `yaml:"frame_timeout_seconds"`
	ReconnectAttempts     int `yaml:"reconnect_attempts"`
	ReconnectDelaySeconds int `yaml:"reconnect_delay_seconds"`
	WorkerPoolSize        int `yaml:"worker_pool_size"`
}

// VideoConfig holds resize and clip settings.
type VideoConfig struct {
	// Size is "W,H"; the streaming handler resizes frames to it
	// before JPEG encoding. Empty means no resize.
	Size string `yaml:"size"`
	// ClipSeconds is the event-triggered clip duration.
	ClipSeconds int `yaml:"clip_seconds"`
	// ContinuousSeconds is the length of each continuous-loop clip.
	ContinuousSeconds int `yaml:"continuous_seconds"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load loads configuration from a YAML file, applies defaults and
// environment overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.path = path
	cfg.setDefaults()
	cfg.applyEnv()

	return &cfg, nil
}

// Default returns a configuration with all defaults and environment
// overrides applied, for running without a config file.
func Default() *Config {
	cfg := &Config{}
	cfg.setDefaults()
	cfg.applyEnv()
	return cfg
}

// Save writes the configuration atomically.
func (c *Config) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	cfgCopy := &Config{
		Server:   c.Server,
		Database: c.Database,
		Media:    c.Media,
		Stream:   c.Stream,
		Video:    c.Video,
		Logging:  c.Logging,
	}
	data, err := yaml.Marshal(cfgCopy)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := "# Camera fleet engine configuration\n\n"
	data = append([]byte(header), data...)

	tmpPath := c.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return os.Rename(tmpPath, c.path)
}

// Watch starts watching the config file for changes.
func (c *Config) Watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	go func() {
		defer watcher.Close()

		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&fsnotify.Write == fsnotify.Write {
					time.Sleep(100 * time.Millisecond) // Debounce
					c.reload()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Error("Config watch error", "error", err)
			}
		}
	}()

	return watcher.Add(c.path)
}

// OnChange registers a callback invoked after each successful reload.
func (c *Config) OnChange(fn func(*Config)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.watchers = append(c.watchers, fn)
}

// reload re-reads the configuration from disk.
func (c *Config) reload() {
	newCfg, err := Load(c.path)
	if err != nil {
		slog.Error("Failed to reload config", "error", err)
		return
	}

	c.mu.Lock()
	c.Server = newCfg.Server
	c.Database = newCfg.Database
	c.Media = newCfg.Media
	c.Stream = newCfg.Stream
	c.Video = newCfg.Video
	c.Logging = newCfg.Logging
	watchers := c.watchers
	c.mu.Unlock()

	slog.Info("Configuration reloaded")

	for _, fn := range watchers {
		fn(c)
	}
}

// Accessor methods below take the read lock: reload() rewrites the
// section structs while streams are live, so callers outside this
// package must never read the fields directly.

// ConnectTimeout returns the capture connect timeout.
func (c *Config) ConnectTimeout() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return time.Duration(c.Stream.ConnectTimeoutSeconds) * time.Second
}

// FrameTimeout returns the consumer frame-wait timeout.
func (c *Config) FrameTimeout() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return time.Duration(c.Stream.FrameTimeoutSeconds) * time.Second
}

// ReconnectDelay returns the pause between reconnect attempts.
func (c *Config) ReconnectDelay() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return time.Duration(c.Stream.ReconnectDelaySeconds) * time.Second
}

// ReconnectAttempts returns the number of opens per reconnect batch.
func (c *Config) ReconnectAttempts() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Stream.ReconnectAttempts
}

// FPS returns the capture frame rate.
func (c *Config) FPS() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Stream.FPS
}

// MaxQueueSize returns the frame queue capacity.
func (c *Config) MaxQueueSize() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Stream.MaxQueueSize
}

// WorkerPoolSize returns the detection worker count.
func (c *Config) WorkerPoolSize() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Stream.WorkerPoolSize
}

// MediaBaseDir returns the root for screenshots and recordings.
func (c *Config) MediaBaseDir() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Media.BaseDir
}

// SnapshotDir returns the root for on-demand snapshots.
func (c *Config) SnapshotDir() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Media.SnapshotDir
}

// Addr returns the host:port the HTTP server listens on.
func (c *Config) Addr() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// DatabasePath returns the SQLite file path.
func (c *Config) DatabasePath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Database.Path
}

// LogSettings returns the logging level and format.
func (c *Config) LogSettings() (level, format string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Logging.Level, c.Logging.Format
}

// ClipDuration returns the event clip length.
func (c *Config) ClipDuration() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return time.Duration(c.Video.ClipSeconds) * time.Second
}

// ContinuousDuration returns the continuous-loop clip length.
func (c *Config) ContinuousDuration() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return time.Duration(c.Video.ContinuousSeconds) * time.Second
}

// ParseSize parses Video.Size ("W,H"). ok is false when unset or
// malformed.
func (c *Config) ParseSize() (w, h int, ok bool) {
	c.mu.RLock()
	size := c.Video.Size
	c.mu.RUnlock()

	parts := strings.Split(size, ",")
	if len(parts) != 2 {
		return 0, 0, false
	}
	w, errW := strconv.Atoi(strings.TrimSpace(parts[0]))
	h, errH := strconv.Atoi(strings.TrimSpace(parts[1]))
	if errW != nil || errH != nil || w <= 0 || h <= 0 {
		return 0, 0, false
	}
	return w, h, true
}

// setDefaults fills unset fields.
func (c *Config) setDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Database.Path == "" {
		c.Database.Path = "data/camfleet.db"
	}
	if c.Media.BaseDir == "" {
		c.Media.BaseDir = "media"
	}
	if c.Media.SnapshotDir == "" {
		c.Media.SnapshotDir = "screenshots/current"
	}
	if c.Stream.FPS == 0 {
		c.Stream.FPS = 30
	}
	if c.Stream.MaxQueueSize == 0 {
		c.Stream.MaxQueueSize = 10
	}
	if c.Stream.ConnectTimeoutSeconds == 0 {
		c.Stream.ConnectTimeoutSeconds = 5
	}
	if c.Stream.FrameTimeoutSeconds == 0 {
		c.Stream.FrameTimeoutSeconds = 2
	}
	if c.Stream.ReconnectAttempts == 0 {
		c.Stream.ReconnectAttempts = 3
	}
	if c.Stream.ReconnectDelaySeconds == 0 {
		c.Stream.ReconnectDelaySeconds = 2
	}
	if c.Stream.WorkerPoolSize == 0 {
		c.Stream.WorkerPoolSize = 4
	}
	if c.Video.ClipSeconds == 0 {
		c.Video.ClipSeconds = 5
	}
	if c.Video.ContinuousSeconds == 0 {
		c.Video.ContinuousSeconds = 30
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// applyEnv applies environment variable overrides.
func (c *Config) applyEnv() {
	if v := os.Getenv("SIZE_VIDEO"); v != "" {
		c.Video.Size = v
	}
	if v := os.Getenv("BOT_SEND_VIDEO"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			c.Video.ClipSeconds = secs
		}
	}
}
