package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all omegagen configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Calculator subprocess
	Engine EngineConfig `yaml:"engine"`

	// Session persistence
	Store StoreConfig `yaml:"store"`

	// Concurrent request processing
	Batch BatchConfig `yaml:"batch"`

	// File watching
	Watch WatchConfig `yaml:"watch"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// StoreConfig configures the session database.
type StoreConfig struct {
	Enabled      bool   `yaml:"enabled"`
	DatabasePath string `yaml:"database_path"`
}

// BatchConfig configures the batch command.
type BatchConfig struct {
	// Concurrency caps the number of requests processed at once; 0 means one
	// per CPU.
	Concurrency int `yaml:"concurrency"`
}

// WatchConfig configures the watch command.
type WatchConfig struct {
	Debounce string `yaml:"debounce"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "omegagen",
		Version: "0.3.0",

		Engine: EngineConfig{
			Binary:         "/usr/local/bin/omegacalc",
			Timeout:        "120s",
			PromptMarker:   ">>>",
			MaxOutputBytes: 16 * 1024 * 1024,
		},

		Store: StoreConfig{
			Enabled:      true,
			DatabasePath: ".omegagen/sessions.db",
		},

		Batch: BatchConfig{
			Concurrency: 0,
		},

		Watch: WatchConfig{
			Debounce: "200ms",
		},

		Logging: LoggingConfig{
			Level:  "warn",
			Format: "console",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults; environment overrides apply either way.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Override with environment variables
	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if bin := os.Getenv("OMEGAGEN_ENGINE"); bin != "" {
		c.Engine.Binary = bin
	}
	if dir := os.Getenv("OMEGAGEN_WORKDIR"); dir != "" {
		c.Engine.WorkDir = dir
	}
	if timeout := os.Getenv("OMEGAGEN_TIMEOUT"); timeout != "" {
		c.Engine.Timeout = timeout
	}

	// Database path from environment
	if path := os.Getenv("OMEGAGEN_DB"); path != "" {
		c.Store.DatabasePath = path
	}

	if level := os.Getenv("OMEGAGEN_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
}

// GetEngineTimeout returns the engine timeout as a duration.
func (c *Config) GetEngineTimeout() time.Duration {
	d, err := time.ParseDuration(c.Engine.Timeout)
	if err != nil {
		return 120 * time.Second
	}
	return d
}

// GetWatchDebounce returns the watch debounce interval as a duration.
func (c *Config) GetWatchDebounce() time.Duration {
	d, err := time.ParseDuration(c.Watch.Debounce)
	if err != nil {
		return 200 * time.Millisecond
	}
	return d
}

// ValidLogLevels lists the accepted logging levels.
var ValidLogLevels = []string{"debug", "info", "warn", "error"}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Engine.Binary == "" {
		return fmt.Errorf("engine binary not configured (set engine.binary or OMEGAGEN_ENGINE)")
	}
	if c.Engine.Timeout != "" {
		if d, err := time.ParseDuration(c.Engine.Timeout); err != nil || d <= 0 {
			return fmt.Errorf("invalid engine timeout: %q", c.Engine.Timeout)
		}
	}
	if c.Store.Enabled && c.Store.DatabasePath == "" {
		return fmt.Errorf("store enabled but database_path is empty")
	}
	if c.Batch.Concurrency < 0 {
		return fmt.Errorf("invalid batch concurrency: %d", c.Batch.Concurrency)
	}
	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels, c.Logging.Level) {
		return fmt.Errorf("invalid log level: %s (valid: %v)", c.Logging.Level, ValidLogLevels)
	}
	return nil
}
