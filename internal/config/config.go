package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	CatalogDir    string `toml:"catalog_dir"`
	OutputDir     string `toml:"output_dir"`
	CheckpointDir string `toml:"checkpoint_dir"`
	MetadataDir   string `toml:"metadata_dir"`
	LogDir        string `toml:"log_dir"`
}

// Fetch contains configuration for the download scheduler.
type Fetch struct {
	Concurrency           int    `toml:"concurrency"`
	MaxRetries            int    `toml:"max_retries"`
	RetryDelaySeconds     int    `toml:"retry_delay_seconds"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
	MinAssetBytes         int    `toml:"min_asset_bytes"`
	UserAgent             string `toml:"user_agent"`
	ForceRefetch          bool   `toml:"force_refetch"`
}

// Transcode contains configuration for WebP conversion.
type Transcode struct {
	Concurrency  int `toml:"concurrency"`
	Quality      int `toml:"quality"`
	MaxDimension int `toml:"max_dimension"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config is the root configuration shared by the CLI and pipeline.
type Config struct {
	Paths     Paths     `toml:"paths"`
	Fetch     Fetch     `toml:"fetch"`
	Transcode Transcode `toml:"transcode"`
	Logging   Logging   `toml:"logging"`
}

// RequestTimeout returns the per-attempt fetch timeout.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Fetch.RequestTimeoutSeconds) * time.Second
}

// RetryDelay returns the base backoff delay between fetch attempts.
func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.Fetch.RetryDelaySeconds) * time.Second
}

// DefaultConfigPath returns the preferred location of the user configuration.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".config", "thumbsmith", "config.toml"), nil
}

// Load reads configuration from path, falling back to defaults when the file
// does not exist. The returned config is normalized and validated.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return nil, err
		}
		path = defaultPath
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist):
		// Defaults apply when no config file exists.
	default:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// EnsureDirectories creates all configured directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Paths.OutputDir,
		c.Paths.CheckpointDir,
		c.Paths.MetadataDir,
		c.Paths.LogDir,
	}
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// WriteSample writes the embedded sample configuration to path, refusing to
// overwrite an existing file.
func WriteSample(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
