package testsupport

import (
	"path/filepath"
	"testing"

	"thumbsmith/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.CatalogDir = filepath.Join(base, "catalog")
	cfg.Paths.OutputDir = filepath.Join(base, "artifacts")
	cfg.Paths.CheckpointDir = filepath.Join(base, "checkpoints")
	cfg.Paths.MetadataDir = filepath.Join(base, "metadata")
	cfg.Paths.LogDir = filepath.Join(base, "logs")

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithFetchConcurrency overrides the fetch concurrency limit.
func WithFetchConcurrency(n int) ConfigOption {
	return func(c *config.Config) {
		c.Fetch.Concurrency = n
	}
}

// WithMaxRetries overrides the fetch retry limit.
func WithMaxRetries(n int) ConfigOption {
	return func(c *config.Config) {
		c.Fetch.MaxRetries = n
	}
}
