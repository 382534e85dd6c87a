package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateFetch(); err != nil {
		return err
	}
	if err := c.validateTranscode(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if c.Paths.CatalogDir == "" {
		return errors.New("paths.catalog_dir must be set")
	}
	if c.Paths.OutputDir == "" {
		return errors.New("paths.output_dir must be set")
	}
	if c.Paths.CheckpointDir == "" {
		return errors.New("paths.checkpoint_dir must be set")
	}
	return nil
}

func (c *Config) validateFetch() error {
	if c.Fetch.Concurrency < 1 {
		return errors.New("fetch.concurrency must be at least 1")
	}
	if c.Fetch.MaxRetries < 1 {
		return errors.New("fetch.max_retries must be at least 1")
	}
	if c.Fetch.RetryDelaySeconds < 0 {
		return errors.New("fetch.retry_delay_seconds must not be negative")
	}
	if c.Fetch.RequestTimeoutSeconds < 1 {
		return errors.New("fetch.request_timeout_seconds must be at least 1")
	}
	if c.Fetch.MinAssetBytes < 0 {
		return errors.New("fetch.min_asset_bytes must not be negative")
	}
	return nil
}

func (c *Config) validateTranscode() error {
	if c.Transcode.Concurrency < 1 {
		return errors.New("transcode.concurrency must be at least 1")
	}
	if c.Transcode.Quality < 0 || c.Transcode.Quality > 100 {
		return errors.New("transcode.quality must be between 0 and 100")
	}
	if c.Transcode.MaxDimension < 1 {
		return errors.New("transcode.max_dimension must be at least 1")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
		return nil
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
}
