package config

const (
	defaultCatalogDir    = "~/.local/share/thumbsmith/catalog"
	defaultOutputDir     = "~/.local/share/thumbsmith/artifacts"
	defaultCheckpointDir = "~/.local/share/thumbsmith/checkpoints"
	defaultMetadataDir   = "~/.local/share/thumbsmith/metadata"
	defaultLogDir        = "~/.local/share/thumbsmith/logs"

	defaultFetchConcurrency     = 15
	defaultTranscodeConcurrency = 4
	defaultMaxRetries           = 3
	defaultRetryDelaySeconds    = 1
	defaultRequestTimeout       = 30
	defaultMinAssetBytes        = 100
	defaultUserAgent            = "thumbsmith/1.0"

	defaultQuality      = 85
	defaultMaxDimension = 1024

	defaultLogFormat = "console"
	defaultLogLevel  = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			CatalogDir:    defaultCatalogDir,
			OutputDir:     defaultOutputDir,
			CheckpointDir: defaultCheckpointDir,
			MetadataDir:   defaultMetadataDir,
			LogDir:        defaultLogDir,
		},
		Fetch: Fetch{
			Concurrency:           defaultFetchConcurrency,
			MaxRetries:            defaultMaxRetries,
			RetryDelaySeconds:     defaultRetryDelaySeconds,
			RequestTimeoutSeconds: defaultRequestTimeout,
			MinAssetBytes:         defaultMinAssetBytes,
			UserAgent:             defaultUserAgent,
		},
		Transcode: Transcode{
			Concurrency:  defaultTranscodeConcurrency,
			Quality:      defaultQuality,
			MaxDimension: defaultMaxDimension,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
