package config

import (
	"path/filepath"
	"strings"

	"github.com/marmos91/bucketfs/internal/fusefs"
	"github.com/marmos91/bucketfs/pkg/filesystem"
	"github.com/marmos91/bucketfs/pkg/gc"
	"github.com/marmos91/bucketfs/pkg/metrics"
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// Zero values are replaced with defaults and explicit values are kept.
// Booleans whose default is true (filesystem.case_insensitive,
// filesystem.clear_on_start) cannot be told apart from an explicit false
// here; Load registers them as viper defaults instead.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyStoreDefaults(&cfg.Store)
	applyFilesystemDefaults(&cfg.Filesystem)
	applyMountDefaults(&cfg.Mount)
	applyMetricsDefaults(&cfg.Metrics)
	applyGCDefaults(&cfg.GC)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyStoreDefaults(cfg *StoreConfig) {
	if cfg.Type == "" {
		cfg.Type = "s3"
	}

	if cfg.S3 == nil {
		cfg.S3 = make(map[string]any)
	}
	if cfg.Badger == nil {
		cfg.Badger = make(map[string]any)
	}
	if cfg.Memory == nil {
		cfg.Memory = make(map[string]any)
	}

	if _, ok := cfg.S3["region"]; !ok {
		cfg.S3["region"] = "us-east-1"
	}
	if _, ok := cfg.Badger["db_path"]; !ok {
		cfg.Badger["db_path"] = filepath.Join(getDataDir(), "objects")
	}

	if cfg.RateLimit.Burst == 0 {
		cfg.RateLimit.Burst = cfg.RateLimit.RequestsPerSecond
	}
}

func applyFilesystemDefaults(cfg *FilesystemConfig) {
	if cfg.ListingRetries == 0 {
		cfg.ListingRetries = filesystem.DefaultListingRetries
	}
}

func applyMountDefaults(cfg *MountConfig) {
	if cfg.FsName == "" {
		cfg.FsName = fusefs.DefaultFsName
	}
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Listen == "" {
		cfg.Listen = metrics.DefaultListen
	}
}

func applyGCDefaults(cfg *GCConfig) {
	if cfg.Interval == 0 {
		cfg.Interval = gc.DefaultInterval
	}
}

// GetDefaultConfig returns a Config struct with all default values applied.
//
// This is useful for:
//   - Generating sample configuration files
//   - Registering viper defaults
//   - Testing
func GetDefaultConfig() *Config {
	cfg := &Config{
		Filesystem: FilesystemConfig{
			CaseInsensitive: true,
			ClearOnStart:    true,
		},
	}

	ApplyDefaults(cfg)
	return cfg
}
