package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete bucketfs configuration.
//
// Configuration sources (in order of precedence):
//  1. CLI flags (highest priority)
//  2. Environment variables (BUCKETFS_*, plus the S3_* credentials)
//  3. Configuration file (YAML)
//  4. Default values (lowest priority)
//
// Store Configuration Pattern:
// Each store implementation defines its own configuration type. The Store
// section holds one map per store type and only the section matching
// store.type is decoded.
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Store selects and configures the object store
	Store StoreConfig `mapstructure:"store" yaml:"store"`

	// Filesystem controls namespace behavior
	Filesystem FilesystemConfig `mapstructure:"filesystem" yaml:"filesystem"`

	// Mount configures the FUSE mount
	Mount MountConfig `mapstructure:"mount" yaml:"mount"`

	// Metrics configures the Prometheus endpoint
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// GC configures the orphaned object collector
	GC GCConfig `mapstructure:"gc" yaml:"gc"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" yaml:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" yaml:"format" validate:"required,oneof=text json"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" yaml:"output" validate:"required"`
}

// StoreConfig specifies the object store.
type StoreConfig struct {
	// Type selects the implementation
	// Valid values: s3, badger, memory
	Type string `mapstructure:"type" yaml:"type" validate:"required,oneof=s3 badger memory"`

	// S3 is decoded into S3StoreConfig when Type = "s3"
	S3 map[string]any `mapstructure:"s3" yaml:"s3"`

	// Badger is decoded into badger.BadgerObjectStoreConfig when Type = "badger"
	Badger map[string]any `mapstructure:"badger" yaml:"badger"`

	// Memory has no options yet
	Memory map[string]any `mapstructure:"memory" yaml:"memory"`

	// RateLimit throttles calls to the store
	RateLimit RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit"`
}

// RateLimitConfig throttles object store calls. Zero requests per second
// disables throttling.
type RateLimitConfig struct {
	RequestsPerSecond uint `mapstructure:"requests_per_second" yaml:"requests_per_second"`

	// Burst defaults to RequestsPerSecond
	Burst uint `mapstructure:"burst" yaml:"burst"`
}

// FilesystemConfig controls namespace behavior.
type FilesystemConfig struct {
	// CaseInsensitive makes "Foo" and "foo" the same name
	CaseInsensitive bool `mapstructure:"case_insensitive" yaml:"case_insensitive"`

	// ListingRetries bounds retries of a directory update that lost a
	// race against another writer
	ListingRetries int `mapstructure:"listing_retries" yaml:"listing_retries" validate:"gte=0,lte=100"`

	// ClearOnStart deletes every object in the store before mounting
	ClearOnStart bool `mapstructure:"clear_on_start" yaml:"clear_on_start"`
}

// MountConfig configures the FUSE mount.
type MountConfig struct {
	// MountPoint is the directory to mount on (overridden by --mount)
	MountPoint string `mapstructure:"mount_point" yaml:"mount_point"`

	// FsName is shown as the source in mount tables
	FsName string `mapstructure:"fs_name" yaml:"fs_name" validate:"required"`

	// AllowOther lets other users access the mount
	AllowOther bool `mapstructure:"allow_other" yaml:"allow_other"`

	// Debug logs every FUSE request
	Debug bool `mapstructure:"debug" yaml:"debug"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Listen is the address of the /metrics HTTP server
	Listen string `mapstructure:"listen" yaml:"listen" validate:"required_if=Enabled true"`
}

// GCConfig configures background removal of unreachable objects.
type GCConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Interval is the time between runs. An orphan is deleted by the
	// second run that finds it.
	Interval time.Duration `mapstructure:"interval" yaml:"interval" validate:"gte=0"`

	// DryRun logs orphans without deleting them
	DryRun bool `mapstructure:"dry_run" yaml:"dry_run"`
}

// s3EnvBindings maps store.s3 keys to the environment variables that
// supply them out of band.
var s3EnvBindings = map[string][]string{
	"store.s3.access_key_id":     {"S3_ACCESS_KEY_ID", "BUCKETFS_STORE_S3_ACCESS_KEY_ID"},
	"store.s3.secret_access_key": {"S3_SECRET_ACCESS_KEY", "BUCKETFS_STORE_S3_SECRET_ACCESS_KEY"},
	"store.s3.bucket":            {"S3_BUCKET", "BUCKETFS_STORE_S3_BUCKET"},
	"store.s3.endpoint":          {"S3_ENDPOINT", "BUCKETFS_STORE_S3_ENDPOINT"},
	"store.s3.region":            {"S3_REGION", "BUCKETFS_STORE_S3_REGION"},
}

// Load loads configuration from file, environment, and defaults.
//
// Parameters:
//   - configPath: Path to config file (empty string uses default location)
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: Configuration loading or validation error
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setupViper configures environment variables, defaults and the config
// file location.
func setupViper(v *viper.Viper, configPath string) {
	// Example: BUCKETFS_LOGGING_LEVEL=DEBUG
	v.SetEnvPrefix("BUCKETFS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, envs := range s3EnvBindings {
		_ = v.BindEnv(append([]string{key}, envs...)...)
	}

	// Defaults registered with viper make the keys visible to AutomaticEnv
	// and let a file override booleans whose default is true.
	defaults := GetDefaultConfig()
	v.SetDefault("logging.level", defaults.Logging.Level)
	v.SetDefault("logging.format", defaults.Logging.Format)
	v.SetDefault("logging.output", defaults.Logging.Output)
	v.SetDefault("store.type", defaults.Store.Type)
	v.SetDefault("store.rate_limit.requests_per_second", defaults.Store.RateLimit.RequestsPerSecond)
	v.SetDefault("store.rate_limit.burst", defaults.Store.RateLimit.Burst)
	v.SetDefault("filesystem.case_insensitive", defaults.Filesystem.CaseInsensitive)
	v.SetDefault("filesystem.listing_retries", defaults.Filesystem.ListingRetries)
	v.SetDefault("filesystem.clear_on_start", defaults.Filesystem.ClearOnStart)
	v.SetDefault("mount.mount_point", defaults.Mount.MountPoint)
	v.SetDefault("mount.fs_name", defaults.Mount.FsName)
	v.SetDefault("mount.allow_other", defaults.Mount.AllowOther)
	v.SetDefault("mount.debug", defaults.Mount.Debug)
	v.SetDefault("metrics.enabled", defaults.Metrics.Enabled)
	v.SetDefault("metrics.listen", defaults.Metrics.Listen)
	v.SetDefault("gc.enabled", defaults.GC.Enabled)
	v.SetDefault("gc.interval", defaults.GC.Interval)
	v.SetDefault("gc.dry_run", defaults.GC.DryRun)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Default location: $XDG_CONFIG_HOME/bucketfs/config.yaml
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists.
func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		// An explicit path that does not exist is also acceptable
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	return nil
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to the
// current directory if the home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "bucketfs")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "bucketfs")
}

// getDataDir returns the directory for local store data.
func getDataDir() string {
	if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
		return filepath.Join(xdgData, "bucketfs")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".local", "share", "bucketfs")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// ConfigExists checks if a config file exists at the default location.
func ConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path.
func GetConfigDir() string {
	return getConfigDir()
}
