package config

import (
	"strings"
	"testing"
	"time"
)

// validConfig returns a default config that passes validation.
func validConfig() *Config {
	cfg := GetDefaultConfig()
	cfg.Store.S3["access_key_id"] = "key"
	cfg.Store.S3["secret_access_key"] = "secret"
	cfg.Store.S3["bucket"] = "bucket"
	return cfg
}

func TestValidate_ValidConfig(t *testing.T) {
	if err := Validate(validConfig()); err != nil {
		t.Errorf("Expected valid config to pass validation, got error: %v", err)
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	cfg := validConfig()
	cfg.Logging.Level = "INVALID"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for invalid log level")
	}
	if !strings.Contains(err.Error(), "oneof") {
		t.Errorf("Expected 'oneof' validation error, got: %v", err)
	}
}

func TestValidate_InvalidLogFormat(t *testing.T) {
	cfg := validConfig()
	cfg.Logging.Format = "xml"

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error for invalid log format")
	}
}

func TestValidate_InvalidStoreType(t *testing.T) {
	cfg := validConfig()
	cfg.Store.Type = "ftp"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for invalid store type")
	}
	if !strings.Contains(err.Error(), "Store.Type") {
		t.Errorf("Expected error to name Store.Type, got: %v", err)
	}
}

func TestValidate_MissingS3Values(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		wantEnv string
	}{
		{"access key", "access_key_id", "S3_ACCESS_KEY_ID"},
		{"secret key", "secret_access_key", "S3_SECRET_ACCESS_KEY"},
		{"bucket", "bucket", "S3_BUCKET"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			delete(cfg.Store.S3, tt.key)

			err := Validate(cfg)
			if err == nil {
				t.Fatalf("Expected validation error without %s", tt.key)
			}
			if !strings.Contains(err.Error(), tt.wantEnv) {
				t.Errorf("Expected error to mention %s, got: %v", tt.wantEnv, err)
			}
		})
	}
}

func TestValidate_S3NotRequiredForOtherStores(t *testing.T) {
	for _, storeType := range []string{"memory", "badger"} {
		cfg := GetDefaultConfig()
		cfg.Store.Type = storeType

		if err := Validate(cfg); err != nil {
			t.Errorf("Expected %s store without S3 values to be valid, got: %v", storeType, err)
		}
	}
}

func TestValidate_BadgerNeedsPath(t *testing.T) {
	cfg := validConfig()
	cfg.Store.Type = "badger"
	cfg.Store.Badger = map[string]any{"db_path": ""}

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error for badger store without a path")
	}

	cfg.Store.Badger["in_memory"] = true
	if err := Validate(cfg); err != nil {
		t.Errorf("Expected in-memory badger store to be valid, got: %v", err)
	}
}

func TestValidate_BadStoreSection(t *testing.T) {
	cfg := validConfig()
	cfg.Store.S3["force_path_style"] = map[string]any{"on": true}

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected error decoding a malformed S3 section")
	}
}

func TestValidate_ListingRetriesRange(t *testing.T) {
	cfg := validConfig()
	cfg.Filesystem.ListingRetries = -1

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error for negative listing_retries")
	}

	cfg.Filesystem.ListingRetries = 101
	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error for listing_retries above 100")
	}
}

func TestValidate_MetricsListenRequiredWhenEnabled(t *testing.T) {
	cfg := validConfig()
	cfg.Metrics.Enabled = true
	cfg.Metrics.Listen = ""

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error for enabled metrics without listen address")
	}

	cfg.Metrics.Enabled = false
	if err := Validate(cfg); err != nil {
		t.Errorf("Expected disabled metrics without listen address to be valid, got: %v", err)
	}
}

func TestValidate_NegativeGCInterval(t *testing.T) {
	cfg := validConfig()
	cfg.GC.Interval = -time.Second

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error for negative gc interval")
	}
}

func TestValidate_BurstWithoutRate(t *testing.T) {
	cfg := validConfig()
	cfg.Store.RateLimit.Burst = 10

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error for burst without requests_per_second")
	}
}

func TestValidate_EmptyFsName(t *testing.T) {
	cfg := validConfig()
	cfg.Mount.FsName = ""

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error for empty fs_name")
	}
}

func TestValidate_LogLevelNormalization(t *testing.T) {
	tests := []string{"debug", "Info", "WARN", "error"}

	for _, level := range tests {
		t.Run(level, func(t *testing.T) {
			cfg := validConfig()
			cfg.Logging.Level = level
			ApplyDefaults(cfg)

			if err := Validate(cfg); err != nil {
				t.Errorf("Expected level %q to be valid after normalization, got: %v", level, err)
			}
			if cfg.Logging.Level != strings.ToUpper(level) {
				t.Errorf("Expected level normalized to %q, got %q", strings.ToUpper(level), cfg.Logging.Level)
			}
		})
	}
}
