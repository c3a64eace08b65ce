package config

import (
	"context"
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/marmos91/bucketfs/internal/logger"
	"github.com/marmos91/bucketfs/internal/ratelimiter"
	"github.com/marmos91/bucketfs/pkg/metrics"
	"github.com/marmos91/bucketfs/pkg/store"
	"github.com/marmos91/bucketfs/pkg/store/badger"
	"github.com/marmos91/bucketfs/pkg/store/memory"
	"github.com/marmos91/bucketfs/pkg/store/s3"
)

// S3StoreConfig is the decoded form of the store.s3 section.
type S3StoreConfig struct {
	Endpoint       string `mapstructure:"endpoint"`
	Region         string `mapstructure:"region"`
	ForcePathStyle bool   `mapstructure:"force_path_style"`

	AccessKeyID     string `mapstructure:"access_key_id" validate:"required"`
	SecretAccessKey string `mapstructure:"secret_access_key" validate:"required"`

	Bucket string `mapstructure:"bucket" validate:"required"`

	// KeyPrefix namespaces every object key inside the bucket
	KeyPrefix string `mapstructure:"key_prefix"`
}

// ClientConfig returns the settings needed to build the S3 client.
func (c *S3StoreConfig) ClientConfig() s3.ClientConfig {
	return s3.ClientConfig{
		Endpoint:        c.Endpoint,
		Region:          c.Region,
		AccessKeyID:     c.AccessKeyID,
		SecretAccessKey: c.SecretAccessKey,
		ForcePathStyle:  c.ForcePathStyle,
	}
}

// s3KeyOf maps an S3StoreConfig field name to its configuration key.
func s3KeyOf(field string) string {
	switch field {
	case "AccessKeyID":
		return "access_key_id"
	case "SecretAccessKey":
		return "secret_access_key"
	case "Bucket":
		return "bucket"
	default:
		return strings.ToLower(field)
	}
}

// DecodeS3Config decodes the store.s3 section.
func DecodeS3Config(cfg *StoreConfig) (*S3StoreConfig, error) {
	var s3Cfg S3StoreConfig
	if err := decodeSection(cfg.S3, &s3Cfg); err != nil {
		return nil, fmt.Errorf("failed to decode S3 store config: %w", err)
	}
	return &s3Cfg, nil
}

// DecodeBadgerConfig decodes the store.badger section.
func DecodeBadgerConfig(cfg *StoreConfig) (*badger.BadgerObjectStoreConfig, error) {
	var badgerCfg badger.BadgerObjectStoreConfig
	if err := decodeSection(cfg.Badger, &badgerCfg); err != nil {
		return nil, fmt.Errorf("failed to decode badger store config: %w", err)
	}
	return &badgerCfg, nil
}

// decodeSection decodes a raw section map, accepting string forms of
// booleans and numbers as environment variables deliver them.
func decodeSection(section map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(section)
}

// CreateObjectStore builds the object store selected by cfg.Type.
//
// The store is wrapped, innermost first, with Prometheus instrumentation
// (when m is non-nil) and rate limiting (when configured).
//
// Returns:
//   - store.ObjectStore: the ready store
//   - func() error: releases the store's resources; never nil
//   - error: if the store cannot be created
func CreateObjectStore(ctx context.Context, cfg *StoreConfig, m *metrics.StoreMetrics) (store.ObjectStore, func() error, error) {
	var (
		s       store.ObjectStore
		closeFn = func() error { return nil }
	)

	switch cfg.Type {
	case "memory":
		s = memory.NewMemoryObjectStore()

	case "badger":
		badgerCfg, err := DecodeBadgerConfig(cfg)
		if err != nil {
			return nil, nil, err
		}
		bs, err := badger.NewBadgerObjectStore(ctx, *badgerCfg)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create badger store: %w", err)
		}
		s, closeFn = bs, bs.Close

	case "s3":
		s3Cfg, err := DecodeS3Config(cfg)
		if err != nil {
			return nil, nil, err
		}
		client, err := s3.NewClient(ctx, s3Cfg.ClientConfig())
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create S3 client: %w", err)
		}
		ss, err := s3.NewS3ObjectStore(ctx, s3.S3ObjectStoreConfig{
			Client:    client,
			Bucket:    s3Cfg.Bucket,
			KeyPrefix: s3Cfg.KeyPrefix,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create S3 store: %w", err)
		}
		s = ss

	default:
		return nil, nil, fmt.Errorf("unknown store type: %q", cfg.Type)
	}

	s = m.Instrument(s, cfg.Type)

	if cfg.RateLimit.RequestsPerSecond > 0 {
		s = store.NewRateLimited(s, ratelimiter.New(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst))
		logger.Info("Store rate limited to %d requests/s (burst %d)", cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	}

	logger.Debug("Created %s object store", cfg.Type)
	return s, closeFn, nil
}
