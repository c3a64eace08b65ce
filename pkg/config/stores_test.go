package config

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/bucketfs/pkg/store"
	"github.com/marmos91/bucketfs/pkg/store/memory"
)

func TestCreateObjectStore_Memory(t *testing.T) {
	ctx := context.Background()
	cfg := &StoreConfig{Type: "memory"}

	s, closeFn, err := CreateObjectStore(ctx, cfg, nil)
	require.NoError(t, err)
	defer func() { require.NoError(t, closeFn()) }()

	_, ok := s.(*memory.MemoryObjectStore)
	assert.True(t, ok, "unthrottled, uninstrumented memory store should not be wrapped")

	require.NoError(t, s.Put(ctx, "/a", []byte("x")))
	data, err := s.Get(ctx, "/a")
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), data)
}

func TestCreateObjectStore_RateLimitedKeepsCapabilities(t *testing.T) {
	ctx := context.Background()
	cfg := &StoreConfig{Type: "memory", RateLimit: RateLimitConfig{RequestsPerSecond: 1000, Burst: 1000}}

	s, _, err := CreateObjectStore(ctx, cfg, nil)
	require.NoError(t, err)

	_, isMemory := s.(*memory.MemoryObjectStore)
	assert.False(t, isMemory)
	_, versioned := s.(store.VersionedStore)
	assert.True(t, versioned)
	_, ranged := s.(store.RangeStore)
	assert.True(t, ranged)
}

func TestCreateObjectStore_Badger(t *testing.T) {
	ctx := context.Background()
	cfg := &StoreConfig{
		Type:   "badger",
		Badger: map[string]any{"db_path": filepath.Join(t.TempDir(), "objects")},
	}

	s, closeFn, err := CreateObjectStore(ctx, cfg, nil)
	require.NoError(t, err)
	defer func() { require.NoError(t, closeFn()) }()

	require.NoError(t, s.Put(ctx, "/", []byte("root")))
	data, err := s.Get(ctx, "/")
	require.NoError(t, err)
	assert.Equal(t, []byte("root"), data)
}

func TestCreateObjectStore_UnknownType(t *testing.T) {
	_, _, err := CreateObjectStore(context.Background(), &StoreConfig{Type: "ftp"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown store type")
}

func TestDecodeS3Config(t *testing.T) {
	cfg := &StoreConfig{S3: map[string]any{
		"endpoint":          "http://localhost:9000",
		"region":            "eu-south-1",
		"bucket":            "files",
		"key_prefix":        "tenant/",
		"access_key_id":     "key",
		"secret_access_key": "secret",
		"force_path_style":  "true",
	}}

	s3Cfg, err := DecodeS3Config(cfg)
	require.NoError(t, err)

	assert.Equal(t, "files", s3Cfg.Bucket)
	assert.Equal(t, "tenant/", s3Cfg.KeyPrefix)
	assert.True(t, s3Cfg.ForcePathStyle)

	client := s3Cfg.ClientConfig()
	assert.Equal(t, "http://localhost:9000", client.Endpoint)
	assert.Equal(t, "eu-south-1", client.Region)
	assert.Equal(t, "key", client.AccessKeyID)
	assert.Equal(t, "secret", client.SecretAccessKey)
	assert.True(t, client.ForcePathStyle)
}

func TestDecodeBadgerConfig(t *testing.T) {
	cfg := &StoreConfig{Badger: map[string]any{"db_path": "/srv/objects", "in_memory": "false"}}

	badgerCfg, err := DecodeBadgerConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, "/srv/objects", badgerCfg.DBPath)
	assert.False(t, badgerCfg.InMemory)
}
