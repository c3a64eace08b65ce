package filesystem

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/marmos91/bucketfs/pkg/metadata"
	"github.com/marmos91/bucketfs/pkg/store"
	"github.com/marmos91/bucketfs/pkg/store/memory"
	"github.com/stretchr/testify/require"
)

var testEpoch = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

// fixedClock returns a clock that advances one second per call.
func fixedClock() func() time.Time {
	var ticks atomic.Int64
	return func() time.Time {
		return testEpoch.Add(time.Duration(ticks.Add(1)) * time.Second)
	}
}

func testConfig() Config {
	return Config{
		CaseInsensitive: true,
		UID:             1000,
		GID:             1000,
		Now:             fixedClock(),
	}
}

// newTestFS returns an initialized FileSystem over s (a fresh memory store
// when nil).
func newTestFS(t *testing.T, s store.ObjectStore, cfg Config) *FileSystem {
	t.Helper()
	if s == nil {
		s = memory.NewMemoryObjectStore()
	}
	fs := New(s, cfg)
	require.NoError(t, fs.Init(context.Background()))
	return fs
}

// AssertErrorCode fails the test unless err carries code.
func AssertErrorCode(t *testing.T, err error, code metadata.ErrorCode, msgAndArgs ...any) {
	t.Helper()
	require.Error(t, err, msgAndArgs...)
	got, ok := metadata.ErrorCodeOf(err)
	require.True(t, ok, "expected a StoreError, got %T: %v", err, err)
	require.Equal(t, code, got, "unexpected error code: %v", err)
}

func fileEntry(name string) metadata.Entry {
	return metadata.NewEntry(name, metadata.KindFile, 0o644, 1000, 1000, testEpoch)
}

func dirEntry(name string) metadata.Entry {
	return metadata.NewEntry(name, metadata.KindDirectory, 0o755, 1000, 1000, testEpoch)
}

func entryNames(entries []metadata.Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Name
	}
	return out
}

// conflictingStore fails the first n conditional writes with a
// precondition error, as if another process had won the race.
type conflictingStore struct {
	*memory.MemoryObjectStore
	remaining atomic.Int32
}

func newConflictingStore(n int32) *conflictingStore {
	s := &conflictingStore{MemoryObjectStore: memory.NewMemoryObjectStore()}
	s.remaining.Store(n)
	return s
}

func (s *conflictingStore) PutIfVersion(ctx context.Context, key string, data []byte, expected store.Version) (store.Version, error) {
	if expected != "" && s.remaining.Add(-1) >= 0 {
		return "", store.ErrPreconditionFailed
	}
	return s.MemoryObjectStore.PutIfVersion(ctx, key, data, expected)
}

// failingStore makes every Put/PutIfVersion to one key fail once armed.
type failingStore struct {
	*memory.MemoryObjectStore
	key   string
	armed atomic.Bool
}

func (s *failingStore) fail(key string) bool {
	return s.armed.Load() && key == s.key
}

func (s *failingStore) Put(ctx context.Context, key string, data []byte) error {
	if s.fail(key) {
		return store.ErrUnavailable
	}
	return s.MemoryObjectStore.Put(ctx, key, data)
}

func (s *failingStore) PutIfVersion(ctx context.Context, key string, data []byte, expected store.Version) (store.Version, error) {
	if s.fail(key) {
		return "", store.ErrUnavailable
	}
	return s.MemoryObjectStore.PutIfVersion(ctx, key, data, expected)
}

// plainStore hides the optional capabilities of the wrapped store.
type plainStore struct {
	inner *memory.MemoryObjectStore
}

func (s plainStore) Get(ctx context.Context, key string) ([]byte, error) {
	return s.inner.Get(ctx, key)
}

func (s plainStore) Put(ctx context.Context, key string, data []byte) error {
	return s.inner.Put(ctx, key, data)
}

func (s plainStore) Delete(ctx context.Context, key string) error {
	return s.inner.Delete(ctx, key)
}

func (s plainStore) Clear(ctx context.Context) error {
	return s.inner.Clear(ctx)
}

func (s plainStore) List(ctx context.Context) ([]string, error) {
	return s.inner.List(ctx)
}
