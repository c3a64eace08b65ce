package gc

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/bucketfs/pkg/filesystem"
	"github.com/marmos91/bucketfs/pkg/metadata"
	"github.com/marmos91/bucketfs/pkg/store"
	"github.com/marmos91/bucketfs/pkg/store/memory"
)

// newTree returns a filesystem holding /docs and /docs/a.txt.
func newTree(t *testing.T, s store.ObjectStore) *filesystem.FileSystem {
	t.Helper()
	ctx := context.Background()

	fsys := filesystem.New(s, filesystem.DefaultConfig())
	require.NoError(t, fsys.Init(ctx))
	require.NoError(t, fsys.Mkdir(ctx, "/docs", 0o755, 1000, 1000))
	require.NoError(t, fsys.Mknod(ctx, "/docs/a.txt", 0o644, 1000, 1000))
	return fsys
}

func assertPresent(t *testing.T, s store.ObjectStore, key string) {
	t.Helper()
	_, err := s.Get(context.Background(), key)
	assert.NoError(t, err, "expected %s to exist", key)
}

func assertGone(t *testing.T, s store.ObjectStore, key string) {
	t.Helper()
	_, err := s.Get(context.Background(), key)
	assert.ErrorIs(t, err, store.ErrObjectNotFound, "expected %s to be deleted", key)
}

func TestCollectorDeletesConfirmedOrphans(t *testing.T) {
	ctx := context.Background()
	s := memory.NewMemoryObjectStore()
	fsys := newTree(t, s)
	require.NoError(t, s.Put(ctx, "/stray", []byte("left behind")))

	c := NewCollector(fsys, s, Config{})

	stats, err := c.RunNow(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 4, stats.ExistingCount)
	assert.EqualValues(t, 3, stats.ReachableCount)
	assert.EqualValues(t, 1, stats.OrphanedCount)
	assert.EqualValues(t, 1, stats.PendingCount)
	assert.EqualValues(t, 0, stats.DeletedCount)
	assertPresent(t, s, "/stray")

	stats, err = c.RunNow(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.DeletedCount)
	assert.EqualValues(t, 0, stats.PendingCount)
	assertGone(t, s, "/stray")

	for _, k := range []string{"/", "/docs", "/docs/a.txt"} {
		assertPresent(t, s, k)
	}
}

func TestCollectorKeepsObjectsThatBecomeReachable(t *testing.T) {
	ctx := context.Background()
	s := memory.NewMemoryObjectStore()
	fsys := newTree(t, s)

	// content written before its listing entry, as a create does
	require.NoError(t, s.Put(ctx, "/late", []byte("x")))

	c := NewCollector(fsys, s, Config{})
	stats, err := c.RunNow(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.PendingCount)

	entry := metadata.NewEntry("late", metadata.KindFile, 0o644, 1000, 1000, time.Now())
	entry.Size = 1
	require.NoError(t, fsys.Directories().AddEntry(ctx, filesystem.RootPath, entry))

	stats, err = c.RunNow(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 0, stats.OrphanedCount)
	assert.EqualValues(t, 0, stats.DeletedCount)
	assertPresent(t, s, "/late")
}

func TestCollectorSparesRewrittenOrphans(t *testing.T) {
	tests := []struct {
		name string
		wrap func(*memory.MemoryObjectStore) store.ObjectStore
	}{
		{name: "store versions", wrap: func(m *memory.MemoryObjectStore) store.ObjectStore { return m }},
		// hides VersionedStore, so content hashes are compared
		{name: "content hashes", wrap: func(m *memory.MemoryObjectStore) store.ObjectStore {
			return struct{ store.ObjectStore }{m}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			s := tt.wrap(memory.NewMemoryObjectStore())
			fsys := newTree(t, s)
			require.NoError(t, s.Put(ctx, "/stray", []byte("first")))

			c := NewCollector(fsys, s, Config{})
			stats, err := c.RunNow(ctx)
			require.NoError(t, err)
			assert.EqualValues(t, 1, stats.PendingCount)

			// removed and stored again by a create whose entry is not listed yet
			require.NoError(t, s.Delete(ctx, "/stray"))
			require.NoError(t, s.Put(ctx, "/stray", []byte("second")))

			stats, err = c.RunNow(ctx)
			require.NoError(t, err)
			assert.EqualValues(t, 0, stats.DeletedCount)
			assert.EqualValues(t, 1, stats.PendingCount)
			assertPresent(t, s, "/stray")

			stats, err = c.RunNow(ctx)
			require.NoError(t, err)
			assert.EqualValues(t, 1, stats.DeletedCount)
			assertGone(t, s, "/stray")
		})
	}
}

func TestCollectorCaseFoldedKeys(t *testing.T) {
	ctx := context.Background()
	s := memory.NewMemoryObjectStore()

	fsys := filesystem.New(s, filesystem.DefaultConfig())
	require.NoError(t, fsys.Init(ctx))
	require.NoError(t, fsys.Mkdir(ctx, "/Photos", 0o755, 1000, 1000))
	require.NoError(t, fsys.Mknod(ctx, "/Photos/IMG.JPG", 0o644, 1000, 1000))

	c := NewCollector(fsys, s, Config{})
	for i := 0; i < 2; i++ {
		stats, err := c.RunNow(ctx)
		require.NoError(t, err)
		assert.EqualValues(t, 0, stats.OrphanedCount)
	}
	assert.Equal(t, 3, s.Len())
}

func TestCollectorDryRun(t *testing.T) {
	ctx := context.Background()
	s := memory.NewMemoryObjectStore()
	fsys := newTree(t, s)
	require.NoError(t, s.Put(ctx, "/stray", []byte("x")))

	c := NewCollector(fsys, s, Config{DryRun: true})
	for i := 0; i < 3; i++ {
		stats, err := c.RunNow(ctx)
		require.NoError(t, err)
		assert.EqualValues(t, 1, stats.OrphanedCount)
		assert.EqualValues(t, 0, stats.DeletedCount)
	}
	assertPresent(t, s, "/stray")
}

func TestCollectorAbortsOnCorruptTree(t *testing.T) {
	ctx := context.Background()
	s := memory.NewMemoryObjectStore()
	fsys := newTree(t, s)
	require.NoError(t, s.Put(ctx, "/stray", []byte("x")))

	c := NewCollector(fsys, s, Config{})
	_, err := c.RunNow(ctx)
	require.NoError(t, err)

	require.NoError(t, s.Put(ctx, "/docs", []byte("not a listing")))
	_, err = c.RunNow(ctx)
	require.Error(t, err)

	assertPresent(t, s, "/stray")
	assertPresent(t, s, "/docs/a.txt")
}

func TestCollectorRetriesFailedDeletes(t *testing.T) {
	ctx := context.Background()
	inner := memory.NewMemoryObjectStore()

	var failDeletes atomic.Bool
	s := store.Intercept(inner, func(ctx context.Context, op, key string, call func(context.Context) error) error {
		if op == store.OpDelete && failDeletes.Load() {
			return errors.Join(store.ErrUnavailable, errors.New("injected"))
		}
		return call(ctx)
	})

	fsys := newTree(t, s)
	require.NoError(t, s.Put(ctx, "/stray", []byte("x")))

	c := NewCollector(fsys, s, Config{Concurrency: 1})
	_, err := c.RunNow(ctx)
	require.NoError(t, err)

	failDeletes.Store(true)
	stats, err := c.RunNow(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.FailedCount)
	assertPresent(t, s, "/stray")

	failDeletes.Store(false)
	stats, err = c.RunNow(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.DeletedCount)
	assertGone(t, s, "/stray")
}

func TestCollectorBackground(t *testing.T) {
	ctx := context.Background()
	s := memory.NewMemoryObjectStore()
	fsys := newTree(t, s)
	require.NoError(t, s.Put(ctx, "/stray", []byte("x")))

	c := NewCollector(fsys, s, Config{Enabled: true, Interval: 10 * time.Millisecond})
	c.Start()
	c.Start()

	require.Eventually(t, func() bool {
		_, err := s.Get(ctx, "/stray")
		return errors.Is(err, store.ErrObjectNotFound)
	}, 5*time.Second, 10*time.Millisecond)

	stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, c.Stop(stopCtx))
	require.NoError(t, c.Stop(stopCtx))
}

func TestCollectorStopWithoutStart(t *testing.T) {
	s := memory.NewMemoryObjectStore()
	fsys := newTree(t, s)

	assert.NoError(t, NewCollector(fsys, s, Config{Enabled: true}).Stop(context.Background()))

	disabled := NewCollector(fsys, s, Config{})
	disabled.Start()
	assert.NoError(t, disabled.Stop(context.Background()))
}

func TestNewCollectorDefaults(t *testing.T) {
	s := memory.NewMemoryObjectStore()
	c := NewCollector(filesystem.New(s, filesystem.DefaultConfig()), s, Config{})

	assert.Equal(t, DefaultInterval, c.config.Interval)
	assert.Equal(t, DefaultConcurrency, c.config.Concurrency)
}

func TestStatsSummary(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	stats := &Stats{
		StartTime:      start,
		EndTime:        start.Add(2 * time.Second),
		ReachableCount: 3,
		ExistingCount:  5,
		OrphanedCount:  2,
		PendingCount:   1,
		DeletedCount:   1,
	}

	assert.Equal(t, 2*time.Second, stats.Duration())
	assert.Equal(t, "reachable=3 existing=5 orphaned=2 pending=1 deleted=1 failed=0 duration=2s", stats.Summary())
}
