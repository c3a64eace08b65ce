package store_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/marmos91/bucketfs/internal/ratelimiter"
	"github.com/marmos91/bucketfs/pkg/store"
	"github.com/marmos91/bucketfs/pkg/store/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// plainStore implements only the base interface.
type plainStore struct {
	store.ObjectStore
}

func TestInterceptPreservesCapabilities(t *testing.T) {
	noop := func(ctx context.Context, op, key string, call func(context.Context) error) error {
		return call(ctx)
	}

	full := store.Intercept(memory.NewMemoryObjectStore(), noop)
	_, versioned := full.(store.VersionedStore)
	_, ranged := full.(store.RangeStore)
	assert.True(t, versioned)
	assert.True(t, ranged)

	plain := store.Intercept(plainStore{memory.NewMemoryObjectStore()}, noop)
	_, versioned = plain.(store.VersionedStore)
	_, ranged = plain.(store.RangeStore)
	assert.False(t, versioned)
	assert.False(t, ranged)
}

func TestInterceptSeesEveryCall(t *testing.T) {
	var (
		mu  sync.Mutex
		ops []string
	)
	s := store.Intercept(memory.NewMemoryObjectStore(), func(ctx context.Context, op, key string, call func(context.Context) error) error {
		mu.Lock()
		ops = append(ops, op+" "+key)
		mu.Unlock()
		return call(ctx)
	})
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "/a", []byte("hello")))
	data, err := s.Get(ctx, "/a")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)

	part, err := s.(store.RangeStore).GetRange(ctx, "/a", 1, 3)
	require.NoError(t, err)
	assert.Equal(t, []byte("ell"), part)

	vs := s.(store.VersionedStore)
	_, ver, err := vs.GetVersioned(ctx, "/a")
	require.NoError(t, err)
	_, err = vs.PutIfVersion(ctx, "/a", []byte("bye"), ver)
	require.NoError(t, err)

	keys, err := s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"/a"}, keys)

	require.NoError(t, s.Delete(ctx, "/a"))
	require.NoError(t, s.Clear(ctx))

	assert.Equal(t, []string{
		"put /a", "get /a", "get_range /a", "get_versioned /a",
		"put_if_version /a", "list ", "delete /a", "clear ",
	}, ops)
}

func TestInterceptCanAbort(t *testing.T) {
	inner := memory.NewMemoryObjectStore()
	denied := errors.New("denied")
	s := store.Intercept(inner, func(ctx context.Context, op, key string, call func(context.Context) error) error {
		return denied
	})

	assert.ErrorIs(t, s.Put(context.Background(), "/a", nil), denied)
	assert.Equal(t, 0, inner.Len())
}

func TestRateLimitedUnlimitedIsPassthrough(t *testing.T) {
	inner := memory.NewMemoryObjectStore()
	s := store.NewRateLimited(inner, ratelimiter.New(0, 0))
	assert.Same(t, inner, s)
}

func TestRateLimitedWaitCancelled(t *testing.T) {
	inner := memory.NewMemoryObjectStore()
	s := store.NewRateLimited(inner, ratelimiter.New(1, 1))

	require.NoError(t, s.Put(context.Background(), "/a", []byte("x")))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := s.Put(ctx, "/b", []byte("y"))
	assert.Error(t, err)
	assert.Equal(t, 1, inner.Len())
}

func TestSliceRange(t *testing.T) {
	data := []byte("abcdef")
	assert.Equal(t, []byte("bcd"), store.SliceRange(data, 1, 3))
	assert.Equal(t, []byte("ef"), store.SliceRange(data, 4, 10))
	assert.Empty(t, store.SliceRange(data, 6, 1))
	assert.Empty(t, store.SliceRange(data, -1, 1))
}
