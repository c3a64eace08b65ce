package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/marmos91/bucketfs/pkg/store"
)

// MemoryObjectStore implements store.ObjectStore in process memory.
//
// It is used by tests and by `store.type: memory` for throwaway mounts.
// Every write assigns the object a fresh random version, which makes the
// store a full VersionedStore and RangeStore, so the conditional-write
// paths of the filesystem are exercised without a real bucket.
//
// Thread Safety:
// All operations are protected by a sync.RWMutex. Values are copied on
// the way in and out so callers never share buffers with the store.
type MemoryObjectStore struct {
	mu      sync.RWMutex
	objects map[string]object
}

type object struct {
	data    []byte
	version store.Version
}

var (
	_ store.VersionedStore = (*MemoryObjectStore)(nil)
	_ store.RangeStore     = (*MemoryObjectStore)(nil)
)

// NewMemoryObjectStore creates an empty store.
func NewMemoryObjectStore() *MemoryObjectStore {
	return &MemoryObjectStore{objects: make(map[string]object)}
}

func newVersion() store.Version {
	return store.Version(uuid.NewString())
}

func clone(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// Get returns a copy of the value at key.
func (s *MemoryObjectStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, _, err := s.GetVersioned(ctx, key)
	return data, err
}

// GetVersioned returns a copy of the value at key and its version.
func (s *MemoryObjectStore) GetVersioned(ctx context.Context, key string) ([]byte, store.Version, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, ok := s.objects[key]
	if !ok {
		return nil, "", fmt.Errorf("get %s: %w", key, store.ErrObjectNotFound)
	}
	return clone(obj.data), obj.version, nil
}

// GetRange returns a copy of the requested byte range.
func (s *MemoryObjectStore) GetRange(ctx context.Context, key string, offset int64, length int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, ok := s.objects[key]
	if !ok {
		return nil, fmt.Errorf("get range %s: %w", key, store.ErrObjectNotFound)
	}
	return store.SliceRange(obj.data, offset, length), nil
}

// Put stores a copy of data at key.
func (s *MemoryObjectStore) Put(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	s.objects[key] = object{data: clone(data), version: newVersion()}
	s.mu.Unlock()
	return nil
}

// PutIfVersion stores data only if the current version equals expected.
func (s *MemoryObjectStore) PutIfVersion(ctx context.Context, key string, data []byte, expected store.Version) (store.Version, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.objects[key]
	switch {
	case expected == "" && exists:
		return "", fmt.Errorf("put %s: object exists: %w", key, store.ErrPreconditionFailed)
	case expected != "" && (!exists || current.version != expected):
		return "", fmt.Errorf("put %s: version changed: %w", key, store.ErrPreconditionFailed)
	}

	v := newVersion()
	s.objects[key] = object{data: clone(data), version: v}
	return v, nil
}

// Delete removes the object at key.
func (s *MemoryObjectStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.objects[key]; !ok {
		return fmt.Errorf("delete %s: %w", key, store.ErrObjectNotFound)
	}
	delete(s.objects, key)
	return nil
}

// Clear removes every object.
func (s *MemoryObjectStore) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	s.objects = make(map[string]object)
	s.mu.Unlock()
	return nil
}

// List returns every stored key.
func (s *MemoryObjectStore) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.Keys(), nil
}

// Len returns the number of stored objects.
func (s *MemoryObjectStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}

// Keys returns every stored key, in no particular order.
func (s *MemoryObjectStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.objects))
	for k := range s.objects {
		keys = append(keys, k)
	}
	return keys
}
