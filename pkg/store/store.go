// Package store defines the flat key-value object store the filesystem
// persists everything into, plus decorators shared by all backends.
package store

import "context"

// ObjectStore is a flat namespace of byte values addressed by string keys.
//
// Keys are opaque to the store. Values are always read and written whole.
// Implementations must be safe for concurrent use.
type ObjectStore interface {
	// Get returns the value stored at key, or ErrObjectNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put creates or replaces the value at key.
	Put(ctx context.Context, key string, data []byte) error

	// Delete removes the object at key, or returns ErrObjectNotFound.
	Delete(ctx context.Context, key string) error

	// Clear removes every object in the store's namespace.
	Clear(ctx context.Context) error

	// List returns every key in the store's namespace, in no particular
	// order.
	List(ctx context.Context) ([]string, error)
}

// Version identifies one revision of an object. The empty Version means
// "absent": PutIfVersion with it only succeeds if the key doesn't exist.
type Version string

// VersionedStore is implemented by stores that support conditional writes.
// The directory layer uses it to detect concurrent listing updates from
// other processes sharing the same bucket.
type VersionedStore interface {
	ObjectStore

	// GetVersioned returns the value and its current version.
	GetVersioned(ctx context.Context, key string) ([]byte, Version, error)

	// PutIfVersion writes data only if the object's version still equals
	// expected. Returns ErrPreconditionFailed otherwise.
	PutIfVersion(ctx context.Context, key string, data []byte, expected Version) (Version, error)
}

// RangeStore is implemented by stores that can serve a byte range without
// transferring the whole object.
type RangeStore interface {
	ObjectStore

	// GetRange returns up to length bytes starting at offset. The result
	// is short when the object ends earlier and empty at or past the end.
	GetRange(ctx context.Context, key string, offset int64, length int) ([]byte, error)
}

// SliceRange applies GetRange semantics to a whole value.
func SliceRange(data []byte, offset int64, length int) []byte {
	if offset < 0 || offset >= int64(len(data)) || length <= 0 {
		return []byte{}
	}
	end := offset + int64(length)
	if end > int64(len(data)) {
		end = int64(len(data))
	}
	out := make([]byte, end-offset)
	copy(out, data[offset:end])
	return out
}
