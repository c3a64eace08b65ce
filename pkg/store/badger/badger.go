package badger

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/marmos91/bucketfs/pkg/store"
)

// objectPrefix namespaces object keys inside the database so Clear can drop
// exactly the filesystem's objects.
const objectPrefix = "obj:"

// BadgerObjectStore implements store.ObjectStore on an embedded BadgerDB.
//
// It gives a single host a persistent bucket without any network service.
// Badger's commit timestamp of the last write to a key serves as the
// object version, so conditional writes are checked inside one read-write
// transaction and the store is a full VersionedStore.
//
// Thread Safety:
// Safe for concurrent use; BadgerDB transactions provide isolation.
type BadgerObjectStore struct {
	db *badger.DB
}

var (
	_ store.VersionedStore = (*BadgerObjectStore)(nil)
	_ store.RangeStore     = (*BadgerObjectStore)(nil)
)

// BadgerObjectStoreConfig contains configuration for the badger store.
type BadgerObjectStoreConfig struct {
	// DBPath is the directory holding the database files
	DBPath string `mapstructure:"db_path"`

	// InMemory keeps everything in RAM (DBPath is ignored)
	InMemory bool `mapstructure:"in_memory"`
}

// NewBadgerObjectStore opens (or creates) the database.
//
// Parameters:
//   - ctx: Context for cancellation (checked before opening)
//   - cfg: database location
//
// Returns:
//   - *BadgerObjectStore: store ready for use; Close it on shutdown
//   - error: if the database cannot be opened
func NewBadgerObjectStore(ctx context.Context, cfg BadgerObjectStoreConfig) (*BadgerObjectStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.DBPath == "" {
			return nil, fmt.Errorf("badger object store: db_path is required")
		}
		opts = badger.DefaultOptions(cfg.DBPath)
	}
	opts = opts.WithLoggingLevel(badger.WARNING)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB at %s: %w", cfg.DBPath, err)
	}

	return &BadgerObjectStore{db: db}, nil
}

// Close releases the database.
func (s *BadgerObjectStore) Close() error {
	return s.db.Close()
}

func dbKey(key string) []byte {
	return []byte(objectPrefix + key)
}

func versionOf(item *badger.Item) store.Version {
	return store.Version(strconv.FormatUint(item.Version(), 10))
}

func unavailable(op, key string, err error) error {
	return fmt.Errorf("%s %s: %w: %w", op, key, store.ErrUnavailable, err)
}

// Get returns the value at key.
func (s *BadgerObjectStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, _, err := s.GetVersioned(ctx, key)
	return data, err
}

// GetVersioned returns the value at key and the commit timestamp that
// wrote it.
func (s *BadgerObjectStore) GetVersioned(ctx context.Context, key string) ([]byte, store.Version, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}

	var (
		data []byte
		ver  store.Version
	)
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(dbKey(key))
		if err != nil {
			return err
		}
		ver = versionOf(item)
		data, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, "", fmt.Errorf("get %s: %w", key, store.ErrObjectNotFound)
		}
		return nil, "", unavailable("get", key, err)
	}
	if data == nil {
		data = []byte{}
	}
	return data, ver, nil
}

// GetRange returns a slice of the value at key.
func (s *BadgerObjectStore) GetRange(ctx context.Context, key string, offset int64, length int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(dbKey(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			out = store.SliceRange(val, offset, length)
			return nil
		})
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, fmt.Errorf("get range %s: %w", key, store.ErrObjectNotFound)
		}
		return nil, unavailable("get range", key, err)
	}
	return out, nil
}

// Put creates or replaces the value at key.
func (s *BadgerObjectStore) Put(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(dbKey(key), copyValue(data))
	})
	if err != nil {
		return unavailable("put", key, err)
	}
	return nil
}

// PutIfVersion writes data only if the key's commit timestamp still equals
// expected (or the key is absent when expected is empty).
func (s *BadgerObjectStore) PutIfVersion(ctx context.Context, key string, data []byte, expected store.Version) (store.Version, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	k := dbKey(key)
	err := s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(k)
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
			if expected != "" {
				return store.ErrPreconditionFailed
			}
		case err != nil:
			return err
		case versionOf(item) != expected:
			return store.ErrPreconditionFailed
		}
		return txn.Set(k, copyValue(data))
	})
	switch {
	case errors.Is(err, store.ErrPreconditionFailed), errors.Is(err, badger.ErrConflict):
		return "", fmt.Errorf("put %s: %w", key, store.ErrPreconditionFailed)
	case err != nil:
		return "", unavailable("put", key, err)
	}

	// The commit timestamp is only known after commit; read it back.
	_, ver, err := s.GetVersioned(ctx, key)
	if err != nil {
		return "", err
	}
	return ver, nil
}

// Delete removes the object at key.
func (s *BadgerObjectStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	k := dbKey(key)
	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(k); err != nil {
			return err
		}
		return txn.Delete(k)
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("delete %s: %w", key, store.ErrObjectNotFound)
		}
		return unavailable("delete", key, err)
	}
	return nil
}

// Clear drops every object key.
func (s *BadgerObjectStore) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := s.db.DropPrefix([]byte(objectPrefix)); err != nil {
		return unavailable("clear", "", err)
	}
	return nil
}

// List returns every object key.
func (s *BadgerObjectStore) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var keys []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(objectPrefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			keys = append(keys, strings.TrimPrefix(string(it.Item().Key()), objectPrefix))
		}
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, unavailable("list", "", err)
	}
	return keys, nil
}

// copyValue guards against callers reusing their buffer before commit.
func copyValue(data []byte) []byte {
	out := make([]byte, len(data))
	copy(out, data)
	return out
}
