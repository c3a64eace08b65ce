package filesystem

import (
	"context"
	"errors"
	"time"

	"github.com/marmos91/bucketfs/internal/logger"
	"github.com/marmos91/bucketfs/pkg/metadata"
	"github.com/marmos91/bucketfs/pkg/store"
)

// FileManager stores file content as one object per file and keeps the
// size and timestamps in the parent listing entry in step with it.
//
// Writes and truncates to one file are serialized by a per-key content
// lock. The content lock is always taken before any listing lock, never
// while one is held.
type FileManager struct {
	store  store.ObjectStore
	ranged store.RangeStore
	dirs   *DirectoryManager
	names  metadata.NamePolicy
	locks  *keyLock
	now    func() time.Time
}

// NewFileManager creates a FileManager sharing dirs' store and policy.
func NewFileManager(s store.ObjectStore, dirs *DirectoryManager) *FileManager {
	f := &FileManager{
		store: s,
		dirs:  dirs,
		names: dirs.names,
		locks: newKeyLock(),
		now:   dirs.now,
	}
	if r, ok := s.(store.RangeStore); ok {
		f.ranged = r
	}
	return f
}

// target resolves a file path into its parent key, leaf name and own key.
func (f *FileManager) target(path string) (parentKey, leaf, key string, err error) {
	parent, leaf, err := Resolve(path)
	if err != nil {
		return "", "", "", err
	}
	return KeyOf(f.names, parent), leaf, KeyOf(f.names, path), nil
}

// lookupFile returns the listing entry of a regular file.
func (f *FileManager) lookupFile(ctx context.Context, parentKey, leaf, key string) (*metadata.Entry, error) {
	e, err := f.dirs.LookupEntry(ctx, parentKey, leaf)
	if err != nil {
		return nil, err
	}
	if e.IsDir() {
		return nil, metadata.NewError(metadata.ErrIsDirectory, key, "is a directory")
	}
	return e, nil
}

// CreateFile creates an empty file object and its entry.
//
// Returns:
//   - ErrNotFound if the parent directory doesn't exist
//   - ErrAlreadyExists if the name is listed or an object exists at path
func (f *FileManager) CreateFile(ctx context.Context, path string, mode, uid, gid uint32) (*metadata.Entry, error) {
	parentKey, leaf, _, err := f.target(path)
	if err != nil {
		return nil, err
	}

	entry := metadata.NewEntry(leaf, metadata.KindFile, mode, uid, gid, f.now())
	if err := f.dirs.CreateObjectEntry(ctx, parentKey, entry, []byte{}); err != nil {
		return nil, err
	}
	return &entry, nil
}

// ReadRange returns up to length bytes of the file starting at offset.
// The result is short near the end of the file and empty at or past it.
func (f *FileManager) ReadRange(ctx context.Context, path string, offset int64, length int) ([]byte, error) {
	parentKey, leaf, key, err := f.target(path)
	if err != nil {
		return nil, err
	}
	if offset < 0 {
		return nil, metadata.NewError(metadata.ErrInvalidArgument, path, "negative offset")
	}
	if _, err := f.lookupFile(ctx, parentKey, leaf, key); err != nil {
		return nil, err
	}

	if f.ranged != nil {
		data, err := f.ranged.GetRange(ctx, key, offset, length)
		if err != nil {
			return nil, storeErr(key, err)
		}
		return data, nil
	}

	data, err := f.store.Get(ctx, key)
	if err != nil {
		return nil, storeErr(key, err)
	}
	return store.SliceRange(data, offset, length), nil
}

// WriteRange writes data at offset. Writing past the end grows the file
// and zero-fills any gap. The entry's size, mtime and ctime are updated.
// Returns ErrFileTooBig if the file would grow past metadata.MaxFileSize.
//
// If the entry update fails the previous content is put back, so a failed
// write leaves the stored objects as they were.
func (f *FileManager) WriteRange(ctx context.Context, path string, offset int64, data []byte) (int, error) {
	if offset < 0 {
		return 0, metadata.NewError(metadata.ErrInvalidArgument, path, "negative offset")
	}
	if offset > metadata.MaxFileSize-int64(len(data)) {
		return 0, metadata.NewError(metadata.ErrFileTooBig, path, "write ends past %d bytes", metadata.MaxFileSize)
	}

	err := f.rewrite(ctx, path, func(old []byte) []byte {
		return splice(old, offset, data)
	})
	if err != nil {
		return 0, err
	}
	return len(data), nil
}

// Truncate sets the file size to exactly size, dropping trailing bytes or
// zero-filling the extension.
// Returns ErrFileTooBig if size exceeds metadata.MaxFileSize.
func (f *FileManager) Truncate(ctx context.Context, path string, size int64) error {
	if size < 0 {
		return metadata.NewError(metadata.ErrInvalidArgument, path, "negative size")
	}
	if size > metadata.MaxFileSize {
		return metadata.NewError(metadata.ErrFileTooBig, path, "size exceeds %d bytes", metadata.MaxFileSize)
	}

	return f.rewrite(ctx, path, func(old []byte) []byte {
		return resize(old, size)
	})
}

// rewrite replaces the file's content with transform(old) under the
// file's content lock and records the new size in the parent entry.
func (f *FileManager) rewrite(ctx context.Context, path string, transform func(old []byte) []byte) error {
	parentKey, leaf, key, err := f.target(path)
	if err != nil {
		return err
	}

	unlock := f.locks.Lock(key)
	defer unlock()

	// ====== Step 1: the entry must name a regular file ======
	if _, err := f.lookupFile(ctx, parentKey, leaf, key); err != nil {
		return err
	}

	// ====== Step 2: write the new content ======
	old, err := f.store.Get(ctx, key)
	if err != nil {
		return storeErr(key, err)
	}
	updated := transform(old)
	if err := f.store.Put(ctx, key, updated); err != nil {
		return storeErr(key, err)
	}

	// ====== Step 3: record size and times in the parent listing ======
	now := f.now()
	_, err = f.dirs.UpdateEntry(ctx, parentKey, leaf, func(e *metadata.Entry) {
		e.Size = uint64(len(updated))
		e.Touch(now)
	})
	if err != nil {
		if perr := f.store.Put(ctx, key, old); perr != nil {
			logger.Warn("Failed to restore content of %s after entry update failed: %v", key, perr)
		}
		return err
	}
	return nil
}

// Remove deletes the file's object and its entry.
//
// Returns:
//   - ErrNotFound if either the entry or the object is absent
//   - ErrIsDirectory if path names a directory
func (f *FileManager) Remove(ctx context.Context, path string) error {
	parentKey, leaf, key, err := f.target(path)
	if err != nil {
		return err
	}

	unlock := f.locks.Lock(key)
	defer unlock()

	_, err = f.dirs.RemoveObjectEntry(ctx, parentKey, leaf, metadata.KindFile)
	return err
}

// Copy duplicates the object at fromKey to toKey. The returned function
// puts back whatever toKey held before (or deletes it if it was absent).
func (f *FileManager) Copy(ctx context.Context, fromKey, toKey string) (restore func(context.Context), err error) {
	data, err := f.store.Get(ctx, fromKey)
	if err != nil {
		return nil, storeErr(fromKey, err)
	}

	prev, err := f.store.Get(ctx, toKey)
	existed := err == nil
	if err != nil && !errors.Is(err, store.ErrObjectNotFound) {
		return nil, storeErr(toKey, err)
	}

	if err := f.store.Put(ctx, toKey, data); err != nil {
		return nil, storeErr(toKey, err)
	}

	return func(ctx context.Context) {
		var err error
		if existed {
			err = f.store.Put(ctx, toKey, prev)
		} else {
			err = f.store.Delete(ctx, toKey)
		}
		if err != nil {
			logger.Warn("Failed to roll back copy to %s: %v", toKey, err)
		}
	}, nil
}

// lockContent takes the content locks of keys, for callers that re-key
// file objects.
func (f *FileManager) lockContent(keys ...string) (unlock func()) {
	return f.locks.Lock(keys...)
}

// splice returns old with data written at offset, growing (zero-filled)
// as needed.
func splice(old []byte, offset int64, data []byte) []byte {
	end := offset + int64(len(data))
	size := int64(len(old))
	if end > size {
		size = end
	}

	out := make([]byte, size)
	copy(out, old)
	copy(out[offset:], data)
	return out
}

// resize returns old cut or zero-extended to size bytes.
func resize(old []byte, size int64) []byte {
	out := make([]byte, size)
	copy(out, old)
	return out
}
