package filesystem

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/marmos91/bucketfs/internal/logger"
	"github.com/marmos91/bucketfs/pkg/metadata"
	"github.com/marmos91/bucketfs/pkg/store"
)

// DirectoryManager maintains directory listings stored as encoded entry
// records under each directory's key.
//
// Every mutation is a read-modify-write of the whole listing. Mutations
// to a key are serialized by an in-process key lock held only across
// read → compute → write. When the store supports conditional writes the
// write is additionally conditional on the version that was read, and the
// whole sequence is retried on conflict, so processes sharing a bucket do
// not lose each other's updates either.
//
// Reads (LookupEntry, ListEntries, DirectoryAttr) take no lock and see the
// last complete listing written.
type DirectoryManager struct {
	store     store.ObjectStore
	versioned store.VersionedStore
	names     metadata.NamePolicy
	locks     *keyLock
	retries   int
	now       func() time.Time
	metrics   Metrics
}

// NewDirectoryManager creates a DirectoryManager over s.
func NewDirectoryManager(s store.ObjectStore, cfg Config) *DirectoryManager {
	cfg.applyDefaults()

	m := &DirectoryManager{
		store:   s,
		names:   metadata.NamePolicy{CaseInsensitive: cfg.CaseInsensitive},
		locks:   newKeyLock(),
		retries: cfg.ListingRetries,
		now:     cfg.Now,
		metrics: cfg.Metrics,
	}
	if v, ok := s.(store.VersionedStore); ok {
		m.versioned = v
	}
	return m
}

// Names returns the name comparison policy.
func (m *DirectoryManager) Names() metadata.NamePolicy {
	return m.names
}

// listing is one decoded directory object.
type listing struct {
	key     string
	self    metadata.Entry
	entries []metadata.Entry
	version store.Version
}

func (l *listing) find(names metadata.NamePolicy, name string) int {
	return slices.IndexFunc(l.entries, func(e metadata.Entry) bool {
		return names.Equal(e.Name, name)
	})
}

func (l *listing) encode() ([]byte, error) {
	records := make([]metadata.Entry, 0, len(l.entries)+1)
	records = append(records, l.self)
	records = append(records, l.entries...)
	return metadata.EncodeEntries(records)
}

func parseListing(key string, data []byte, version store.Version) (*listing, error) {
	records, err := metadata.DecodeEntries(data)
	if err != nil {
		return nil, metadata.WrapError(metadata.ErrCorruption, key, err, "undecodable directory object")
	}
	if len(records) == 0 || records[0].Name != metadata.SelfName || !records[0].IsDir() {
		return nil, metadata.NewError(metadata.ErrCorruption, key, "directory object has no self record")
	}

	return &listing{
		key:     key,
		self:    records[0],
		entries: records[1:],
		version: version,
	}, nil
}

// storeErr translates object store failures into domain errors. The cause
// stays in the chain so errors.Is(err, store.ErrPreconditionFailed) still
// works for retry loops.
func storeErr(key string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrObjectNotFound):
		return metadata.WrapError(metadata.ErrNotFound, key, err, "no such object")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return metadata.WrapError(metadata.ErrUnavailable, key, err, "object store failure")
	}
}

func (m *DirectoryManager) read(ctx context.Context, key string) (*listing, error) {
	var (
		data []byte
		ver  store.Version
		err  error
	)
	if m.versioned != nil {
		data, ver, err = m.versioned.GetVersioned(ctx, key)
	} else {
		data, err = m.store.Get(ctx, key)
	}
	if err != nil {
		return nil, storeErr(key, err)
	}
	return parseListing(key, data, ver)
}

func (m *DirectoryManager) write(ctx context.Context, l *listing) error {
	data, err := l.encode()
	if err != nil {
		return err
	}

	if m.versioned != nil {
		v, err := m.versioned.PutIfVersion(ctx, l.key, data, l.version)
		if err != nil {
			return storeErr(l.key, err)
		}
		l.version = v
		return nil
	}
	return storeErr(l.key, m.store.Put(ctx, l.key, data))
}

// createObject stores data at a key that must not hold an object yet.
func (m *DirectoryManager) createObject(ctx context.Context, key string, data []byte) error {
	if m.versioned != nil {
		_, err := m.versioned.PutIfVersion(ctx, key, data, "")
		if errors.Is(err, store.ErrPreconditionFailed) {
			return metadata.NewError(metadata.ErrAlreadyExists, key, "object already exists")
		}
		return storeErr(key, err)
	}

	_, err := m.store.Get(ctx, key)
	switch {
	case err == nil:
		return metadata.NewError(metadata.ErrAlreadyExists, key, "object already exists")
	case !errors.Is(err, store.ErrObjectNotFound):
		return storeErr(key, err)
	}
	return storeErr(key, m.store.Put(ctx, key, data))
}

// mutate holds the listing locks of keys while running fn, retrying it
// when a conditional write reports a conflict. fn must leave no side
// effects behind when it returns a conflict.
func (m *DirectoryManager) mutate(ctx context.Context, keys []string, fn func() error) error {
	unlock := m.locks.Lock(keys...)
	defer unlock()

	var err error
	for attempt := 0; attempt <= m.retries; attempt++ {
		if err = fn(); !errors.Is(err, store.ErrPreconditionFailed) {
			return err
		}
		m.metrics.RecordListingConflict()
		logger.Debug("Listing conflict on %v (attempt %d/%d), retrying", keys, attempt+1, m.retries+1)
	}

	return metadata.WrapError(metadata.ErrUnavailable, keys[0], err,
		"listing changed concurrently %d times", m.retries+1)
}

// modify runs a read-modify-write of a single listing.
func (m *DirectoryManager) modify(ctx context.Context, dirKey string, fn func(l *listing) error) error {
	return m.mutate(ctx, []string{dirKey}, func() error {
		l, err := m.read(ctx, dirKey)
		if err != nil {
			return err
		}
		if err := fn(l); err != nil {
			return err
		}
		return m.write(ctx, l)
	})
}

// committed strips the conflict marker from an error raised after a
// write already went through, so mutate does not rerun the sequence.
func committed(key string, err error) error {
	if errors.Is(err, store.ErrPreconditionFailed) {
		return metadata.NewError(metadata.ErrUnavailable, key, "concurrent update after partial commit: %v", err)
	}
	return err
}

func validateName(name string) error {
	switch {
	case name == "" || name == metadata.SelfName || name == "..":
		return metadata.NewError(metadata.ErrInvalidArgument, name, "invalid entry name")
	case len(name) > metadata.MaxNameLen:
		return metadata.NewError(metadata.ErrNameTooLong, name, "entry name exceeds %d bytes", metadata.MaxNameLen)
	}
	for i := 0; i < len(name); i++ {
		if name[i] == '/' || name[i] == 0 {
			return metadata.NewError(metadata.ErrInvalidArgument, name, "invalid character in entry name")
		}
	}
	return nil
}

// ============================================================================
// Reads
// ============================================================================

// LookupEntry returns the entry called name in the directory at dirKey.
//
// Returns:
//   - ErrNotFound if the directory or the entry doesn't exist
//   - ErrCorruption if the directory object cannot be decoded
func (m *DirectoryManager) LookupEntry(ctx context.Context, dirKey, name string) (*metadata.Entry, error) {
	l, err := m.read(ctx, dirKey)
	if err != nil {
		return nil, err
	}

	i := l.find(m.names, name)
	if i < 0 {
		return nil, metadata.NewError(metadata.ErrNotFound, JoinPath(dirKey, name), "no such entry")
	}
	e := l.entries[i]
	return &e, nil
}

// ListEntries returns the children of the directory at dirKey in
// insertion order.
func (m *DirectoryManager) ListEntries(ctx context.Context, dirKey string) ([]metadata.Entry, error) {
	l, err := m.read(ctx, dirKey)
	if err != nil {
		return nil, err
	}
	return slices.Clone(l.entries), nil
}

// DirectoryAttr returns the self record of the directory at dirKey.
func (m *DirectoryManager) DirectoryAttr(ctx context.Context, dirKey string) (*metadata.Entry, error) {
	l, err := m.read(ctx, dirKey)
	if err != nil {
		return nil, err
	}
	self := l.self
	return &self, nil
}

// subtreeKeys returns dirKey and the keys of every object below it, parents
// before children.
func (m *DirectoryManager) subtreeKeys(ctx context.Context, dirKey string) ([]string, error) {
	keys := []string{dirKey}
	pending := []string{dirKey}

	for len(pending) > 0 {
		key := pending[0]
		pending = pending[1:]

		l, err := m.read(ctx, key)
		if err != nil {
			return nil, err
		}
		for _, e := range l.entries {
			child := ChildKey(m.names, key, e.Name)
			keys = append(keys, child)
			if e.IsDir() {
				pending = append(pending, child)
			}
		}
	}
	return keys, nil
}

// ============================================================================
// Single-listing mutations
// ============================================================================

// AddEntry appends entry to the directory at dirKey.
//
// Returns:
//   - ErrNotFound if the directory doesn't exist
//   - ErrAlreadyExists if a name equal under the name policy is present
func (m *DirectoryManager) AddEntry(ctx context.Context, dirKey string, entry metadata.Entry) error {
	if err := validateName(entry.Name); err != nil {
		return err
	}

	return m.modify(ctx, dirKey, func(l *listing) error {
		if l.find(m.names, entry.Name) >= 0 {
			return metadata.NewError(metadata.ErrAlreadyExists, JoinPath(dirKey, entry.Name), "entry exists")
		}
		l.entries = append(l.entries, entry)
		l.self.Touch(m.now())
		return nil
	})
}

// RemoveEntry drops the entry called name, keeping the order of the rest.
// Only the listing changes; the child's object is left alone.
func (m *DirectoryManager) RemoveEntry(ctx context.Context, dirKey, name string) (*metadata.Entry, error) {
	var removed metadata.Entry
	err := m.modify(ctx, dirKey, func(l *listing) error {
		i := l.find(m.names, name)
		if i < 0 {
			return metadata.NewError(metadata.ErrNotFound, JoinPath(dirKey, name), "no such entry")
		}
		removed = l.entries[i]
		l.entries = slices.Delete(l.entries, i, i+1)
		l.self.Touch(m.now())
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &removed, nil
}

// UpdateEntry applies fn to the entry called name and persists the result.
// fn cannot rename the entry.
func (m *DirectoryManager) UpdateEntry(ctx context.Context, dirKey, name string, fn func(*metadata.Entry)) (*metadata.Entry, error) {
	var updated metadata.Entry
	err := m.modify(ctx, dirKey, func(l *listing) error {
		i := l.find(m.names, name)
		if i < 0 {
			return metadata.NewError(metadata.ErrNotFound, JoinPath(dirKey, name), "no such entry")
		}
		original := l.entries[i].Name
		fn(&l.entries[i])
		l.entries[i].Name = original
		updated = l.entries[i]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// RenameEntry renames oldName to newName within one directory, replacing
// an existing newName (see MoveEntry for the replacement rules).
func (m *DirectoryManager) RenameEntry(ctx context.Context, dirKey, oldName, newName string) error {
	return m.MoveEntry(ctx, dirKey, oldName, dirKey, newName, nil)
}

// ============================================================================
// Multi-key mutations
// ============================================================================

// CreateObjectEntry stores data as the child's object and adds entry to the
// directory at dirKey, both inside one critical section over the two keys.
// If the listing write fails the child object is removed again.
//
// Returns:
//   - ErrNotFound if the directory doesn't exist
//   - ErrAlreadyExists if the name is listed or an object is already stored
//     at the child's key
func (m *DirectoryManager) CreateObjectEntry(ctx context.Context, dirKey string, entry metadata.Entry, data []byte) error {
	if err := validateName(entry.Name); err != nil {
		return err
	}
	childKey := ChildKey(m.names, dirKey, entry.Name)

	return m.mutate(ctx, []string{dirKey, childKey}, func() error {
		l, err := m.read(ctx, dirKey)
		if err != nil {
			return err
		}
		if l.find(m.names, entry.Name) >= 0 {
			return metadata.NewError(metadata.ErrAlreadyExists, JoinPath(dirKey, entry.Name), "entry exists")
		}

		if err := m.createObject(ctx, childKey, data); err != nil {
			return err
		}

		l.entries = append(l.entries, entry)
		l.self.Touch(m.now())
		if err := m.write(ctx, l); err != nil {
			if derr := m.store.Delete(ctx, childKey); derr != nil {
				logger.Warn("Failed to remove %s after listing update failed: %v", childKey, derr)
			}
			return err
		}
		return nil
	})
}

// CreateDirectory creates the directory object for entry (holding only its
// self record) and lists it in the parent at parentKey.
func (m *DirectoryManager) CreateDirectory(ctx context.Context, parentKey string, entry metadata.Entry) error {
	if !entry.IsDir() {
		return metadata.NewError(metadata.ErrNotDirectory, entry.Name, "entry is not a directory")
	}

	self := entry
	self.Name = metadata.SelfName
	data, err := metadata.EncodeEntries([]metadata.Entry{self})
	if err != nil {
		return err
	}
	return m.CreateObjectEntry(ctx, parentKey, entry, data)
}

// RemoveObjectEntry deletes the child's object and its entry in the
// directory at dirKey inside one critical section over both keys. kind is
// the kind the caller expects; a directory must also be empty.
//
// Returns:
//   - ErrNotFound if the entry or the child's object is absent
//   - ErrIsDirectory / ErrNotDirectory on a kind mismatch
//   - ErrNotEmpty for a directory that still has children
func (m *DirectoryManager) RemoveObjectEntry(ctx context.Context, dirKey, name string, kind metadata.Kind) (*metadata.Entry, error) {
	childKey := ChildKey(m.names, dirKey, name)

	var removed metadata.Entry
	err := m.mutate(ctx, []string{dirKey, childKey}, func() error {
		l, err := m.read(ctx, dirKey)
		if err != nil {
			return err
		}
		i := l.find(m.names, name)
		if i < 0 {
			return metadata.NewError(metadata.ErrNotFound, JoinPath(dirKey, name), "no such entry")
		}

		e := l.entries[i]
		switch {
		case kind == metadata.KindDirectory && !e.IsDir():
			return metadata.NewError(metadata.ErrNotDirectory, childKey, "not a directory")
		case kind == metadata.KindFile && e.IsDir():
			return metadata.NewError(metadata.ErrIsDirectory, childKey, "is a directory")
		}

		data, err := m.store.Get(ctx, childKey)
		if err != nil {
			return storeErr(childKey, err)
		}
		if e.IsDir() {
			child, err := parseListing(childKey, data, "")
			if err != nil {
				return err
			}
			if len(child.entries) > 0 {
				return metadata.NewError(metadata.ErrNotEmpty, childKey, "directory not empty")
			}
		}

		if err := m.store.Delete(ctx, childKey); err != nil {
			return storeErr(childKey, err)
		}

		l.entries = slices.Delete(l.entries, i, i+1)
		l.self.Touch(m.now())
		if err := m.write(ctx, l); err != nil {
			if perr := m.store.Put(ctx, childKey, data); perr != nil {
				logger.Warn("Failed to restore %s after listing update failed: %v", childKey, perr)
			}
			return err
		}

		removed = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &removed, nil
}

// DeleteDirectory removes the empty directory name from the directory at
// parentKey together with its object.
func (m *DirectoryManager) DeleteDirectory(ctx context.Context, parentKey, name string) error {
	_, err := m.RemoveObjectEntry(ctx, parentKey, name, metadata.KindDirectory)
	return err
}

// Relocator moves the objects backing an entry while MoveEntry holds the
// listing locks. replaced is the entry being overwritten, if any. It
// returns an undo function that MoveEntry calls if the listing update then
// fails. A Relocator must not take listing locks.
type Relocator func(ctx context.Context, moved metadata.Entry, replaced *metadata.Entry) (undo func(context.Context), err error)

// MoveEntry moves srcName in srcDir to dstName in dstDir with POSIX rename
// semantics: an existing dstName is replaced, unless
//   - it is a directory with children (ErrNotEmpty),
//   - it is a directory and the source is a file (ErrIsDirectory),
//   - it is a file and the source is a directory (ErrNotDirectory).
//
// Both listings, and the key of the replaced entry, are locked for the
// whole operation so the emptiness check cannot race with creations.
// Within one directory the switch is a single listing write.
func (m *DirectoryManager) MoveEntry(ctx context.Context, srcDir, srcName, dstDir, dstName string, relocate Relocator) error {
	return m.moveEntry(ctx, srcDir, srcName, dstDir, dstName, nil, relocate, nil)
}

// moveEntry is MoveEntry that also holds the listing locks of held for the
// whole operation and, once the move is committed, runs commit before any
// lock is released.
func (m *DirectoryManager) moveEntry(ctx context.Context, srcDir, srcName, dstDir, dstName string, held []string, relocate Relocator, commit func(context.Context)) error {
	if err := validateName(dstName); err != nil {
		return err
	}
	targetKey := ChildKey(m.names, dstDir, dstName)

	keys := append([]string{srcDir, dstDir, targetKey}, held...)
	return m.mutate(ctx, keys, func() error {
		if err := m.switchEntry(ctx, srcDir, srcName, dstDir, dstName, targetKey, relocate); err != nil {
			return err
		}
		if commit != nil {
			commit(ctx)
		}
		return nil
	})
}

// switchEntry performs one attempt of a move with every lock held.
func (m *DirectoryManager) switchEntry(ctx context.Context, srcDir, srcName, dstDir, dstName, targetKey string, relocate Relocator) error {
	sameDir := srcDir == dstDir

	src, err := m.read(ctx, srcDir)
	if err != nil {
		return err
	}
	dst := src
	if !sameDir {
		if dst, err = m.read(ctx, dstDir); err != nil {
			return err
		}
	}

	si := src.find(m.names, srcName)
	if si < 0 {
		return metadata.NewError(metadata.ErrNotFound, JoinPath(srcDir, srcName), "no such entry")
	}
	moved := src.entries[si]
	now := m.now()

	di := dst.find(m.names, dstName)
	if sameDir && di == si {
		// Same entry: at most a change of case.
		if moved.Name == dstName {
			return nil
		}
		src.entries[si].Name = dstName
		src.entries[si].Ctime = now.UTC()
		src.self.Touch(now)
		return m.write(ctx, src)
	}

	var replaced *metadata.Entry
	if di >= 0 {
		r := dst.entries[di]
		replaced = &r
		if err := m.checkReplace(ctx, moved, r, targetKey); err != nil {
			return err
		}
	}

	var undo func(context.Context)
	if relocate != nil {
		if undo, err = relocate(ctx, moved, replaced); err != nil {
			return err
		}
	}
	fail := func(err error) error {
		if undo != nil {
			undo(ctx)
		}
		return err
	}

	renamed := moved
	renamed.Name = dstName
	renamed.Ctime = now.UTC()

	if sameDir {
		if di >= 0 {
			src.entries[di] = renamed
			src.entries = slices.Delete(src.entries, si, si+1)
		} else {
			src.entries[si] = renamed
		}
		src.self.Touch(now)
		if err := m.write(ctx, src); err != nil {
			return fail(err)
		}
		return nil
	}

	previous, err := dst.encode()
	if err != nil {
		return fail(err)
	}

	if di >= 0 {
		dst.entries[di] = renamed
	} else {
		dst.entries = append(dst.entries, renamed)
	}
	dst.self.Touch(now)
	if err := m.write(ctx, dst); err != nil {
		return fail(err)
	}

	src.entries = slices.Delete(src.entries, si, si+1)
	src.self.Touch(now)
	if err := m.write(ctx, src); err != nil {
		if perr := m.store.Put(ctx, dstDir, previous); perr != nil {
			logger.Warn("Failed to restore listing %s after rename failed: %v", dstDir, perr)
		}
		return fail(committed(srcDir, err))
	}
	return nil
}

func (m *DirectoryManager) checkReplace(ctx context.Context, moved, replaced metadata.Entry, targetKey string) error {
	switch {
	case moved.IsDir() && !replaced.IsDir():
		return metadata.NewError(metadata.ErrNotDirectory, targetKey, "cannot replace a file with a directory")
	case !moved.IsDir() && replaced.IsDir():
		return metadata.NewError(metadata.ErrIsDirectory, targetKey, "cannot replace a directory with a file")
	case !replaced.IsDir():
		return nil
	}

	target, err := m.read(ctx, targetKey)
	if err != nil {
		if metadata.IsNotFound(err) {
			return nil
		}
		return err
	}
	if len(target.entries) > 0 {
		return metadata.NewError(metadata.ErrNotEmpty, targetKey, "directory not empty")
	}
	return nil
}
