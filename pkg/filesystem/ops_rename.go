package filesystem

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/marmos91/bucketfs/internal/logger"
	"github.com/marmos91/bucketfs/pkg/metadata"
	"github.com/marmos91/bucketfs/pkg/store"
)

// errSubtreeChanged reports that a directory gained children between
// collecting its subtree and locking it.
var errSubtreeChanged = errors.New("subtree changed before it was locked")

// Rename moves from to to with POSIX replace semantics.
//
// A file's object is copied to its new key; a directory's whole subtree is
// copied key by key. The listing entries are then switched and, only once
// that succeeded, the old keys are deleted. Every listing and file of a
// moved subtree, on both sides, stays locked until the old keys are gone,
// so no creation, removal or write inside it can be lost.
//
// Returns:
//   - ErrNotFound if from doesn't exist
//   - ErrNotEmpty if to is a non-empty directory
//   - ErrIsDirectory / ErrNotDirectory on a file/directory mismatch
//   - ErrInvalidArgument when either side is the root (root rejection) or
//     to lies inside from
//   - ErrUnavailable if the subtree keeps changing while it is locked
func (fs *FileSystem) Rename(ctx context.Context, from, to string) (err error) {
	start := time.Now()
	defer func() { fs.observe(OpRename, from, start, err) }()

	srcParent, srcName, err := Resolve(from)
	if err != nil {
		return err
	}
	dstParent, dstName, err := Resolve(to)
	if err != nil {
		return err
	}
	if from == to {
		_, err := fs.lookup(ctx, from)
		return err
	}

	srcKey, dstKey := fs.key(from), fs.key(to)
	if isWithin(dstKey, srcKey) {
		return metadata.NewError(metadata.ErrInvalidArgument, to, "cannot move a directory inside itself")
	}

	for attempt := 0; ; attempt++ {
		scope, err := fs.renameScope(ctx, from, srcKey, dstKey)
		if err != nil {
			return err
		}

		err = fs.rename(ctx, srcParent, srcName, dstParent, dstName, srcKey, dstKey, scope)
		switch {
		case err == nil:
			return nil
		case !errors.Is(err, errSubtreeChanged):
			if srcParent != dstParent {
				err = fs.explainParent(ctx, dstParent, err)
			}
			return fs.explainParent(ctx, srcParent, err)
		case attempt >= fs.cfg.ListingRetries:
			return metadata.WrapError(metadata.ErrUnavailable, from, err,
				"directory changed during rename %d times", attempt+1)
		}
		logger.Debug("Subtree of %s changed before rename locked it (attempt %d), retrying", from, attempt+1)
	}
}

// renameScope returns the keys a rename of from must lock besides the two
// parent listings: nothing for a file, and for a directory every key of
// its subtree together with the key it is copied to.
func (fs *FileSystem) renameScope(ctx context.Context, from, srcKey, dstKey string) ([]string, error) {
	e, err := fs.lookup(ctx, from)
	if err != nil {
		return nil, err
	}
	if !e.IsDir() || srcKey == dstKey {
		return nil, nil
	}

	keys, err := fs.dirs.subtreeKeys(ctx, srcKey)
	if err != nil {
		return nil, err
	}
	scope := make([]string, 0, 2*len(keys))
	for _, k := range keys {
		scope = append(scope, k, dstKey+strings.TrimPrefix(k, srcKey))
	}
	return scope, nil
}

// rename performs one attempt with the content and listing locks of scope
// held. It fails with errSubtreeChanged when the subtree, read again under
// the locks, holds a key outside scope.
func (fs *FileSystem) rename(ctx context.Context, srcParent, srcName, dstParent, dstName, srcKey, dstKey string, scope []string) error {
	unlock := fs.files.lockContent(append([]string{srcKey, dstKey}, scope...)...)
	defer unlock()

	locked := make(map[string]struct{}, len(scope))
	for _, k := range scope {
		locked[k] = struct{}{}
	}

	var moved []string
	relocate := func(ctx context.Context, e metadata.Entry, replaced *metadata.Entry) (func(context.Context), error) {
		moved = nil
		if srcKey == dstKey {
			return nil, nil
		}

		keys := []string{srcKey}
		if e.IsDir() {
			var err error
			if keys, err = fs.dirs.subtreeKeys(ctx, srcKey); err != nil {
				return nil, err
			}
			for _, k := range keys {
				if _, ok := locked[k]; !ok {
					return nil, errSubtreeChanged
				}
			}
		}

		restores := make([]func(context.Context), 0, len(keys))
		undo := func(ctx context.Context) {
			for i := len(restores) - 1; i >= 0; i-- {
				restores[i](ctx)
			}
		}
		for _, k := range keys {
			restore, err := fs.files.Copy(ctx, k, dstKey+strings.TrimPrefix(k, srcKey))
			if err != nil {
				undo(ctx)
				return nil, err
			}
			restores = append(restores, restore)
		}

		moved = keys
		return undo, nil
	}

	return fs.dirs.moveEntry(ctx, fs.key(srcParent), srcName, fs.key(dstParent), dstName, scope, relocate,
		func(ctx context.Context) { fs.dropKeys(ctx, moved) })
}

// dropKeys deletes objects left behind by a rename, children first.
// Failures leave unreachable objects and are only logged.
func (fs *FileSystem) dropKeys(ctx context.Context, keys []string) {
	for i := len(keys) - 1; i >= 0; i-- {
		if err := fs.store.Delete(ctx, keys[i]); err != nil && !errors.Is(err, store.ErrObjectNotFound) {
			logger.Warn("Failed to delete %s after rename: %v", keys[i], err)
		}
	}
}
