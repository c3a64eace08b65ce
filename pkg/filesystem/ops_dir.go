package filesystem

import (
	"context"
	"time"

	"github.com/marmos91/bucketfs/pkg/metadata"
)

// Getattr returns the attributes of path. Files are described by their
// parent entry, directories by their own self record.
func (fs *FileSystem) Getattr(ctx context.Context, path string) (attr *Attr, err error) {
	start := time.Now()
	defer func() { fs.observe(OpGetattr, path, start, err) }()

	e, err := fs.lookup(ctx, path)
	if err != nil {
		return nil, err
	}
	if e.IsDir() && !IsRoot(path) {
		if e, err = fs.dirs.DirectoryAttr(ctx, fs.key(path)); err != nil {
			return nil, err
		}
	}
	return attrOf(e), nil
}

// Mkdir creates an empty directory.
//
// Returns:
//   - ErrNotFound if the parent doesn't exist
//   - ErrAlreadyExists if the name is taken
//   - ErrInvalidArgument (root rejection) for "/"
func (fs *FileSystem) Mkdir(ctx context.Context, path string, mode, uid, gid uint32) (err error) {
	start := time.Now()
	defer func() { fs.observe(OpMkdir, path, start, err) }()

	parent, leaf, err := Resolve(path)
	if err != nil {
		return err
	}

	entry := metadata.NewEntry(leaf, metadata.KindDirectory, mode, uid, gid, fs.cfg.Now())
	if err := fs.dirs.CreateDirectory(ctx, fs.key(parent), entry); err != nil {
		return fs.explainParent(ctx, parent, err)
	}
	return nil
}

// Rmdir removes an empty directory.
func (fs *FileSystem) Rmdir(ctx context.Context, path string) (err error) {
	start := time.Now()
	defer func() { fs.observe(OpRmdir, path, start, err) }()

	parent, leaf, err := Resolve(path)
	if err != nil {
		return err
	}
	if err := fs.dirs.DeleteDirectory(ctx, fs.key(parent), leaf); err != nil {
		return fs.explainParent(ctx, parent, err)
	}
	return nil
}

// Opendir checks that path names an existing directory.
func (fs *FileSystem) Opendir(ctx context.Context, path string) (err error) {
	start := time.Now()
	defer func() { fs.observe(OpOpendir, path, start, err) }()

	e, err := fs.lookup(ctx, path)
	if err != nil {
		return err
	}
	if !e.IsDir() {
		return metadata.NewError(metadata.ErrNotDirectory, path, "not a directory")
	}
	if IsRoot(path) {
		return nil
	}
	_, err = fs.dirs.DirectoryAttr(ctx, fs.key(path))
	return err
}

// Readdir lists path through fill: ".", "..", then every child in
// insertion order.
func (fs *FileSystem) Readdir(ctx context.Context, path string, fill FillFunc) (err error) {
	start := time.Now()
	defer func() { fs.observe(OpReaddir, path, start, err) }()

	if err := ValidatePath(path); err != nil {
		return err
	}

	entries, err := fs.dirs.ListEntries(ctx, fs.key(path))
	if err != nil {
		if metadata.HasCode(err, metadata.ErrCorruption) && !IsRoot(path) {
			if e, lerr := fs.lookup(ctx, path); lerr == nil && !e.IsDir() {
				return metadata.NewError(metadata.ErrNotDirectory, path, "not a directory")
			}
		}
		return err
	}

	if !fill(".", nil) || !fill("..", nil) {
		return nil
	}
	for i := range entries {
		if !fill(entries[i].Name, attrOf(&entries[i])) {
			return nil
		}
	}
	return nil
}
