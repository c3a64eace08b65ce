package filesystem

import (
	"context"
	"time"

	"github.com/marmos91/bucketfs/pkg/metadata"
)

// Mknod creates an empty regular file. Only the permission bits of mode
// are used.
//
// Returns:
//   - ErrNotFound if the parent doesn't exist
//   - ErrAlreadyExists if the name is taken
func (fs *FileSystem) Mknod(ctx context.Context, path string, mode, uid, gid uint32) (err error) {
	start := time.Now()
	defer func() { fs.observe(OpMknod, path, start, err) }()

	_, err = fs.createFile(ctx, path, mode, uid, gid)
	return err
}

// Create creates an empty regular file and returns its attributes.
func (fs *FileSystem) Create(ctx context.Context, path string, mode, uid, gid uint32) (attr *Attr, err error) {
	start := time.Now()
	defer func() { fs.observe(OpCreate, path, start, err) }()

	e, err := fs.createFile(ctx, path, mode, uid, gid)
	if err != nil {
		return nil, err
	}
	return attrOf(e), nil
}

func (fs *FileSystem) createFile(ctx context.Context, path string, mode, uid, gid uint32) (*metadata.Entry, error) {
	parent, _, err := Resolve(path)
	if err != nil {
		return nil, err
	}
	e, err := fs.files.CreateFile(ctx, path, mode, uid, gid)
	if err != nil {
		return nil, fs.explainParent(ctx, parent, err)
	}
	return e, nil
}

// Open checks that path names an existing file. No resources are held
// between Open and Release.
func (fs *FileSystem) Open(ctx context.Context, path string) (err error) {
	start := time.Now()
	defer func() { fs.observe(OpOpen, path, start, err) }()

	e, err := fs.lookup(ctx, path)
	if err != nil {
		return err
	}
	if e.IsDir() {
		return metadata.NewError(metadata.ErrIsDirectory, path, "is a directory")
	}
	return nil
}

// Read returns up to size bytes of path starting at offset.
func (fs *FileSystem) Read(ctx context.Context, path string, offset int64, size int) (data []byte, err error) {
	start := time.Now()
	defer func() { fs.observe(OpRead, path, start, err) }()

	data, err = fs.files.ReadRange(ctx, path, offset, size)
	if err != nil {
		return nil, err
	}
	fs.metrics.RecordBytes(OpRead, int64(len(data)))
	return data, nil
}

// Write stores data at offset and returns the number of bytes written.
func (fs *FileSystem) Write(ctx context.Context, path string, offset int64, data []byte) (n int, err error) {
	start := time.Now()
	defer func() { fs.observe(OpWrite, path, start, err) }()

	n, err = fs.files.WriteRange(ctx, path, offset, data)
	if err != nil {
		return 0, err
	}
	fs.metrics.RecordBytes(OpWrite, int64(n))
	return n, nil
}

// Truncate sets the size of the file at path.
func (fs *FileSystem) Truncate(ctx context.Context, path string, size int64) (err error) {
	start := time.Now()
	defer func() { fs.observe(OpTruncate, path, start, err) }()

	return fs.files.Truncate(ctx, path, size)
}

// Unlink removes a file.
func (fs *FileSystem) Unlink(ctx context.Context, path string) (err error) {
	start := time.Now()
	defer func() { fs.observe(OpUnlink, path, start, err) }()

	parent, _, err := Resolve(path)
	if err != nil {
		return err
	}
	if err := fs.files.Remove(ctx, path); err != nil {
		return fs.explainParent(ctx, parent, err)
	}
	return nil
}

// Access always grants access; permissions are not enforced.
func (fs *FileSystem) Access(ctx context.Context, path string, mask uint32) error {
	return nil
}
