// Package filesystem maps a POSIX-like directory tree onto a flat object
// store.
//
// Every directory is one object holding its own attributes (the self
// record) followed by its children's entries; every file is one object
// holding its raw bytes, with its attributes kept in the parent's entry.
// Object keys are the absolute paths, case-folded when names compare
// case-insensitively.
//
// Operations take absolute paths and return domain errors
// (*metadata.StoreError); Errno translates them for the kernel bridge.
package filesystem

import (
	"context"
	"errors"
	"syscall"
	"time"

	"github.com/marmos91/bucketfs/internal/logger"
	"github.com/marmos91/bucketfs/pkg/metadata"
	"github.com/marmos91/bucketfs/pkg/store"
)

// Attr is the stat-like view of an entry.
type Attr struct {
	Mode  uint32
	UID   uint32
	GID   uint32
	Nlink uint32
	Size  uint64
	Atime time.Time
	Mtime time.Time
	Ctime time.Time
}

// IsDir reports whether the attributes describe a directory.
func (a *Attr) IsDir() bool {
	return a.Mode&syscall.S_IFMT == syscall.S_IFDIR
}

func attrOf(e *metadata.Entry) *Attr {
	return &Attr{
		Mode:  e.Mode,
		UID:   e.UID,
		GID:   e.GID,
		Nlink: e.LinkCount,
		Size:  e.Size,
		Atime: e.Atime,
		Mtime: e.Mtime,
		Ctime: e.Ctime,
	}
}

// FillFunc receives one directory entry per call during Readdir. attr is
// nil for "." and "..". Returning false stops the listing early.
type FillFunc func(name string, attr *Attr) bool

// StatfsResult describes filesystem capacity. An object store has no
// meaningful capacity, so the values are fixed.
type StatfsResult struct {
	BlockSize   uint32
	Blocks      uint64
	BlocksFree  uint64
	BlocksAvail uint64
	Files       uint64
	FilesFree   uint64
	NameLen     uint32
}

// FileSystem implements the namespace operations.
type FileSystem struct {
	cfg     Config
	store   store.ObjectStore
	names   metadata.NamePolicy
	dirs    *DirectoryManager
	files   *FileManager
	metrics Metrics
}

// New creates a FileSystem over s. Init must run once before any other
// operation.
func New(s store.ObjectStore, cfg Config) *FileSystem {
	cfg.applyDefaults()

	dirs := NewDirectoryManager(s, cfg)
	return &FileSystem{
		cfg:     cfg,
		store:   s,
		names:   dirs.names,
		dirs:    dirs,
		files:   NewFileManager(s, dirs),
		metrics: cfg.Metrics,
	}
}

// Directories exposes the directory manager.
func (fs *FileSystem) Directories() *DirectoryManager {
	return fs.dirs
}

// Files exposes the file manager.
func (fs *FileSystem) Files() *FileManager {
	return fs.files
}

// Init creates the root directory object, owned by the configured uid and
// gid with mode 0755, unless a valid one is already stored.
func (fs *FileSystem) Init(ctx context.Context) error {
	root, err := fs.dirs.DirectoryAttr(ctx, RootPath)
	switch {
	case err == nil:
		logger.Info("Using existing root directory (mode=%o uid=%d gid=%d)", root.Mode, root.UID, root.GID)
		return nil
	case !metadata.IsNotFound(err):
		return err
	}

	self := metadata.NewEntry(metadata.SelfName, metadata.KindDirectory, 0o755, fs.cfg.UID, fs.cfg.GID, fs.cfg.Now())
	data, err := metadata.EncodeEntries([]metadata.Entry{self})
	if err != nil {
		return err
	}
	if err := fs.dirs.createObject(ctx, RootPath, data); err != nil {
		// another process created it first
		if metadata.HasCode(err, metadata.ErrAlreadyExists) {
			return nil
		}
		return err
	}

	logger.Info("Created root directory (uid=%d gid=%d)", fs.cfg.UID, fs.cfg.GID)
	return nil
}

// ReachableKeys returns the key of every object reachable from the root,
// parents before children.
func (fs *FileSystem) ReachableKeys(ctx context.Context) ([]string, error) {
	return fs.dirs.subtreeKeys(ctx, RootPath)
}

// observe records the outcome of op for metrics and debug logging.
func (fs *FileSystem) observe(op, path string, start time.Time, err error) {
	errno := Errno(op, err)
	fs.metrics.ObserveOperation(op, time.Since(start), int(errno))
	if err != nil {
		logger.Debug("%s %s: %v (%s)", op, path, err, errno)
	}
}

// key returns the object key of a validated path.
func (fs *FileSystem) key(path string) string {
	return KeyOf(fs.names, path)
}

// lookup resolves path to its entry. The root has no entry of its own and
// is served from its self record.
func (fs *FileSystem) lookup(ctx context.Context, path string) (*metadata.Entry, error) {
	if err := ValidatePath(path); err != nil {
		return nil, err
	}
	if IsRoot(path) {
		return fs.dirs.DirectoryAttr(ctx, RootPath)
	}

	parent, leaf, err := Resolve(path)
	if err != nil {
		return nil, err
	}
	e, err := fs.dirs.LookupEntry(ctx, fs.key(parent), leaf)
	if err != nil {
		return nil, fs.explainParent(ctx, parent, err)
	}
	return e, nil
}

// explainParent turns a corrupt-listing error on parent into ErrNotDirectory
// when parent is in fact a file.
func (fs *FileSystem) explainParent(ctx context.Context, parent string, err error) error {
	if !metadata.HasCode(err, metadata.ErrCorruption) || IsRoot(parent) {
		return err
	}

	e, lerr := fs.lookup(ctx, parent)
	if lerr == nil && !e.IsDir() {
		return metadata.NewError(metadata.ErrNotDirectory, parent, "not a directory")
	}
	return err
}

// Statfs reports fixed capacity figures so tools like df work.
func (fs *FileSystem) Statfs(ctx context.Context) (*StatfsResult, error) {
	return &StatfsResult{
		BlockSize:   4096,
		Blocks:      1 << 40 / 4096,
		BlocksFree:  1 << 40 / 4096,
		BlocksAvail: 1 << 40 / 4096,
		Files:       1 << 32,
		FilesFree:   1 << 32,
		NameLen:     metadata.MaxNameLen,
	}, nil
}

// isRootErr reports whether err is a root-path rejection.
func isRootErr(err error) bool {
	return errors.Is(err, errRootPath)
}
