// Package fusefs exposes a filesystem.FileSystem through FUSE.
package fusefs

import (
	"fmt"
	"os"
	"time"

	"github.com/hanwen/go-fuse/v2/fs"
	gofuse "github.com/hanwen/go-fuse/v2/fuse"
	"github.com/marmos91/bucketfs/internal/logger"
	"github.com/marmos91/bucketfs/pkg/filesystem"
)

// blockSize is the preferred I/O size reported in stat.
const blockSize = 4096

// Defaults for MountOptions.
const (
	DefaultFsName       = "bucketfs"
	DefaultEntryTimeout = time.Second
	DefaultAttrTimeout  = time.Second
)

// MountOptions configures the FUSE mount.
type MountOptions struct {
	// MountPoint is the directory to mount on. It is created if missing.
	MountPoint string

	// FsName is shown as the source in mount tables.
	FsName string

	// AllowOther lets other users access the mount (needs user_allow_other
	// in /etc/fuse.conf).
	AllowOther bool

	// Debug logs every FUSE request.
	Debug bool

	// EntryTimeout and AttrTimeout bound how long the kernel caches names
	// and attributes. Other processes sharing the bucket become visible
	// after at most this long.
	EntryTimeout time.Duration
	AttrTimeout  time.Duration
}

func (o *MountOptions) applyDefaults() {
	if o.FsName == "" {
		o.FsName = DefaultFsName
	}
	if o.EntryTimeout <= 0 {
		o.EntryTimeout = DefaultEntryTimeout
	}
	if o.AttrTimeout <= 0 {
		o.AttrTimeout = DefaultAttrTimeout
	}
}

// Mount mounts fsys at opts.MountPoint. The caller must Unmount the
// returned server (or wait on it) when done.
func Mount(fsys *filesystem.FileSystem, opts MountOptions) (*gofuse.Server, error) {
	if opts.MountPoint == "" {
		return nil, fmt.Errorf("mount point is required")
	}
	opts.applyDefaults()

	if err := os.MkdirAll(opts.MountPoint, 0o755); err != nil {
		return nil, fmt.Errorf("create mount point %s: %w", opts.MountPoint, err)
	}

	negativeTimeout := time.Duration(0)
	server, err := fs.Mount(opts.MountPoint, NewRoot(fsys), &fs.Options{
		EntryTimeout:    &opts.EntryTimeout,
		AttrTimeout:     &opts.AttrTimeout,
		NegativeTimeout: &negativeTimeout,
		MountOptions: gofuse.MountOptions{
			FsName:     opts.FsName,
			Name:       DefaultFsName,
			AllowOther: opts.AllowOther,
			Debug:      opts.Debug,
		},
		UID: uint32(os.Getuid()),
		GID: uint32(os.Getgid()),
	})
	if err != nil {
		return nil, fmt.Errorf("mount %s: %w", opts.MountPoint, err)
	}

	logger.Info("Mounted %s at %s", opts.FsName, opts.MountPoint)
	return server, nil
}
