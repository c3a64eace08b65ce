package filesystem

import (
	"context"
	"errors"
	"syscall"

	"github.com/marmos91/bucketfs/pkg/metadata"
	"github.com/marmos91/bucketfs/pkg/store"
)

// Operation names, used for errno mapping, metrics and logs.
const (
	OpGetattr  = "getattr"
	OpMkdir    = "mkdir"
	OpRmdir    = "rmdir"
	OpMknod    = "mknod"
	OpCreate   = "create"
	OpOpen     = "open"
	OpOpendir  = "opendir"
	OpRead     = "read"
	OpWrite    = "write"
	OpRename   = "rename"
	OpUnlink   = "unlink"
	OpReaddir  = "readdir"
	OpTruncate = "truncate"
	OpAccess   = "access"
)

// Errno maps the error returned by operation op to the errno reported to
// the kernel. A nil error maps to 0.
//
// Mapping:
//   - ErrNotFound → ENOENT
//   - ErrAlreadyExists → EIO for mkdir, EEXIST otherwise
//   - ErrNotEmpty → ENOTEMPTY
//   - ErrCorruption, ErrUnavailable → EIO
//   - ErrIsDirectory → EISDIR, ErrNotDirectory → ENOTDIR
//   - ErrNameTooLong → ENAMETOOLONG
//   - ErrFileTooBig → EFBIG
//   - root rejections → EBUSY (rmdir, rename), EEXIST (mkdir, mknod,
//     create), EPERM (unlink)
//   - other ErrInvalidArgument → EINVAL
func Errno(op string, err error) syscall.Errno {
	if err == nil {
		return 0
	}

	code, ok := metadata.ErrorCodeOf(err)
	if !ok {
		switch {
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return syscall.EINTR
		case errors.Is(err, store.ErrObjectNotFound):
			return syscall.ENOENT
		default:
			return syscall.EIO
		}
	}

	switch code {
	case metadata.ErrNotFound:
		return syscall.ENOENT
	case metadata.ErrAlreadyExists:
		if op == OpMkdir {
			return syscall.EIO
		}
		return syscall.EEXIST
	case metadata.ErrNotEmpty:
		return syscall.ENOTEMPTY
	case metadata.ErrIsDirectory:
		return syscall.EISDIR
	case metadata.ErrNotDirectory:
		return syscall.ENOTDIR
	case metadata.ErrNameTooLong:
		return syscall.ENAMETOOLONG
	case metadata.ErrFileTooBig:
		return syscall.EFBIG
	case metadata.ErrInvalidArgument:
		if isRootErr(err) {
			return rootErrno(op)
		}
		return syscall.EINVAL
	default:
		return syscall.EIO
	}
}

func rootErrno(op string) syscall.Errno {
	switch op {
	case OpRmdir, OpRename:
		return syscall.EBUSY
	case OpMkdir, OpMknod, OpCreate:
		return syscall.EEXIST
	case OpUnlink:
		return syscall.EPERM
	default:
		return syscall.EINVAL
	}
}
