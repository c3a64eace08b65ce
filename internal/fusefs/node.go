package fusefs

import (
	"context"
	"os"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fs"
	gofuse "github.com/hanwen/go-fuse/v2/fuse"
	"github.com/marmos91/bucketfs/pkg/filesystem"
)

// renameNoReplace and renameExchange are the renameat2 flags.
const (
	renameNoReplace = 0x1
	renameExchange  = 0x2
)

// Node is one inode of the mounted tree. It keeps no state besides its
// position in the tree: every call resolves the node's absolute path and
// runs the matching filesystem operation.
type Node struct {
	fs.Inode
	fsys *filesystem.FileSystem
}

// NewRoot returns the root node for fsys.
func NewRoot(fsys *filesystem.FileSystem) *Node {
	return &Node{fsys: fsys}
}

var _ fs.InodeEmbedder = (*Node)(nil)
var _ fs.NodeGetattrer = (*Node)(nil)
var _ fs.NodeSetattrer = (*Node)(nil)
var _ fs.NodeLookuper = (*Node)(nil)
var _ fs.NodeReaddirer = (*Node)(nil)
var _ fs.NodeOpendirer = (*Node)(nil)
var _ fs.NodeMkdirer = (*Node)(nil)
var _ fs.NodeRmdirer = (*Node)(nil)
var _ fs.NodeMknoder = (*Node)(nil)
var _ fs.NodeCreater = (*Node)(nil)
var _ fs.NodeOpener = (*Node)(nil)
var _ fs.NodeReader = (*Node)(nil)
var _ fs.NodeWriter = (*Node)(nil)
var _ fs.NodeFlusher = (*Node)(nil)
var _ fs.NodeFsyncer = (*Node)(nil)
var _ fs.NodeReleaser = (*Node)(nil)
var _ fs.FileReleasedirer = (*Node)(nil)
var _ fs.NodeRenamer = (*Node)(nil)
var _ fs.NodeUnlinker = (*Node)(nil)
var _ fs.NodeAccesser = (*Node)(nil)
var _ fs.NodeStatfser = (*Node)(nil)

// path returns the absolute path of the node within the mount.
func (n *Node) path() string {
	return "/" + n.Path(nil)
}

func (n *Node) childPath(name string) string {
	return filesystem.JoinPath(n.path(), name)
}

// newChild creates the inode for a child described by attr and fills out.
func (n *Node) newChild(ctx context.Context, attr *filesystem.Attr, out *gofuse.EntryOut) *fs.Inode {
	fillAttr(attr, &out.Attr)
	child := &Node{fsys: n.fsys}
	return n.NewInode(ctx, child, fs.StableAttr{Mode: attr.Mode & syscall.S_IFMT})
}

// Getattr reports the stat fields of the node.
func (n *Node) Getattr(ctx context.Context, fh fs.FileHandle, out *gofuse.AttrOut) syscall.Errno {
	attr, err := n.fsys.Getattr(ctx, n.path())
	if err != nil {
		return filesystem.Errno(filesystem.OpGetattr, err)
	}
	fillAttr(attr, &out.Attr)
	return 0
}

// Setattr applies size changes (truncate and ftruncate). Mode, owner and
// time changes are accepted and ignored.
func (n *Node) Setattr(ctx context.Context, fh fs.FileHandle, in *gofuse.SetAttrIn, out *gofuse.AttrOut) syscall.Errno {
	if size, ok := in.GetSize(); ok {
		if err := n.fsys.Truncate(ctx, n.path(), int64(size)); err != nil {
			return filesystem.Errno(filesystem.OpTruncate, err)
		}
	}
	return n.Getattr(ctx, fh, out)
}

// Lookup finds a child by name.
func (n *Node) Lookup(ctx context.Context, name string, out *gofuse.EntryOut) (*fs.Inode, syscall.Errno) {
	attr, err := n.fsys.Getattr(ctx, n.childPath(name))
	if err != nil {
		return nil, filesystem.Errno(filesystem.OpGetattr, err)
	}
	return n.newChild(ctx, attr, out), 0
}

// Readdir lists the children in insertion order. The kernel bridge adds
// "." and ".." itself.
func (n *Node) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	var entries []gofuse.DirEntry
	err := n.fsys.Readdir(ctx, n.path(), func(name string, attr *filesystem.Attr) bool {
		if attr == nil {
			return true
		}
		entries = append(entries, gofuse.DirEntry{
			Name: name,
			Mode: attr.Mode & syscall.S_IFMT,
		})
		return true
	})
	if err != nil {
		return nil, filesystem.Errno(filesystem.OpReaddir, err)
	}
	return fs.NewListDirStream(entries), 0
}

func (n *Node) Opendir(ctx context.Context) syscall.Errno {
	return filesystem.Errno(filesystem.OpOpendir, n.fsys.Opendir(ctx, n.path()))
}

// Mkdir creates a directory owned by the calling process.
func (n *Node) Mkdir(ctx context.Context, name string, mode uint32, out *gofuse.EntryOut) (*fs.Inode, syscall.Errno) {
	path := n.childPath(name)
	uid, gid := caller(ctx)
	if err := n.fsys.Mkdir(ctx, path, mode, uid, gid); err != nil {
		return nil, filesystem.Errno(filesystem.OpMkdir, err)
	}

	attr, err := n.fsys.Getattr(ctx, path)
	if err != nil {
		return nil, filesystem.Errno(filesystem.OpGetattr, err)
	}
	return n.newChild(ctx, attr, out), 0
}

func (n *Node) Rmdir(ctx context.Context, name string) syscall.Errno {
	return filesystem.Errno(filesystem.OpRmdir, n.fsys.Rmdir(ctx, n.childPath(name)))
}

// Mknod creates a regular file. Device nodes, fifos and sockets are not
// supported.
func (n *Node) Mknod(ctx context.Context, name string, mode uint32, dev uint32, out *gofuse.EntryOut) (*fs.Inode, syscall.Errno) {
	if kind := mode & syscall.S_IFMT; kind != 0 && kind != syscall.S_IFREG {
		return nil, syscall.EPERM
	}

	path := n.childPath(name)
	uid, gid := caller(ctx)
	if err := n.fsys.Mknod(ctx, path, mode, uid, gid); err != nil {
		return nil, filesystem.Errno(filesystem.OpMknod, err)
	}

	attr, err := n.fsys.Getattr(ctx, path)
	if err != nil {
		return nil, filesystem.Errno(filesystem.OpGetattr, err)
	}
	return n.newChild(ctx, attr, out), 0
}

// Create creates and opens a regular file.
func (n *Node) Create(ctx context.Context, name string, flags uint32, mode uint32, out *gofuse.EntryOut) (*fs.Inode, fs.FileHandle, uint32, syscall.Errno) {
	uid, gid := caller(ctx)
	attr, err := n.fsys.Create(ctx, n.childPath(name), mode, uid, gid)
	if err != nil {
		return nil, nil, 0, filesystem.Errno(filesystem.OpCreate, err)
	}
	return n.newChild(ctx, attr, out), nil, gofuse.FOPEN_DIRECT_IO, 0
}

// Open checks the file exists. No handle is returned: reads and writes
// go straight to the store, so the kernel page cache is bypassed.
func (n *Node) Open(ctx context.Context, flags uint32) (fs.FileHandle, uint32, syscall.Errno) {
	path := n.path()
	if err := n.fsys.Open(ctx, path); err != nil {
		return nil, 0, filesystem.Errno(filesystem.OpOpen, err)
	}
	if flags&syscall.O_TRUNC != 0 && flags&syscall.O_ACCMODE != syscall.O_RDONLY {
		if err := n.fsys.Truncate(ctx, path, 0); err != nil {
			return nil, 0, filesystem.Errno(filesystem.OpTruncate, err)
		}
	}
	return nil, gofuse.FOPEN_DIRECT_IO, 0
}

func (n *Node) Read(ctx context.Context, fh fs.FileHandle, dest []byte, off int64) (gofuse.ReadResult, syscall.Errno) {
	data, err := n.fsys.Read(ctx, n.path(), off, len(dest))
	if err != nil {
		return nil, filesystem.Errno(filesystem.OpRead, err)
	}
	return gofuse.ReadResultData(data), 0
}

func (n *Node) Write(ctx context.Context, fh fs.FileHandle, data []byte, off int64) (uint32, syscall.Errno) {
	written, err := n.fsys.Write(ctx, n.path(), off, data)
	if err != nil {
		return 0, filesystem.Errno(filesystem.OpWrite, err)
	}
	return uint32(written), 0
}

// Flush, Fsync and Release have nothing to do: every write is already
// stored when Write returns.
func (n *Node) Flush(ctx context.Context, fh fs.FileHandle) syscall.Errno {
	return 0
}

func (n *Node) Fsync(ctx context.Context, fh fs.FileHandle, flags uint32) syscall.Errno {
	return 0
}

func (n *Node) Release(ctx context.Context, fh fs.FileHandle) syscall.Errno {
	return 0
}

func (n *Node) Releasedir(ctx context.Context, releaseFlags uint32) {}

// Rename moves name to newName under newParent. RENAME_NOREPLACE is
// honoured; RENAME_EXCHANGE is not supported.
func (n *Node) Rename(ctx context.Context, name string, newParent fs.InodeEmbedder, newName string, flags uint32) syscall.Errno {
	if flags&renameExchange != 0 {
		return syscall.EINVAL
	}

	target, ok := newParent.(*Node)
	if !ok {
		return syscall.EXDEV
	}
	to := target.childPath(newName)

	if flags&renameNoReplace != 0 {
		_, err := n.fsys.Getattr(ctx, to)
		switch errno := filesystem.Errno(filesystem.OpGetattr, err); errno {
		case 0:
			return syscall.EEXIST
		case syscall.ENOENT:
		default:
			return errno
		}
	}

	return filesystem.Errno(filesystem.OpRename, n.fsys.Rename(ctx, n.childPath(name), to))
}

func (n *Node) Unlink(ctx context.Context, name string) syscall.Errno {
	return filesystem.Errno(filesystem.OpUnlink, n.fsys.Unlink(ctx, n.childPath(name)))
}

func (n *Node) Access(ctx context.Context, mask uint32) syscall.Errno {
	return filesystem.Errno(filesystem.OpAccess, n.fsys.Access(ctx, n.path(), mask))
}

func (n *Node) Statfs(ctx context.Context, out *gofuse.StatfsOut) syscall.Errno {
	st, err := n.fsys.Statfs(ctx)
	if err != nil {
		return syscall.EIO
	}
	fillStatfs(st, out)
	return 0
}

// fillAttr copies attr into the kernel's stat structure.
func fillAttr(attr *filesystem.Attr, out *gofuse.Attr) {
	out.Mode = attr.Mode
	out.Nlink = attr.Nlink
	out.Uid = attr.UID
	out.Gid = attr.GID
	out.Size = attr.Size
	out.Blocks = (attr.Size + 511) / 512
	out.Blksize = blockSize
	out.SetTimes(&attr.Atime, &attr.Mtime, &attr.Ctime)
}

func fillStatfs(st *filesystem.StatfsResult, out *gofuse.StatfsOut) {
	out.Bsize = st.BlockSize
	out.Frsize = st.BlockSize
	out.Blocks = st.Blocks
	out.Bfree = st.BlocksFree
	out.Bavail = st.BlocksAvail
	out.Files = st.Files
	out.Ffree = st.FilesFree
	out.NameLen = st.NameLen
}

// caller returns the uid and gid of the process making the request,
// falling back to our own.
func caller(ctx context.Context) (uid, gid uint32) {
	if c, ok := gofuse.FromContext(ctx); ok && c != nil {
		return c.Uid, c.Gid
	}
	return uint32(os.Getuid()), uint32(os.Getgid())
}
