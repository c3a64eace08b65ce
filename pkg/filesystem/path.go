package filesystem

import (
	"errors"
	"strings"

	"github.com/marmos91/bucketfs/pkg/metadata"
)

// RootPath is the path (and object key) of the root directory.
const RootPath = "/"

// errRootPath marks operations that need a parent but were given "/".
// Errno maps it per operation (EBUSY, EEXIST or EPERM).
var errRootPath = errors.New("operation not permitted on the root directory")

// IsRoot reports whether path names the root directory.
func IsRoot(path string) bool {
	return path == RootPath
}

// ValidatePath checks that path is absolute and canonical: no empty,
// "." or ".." components, no trailing slash (except "/"), and no
// component longer than metadata.MaxNameLen bytes.
func ValidatePath(path string) error {
	if path == "" || path[0] != '/' {
		return metadata.NewError(metadata.ErrInvalidArgument, path, "path must be absolute")
	}
	if IsRoot(path) {
		return nil
	}
	if strings.HasSuffix(path, "/") {
		return metadata.NewError(metadata.ErrInvalidArgument, path, "trailing slash")
	}

	for _, c := range strings.Split(path[1:], "/") {
		switch {
		case c == "":
			return metadata.NewError(metadata.ErrInvalidArgument, path, "empty path component")
		case c == "." || c == "..":
			return metadata.NewError(metadata.ErrInvalidArgument, path, "relative path component %q", c)
		case len(c) > metadata.MaxNameLen:
			return metadata.NewError(metadata.ErrNameTooLong, path, "component exceeds %d bytes", metadata.MaxNameLen)
		}
	}
	return nil
}

// Resolve splits path into its parent directory path and leaf name.
//
// Returns ErrInvalidArgument for malformed paths and for the root, which
// has no parent.
func Resolve(path string) (parent, leaf string, err error) {
	if err := ValidatePath(path); err != nil {
		return "", "", err
	}
	if IsRoot(path) {
		return "", "", metadata.WrapError(metadata.ErrInvalidArgument, path, errRootPath, "root has no parent")
	}

	i := strings.LastIndexByte(path, '/')
	parent = path[:i]
	if parent == "" {
		parent = RootPath
	}
	return parent, path[i+1:], nil
}

// JoinPath appends name to the directory path dir.
func JoinPath(dir, name string) string {
	if IsRoot(dir) {
		return RootPath + name
	}
	return dir + "/" + name
}

// KeyOf derives the object key for a validated path. Under a
// case-insensitive policy every component is folded, so paths that
// differ only in case address the same object.
func KeyOf(names metadata.NamePolicy, path string) string {
	return names.Fold(path)
}

// ChildKey derives the key of name inside the directory stored at dirKey.
func ChildKey(names metadata.NamePolicy, dirKey, name string) string {
	return JoinPath(dirKey, names.Fold(name))
}

// isWithin reports whether key lies strictly below the directory key dir.
func isWithin(key, dir string) bool {
	if IsRoot(dir) {
		return !IsRoot(key)
	}
	return strings.HasPrefix(key, dir+"/")
}
