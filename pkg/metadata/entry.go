package metadata

import (
	"syscall"
	"time"

	"golang.org/x/text/cases"
)

// Kind distinguishes files from directories.
type Kind uint32

const (
	KindFile Kind = iota + 1
	KindDirectory
)

func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindDirectory:
		return "directory"
	default:
		return "unknown"
	}
}

// SelfName is the name of the record that carries a directory's own
// attributes. It is always the first record of a directory object.
const SelfName = "."

// MaxNameLen is the longest leaf name, in bytes, an entry may carry.
const MaxNameLen = 255

// MaxFileSize is the largest file size, in bytes. A file is one object
// rewritten whole, so this matches the largest single S3 PUT.
const MaxFileSize int64 = 5 << 30

// Entry is the metadata of one name inside a directory listing.
//
// For files the parent listing entry is the only place their attributes
// live; for directories the same data is also kept in the self record of
// the directory's own object.
type Entry struct {
	Name      string
	Kind      Kind
	Mode      uint32 // type bits (S_IFDIR/S_IFREG) plus permission bits
	UID       uint32
	GID       uint32
	LinkCount uint32
	Size      uint64
	Atime     time.Time
	Mtime     time.Time
	Ctime     time.Time
}

// IsDir reports whether the entry is a directory.
func (e *Entry) IsDir() bool {
	return e.Kind == KindDirectory
}

// NewEntry builds an entry with every timestamp set to now.
//
// The type bits of mode are forced to match kind, so callers may pass
// either bare permission bits or a full st_mode.
func NewEntry(name string, kind Kind, mode, uid, gid uint32, now time.Time) Entry {
	perm := mode &^ syscall.S_IFMT
	nlink := uint32(1)
	if kind == KindDirectory {
		perm |= syscall.S_IFDIR
		nlink = 2
	} else {
		perm |= syscall.S_IFREG
	}

	now = now.UTC()
	return Entry{
		Name:      name,
		Kind:      kind,
		Mode:      perm,
		UID:       uid,
		GID:       gid,
		LinkCount: nlink,
		Atime:     now,
		Mtime:     now,
		Ctime:     now,
	}
}

// Touch sets the modification and change times, as done by writes.
func (e *Entry) Touch(now time.Time) {
	now = now.UTC()
	e.Mtime = now
	e.Ctime = now
}

// NamePolicy decides when two entry names are the same name.
//
// Two names are equal exactly when they fold to the same string, so a name
// found in a listing always derives the key of the object it describes.
type NamePolicy struct {
	CaseInsensitive bool
}

// Equal compares two names under the policy.
func (p NamePolicy) Equal(a, b string) bool {
	return p.Fold(a) == p.Fold(b)
}

// Fold returns the canonical form of name used to derive object keys.
// Case-insensitive policies apply Unicode case folding.
func (p NamePolicy) Fold(name string) string {
	if p.CaseInsensitive {
		// a Caser keeps state, so each call gets its own
		return cases.Fold().String(name)
	}
	return name
}
