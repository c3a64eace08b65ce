package metadata

import (
	"bytes"
	"fmt"
	"time"

	xdr "github.com/rasky/go-xdr/xdr2"
)

// nameFieldLen is the size of the fixed opaque name field of a record.
const nameFieldLen = 256

// record is the on-store layout of one Entry. Every field has a fixed XDR
// size so a listing is a plain concatenation of RecordSize-byte records.
type record struct {
	NameLen   uint32
	Name      [nameFieldLen]byte
	Kind      uint32
	Mode      uint32
	UID       uint32
	GID       uint32
	LinkCount uint32
	Size      uint64
	Atime     int64
	Mtime     int64
	Ctime     int64
}

// RecordSize is the encoded size of one entry:
// name length (4) + name (256) + five uint32 fields (20) + size (8) +
// three nanosecond timestamps (24).
const RecordSize = 4 + nameFieldLen + 5*4 + 8 + 3*8

// EncodeEntries serializes entries, in order, into a directory value.
// An empty slice encodes to a zero-length value.
//
// Returns ErrNameTooLong if a name exceeds MaxNameLen bytes.
func EncodeEntries(entries []Entry) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(len(entries) * RecordSize)

	for i := range entries {
		e := &entries[i]
		if len(e.Name) > MaxNameLen {
			return nil, NewError(ErrNameTooLong, e.Name, "entry name exceeds %d bytes", MaxNameLen)
		}

		rec := record{
			NameLen:   uint32(len(e.Name)),
			Kind:      uint32(e.Kind),
			Mode:      e.Mode,
			UID:       e.UID,
			GID:       e.GID,
			LinkCount: e.LinkCount,
			Size:      e.Size,
			Atime:     e.Atime.UnixNano(),
			Mtime:     e.Mtime.UnixNano(),
			Ctime:     e.Ctime.UnixNano(),
		}
		copy(rec.Name[:], e.Name)

		if _, err := xdr.Marshal(&buf, &rec); err != nil {
			return nil, fmt.Errorf("encode entry %q: %w", e.Name, err)
		}
	}

	return buf.Bytes(), nil
}

// DecodeEntries parses a directory value produced by EncodeEntries.
//
// Returns ErrCorruption if the length is not a multiple of RecordSize or a
// record carries an unknown kind or an out-of-range name length.
func DecodeEntries(data []byte) ([]Entry, error) {
	if len(data)%RecordSize != 0 {
		return nil, NewError(ErrCorruption, "", "directory value length %d is not a multiple of %d", len(data), RecordSize)
	}

	n := len(data) / RecordSize
	entries := make([]Entry, 0, n)
	r := bytes.NewReader(data)

	for i := 0; i < n; i++ {
		var rec record
		if _, err := xdr.Unmarshal(r, &rec); err != nil {
			return nil, WrapError(ErrCorruption, "", err, "decode record %d", i)
		}

		if rec.NameLen > MaxNameLen {
			return nil, NewError(ErrCorruption, "", "record %d: name length %d out of range", i, rec.NameLen)
		}
		kind := Kind(rec.Kind)
		if kind != KindFile && kind != KindDirectory {
			return nil, NewError(ErrCorruption, "", "record %d: unknown kind %d", i, rec.Kind)
		}

		entries = append(entries, Entry{
			Name:      string(rec.Name[:rec.NameLen]),
			Kind:      kind,
			Mode:      rec.Mode,
			UID:       rec.UID,
			GID:       rec.GID,
			LinkCount: rec.LinkCount,
			Size:      rec.Size,
			Atime:     time.Unix(0, rec.Atime).UTC(),
			Mtime:     time.Unix(0, rec.Mtime).UTC(),
			Ctime:     time.Unix(0, rec.Ctime).UTC(),
		})
	}

	return entries, nil
}
