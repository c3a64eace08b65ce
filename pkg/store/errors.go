package store

import "errors"

// ============================================================================
// Standard Object Store Errors
// ============================================================================

// Implementations wrap these with the key that failed:
//
//	return fmt.Errorf("get %s: %w", key, store.ErrObjectNotFound)
//
// Callers test them with errors.Is.

var (
	// ErrObjectNotFound indicates no object exists at the key.
	//
	// Returned by Get, GetVersioned, GetRange and Delete.
	ErrObjectNotFound = errors.New("object not found")

	// ErrPreconditionFailed indicates a conditional write lost a race:
	// the object's current version differs from the one the caller read.
	//
	// Only returned by VersionedStore.PutIfVersion. Callers re-read and
	// retry the read-modify-write.
	ErrPreconditionFailed = errors.New("precondition failed")

	// ErrUnavailable indicates the backing service failed or could not be
	// reached. The original transport error is wrapped alongside it.
	//
	// The filesystem layer maps it to EIO and never retries it.
	ErrUnavailable = errors.New("object store unavailable")
)
