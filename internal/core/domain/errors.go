package domain

import "errors"

var (
	// ErrStoreUnavailable means the backing table could not be reached.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrStoreRejected means the backing table refused the write.
	ErrStoreRejected = errors.New("store rejected write")

	// ErrRecordNotFound means the named record was absent at verification
	// time; it may have been deleted or renamed by another writer.
	ErrRecordNotFound = errors.New("record not found")

	// ErrVersionConflict means the caller's expected version no longer
	// matches the authoritative record. The caller must re-read and retry.
	ErrVersionConflict = errors.New("version conflict")

	// ErrDuplicateName means an insert targeted a name that already exists.
	ErrDuplicateName = errors.New("duplicate record name")
)
