package database

import "errors"

// Sentinel errors for the store. Check with errors.Is.
var (
	// ErrNotFound: the requested record does not exist.
	ErrNotFound = errors.New("database: record not found")
	// ErrConflict: a write observed a stale version. The whole batch is
	// rolled back; the caller may retry with fresh reads.
	ErrConflict = errors.New("database: version conflict")
	// ErrStorageUnavailable: the backing store cannot be reached.
	ErrStorageUnavailable = errors.New("database: storage unavailable")
)
