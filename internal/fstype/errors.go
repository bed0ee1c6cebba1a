package fstype

import (
	"errors"
	"fmt"
)

// Sentinel errors for container operations.
var (
	// ErrAlreadyExists is returned when create targets an existing path.
	ErrAlreadyExists = errors.New("zvfs: already exists")

	// ErrNotFound is returned when a container, source file, or live entry is missing.
	ErrNotFound = errors.New("zvfs: not found")

	// ErrDuplicateName is returned when adding a name that is already live.
	ErrDuplicateName = errors.New("zvfs: duplicate name")

	// ErrCapacityExceeded is returned when the entry table is full or an
	// allocation would pass the container size limit.
	ErrCapacityExceeded = errors.New("zvfs: capacity exceeded")

	// ErrAlreadyDeleted is returned when removing an entry that is tombstoned.
	ErrAlreadyDeleted = errors.New("zvfs: already deleted")

	// ErrConsistency is returned when table counts disagree with the superblock.
	ErrConsistency = errors.New("zvfs: consistency check failed")

	// ErrFormat is returned for malformed superblocks or entry records.
	ErrFormat = errors.New("zvfs: invalid format")

	// ErrEncoding is returned when entry bytes are not valid UTF-8 text.
	ErrEncoding = errors.New("zvfs: invalid utf-8")

	// ErrInvalidName is returned for empty names or names containing NUL.
	ErrInvalidName = errors.New("zvfs: invalid name")

	// ErrDigestMismatch is returned when extracted content does not match an
	// expected digest.
	ErrDigestMismatch = errors.New("zvfs: digest mismatch")
)

// ConsistencyError reports which counter disagreed during a table scan.
type ConsistencyError struct {
	Field  string
	Stored int
	Actual int
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("zvfs: consistency check failed: %s: header says %d, table has %d", e.Field, e.Stored, e.Actual)
}

// Unwrap lets errors.Is match ErrConsistency.
func (e *ConsistencyError) Unwrap() error {
	return ErrConsistency
}
