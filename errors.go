package zvfs

import "github.com/meigma/zvfs/internal/fstype"

// Sentinel errors re-exported from internal/fstype. Match them with errors.Is.
var (
	// ErrAlreadyExists is returned when Create targets an existing path.
	ErrAlreadyExists = fstype.ErrAlreadyExists

	// ErrNotFound is returned when the container, a source file, or a live
	// entry does not exist.
	ErrNotFound = fstype.ErrNotFound

	// ErrDuplicateName is returned when adding a name that is already live.
	ErrDuplicateName = fstype.ErrDuplicateName

	// ErrCapacityExceeded is returned when the entry table is full or the
	// payload would end past the 4 GiB size limit.
	ErrCapacityExceeded = fstype.ErrCapacityExceeded

	// ErrAlreadyDeleted is returned when removing a tombstoned entry.
	ErrAlreadyDeleted = fstype.ErrAlreadyDeleted

	// ErrConsistency is returned by Describe when recomputed counts disagree
	// with the superblock.
	ErrConsistency = fstype.ErrConsistency

	// ErrFormat is returned for a malformed superblock or entry record.
	ErrFormat = fstype.ErrFormat

	// ErrEncoding is returned by ReadText for payloads that are not UTF-8.
	ErrEncoding = fstype.ErrEncoding

	// ErrInvalidName is returned for empty names or names containing NUL.
	ErrInvalidName = fstype.ErrInvalidName

	// ErrDigestMismatch is returned by ExtractFile when the payload does not
	// match the expected digest.
	ErrDigestMismatch = fstype.ErrDigestMismatch
)
