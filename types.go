package zvfs

import (
	"io"

	"github.com/meigma/zvfs/internal/fstype"
	"github.com/meigma/zvfs/internal/layout"
)

// Re-export types from internal/fstype for the public API.
type (
	// EntryInfo describes a live entry.
	EntryInfo = fstype.EntryInfo

	// Summary is the result of Describe.
	Summary = fstype.Summary

	// CompactStats is the result of Compact.
	CompactStats = fstype.CompactStats

	// ConsistencyError details a Describe mismatch. It matches ErrConsistency.
	ConsistencyError = fstype.ConsistencyError
)

// Format limits.
const (
	// DefaultCapacity is the number of entry slots in a new container.
	DefaultCapacity = layout.DefaultCapacity

	// MaxNameLen is the longest stored name in bytes. Longer names are
	// truncated on a UTF-8 boundary.
	MaxNameLen = layout.MaxNameLen

	// SizeLimit is the largest offset a payload may end at.
	SizeLimit = layout.SizeLimit

	// Alignment is the boundary every payload starts on.
	Alignment = layout.Alignment
)

// Device provides random access to container bytes.
//
// *os.File satisfies Device. Devices that also implement
// Truncate(int64) error are shrunk after compaction, and devices that
// implement Size() (int64, error) report their size in Describe.
type Device interface {
	io.ReaderAt
	io.WriterAt
}

type truncater interface {
	Truncate(size int64) error
}

type sizer interface {
	Size() (int64, error)
}
