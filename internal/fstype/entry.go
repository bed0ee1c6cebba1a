package fstype

import (
	"time"

	digest "github.com/opencontainers/go-digest"
)

// EntryInfo describes a live entry in the container.
type EntryInfo struct {
	// Name is the stored (possibly truncated) entry name.
	Name string

	// Size is the payload length in bytes.
	Size uint32

	// CreatedAt is when the entry was added.
	CreatedAt time.Time

	// Slot is the entry's index in the table.
	Slot int

	// Offset is the byte offset of the payload inside the container.
	Offset uint32

	// Digest is the sha256 digest of the payload. Only set by Inspect.
	Digest digest.Digest
}

// Summary is the result of a full-table consistency scan.
type Summary struct {
	// Live, Deleted and Empty are recomputed from the table.
	Live    int
	Deleted int
	Empty   int

	// Capacity is the number of slots in the table.
	Capacity int

	// DataStart and NextFree bound the allocated data region.
	DataStart uint32
	NextFree  uint32

	// FreeHint is the cached reusable slot, or -1 when no hint is set.
	FreeHint int

	// FileSize is the host file size, or 0 when the device cannot report it.
	FileSize int64
}

// CompactStats reports the outcome of a compaction.
type CompactStats struct {
	// Removed is the number of tombstones erased.
	Removed int

	// BytesFreed is how far the allocator cursor moved back.
	BytesFreed uint32

	// Retained is the number of live entries rewritten.
	Retained int
}
