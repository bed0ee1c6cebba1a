// Package alloc implements the bump allocator over a container's data region.
//
// The cursor lives in the superblock (NextFreeOffset) and only moves forward.
// Space released by remove is never handed out again; compaction resets the
// cursor and reallocates every live payload from the start of the region.
package alloc

import (
	"fmt"

	"github.com/meigma/zvfs/internal/fstype"
	"github.com/meigma/zvfs/internal/layout"
	"github.com/meigma/zvfs/internal/sizing"
)

// Extent is the placement of one payload.
type Extent struct {
	// Cursor is the allocator position before this allocation. Bytes in
	// [Cursor, Start) are alignment padding.
	Cursor uint32

	// Start is the aligned offset where the payload begins.
	Start uint32

	// Size is the payload length.
	Size uint32

	// Next is the aligned cursor after this allocation.
	Next uint32
}

// Gap returns the number of padding bytes before Start.
func (x Extent) Gap() uint32 {
	return x.Start - x.Cursor
}

// End returns the offset just past the payload.
func (x Extent) End() uint64 {
	return uint64(x.Start) + uint64(x.Size)
}

// Allocator hands out aligned extents by advancing the superblock cursor.
type Allocator struct {
	sb    *layout.Superblock
	limit uint64
}

// New returns an allocator bound to sb with the default size limit.
func New(sb *layout.Superblock) *Allocator {
	return &Allocator{sb: sb, limit: layout.SizeLimit}
}

// NewWithLimit returns an allocator that refuses extents ending past limit.
func NewWithLimit(sb *layout.Superblock, limit uint64) *Allocator {
	return &Allocator{sb: sb, limit: limit}
}

// Plan computes where size bytes would be placed without moving the cursor.
func (a *Allocator) Plan(size uint64) (Extent, error) {
	cursor := a.sb.NextFreeOffset
	start := layout.Align(uint64(cursor))
	end, ok := sizing.AddUint64(start, size)
	if !ok || end > a.limit {
		return Extent{}, fmt.Errorf("%w: %d bytes at offset %d exceeds %d byte limit", fstype.ErrCapacityExceeded, size, start, a.limit)
	}
	// next_free_offset is a u32 field, so a payload ending within the last
	// alignment unit below SizeLimit is refused as well.
	next, err := sizing.ToUint32(layout.Align(end), fstype.ErrCapacityExceeded)
	if err != nil {
		return Extent{}, fmt.Errorf("%w: cursor %d does not fit the format", err, layout.Align(end))
	}
	return Extent{
		Cursor: cursor,
		Start:  uint32(start), //nolint:gosec // start <= next
		Size:   uint32(size),  //nolint:gosec // size <= next
		Next:   next,
	}, nil
}

// Commit advances the cursor past x.
func (a *Allocator) Commit(x Extent) {
	a.sb.NextFreeOffset = x.Next
}

// Allocate plans and commits an extent of size bytes.
func (a *Allocator) Allocate(size uint64) (Extent, error) {
	x, err := a.Plan(size)
	if err != nil {
		return Extent{}, err
	}
	a.Commit(x)
	return x, nil
}

// Reset moves the cursor back to the start of the data region.
func (a *Allocator) Reset() {
	a.sb.NextFreeOffset = a.sb.DataStartOffset
}
