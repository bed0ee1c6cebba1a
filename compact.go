package zvfs

import (
	"fmt"

	"github.com/meigma/zvfs/internal/alloc"
	"github.com/meigma/zvfs/internal/layout"
)

// keptEntry is a live entry carried across a compaction.
type keptEntry struct {
	entry layout.Entry
	data  []byte
}

// Compact rewrites every live entry contiguously from the start of the data
// region and rebuilds the table without tombstones.
//
// Live entries keep their slot order, names and creation times and move to
// slots 0..n-1. All live payloads are held in memory during the rewrite.
// When the device supports truncation the host file is shrunk to the new
// allocator cursor, so compaction never grows the container.
func (c *Container) Compact() (CompactStats, error) {
	sb, tbl, err := c.open()
	if err != nil {
		return CompactStats{}, err
	}

	var (
		kept    []keptEntry
		removed int
	)
	for s, err := range tbl.Scan(0, nil) {
		if err != nil {
			return CompactStats{}, err
		}
		switch {
		case s.Entry.IsEmpty():
			continue
		case s.Entry.IsTombstoned():
			removed++
			continue
		}
		data, err := c.readPayload(sb, &s.Entry)
		if err != nil {
			return CompactStats{}, err
		}
		kept = append(kept, keptEntry{entry: s.Entry, data: data})
	}

	before := sb.NextFreeOffset
	a := alloc.New(sb)
	a.Reset()
	for i, k := range kept {
		x, err := a.Allocate(uint64(len(k.data)))
		if err != nil {
			return CompactStats{}, fmt.Errorf("compact %q: %w", k.entry.NameString(), err)
		}
		if err := c.writeZeros(int64(x.Cursor), x.Gap()); err != nil {
			return CompactStats{}, err
		}
		if len(k.data) > 0 {
			if _, err := c.dev.WriteAt(k.data, int64(x.Start)); err != nil {
				return CompactStats{}, fmt.Errorf("compact %q: %w", k.entry.NameString(), err)
			}
		}
		if err := c.writeZeros(int64(x.End()), x.Next-uint32(x.End())); err != nil { //nolint:gosec // End <= Next
			return CompactStats{}, err
		}
		fresh := layout.Entry{
			Name:       k.entry.Name,
			DataOffset: x.Start,
			DataLength: x.Size,
			Flag:       layout.FlagLive,
			CreatedAt:  k.entry.CreatedAt,
		}
		if err := tbl.Write(i, &fresh); err != nil {
			return CompactStats{}, err
		}
	}

	// Slots 0..n-1 now hold the kept entries; everything after is cleared.
	if err := tbl.ZeroFrom(len(kept)); err != nil {
		return CompactStats{}, err
	}

	sb.FileCount = uint16(len(kept)) //nolint:gosec // bounded by capacity
	sb.DeletedFiles = 0
	if len(kept) < tbl.Capacity() {
		sb.SetHint(len(kept))
	} else {
		sb.SetHint(-1)
	}
	if err := c.writeSuperblock(sb); err != nil {
		return CompactStats{}, err
	}

	if t, ok := c.dev.(truncater); ok {
		if err := t.Truncate(int64(sb.NextFreeOffset)); err != nil {
			return CompactStats{}, fmt.Errorf("truncate container: %w", err)
		}
	}

	stats := CompactStats{Removed: removed, Retained: len(kept)}
	if before > sb.NextFreeOffset {
		stats.BytesFreed = before - sb.NextFreeOffset
	}
	c.log().Info("compacted container",
		"retained", stats.Retained,
		"removed", stats.Removed,
		"bytes_freed", stats.BytesFreed,
		"next_free", sb.NextFreeOffset,
	)
	return stats, nil
}
