package zvfs

import (
	"fmt"

	"github.com/meigma/zvfs/internal/alloc"
	"github.com/meigma/zvfs/internal/layout"
)

// Add stores data under name.
//
// The name is normalized (see MaxNameLen). Add fails with ErrCapacityExceeded
// when every slot is live or the payload would end past SizeLimit, and with
// ErrDuplicateName when a live entry already has the name. A tombstoned entry
// with the same name does not block the add. All checks run before any byte
// is written.
func (c *Container) Add(name string, data []byte) (EntryInfo, error) {
	name, err := layout.NormalizeName(name)
	if err != nil {
		return EntryInfo{}, err
	}
	sb, tbl, err := c.open()
	if err != nil {
		return EntryInfo{}, err
	}

	if sb.FileCount >= sb.FileCapacity {
		return EntryInfo{}, fmt.Errorf("%w: all %d slots are live", ErrCapacityExceeded, sb.FileCapacity)
	}
	dup, err := tbl.HasLive(name)
	if err != nil {
		return EntryInfo{}, err
	}
	if dup {
		return EntryInfo{}, fmt.Errorf("%w: %q", ErrDuplicateName, name)
	}
	slot, ok, err := tbl.FindReusable(0)
	if err != nil {
		return EntryInfo{}, err
	}
	if !ok {
		return EntryInfo{}, fmt.Errorf("%w: no reusable slot", ErrCapacityExceeded)
	}
	a := alloc.New(sb)
	x, err := a.Plan(uint64(len(data)))
	if err != nil {
		return EntryInfo{}, err
	}

	// Mutation starts here. Data goes first and the superblock last so a
	// failure leaves at worst unreachable bytes past the cursor.
	if err := c.writeZeros(int64(x.Cursor), x.Gap()); err != nil {
		return EntryInfo{}, err
	}
	if len(data) > 0 {
		if _, err := c.dev.WriteAt(data, int64(x.Start)); err != nil {
			return EntryInfo{}, fmt.Errorf("write %q: %w", name, err)
		}
	}
	if err := c.writeZeros(int64(x.End()), x.Next-uint32(x.End())); err != nil { //nolint:gosec // End <= Next
		return EntryInfo{}, err
	}

	entry := layout.NewEntry(name, x.Start, x.Size, c.clock())
	if err := tbl.Write(slot.Index, &entry); err != nil {
		return EntryInfo{}, err
	}
	a.Commit(x)
	sb.FileCount++
	if slot.Entry.IsTombstoned() {
		sb.DeletedFiles--
	}

	next, ok, err := tbl.FindReusable(slot.Index + 1)
	if err != nil {
		return EntryInfo{}, err
	}
	if ok {
		sb.SetHint(next.Index)
	} else {
		sb.SetHint(-1)
	}
	if err := c.writeSuperblock(sb); err != nil {
		return EntryInfo{}, err
	}

	c.log().Debug("added entry",
		"name", name,
		"slot", slot.Index,
		"offset", x.Start,
		"size", x.Size,
		"reused_tombstone", slot.Entry.IsTombstoned(),
	)
	slot.Entry = entry
	return entryInfo(slot), nil
}
