package zvfs

import (
	"fmt"

	"github.com/meigma/zvfs/internal/layout"
	"github.com/meigma/zvfs/internal/table"
)

// Remove tombstones the live entry called name.
//
// Only the slot's flag changes; the payload stays on disk until Compact.
// Remove returns ErrAlreadyDeleted when the only entries with that name are
// tombstoned, and ErrNotFound when no slot has the name.
func (c *Container) Remove(name string) error {
	name, err := layout.NormalizeName(name)
	if err != nil {
		return err
	}
	sb, tbl, err := c.open()
	if err != nil {
		return err
	}

	s, ok, err := tbl.Find(0, table.And(table.Live, table.Named(name)))
	if err != nil {
		return err
	}
	if !ok {
		deleted, err := tbl.HasTombstone(name)
		if err != nil {
			return err
		}
		if deleted {
			return fmt.Errorf("%w: %q", ErrAlreadyDeleted, name)
		}
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}

	s.Entry.Flag = layout.FlagTombstoned
	if err := tbl.Write(s.Index, &s.Entry); err != nil {
		return err
	}
	sb.FileCount--
	sb.DeletedFiles++
	sb.SetHint(s.Index)
	if err := c.writeSuperblock(sb); err != nil {
		return err
	}

	c.log().Debug("removed entry", "name", name, "slot", s.Index, "size", s.Entry.DataLength)
	return nil
}
