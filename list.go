package zvfs

import (
	"iter"

	"github.com/meigma/zvfs/internal/table"
)

// List returns an iterator over the live entries in ascending slot order.
//
// The sequence is lazy: each range re-reads the superblock and walks the
// table slot by slot, so it can be ranged over again to observe later
// changes. A read error is yielded once and ends the sequence.
func (c *Container) List() iter.Seq2[EntryInfo, error] {
	return func(yield func(EntryInfo, error) bool) {
		_, tbl, err := c.open()
		if err != nil {
			yield(EntryInfo{}, err)
			return
		}
		for s, err := range tbl.Scan(0, table.Live) {
			if err != nil {
				yield(EntryInfo{}, err)
				return
			}
			if !yield(entryInfo(s), nil) {
				return
			}
		}
	}
}
