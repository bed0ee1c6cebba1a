package zvfs

import (
	"fmt"

	"github.com/meigma/zvfs/internal/table"
)

// Describe recomputes slot counts with a full table scan and cross-checks
// them against the superblock.
//
// Mismatches are reported as a *ConsistencyError (matching ErrConsistency);
// the container is not repaired. The returned Summary holds the recomputed
// counts even when an error is returned for a mismatch.
func (c *Container) Describe() (Summary, error) {
	sb, tbl, err := c.open()
	if err != nil {
		return Summary{}, err
	}
	counts, err := tbl.Count()
	if err != nil {
		return Summary{}, err
	}

	sum := Summary{
		Live:      counts.Live,
		Deleted:   counts.Deleted,
		Empty:     counts.Empty,
		Capacity:  tbl.Capacity(),
		DataStart: sb.DataStartOffset,
		NextFree:  sb.NextFreeOffset,
		FreeHint:  sb.HintSlot(),
	}
	if s, ok := c.dev.(sizer); ok {
		if size, err := s.Size(); err == nil {
			sum.FileSize = size
		}
	}

	storedEmpty := int(sb.FileCapacity) - int(sb.FileCount) - int(sb.DeletedFiles)
	switch {
	case int(sb.DeletedFiles) != counts.Deleted:
		return sum, &ConsistencyError{Field: "deleted_files", Stored: int(sb.DeletedFiles), Actual: counts.Deleted}
	case int(sb.FileCount) != counts.Live:
		return sum, &ConsistencyError{Field: "file_count", Stored: int(sb.FileCount), Actual: counts.Live}
	case storedEmpty != counts.Empty:
		return sum, &ConsistencyError{Field: "empty_slots", Stored: storedEmpty, Actual: counts.Empty}
	}

	for s, err := range tbl.Scan(0, table.Live) {
		if err != nil {
			return sum, err
		}
		if err := checkExtent(sb, &s.Entry); err != nil {
			return sum, fmt.Errorf("%w: slot %d: %w", ErrConsistency, s.Index, err)
		}
	}

	// A hint that is not a slot offset is ignored; tools that predate the
	// hint leave it at zero.
	if hint := sb.HintSlot(); hint >= 0 {
		e, err := tbl.Read(hint)
		if err != nil {
			return sum, err
		}
		if !e.IsReusable() {
			return sum, fmt.Errorf("%w: free entry hint points at live slot %d", ErrConsistency, hint)
		}
	}
	return sum, nil
}
