package table

import (
	"errors"
	"fmt"
	"io"
	"iter"

	"github.com/meigma/zvfs/internal/fstype"
	"github.com/meigma/zvfs/internal/layout"
)

// Device is random-access storage holding a container.
type Device interface {
	io.ReaderAt
	io.WriterAt
}

// Predicate selects slots during a scan.
type Predicate func(e *layout.Entry) bool

// Slot pairs a table index with its decoded record.
type Slot struct {
	Index int
	Entry layout.Entry
}

// Counts is the slot classification of a whole table.
type Counts struct {
	Live    int
	Deleted int
	Empty   int
}

// Table reads and writes entry slots described by a superblock.
type Table struct {
	dev Device
	sb  *layout.Superblock
}

// New returns a Table over dev using the geometry in sb.
func New(dev Device, sb *layout.Superblock) *Table {
	return &Table{dev: dev, sb: sb}
}

// Capacity returns the number of slots.
func (t *Table) Capacity() int {
	return int(t.sb.FileCapacity)
}

// Read decodes slot i.
func (t *Table) Read(i int) (layout.Entry, error) {
	if i < 0 || i >= t.Capacity() {
		return layout.Entry{}, fmt.Errorf("slot %d out of range [0,%d)", i, t.Capacity())
	}
	buf := make([]byte, layout.EntrySize)
	if err := ReadFull(t.dev, buf, t.sb.SlotOffset(i)); err != nil {
		return layout.Entry{}, fmt.Errorf("read slot %d: %w", i, err)
	}
	return layout.DecodeEntry(buf)
}

// Write encodes e into slot i.
func (t *Table) Write(i int, e *layout.Entry) error {
	if i < 0 || i >= t.Capacity() {
		return fmt.Errorf("slot %d out of range [0,%d)", i, t.Capacity())
	}
	if _, err := t.dev.WriteAt(e.Encode(), t.sb.SlotOffset(i)); err != nil {
		return fmt.Errorf("write slot %d: %w", i, err)
	}
	return nil
}

// Zero clears every slot.
func (t *Table) Zero() error {
	return t.ZeroFrom(0)
}

// ZeroFrom clears slots from..Capacity()-1.
func (t *Table) ZeroFrom(from int) error {
	from = max(from, 0)
	if from >= t.Capacity() {
		return nil
	}
	buf := make([]byte, (t.Capacity()-from)*layout.EntrySize)
	if _, err := t.dev.WriteAt(buf, t.sb.SlotOffset(from)); err != nil {
		return fmt.Errorf("zero table from slot %d: %w", from, err)
	}
	return nil
}

// Scan yields slots from index from onward that match pred, in ascending
// order. A nil pred matches every slot. A read error is yielded once and
// ends the scan.
func (t *Table) Scan(from int, pred Predicate) iter.Seq2[Slot, error] {
	return func(yield func(Slot, error) bool) {
		for i := max(from, 0); i < t.Capacity(); i++ {
			e, err := t.Read(i)
			if err != nil {
				yield(Slot{}, err)
				return
			}
			if pred != nil && !pred(&e) {
				continue
			}
			if !yield(Slot{Index: i, Entry: e}, nil) {
				return
			}
		}
	}
}

// Find returns the first slot at or after from that matches pred.
func (t *Table) Find(from int, pred Predicate) (Slot, bool, error) {
	for s, err := range t.Scan(from, pred) {
		if err != nil {
			return Slot{}, false, err
		}
		return s, true, nil
	}
	return Slot{}, false, nil
}

// FindByName returns the first live slot holding name. Tombstoned slots with
// the same name are skipped, not treated as a match.
func (t *Table) FindByName(name string) (Slot, error) {
	s, ok, err := t.Find(0, And(Live, Named(name)))
	if err != nil {
		return Slot{}, err
	}
	if !ok {
		return Slot{}, fmt.Errorf("%w: %q", fstype.ErrNotFound, name)
	}
	return s, nil
}

// FindReusable returns the first empty or tombstoned slot at or after from.
func (t *Table) FindReusable(from int) (Slot, bool, error) {
	return t.Find(from, Reusable)
}

// HasLive reports whether any live slot holds name.
func (t *Table) HasLive(name string) (bool, error) {
	_, ok, err := t.Find(0, And(Live, Named(name)))
	return ok, err
}

// HasTombstone reports whether any tombstoned slot holds name.
func (t *Table) HasTombstone(name string) (bool, error) {
	_, ok, err := t.Find(0, And(Tombstoned, Named(name)))
	return ok, err
}

// Count classifies every slot.
func (t *Table) Count() (Counts, error) {
	var c Counts
	for s, err := range t.Scan(0, nil) {
		if err != nil {
			return Counts{}, err
		}
		switch {
		case s.Entry.IsEmpty():
			c.Empty++
		case s.Entry.IsLive():
			c.Live++
		default:
			c.Deleted++
		}
	}
	return c, nil
}

// Slot predicates.
var (
	Live       Predicate = func(e *layout.Entry) bool { return e.IsLive() }
	Tombstoned Predicate = func(e *layout.Entry) bool { return e.IsTombstoned() }
	Reusable   Predicate = func(e *layout.Entry) bool { return e.IsReusable() }
)

// Named matches slots whose stored name equals name exactly.
func Named(name string) Predicate {
	return func(e *layout.Entry) bool {
		return e.NameString() == name
	}
}

// And matches slots accepted by every predicate.
func And(preds ...Predicate) Predicate {
	return func(e *layout.Entry) bool {
		for _, p := range preds {
			if !p(e) {
				return false
			}
		}
		return true
	}
}

// ReadFull reads exactly len(buf) bytes at off. A short read means the
// container is truncated and is reported as a format error.
func ReadFull(r io.ReaderAt, buf []byte, off int64) error {
	n, err := r.ReadAt(buf, off)
	if n == len(buf) {
		return nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: short read at offset %d: got %d of %d bytes", fstype.ErrFormat, off, n, len(buf))
	}
	return err
}
