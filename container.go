package zvfs

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/meigma/zvfs/internal/layout"
	"github.com/meigma/zvfs/internal/table"
)

// Container runs operations against a container stored on a Device.
//
// Container holds no cached state: every operation reads the superblock,
// works on the table and data region, and writes the superblock back last.
type Container struct {
	dev      Device
	logger   *slog.Logger
	clock    func() time.Time
	capacity int
}

// New returns a Container over dev. Call Format to initialize an empty
// device.
func New(dev Device, opts ...Option) *Container {
	cfg := newConfig(opts)
	return &Container{
		dev:      dev,
		logger:   cfg.logger,
		clock:    cfg.clock,
		capacity: cfg.capacity,
	}
}

// log returns the logger, falling back to a discard logger if nil.
func (c *Container) log() *slog.Logger {
	if c.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return c.logger
}

// Format writes an empty superblock and a zeroed entry table, replacing
// anything previously stored on the device.
func (c *Container) Format() error {
	if c.capacity < 1 || c.capacity > layout.MaxCapacity {
		return fmt.Errorf("zvfs: capacity %d out of range [1,%d]", c.capacity, layout.MaxCapacity)
	}
	sb := layout.NewSuperblock(uint16(c.capacity)) //nolint:gosec // range checked above
	if err := table.New(c.dev, &sb).Zero(); err != nil {
		return err
	}
	if err := c.writeSuperblock(&sb); err != nil {
		return err
	}
	c.log().Debug("formatted container", "capacity", c.capacity, "data_start", sb.DataStartOffset)
	return nil
}

// readSuperblock loads and validates the header.
func (c *Container) readSuperblock() (layout.Superblock, error) {
	buf := make([]byte, layout.SuperblockSize)
	if err := table.ReadFull(c.dev, buf, 0); err != nil {
		return layout.Superblock{}, fmt.Errorf("read superblock: %w", err)
	}
	sb, err := layout.DecodeSuperblock(buf)
	if err != nil {
		return layout.Superblock{}, err
	}
	if err := sb.Validate(); err != nil {
		return layout.Superblock{}, err
	}
	return sb, nil
}

// writeSuperblock persists the header at offset 0.
func (c *Container) writeSuperblock(sb *layout.Superblock) error {
	if _, err := c.dev.WriteAt(sb.Encode(), 0); err != nil {
		return fmt.Errorf("write superblock: %w", err)
	}
	return nil
}

// open reads the superblock and returns it with a table bound to it.
func (c *Container) open() (*layout.Superblock, *table.Table, error) {
	sb, err := c.readSuperblock()
	if err != nil {
		return nil, nil, err
	}
	return &sb, table.New(c.dev, &sb), nil
}

// writeZeros fills [off, off+n) with zero bytes.
func (c *Container) writeZeros(off int64, n uint32) error {
	if n == 0 {
		return nil
	}
	if _, err := c.dev.WriteAt(make([]byte, n), off); err != nil {
		return fmt.Errorf("pad %d bytes at %d: %w", n, off, err)
	}
	return nil
}

// checkExtent reports ErrFormat when e's payload lies outside the allocated
// data region [DataStartOffset, NextFreeOffset).
func checkExtent(sb *layout.Superblock, e *layout.Entry) error {
	end := uint64(e.DataOffset) + uint64(e.DataLength)
	if e.DataOffset < sb.DataStartOffset || end > uint64(sb.NextFreeOffset) {
		return fmt.Errorf("%w: %q spans [%d,%d) outside data region [%d,%d)",
			ErrFormat, e.NameString(), e.DataOffset, end, sb.DataStartOffset, sb.NextFreeOffset)
	}
	return nil
}

// readPayload reads the bytes described by e after checking them against sb.
func (c *Container) readPayload(sb *layout.Superblock, e *layout.Entry) ([]byte, error) {
	if err := checkExtent(sb, e); err != nil {
		return nil, err
	}
	data := make([]byte, e.DataLength)
	if len(data) == 0 {
		return data, nil
	}
	if err := table.ReadFull(c.dev, data, int64(e.DataOffset)); err != nil {
		return nil, fmt.Errorf("read %q: %w", e.NameString(), err)
	}
	return data, nil
}

// entryInfo converts a live slot to its public description.
func entryInfo(s table.Slot) EntryInfo {
	return EntryInfo{
		Name:      s.Entry.NameString(),
		Size:      s.Entry.DataLength,
		CreatedAt: s.Entry.Created(),
		Slot:      s.Index,
		Offset:    s.Entry.DataOffset,
	}
}
