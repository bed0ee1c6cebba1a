package layout

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/meigma/zvfs/internal/fstype"
)

// Format constants.
const (
	SuperblockSize = 64
	EntrySize      = 64
	NameSize       = 32
	MaxNameLen     = NameSize - 1
	Alignment      = 64
	Version        = 1

	// DefaultCapacity is the number of entry slots written by Create.
	DefaultCapacity = 32

	// MaxCapacity is the largest table the uint16 capacity field can describe.
	MaxCapacity = 1<<16 - 1

	// SizeLimit is the largest byte offset a payload may end at (4 GiB).
	SizeLimit = 4 << 30
)

// Magic identifies a ZVFS container.
var Magic = [8]byte{'Z', 'V', 'F', 'S', 'D', 'S', 'K', '1'}

// Entry flags.
const (
	FlagLive       = 0
	FlagTombstoned = 1
)

// Superblock is the fixed header at offset 0.
type Superblock struct {
	Magic           [8]byte
	Version         uint8
	NoFreeHint      bool
	Reserved0       uint16
	FileCount       uint16
	FileCapacity    uint16
	FileEntrySize   uint16
	Reserved1       uint16
	FileTableOffset uint32
	DataStartOffset uint32
	NextFreeOffset  uint32
	FreeEntryOffset uint32
	DeletedFiles    uint16
	Reserved2       [26]byte
}

// NewSuperblock returns the header of an empty container with capacity slots.
func NewSuperblock(capacity uint16) Superblock {
	dataStart := uint32(SuperblockSize) + uint32(capacity)*EntrySize
	return Superblock{
		Magic:           Magic,
		Version:         Version,
		FileCapacity:    capacity,
		FileEntrySize:   EntrySize,
		FileTableOffset: SuperblockSize,
		DataStartOffset: dataStart,
		NextFreeOffset:  dataStart,
		FreeEntryOffset: SuperblockSize,
	}
}

// Encode writes the superblock into a SuperblockSize buffer.
func (s *Superblock) Encode() []byte {
	buf := make([]byte, SuperblockSize)
	le := binary.LittleEndian
	copy(buf[0:8], s.Magic[:])
	buf[8] = s.Version
	if s.NoFreeHint {
		buf[9] = 1
	}
	le.PutUint16(buf[10:12], s.Reserved0)
	le.PutUint16(buf[12:14], s.FileCount)
	le.PutUint16(buf[14:16], s.FileCapacity)
	le.PutUint16(buf[16:18], s.FileEntrySize)
	le.PutUint16(buf[18:20], s.Reserved1)
	le.PutUint32(buf[20:24], s.FileTableOffset)
	le.PutUint32(buf[24:28], s.DataStartOffset)
	le.PutUint32(buf[28:32], s.NextFreeOffset)
	le.PutUint32(buf[32:36], s.FreeEntryOffset)
	le.PutUint16(buf[36:38], s.DeletedFiles)
	copy(buf[38:64], s.Reserved2[:])
	return buf
}

// DecodeSuperblock parses a superblock buffer. It does not validate field
// values; see Validate.
func DecodeSuperblock(buf []byte) (Superblock, error) {
	var s Superblock
	if len(buf) != SuperblockSize {
		return s, fmt.Errorf("%w: superblock is %d bytes, want %d", fstype.ErrFormat, len(buf), SuperblockSize)
	}
	le := binary.LittleEndian
	copy(s.Magic[:], buf[0:8])
	s.Version = buf[8]
	s.NoFreeHint = buf[9] != 0
	s.Reserved0 = le.Uint16(buf[10:12])
	s.FileCount = le.Uint16(buf[12:14])
	s.FileCapacity = le.Uint16(buf[14:16])
	s.FileEntrySize = le.Uint16(buf[16:18])
	s.Reserved1 = le.Uint16(buf[18:20])
	s.FileTableOffset = le.Uint32(buf[20:24])
	s.DataStartOffset = le.Uint32(buf[24:28])
	s.NextFreeOffset = le.Uint32(buf[28:32])
	s.FreeEntryOffset = le.Uint32(buf[32:36])
	s.DeletedFiles = le.Uint16(buf[36:38])
	copy(s.Reserved2[:], buf[38:64])
	return s, nil
}

// Validate checks that the superblock describes a usable container.
func (s *Superblock) Validate() error {
	switch {
	case s.Magic != Magic:
		return fmt.Errorf("%w: bad magic %q", fstype.ErrFormat, s.Magic[:])
	case s.Version != Version:
		return fmt.Errorf("%w: unsupported version %d", fstype.ErrFormat, s.Version)
	case s.FileEntrySize != EntrySize:
		return fmt.Errorf("%w: entry size %d, want %d", fstype.ErrFormat, s.FileEntrySize, EntrySize)
	case s.FileCapacity == 0:
		return fmt.Errorf("%w: zero capacity", fstype.ErrFormat)
	case s.FileTableOffset < SuperblockSize:
		return fmt.Errorf("%w: table offset %d overlaps superblock", fstype.ErrFormat, s.FileTableOffset)
	case uint64(s.DataStartOffset) != s.TableEnd():
		return fmt.Errorf("%w: data start %d does not follow table end %d", fstype.ErrFormat, s.DataStartOffset, s.TableEnd())
	case s.NextFreeOffset < s.DataStartOffset:
		return fmt.Errorf("%w: next free offset %d before data start %d", fstype.ErrFormat, s.NextFreeOffset, s.DataStartOffset)
	case int(s.FileCount)+int(s.DeletedFiles) > int(s.FileCapacity):
		return fmt.Errorf("%w: %d live + %d deleted exceeds capacity %d", fstype.ErrFormat, s.FileCount, s.DeletedFiles, s.FileCapacity)
	}
	return nil
}

// TableEnd returns the byte offset just past the last entry slot.
func (s *Superblock) TableEnd() uint64 {
	return uint64(s.FileTableOffset) + uint64(s.FileCapacity)*uint64(s.FileEntrySize)
}

// SlotOffset returns the byte offset of slot i.
func (s *Superblock) SlotOffset(i int) int64 {
	return int64(s.FileTableOffset) + int64(i)*int64(s.FileEntrySize)
}

// HintSlot returns the slot named by the free-entry hint, or -1 if no hint
// is set or the offset does not land on a slot boundary.
func (s *Superblock) HintSlot() int {
	if s.NoFreeHint {
		return -1
	}
	off := int64(s.FreeEntryOffset) - int64(s.FileTableOffset)
	if off < 0 || off%int64(s.FileEntrySize) != 0 {
		return -1
	}
	slot := int(off / int64(s.FileEntrySize))
	if slot >= int(s.FileCapacity) {
		return -1
	}
	return slot
}

// SetHint points the free-entry hint at slot, or clears it when slot < 0.
func (s *Superblock) SetHint(slot int) {
	if slot < 0 {
		s.NoFreeHint = true
		s.FreeEntryOffset = 0
		return
	}
	s.NoFreeHint = false
	s.FreeEntryOffset = uint32(s.SlotOffset(slot)) //nolint:gosec // table fits below SizeLimit
}

// Entry is one slot of the entry table.
type Entry struct {
	Name       [NameSize]byte
	DataOffset uint32
	DataLength uint32
	TypeTag    uint8
	Flag       uint8
	Reserved0  uint16
	CreatedAt  uint64
	Reserved1  [12]byte
}

// NewEntry returns a live entry record. name must already be normalized.
func NewEntry(name string, offset, length uint32, created time.Time) Entry {
	e := Entry{
		DataOffset: offset,
		DataLength: length,
		Flag:       FlagLive,
		CreatedAt:  uint64(max(created.Unix(), 0)), //nolint:gosec // clamped to non-negative
	}
	copy(e.Name[:MaxNameLen], name)
	return e
}

// Encode writes the entry into an EntrySize buffer.
func (e *Entry) Encode() []byte {
	buf := make([]byte, EntrySize)
	le := binary.LittleEndian
	copy(buf[0:32], e.Name[:])
	le.PutUint32(buf[32:36], e.DataOffset)
	le.PutUint32(buf[36:40], e.DataLength)
	buf[40] = e.TypeTag
	buf[41] = e.Flag
	le.PutUint16(buf[42:44], e.Reserved0)
	le.PutUint64(buf[44:52], e.CreatedAt)
	copy(buf[52:64], e.Reserved1[:])
	return buf
}

// DecodeEntry parses an entry record buffer.
func DecodeEntry(buf []byte) (Entry, error) {
	var e Entry
	if len(buf) != EntrySize {
		return e, fmt.Errorf("%w: entry is %d bytes, want %d", fstype.ErrFormat, len(buf), EntrySize)
	}
	le := binary.LittleEndian
	copy(e.Name[:], buf[0:32])
	e.DataOffset = le.Uint32(buf[32:36])
	e.DataLength = le.Uint32(buf[36:40])
	e.TypeTag = buf[40]
	e.Flag = buf[41]
	e.Reserved0 = le.Uint16(buf[42:44])
	e.CreatedAt = le.Uint64(buf[44:52])
	copy(e.Reserved1[:], buf[52:64])
	return e, nil
}

// NameString returns the name up to the first NUL byte.
func (e *Entry) NameString() string {
	n := bytes.IndexByte(e.Name[:], 0)
	if n < 0 {
		n = len(e.Name)
	}
	return string(e.Name[:n])
}

// IsEmpty reports whether the slot was never used.
func (e *Entry) IsEmpty() bool {
	return e.Name == [NameSize]byte{}
}

// IsLive reports whether the slot holds a visible entry.
func (e *Entry) IsLive() bool {
	return !e.IsEmpty() && e.Flag == FlagLive
}

// IsTombstoned reports whether the slot holds a removed entry.
func (e *Entry) IsTombstoned() bool {
	return !e.IsEmpty() && e.Flag != FlagLive
}

// IsReusable reports whether a new entry may be written into the slot.
func (e *Entry) IsReusable() bool {
	return !e.IsLive()
}

// Created returns the creation timestamp.
func (e *Entry) Created() time.Time {
	return time.Unix(int64(e.CreatedAt), 0) //nolint:gosec // timestamps written by NewEntry are non-negative
}

// Align rounds offset up to the next multiple of Alignment.
func Align(offset uint64) uint64 {
	if rem := offset % Alignment; rem != 0 {
		return offset + (Alignment - rem)
	}
	return offset
}
