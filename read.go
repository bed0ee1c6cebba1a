package zvfs

import (
	_ "crypto/sha256" // registers sha256 for go-digest
	"fmt"
	"unicode/utf8"

	digest "github.com/opencontainers/go-digest"

	"github.com/meigma/zvfs/internal/layout"
	"github.com/meigma/zvfs/internal/table"
)

// lookup normalizes name and returns its live slot with the superblock it
// was found under.
func (c *Container) lookup(name string) (*layout.Superblock, table.Slot, error) {
	name, err := layout.NormalizeName(name)
	if err != nil {
		return nil, table.Slot{}, err
	}
	sb, tbl, err := c.open()
	if err != nil {
		return nil, table.Slot{}, err
	}
	s, err := tbl.FindByName(name)
	if err != nil {
		return nil, table.Slot{}, err
	}
	return sb, s, nil
}

// Extract returns the payload of the live entry called name.
//
// Tombstoned entries are skipped during the lookup; if no live entry
// matches, Extract returns ErrNotFound.
func (c *Container) Extract(name string) ([]byte, error) {
	sb, s, err := c.lookup(name)
	if err != nil {
		return nil, err
	}
	return c.readPayload(sb, &s.Entry)
}

// ReadText returns the payload of name decoded as UTF-8 text.
// It returns ErrEncoding if the bytes are not valid UTF-8.
func (c *Container) ReadText(name string) (string, error) {
	data, err := c.Extract(name)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%w: %q", ErrEncoding, name)
	}
	return string(data), nil
}

// Inspect returns the metadata of the live entry called name, including the
// sha256 digest of its payload.
func (c *Container) Inspect(name string) (EntryInfo, error) {
	sb, s, err := c.lookup(name)
	if err != nil {
		return EntryInfo{}, err
	}
	data, err := c.readPayload(sb, &s.Entry)
	if err != nil {
		return EntryInfo{}, err
	}
	info := entryInfo(s)
	info.Digest = digest.FromBytes(data)
	return info, nil
}
