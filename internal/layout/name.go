package layout

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/meigma/zvfs/internal/fstype"
)

// NormalizeName converts a user-provided name to the form stored in an entry.
//
// It performs the following transformations:
//   - Rejects empty names and names containing NUL
//   - Truncates to MaxNameLen bytes without splitting a UTF-8 sequence
//
// Lookups and inserts both go through NormalizeName, so a long name always
// resolves to the same truncated slot name.
func NormalizeName(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("%w: empty name", fstype.ErrInvalidName)
	}
	if strings.IndexByte(name, 0) >= 0 {
		return "", fmt.Errorf("%w: name contains NUL", fstype.ErrInvalidName)
	}
	if len(name) <= MaxNameLen {
		return name, nil
	}
	cut := MaxNameLen
	for cut > 0 && !utf8.RuneStart(name[cut]) {
		cut--
	}
	return name[:cut], nil
}
