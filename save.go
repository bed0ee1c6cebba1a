package zvfs

import (
	"fmt"
	"os"
	"path/filepath"

	digest "github.com/opencontainers/go-digest"
)

// ExtractFile writes the payload of name in the container at path to dest.
//
// Uses atomic writes (temp file + rename) so dest is never left partially
// written. If want is non-empty the payload must match that digest or
// nothing is written.
func ExtractFile(path, name, dest string, want digest.Digest, opts ...Option) error {
	data, err := Extract(path, name, opts...)
	if err != nil {
		return err
	}
	if want != "" {
		if err := want.Validate(); err != nil {
			return fmt.Errorf("expected digest: %w", err)
		}
		if got := want.Algorithm().FromBytes(data); got != want {
			return fmt.Errorf("%w: %q is %s, want %s", ErrDigestMismatch, name, got, want)
		}
	}
	if err := writeFileAtomic(dest, data); err != nil {
		return fmt.Errorf("write %s: %w", dest, err)
	}
	return nil
}

// writeFileAtomic writes data to a temp file then renames to target,
// ensuring atomic replacement of the target file.
func writeFileAtomic(target string, data []byte) error {
	dir := filepath.Dir(target)
	tmp, err := os.CreateTemp(dir, ".zvfs-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, target); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}
