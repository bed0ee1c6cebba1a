package zvfs

import (
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"os"
	"path/filepath"

	"github.com/meigma/zvfs/internal/sizing"
)

// fileDevice wraps *os.File to report its size.
// os.File already provides ReadAt, WriteAt and Truncate.
type fileDevice struct {
	*os.File
}

// Size returns the current size of the host file.
func (f fileDevice) Size() (int64, error) {
	info, err := f.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// Interface compliance.
var (
	_ Device    = fileDevice{}
	_ sizer     = fileDevice{}
	_ truncater = fileDevice{}
)

// Create writes a new, empty container at path.
// It returns ErrAlreadyExists if anything exists at path.
func Create(path string, opts ...Option) error {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644) //nolint:gosec // User-provided path is intentional
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%w: %s", ErrAlreadyExists, path)
		}
		return fmt.Errorf("create container: %w", err)
	}
	if err := New(fileDevice{f}, opts...).Format(); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return fmt.Errorf("close container: %w", err)
	}
	return nil
}

// withContainer opens the container at path, runs fn, and closes the file.
func withContainer[T any](path string, write bool, opts []Option, fn func(*Container) (T, error)) (T, error) {
	var zero T
	flag := os.O_RDONLY
	if write {
		flag = os.O_RDWR
	}
	f, err := os.OpenFile(path, flag, 0) //nolint:gosec // User-provided path is intentional
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return zero, fmt.Errorf("%w: container %s", ErrNotFound, path)
		}
		return zero, fmt.Errorf("open container: %w", err)
	}

	v, err := fn(New(fileDevice{f}, opts...))
	closeErr := f.Close()
	if err != nil {
		return zero, err
	}
	if closeErr != nil {
		return zero, fmt.Errorf("close container: %w", closeErr)
	}
	return v, nil
}

// Describe runs Container.Describe on the container at path.
// The summary is returned alongside a consistency error.
func Describe(path string, opts ...Option) (Summary, error) {
	var sum Summary
	_, err := withContainer(path, false, opts, func(c *Container) (struct{}, error) {
		var err error
		sum, err = c.Describe()
		return struct{}{}, err
	})
	return sum, err
}

// List returns an iterator over the live entries of the container at path.
// Each range opens the file, walks the table, and closes it again.
func List(path string, opts ...Option) iter.Seq2[EntryInfo, error] {
	return func(yield func(EntryInfo, error) bool) {
		_, err := withContainer(path, false, opts, func(c *Container) (struct{}, error) {
			for info, err := range c.List() {
				if err != nil {
					return struct{}{}, err
				}
				if !yield(info, nil) {
					return struct{}{}, errStopList
				}
			}
			return struct{}{}, nil
		})
		if err != nil && !errors.Is(err, errStopList) {
			yield(EntryInfo{}, err)
		}
	}
}

// errStopList unwinds withContainer when the consumer stops ranging.
var errStopList = errors.New("zvfs: list stopped")

// Add stores data under name in the container at path.
func Add(path, name string, data []byte, opts ...Option) (EntryInfo, error) {
	return withContainer(path, true, opts, func(c *Container) (EntryInfo, error) {
		return c.Add(name, data)
	})
}

// AddFile stores the host file src in the container at path under the
// file's base name. A missing src returns ErrNotFound.
func AddFile(path, src string, opts ...Option) (EntryInfo, error) {
	data, err := ReadSource(src)
	if err != nil {
		return EntryInfo{}, err
	}
	return Add(path, filepath.Base(src), data, opts...)
}

// ReadSource reads a host file to be added to a container. It returns
// ErrNotFound for a missing file and ErrCapacityExceeded for files that
// could never fit below SizeLimit.
func ReadSource(src string) ([]byte, error) {
	f, err := os.Open(src) //nolint:gosec // User-provided path is intentional
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: source %s", ErrNotFound, src)
		}
		return nil, fmt.Errorf("open source: %w", err)
	}
	defer f.Close()
	data, err := sizing.ReadAllWithLimit(f, SizeLimit, ErrCapacityExceeded)
	if err != nil {
		return nil, fmt.Errorf("read source %s: %w", src, err)
	}
	return data, nil
}

// Extract returns the payload of the live entry name in the container at path.
func Extract(path, name string, opts ...Option) ([]byte, error) {
	return withContainer(path, false, opts, func(c *Container) ([]byte, error) {
		return c.Extract(name)
	})
}

// ReadText returns the payload of name in the container at path as UTF-8 text.
func ReadText(path, name string, opts ...Option) (string, error) {
	return withContainer(path, false, opts, func(c *Container) (string, error) {
		return c.ReadText(name)
	})
}

// Inspect returns metadata and the payload digest of name in the container at path.
func Inspect(path, name string, opts ...Option) (EntryInfo, error) {
	return withContainer(path, false, opts, func(c *Container) (EntryInfo, error) {
		return c.Inspect(name)
	})
}

// Remove tombstones the live entry name in the container at path.
func Remove(path, name string, opts ...Option) error {
	_, err := withContainer(path, true, opts, func(c *Container) (struct{}, error) {
		return struct{}{}, c.Remove(name)
	})
	return err
}

// Compact compacts the container at path and shrinks the host file.
func Compact(path string, opts ...Option) (CompactStats, error) {
	return withContainer(path, true, opts, func(c *Container) (CompactStats, error) {
		return c.Compact()
	})
}
