// Package sizing provides checked size arithmetic for container offsets.
package sizing

import (
	"io"
	"math"
)

// ToUint32 narrows size to uint32, returning overflowErr if it doesn't fit.
func ToUint32(size uint64, overflowErr error) (uint32, error) {
	if size > math.MaxUint32 {
		return 0, overflowErr
	}
	return uint32(size), nil
}

// AddUint64 adds two uint64 values, returning (result, false) on overflow.
func AddUint64(a, b uint64) (uint64, bool) {
	sum := a + b
	if sum < a {
		return 0, false
	}
	return sum, true
}

// ReadAllWithLimit reads up to maxSize bytes from r.
// Returns overflowErr if more than maxSize bytes are available.
func ReadAllWithLimit(r io.Reader, maxSize uint64, overflowErr error) ([]byte, error) {
	if maxSize > uint64(math.MaxInt64-1) {
		maxSize = uint64(math.MaxInt64 - 1)
	}
	lr := &io.LimitedReader{R: r, N: int64(maxSize) + 1} //nolint:gosec // clamped above
	data, err := io.ReadAll(lr)
	if err != nil {
		return nil, err
	}
	if uint64(len(data)) > maxSize {
		return nil, overflowErr
	}
	return data, nil
}
