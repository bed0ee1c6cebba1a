// Package testutil provides in-memory devices and fixtures for container tests.
package testutil

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"
)

// MemDevice is a growable in-memory device implementing io.ReaderAt and
// io.WriterAt. It records how many writes it has served so tests can assert
// that a failed operation left the container untouched.
type MemDevice struct {
	mu     sync.Mutex
	data   []byte
	writes int
}

// NewMemDevice returns a device holding a copy of data.
func NewMemDevice(data []byte) *MemDevice {
	return &MemDevice{data: bytes.Clone(data)}
}

// ReadAt implements io.ReaderAt semantics over the backing slice.
func (m *MemDevice) ReadAt(p []byte, off int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if off < 0 {
		return 0, errors.New("testutil: negative offset")
	}
	if off >= int64(len(m.data)) {
		return 0, io.EOF
	}
	n := copy(p, m.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// WriteAt implements io.WriterAt, growing the backing slice as needed.
func (m *MemDevice) WriteAt(p []byte, off int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if off < 0 {
		return 0, errors.New("testutil: negative offset")
	}
	end := off + int64(len(p))
	if end > int64(len(m.data)) {
		m.data = append(m.data, make([]byte, end-int64(len(m.data)))...)
	}
	copy(m.data[off:], p)
	m.writes++
	return len(p), nil
}

// Truncate resizes the device.
func (m *MemDevice) Truncate(size int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if size < 0 {
		return fmt.Errorf("testutil: negative size %d", size)
	}
	if size <= int64(len(m.data)) {
		m.data = m.data[:size]
		return nil
	}
	m.data = append(m.data, make([]byte, size-int64(len(m.data)))...)
	return nil
}

// Size returns the current device size.
func (m *MemDevice) Size() (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.data)), nil
}

// Bytes returns a copy of the device contents.
func (m *MemDevice) Bytes() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return bytes.Clone(m.data)
}

// Writes returns the number of WriteAt calls served.
func (m *MemDevice) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

// Poke overwrites bytes at off without counting as a write. Tests use it to
// corrupt a container.
func (m *MemDevice) Poke(off int64, p []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copy(m.data[off:], p)
}

// Payload returns deterministic test content of the given size.
func Payload(seed byte, size int) []byte {
	out := make([]byte, size)
	for i := range out {
		out[i] = seed + byte(i%251)
	}
	return out
}
