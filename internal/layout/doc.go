// Package layout encodes and decodes the on-disk structures of a ZVFS container.
//
// A container is a 64-byte superblock, a fixed-capacity table of 64-byte
// entry records, and a data region. All integers are little-endian and every
// payload starts on a 64-byte boundary.
package layout
