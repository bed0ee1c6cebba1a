// Package zvfs implements a single-file container format that stores a
// bounded number of named byte blobs inside one host file.
//
// A container consists of three regions:
//   - Superblock: a 64-byte header holding every counter and offset
//   - Entry table: a fixed number of 64-byte slots (32 by default)
//   - Data region: payloads, each starting on a 64-byte boundary
//
// Space is handed out by a bump allocator. Removing an entry only tombstones
// its slot; the bytes stay on disk until [Compact] rewrites the live entries
// contiguously.
//
// The path-level functions ([Create], [Add], [AddFile], [Extract],
// [ExtractFile], [Remove], [List], [Describe], [ReadText], [Inspect],
// [Compact]) open the host file, perform one operation, and close it. [Container] runs the same operations against any
// [Device], such as an in-memory buffer.
//
// Access is not synchronized. Callers must ensure a container is used by one
// operation at a time.
package zvfs
