// Package file implements storage.Backend as an append-only row log.
//
// Each table (embedding key) lives in its own file, emb-<key>.rows. Rows
// are appended as checksummed records, optionally compressed:
//
//	[key uint64][size uint32][crc32c uint32][payload]
//
// The key to offset index is kept in memory and rebuilt by scanning the
// log on Open. A record cut short by a crash is truncated away; a checksum
// mismatch anywhere else fails Open with storage.ErrCorrupt. Compact
// rewrites the log without superseded records.
package file
