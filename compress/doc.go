// Package compress frames value rows for backends that store them as
// opaque bytes.
//
// Frames produced for [LZ4] and [ZSTD] carry an 8-byte header:
//
//	[uncompressed uint32][compressed uint32][payload]
//
// A compressed size of zero marks a payload stored raw because compression
// did not pay off. [None] stores the row bytes unchanged.
package compress
