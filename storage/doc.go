// Package storage defines the persistent tier a store writes evicted rows
// to and fills misses from.
//
// A [Backend] moves fixed-width rows keyed by uint64. Stores widen their
// keys to uint64 (two's complement bit pattern for signed keys) at this
// boundary, so every backend serves every key type.
//
// Implementations in this module:
//
//   - [Memory]: in-process map, for tests and ephemeral tables
//   - storage/file: append-only row log with CRC32C records
//   - storage/bolt: embedded bbolt database
//   - storage/sqlite: SQLite table
//   - storage/blob: one object per row on any blobstore.Store
//   - storage/dynamo: DynamoDB table
//
// Backends may additionally implement [Deleter], [Syncer] and [Counter].
package storage
