// Package bolt implements storage.Backend on an embedded bbolt database.
//
// Rows live in one bucket per embedding table (emb-<key>), keyed by the
// big-endian row key. A database file can hold many tables.
package bolt
