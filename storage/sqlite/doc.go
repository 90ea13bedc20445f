// Package sqlite implements storage.Backend on a SQLite database.
//
// All embedding tables share one table, embedding_rows, partitioned by the
// embedding_key column. Values are stored as BLOBs of exactly one row.
package sqlite
