// Package embedstore provides a tiered store for fixed-width embedding rows.
//
// A store keeps a bounded number of rows resident in a contiguous value
// buffer owned by the caller (for example a parameter array shared with a
// compute runtime) and spills the rest to a persistent backend. Lookups and
// updates are batched:
//
//	cfg := embedstore.Config{EmbeddingKey: 1, Dim: 64, Capacity: 100_000}
//	s := embedstore.NewDenseStore[int64, float32](cfg,
//	    cache.NewLRU[int64, int](cfg.Capacity), backend)
//	buf, _ := buffer.NewHeap(cfg.BufferSize(4))
//	if err := s.Initialize(buf); err != nil { ... }
//	defer s.Finalize()
//
//	err := s.Put(ctx, keys, rows) // len(rows) == len(keys)*cfg.Dim
//	err = s.Get(ctx, keys, out)
//
// # Write-back
//
// Rows written by Put live only in the value buffer until the cache policy
// evicts them. Before an evicted slot is reused its row is written to the
// backend; a failed write puts the victims back and fails the call. Flush
// writes every resident row without evicting anything.
//
// # Collaborators
//
// The cache policy (package cache) decides which rows stay resident. The
// backend (package storage and its sub-packages) persists rows by key.
// Both are supplied by the caller, as are the logger, metrics collector
// and scratch allocator (see Option).
//
// # Concurrency
//
// A DenseStore must not be used from several goroutines at once. Wrap it
// with Synchronized to share one instance.
package embedstore
