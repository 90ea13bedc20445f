// Package cache defines the replacement-policy contract used by stores to
// decide which keys stay resident, plus reference policies.
//
// A [Cache] maps keys to small values (stores use slot indices). It never
// evicts on its own: the owner calls [Cache.TryEvict] with the number of
// entries it is about to insert and receives the victims, so it can write
// them back before reusing their slots.
//
// Reference policies:
//
//   - [NewLRU]: least recently used
//   - [NewLFU]: least frequently used, recency tie-break
//   - [NewFIFO]: insertion order
//   - [NewRandom]: seeded uniform choice
//
// All policies are safe for concurrent use and count hits, misses and
// evictions.
package cache
