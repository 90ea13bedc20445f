package embedstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/google/uuid"

	"github.com/hupe1980/embedstore/buffer"
	"github.com/hupe1980/embedstore/cache"
	"github.com/hupe1980/embedstore/internal/mem"
	"github.com/hupe1980/embedstore/storage"
)

var _ Store[int64, float32] = (*DenseStore[int64, float32])(nil)

// DenseStore keeps resident rows in one contiguous value buffer indexed by
// slot. The cache maps keys to slots; free slots live in a pool.
//
// Evicted rows are written to the backend before their slots are reused.
// If that write fails the victims are put back into the cache and the call
// fails without touching any slot.
//
// Within one batch Put is last-wins for duplicate keys and Get returns the
// same row for every occurrence of a key.
//
// DenseStore is not safe for concurrent use; see Synchronized.
type DenseStore[K Key, V Element] struct {
	id      uuid.UUID
	cfg     Config
	cache   cache.Cache[K, int]
	backend storage.Backend
	opts    options
	logger  *Logger

	live    bool
	rows    []V
	slots   *slotPool
	victims []cache.Entry[K, int]

	hits      int64
	misses    int64
	evictions int64
	reads     int64
	writes    int64
}

// NewDenseStore creates a store over c and backend. Nothing is validated
// until Initialize.
func NewDenseStore[K Key, V Element](cfg Config, c cache.Cache[K, int], backend storage.Backend, optFns ...Option) *DenseStore[K, V] {
	cfg.ApplyDefaults()
	opts := applyOptions(optFns)
	id := uuid.New()

	return &DenseStore[K, V]{
		id:      id,
		cfg:     cfg,
		cache:   c,
		backend: backend,
		opts:    opts,
		logger:  opts.logger.With("store_id", id.String(), "embedding_key", cfg.EmbeddingKey),
	}
}

// ID identifies this store instance in logs.
func (s *DenseStore[K, V]) ID() uuid.UUID { return s.id }

// Config implements Store.
func (s *DenseStore[K, V]) Config() Config { return s.cfg }

// Initialize implements Store.
func (s *DenseStore[K, V]) Initialize(buf buffer.Buffer) (err error) {
	defer func() { s.logger.LogInitialize(context.Background(), s.cfg, err) }()

	if s.live {
		return ErrAlreadyInitialized
	}
	if err := s.validate(buf); err != nil {
		return err
	}

	s.rows = asElems[V](buf.Bytes())
	s.slots = newSlotPool(s.cfg.Capacity)
	s.live = true
	return nil
}

func (s *DenseStore[K, V]) validate(buf buffer.Buffer) error {
	if err := s.cfg.Validate(); err != nil {
		return err
	}
	if !compatible[V](s.cfg.DType) {
		return &ConfigError{Field: "dtype", Value: s.cfg.DType, Reason: fmt.Sprintf("store elements are %s", DTypeOf[V]())}
	}
	if s.cache == nil {
		return &ConfigError{Field: "cache", Value: nil, Reason: "required"}
	}
	if s.backend == nil {
		return &ConfigError{Field: "backend", Value: nil, Reason: "required"}
	}
	if got := s.cache.Capacity(); got != s.cfg.Capacity {
		return &ConfigError{Field: "cache capacity", Value: got, Reason: fmt.Sprintf("must equal store capacity %d", s.cfg.Capacity)}
	}
	if n := s.cache.Len(); n != 0 {
		return &ConfigError{Field: "cache", Value: n, Reason: "must be empty"}
	}
	if buf == nil {
		return &ConfigError{Field: "buffer", Value: nil, Reason: "required"}
	}

	b := buf.Bytes()
	if want := s.cfg.BufferSize(elemSize[V]()); len(b) != want {
		return &ConfigError{Field: "buffer size", Value: len(b), Reason: fmt.Sprintf("want %d bytes", want)}
	}
	if !mem.IsAligned(b, elemAlign[V]()) {
		return &ConfigError{Field: "buffer alignment", Value: fmt.Sprintf("%p", b), Reason: fmt.Sprintf("not aligned to %d bytes", elemAlign[V]())}
	}
	return nil
}

// Finalize implements Store. It writes every resident row back, then
// removes the keys from the cache so the store can be initialized again.
// If the write-back fails the store stays initialized and Finalize may be
// retried.
func (s *DenseStore[K, V]) Finalize() error {
	if !s.live {
		return nil
	}

	ctx := context.Background()
	entries := s.resident()
	if _, err := s.writeResident(ctx, entries); err != nil {
		s.logger.ErrorContext(ctx, "finalize write-back failed", "rows", len(entries), "error", err)
		return err
	}

	for _, e := range entries {
		s.cache.Remove(e.Key)
	}

	s.rows = nil
	s.slots = nil
	s.victims = nil
	s.live = false
	s.logger.Info("store finalized", "written", len(entries))
	return nil
}

// Get implements Store.
func (s *DenseStore[K, V]) Get(ctx context.Context, keys []K, values []V) (err error) {
	if err := s.checkBatch(keys, values); err != nil {
		return err
	}
	if len(keys) == 0 {
		s.opts.metricsCollector.RecordGet(0, 0, 0, nil)
		return nil
	}

	start := time.Now()
	misses := 0
	defer func() {
		s.opts.metricsCollector.RecordGet(len(keys), misses, time.Since(start), err)
		s.logger.LogGet(ctx, len(keys), misses, err)
	}()

	slots, missOffsets := s.queryCache(keys)
	for i, slot := range slots {
		if slot < 0 {
			continue
		}
		if err := s.copyRow(s.batchRow(values, i), s.row(slot), slot, i); err != nil {
			return err
		}
	}
	if len(missOffsets) == 0 {
		return nil
	}

	uniq, groups := groupMisses(keys, missOffsets)
	misses = len(uniq)
	if misses > s.cfg.Capacity {
		return &SpaceError{Need: misses, Free: s.slots.len()}
	}
	if err := s.reserve(ctx, misses); err != nil {
		return err
	}
	return s.fill(ctx, uniq, groups, values)
}

// fill reads miss rows from the backend, places them in free slots and
// copies them to every batch position of their key.
func (s *DenseStore[K, V]) fill(ctx context.Context, uniq []K, groups [][]int, values []V) error {
	rb := s.rowBytes()
	scratch, err := s.opts.allocator.Alloc(ctx, len(uniq)*rb)
	if err != nil {
		return err
	}
	defer s.opts.allocator.Free(scratch)

	if err := s.backend.Read(ctx, widen(uniq), scratch); err != nil {
		return &BackendError{Op: "read", Keys: len(uniq), cause: err}
	}
	s.reads += int64(len(uniq))

	got, ok := s.slots.take(len(uniq))
	if !ok {
		return &SpaceError{Need: len(uniq), Free: s.slots.len()}
	}

	for j, k := range uniq {
		slot := got[j]
		if n := copy(asBytes(s.row(slot)), scratch[j*rb:(j+1)*rb]); n != rb {
			cerr := &CopyError{Slot: slot, Offset: groups[j][0], Copied: n / elemSize[V](), Want: s.cfg.Dim}
			return errors.Join(cerr, s.release(got[j:]))
		}
		s.cache.Put(k, slot)

		for _, off := range groups[j] {
			if err := s.copyRow(s.batchRow(values, off), s.row(slot), slot, off); err != nil {
				return errors.Join(err, s.release(got[j+1:]))
			}
		}
	}
	return nil
}

// Put implements Store.
func (s *DenseStore[K, V]) Put(ctx context.Context, keys []K, values []V) (err error) {
	if err := s.checkBatch(keys, values); err != nil {
		return err
	}
	if len(keys) == 0 {
		s.opts.metricsCollector.RecordPut(0, 0, 0, nil)
		return nil
	}

	start := time.Now()
	misses := 0
	defer func() {
		s.opts.metricsCollector.RecordPut(len(keys), misses, time.Since(start), err)
		s.logger.LogPut(ctx, len(keys), misses, err)
	}()

	slots, missOffsets := s.queryCache(keys)
	uniq, groups := groupMisses(keys, missOffsets)
	misses = len(uniq)
	if misses > s.cfg.Capacity {
		return &SpaceError{Need: misses, Free: s.slots.len()}
	}

	// Hits are written first so an eviction in reserve flushes the new row.
	for i, slot := range slots {
		if slot < 0 {
			continue
		}
		if err := s.copyRow(s.row(slot), s.batchRow(values, i), slot, i); err != nil {
			return err
		}
	}
	if misses == 0 {
		return nil
	}

	if err := s.reserve(ctx, misses); err != nil {
		return err
	}

	got, ok := s.slots.take(misses)
	if !ok {
		return &SpaceError{Need: misses, Free: s.slots.len()}
	}
	for j, k := range uniq {
		last := groups[j][len(groups[j])-1]
		if err := s.copyRow(s.row(got[j]), s.batchRow(values, last), got[j], last); err != nil {
			return errors.Join(err, s.release(got[j:]))
		}
		s.cache.Put(k, got[j])
	}
	return nil
}

// release returns unused slots taken for a failed fill.
func (s *DenseStore[K, V]) release(slots []int) error {
	if err := s.slots.put(slots...); err != nil {
		return fmt.Errorf("%w: releasing slots: %w", ErrInvariant, err)
	}
	return nil
}

// reserve makes n slots free, writing evicted rows back first.
func (s *DenseStore[K, V]) reserve(ctx context.Context, n int) error {
	if n <= s.slots.len() {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	start := time.Now()
	victims, ok := s.cache.TryEvict(n, s.victims[:0])
	defer func() { s.victims = victims[:0] }()

	if len(victims) > 0 {
		if err := s.writeBack(ctx, victims); err != nil {
			for _, v := range victims {
				s.cache.Put(v.Key, v.Value)
			}
			s.opts.metricsCollector.RecordEviction(len(victims), time.Since(start), err)
			s.logger.LogEviction(ctx, n, len(victims), err)
			return err
		}

		freed := make([]int, len(victims))
		for i, v := range victims {
			freed[i] = v.Value
		}
		if err := s.slots.put(freed...); err != nil {
			return fmt.Errorf("%w: cache evicted %w", ErrInvariant, err)
		}

		s.evictions += int64(len(victims))
		s.opts.metricsCollector.RecordEviction(len(victims), time.Since(start), nil)
		s.logger.LogEviction(ctx, n, len(victims), nil)
	}

	if free := s.slots.len(); !ok || free < n {
		s.logger.ErrorContext(ctx, "cache policy under-delivered",
			"need", n,
			"free", free,
			"evicted", len(victims),
		)
		return &SpaceError{Need: n, Free: free}
	}
	return nil
}

// writeBack writes the current rows of entries to the backend.
func (s *DenseStore[K, V]) writeBack(ctx context.Context, entries []cache.Entry[K, int]) error {
	rb := s.rowBytes()
	scratch, err := s.opts.allocator.Alloc(ctx, len(entries)*rb)
	if err != nil {
		return err
	}
	defer s.opts.allocator.Free(scratch)

	keys := make([]uint64, len(entries))
	for i, e := range entries {
		if e.Value < 0 || e.Value >= s.cfg.Capacity {
			return fmt.Errorf("%w: key %v maps to slot %d", ErrInvariant, e.Key, e.Value)
		}
		keys[i] = uint64(e.Key)
		copy(scratch[i*rb:(i+1)*rb], asBytes(s.row(e.Value)))
	}

	if err := s.backend.Write(ctx, keys, scratch); err != nil {
		return &BackendError{Op: "write", Keys: len(keys), cause: err}
	}
	s.writes += int64(len(keys))
	return nil
}

// Flush implements Store. Rows are written in chunks of FlushBatchSize and
// the backend is synced if it buffers writes.
func (s *DenseStore[K, V]) Flush(ctx context.Context) (err error) {
	if !s.live {
		return ErrNotInitialized
	}

	start := time.Now()
	rows := 0
	defer func() {
		s.opts.metricsCollector.RecordFlush(rows, time.Since(start), err)
		s.logger.LogFlush(ctx, rows, err)
	}()

	rows, err = s.writeResident(ctx, s.resident())
	return err
}

// resident snapshots the cache entries.
func (s *DenseStore[K, V]) resident() []cache.Entry[K, int] {
	entries := make([]cache.Entry[K, int], 0, s.cache.Len())
	s.cache.Range(func(k K, slot int) bool {
		entries = append(entries, cache.Entry[K, int]{Key: k, Value: slot})
		return true
	})
	return entries
}

// writeResident writes entries in chunks of FlushBatchSize and syncs the
// backend if it buffers writes. It returns the number of rows written.
func (s *DenseStore[K, V]) writeResident(ctx context.Context, entries []cache.Entry[K, int]) (int, error) {
	batch := s.cfg.FlushBatchSize
	if batch <= 0 {
		batch = DefaultFlushBatchSize
	}

	rows := 0
	for i := 0; i < len(entries); i += batch {
		chunk := entries[i:min(i+batch, len(entries))]
		if err := s.writeBack(ctx, chunk); err != nil {
			return rows, err
		}
		rows += len(chunk)
	}

	if syncer, ok := s.backend.(storage.Syncer); ok {
		if err := syncer.Sync(ctx); err != nil {
			return rows, &BackendError{Op: "sync", Keys: rows, cause: err}
		}
	}
	return rows, nil
}

// Stats implements Store.
func (s *DenseStore[K, V]) Stats() Stats {
	st := Stats{
		Capacity:      s.cfg.Capacity,
		Hits:          s.hits,
		Misses:        s.misses,
		Evictions:     s.evictions,
		BackendReads:  s.reads,
		BackendWrites: s.writes,
	}
	if s.live {
		st.Occupied = s.cache.Len()
		st.Free = s.slots.len()
	}
	return st
}

// CheckInvariants verifies that every resident key owns a distinct occupied
// slot and that occupied and free slots partition [0, Capacity).
func (s *DenseStore[K, V]) CheckInvariants() error {
	if !s.live {
		return ErrNotInitialized
	}

	occupied := roaring.New()
	var err error
	s.cache.Range(func(k K, slot int) bool {
		switch {
		case slot < 0 || slot >= s.cfg.Capacity:
			err = fmt.Errorf("%w: key %v maps to slot %d outside [0, %d)", ErrInvariant, k, slot, s.cfg.Capacity)
		case s.slots.contains(slot):
			err = fmt.Errorf("%w: key %v maps to free slot %d", ErrInvariant, k, slot)
		case !occupied.CheckedAdd(uint32(slot)):
			err = fmt.Errorf("%w: slot %d mapped by more than one key", ErrInvariant, slot)
		}
		return err == nil
	})
	if err != nil {
		return err
	}

	free := s.slots.bitmap()
	if int(free.GetCardinality()) != s.slots.len() {
		return fmt.Errorf("%w: free pool holds duplicates", ErrInvariant)
	}
	if n := s.cache.Len(); n != int(occupied.GetCardinality()) {
		return fmt.Errorf("%w: cache holds %d keys for %d slots", ErrInvariant, n, occupied.GetCardinality())
	}
	if all := roaring.Or(occupied, free); int(all.GetCardinality()) != s.cfg.Capacity {
		return fmt.Errorf("%w: %d occupied + %d free slots, capacity %d", ErrInvariant, occupied.GetCardinality(), free.GetCardinality(), s.cfg.Capacity)
	}
	return nil
}

// queryCache resolves every key to its slot, -1 for misses, and returns the
// batch offsets of the misses.
func (s *DenseStore[K, V]) queryCache(keys []K) ([]int, []int) {
	slots := make([]int, len(keys))
	var missOffsets []int
	for i, k := range keys {
		if s.cache.Exists(k) {
			if slot, ok := s.cache.Get(k); ok {
				slots[i] = slot
				s.hits++
				continue
			}
		}
		slots[i] = -1
		missOffsets = append(missOffsets, i)
		s.misses++
	}
	return slots, missOffsets
}

// groupMisses deduplicates miss keys in first-occurrence order and returns
// every batch offset of each key.
func groupMisses[K Key](keys []K, missOffsets []int) ([]K, [][]int) {
	if len(missOffsets) == 0 {
		return nil, nil
	}
	index := make(map[K]int, len(missOffsets))
	uniq := make([]K, 0, len(missOffsets))
	groups := make([][]int, 0, len(missOffsets))
	for _, off := range missOffsets {
		k := keys[off]
		j, ok := index[k]
		if !ok {
			j = len(uniq)
			index[k] = j
			uniq = append(uniq, k)
			groups = append(groups, nil)
		}
		groups[j] = append(groups[j], off)
	}
	return uniq, groups
}

func widen[K Key](keys []K) []uint64 {
	out := make([]uint64, len(keys))
	for i, k := range keys {
		out[i] = uint64(k)
	}
	return out
}

func (s *DenseStore[K, V]) checkBatch(keys []K, values []V) error {
	if !s.live {
		return ErrNotInitialized
	}
	if want := len(keys) * s.cfg.Dim; len(values) != want {
		return fmt.Errorf("%w: %d keys need %d values, got %d", ErrInvalidArgument, len(keys), want, len(values))
	}
	return nil
}

func (s *DenseStore[K, V]) rowBytes() int { return s.cfg.Dim * elemSize[V]() }

func (s *DenseStore[K, V]) row(slot int) []V {
	d := s.cfg.Dim
	return s.rows[slot*d : (slot+1)*d : (slot+1)*d]
}

func (s *DenseStore[K, V]) batchRow(values []V, i int) []V {
	d := s.cfg.Dim
	return values[i*d : (i+1)*d : (i+1)*d]
}

func (s *DenseStore[K, V]) copyRow(dst, src []V, slot, offset int) error {
	if n := copy(dst, src); n != s.cfg.Dim {
		return &CopyError{Slot: slot, Offset: offset, Copied: n, Want: s.cfg.Dim}
	}
	return nil
}
