package main

import (
	"context"
	"fmt"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/hupe1980/embedstore"
)

type workload struct {
	Ops      int
	Batch    int
	Keys     int64
	PutRatio float64
	Seed     uint64
}

type workloadResult struct {
	Ops     int
	Rows    int
	Elapsed time.Duration
}

// runWorkload issues random batched Puts and Gets. Gets only name keys
// written earlier in the run, so a fresh backend never sees unknown keys.
// check runs after every operation; expect tracks the last written rows.
func runWorkload(ctx context.Context, s *embedstore.DenseStore[int64, float32], w workload, check func(op int) error) (workloadResult, error) {
	dim := s.Config().Dim
	capacity := s.Config().Capacity
	rng := rand.New(rand.NewPCG(w.Seed, w.Seed^0x5851f42d4c957f2d))
	batch := max(1, min(w.Batch, capacity))

	expect := make(map[int64][]float32)
	written := make([]int64, 0)

	var res workloadResult
	start := time.Now()

	for op := range w.Ops {
		n := 1 + rng.IntN(batch)

		if len(written) == 0 || rng.Float64() < w.PutRatio {
			keys := make([]int64, n)
			values := make([]float32, n*dim)
			for i := range keys {
				keys[i] = rng.Int64N(w.Keys)
			}
			for i := range values {
				values[i] = rng.Float32()
			}
			if err := s.Put(ctx, keys, values); err != nil {
				return res, fmt.Errorf("op %d: put: %w", op, err)
			}
			for i, k := range keys {
				if _, ok := expect[k]; !ok {
					written = append(written, k)
				}
				expect[k] = values[i*dim : (i+1)*dim]
			}
		} else {
			keys := make([]int64, n)
			for i := range keys {
				keys[i] = written[rng.IntN(len(written))]
			}
			out := make([]float32, n*dim)
			if err := s.Get(ctx, keys, out); err != nil {
				return res, fmt.Errorf("op %d: get: %w", op, err)
			}
			for i, k := range keys {
				if !slices.Equal(expect[k], out[i*dim:(i+1)*dim]) {
					return res, fmt.Errorf("op %d: key %d: read a stale row", op, k)
				}
			}
		}

		res.Ops++
		res.Rows += n
		if check != nil {
			if err := check(op); err != nil {
				return res, err
			}
		}
	}

	res.Elapsed = time.Since(start)
	return res, nil
}
