// Package resource governs resources shared by stores and backends.
//
//   - Memory: scratch buffers used while filling misses and writing back
//     victims are accounted against an optional hard limit
//   - Requests: concurrent backend requests are bounded by a semaphore
//   - IO: write-back and fill bytes pass through a token bucket
//
// All methods are safe for concurrent use, and all of them accept a nil
// *Controller as "no limits".
//
//	rc := resource.NewController(resource.Config{
//	    MemoryLimitBytes:   64 << 20,
//	    IOLimitBytesPerSec: 100 << 20,
//	})
//	if err := rc.AcquireIO(ctx, len(rows)); err != nil {
//	    return err
//	}
package resource
