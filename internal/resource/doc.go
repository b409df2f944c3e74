// Package resource bounds the resources a transport may use.
//
// The Controller manages two resource types:
//
//   - Memory: in-flight wire buffers (non-blocking, fail-fast)
//   - IO: outbound bytes per second (token bucket)
//
// # Memory
//
// Memory uses a weighted semaphore for the hard limit and an atomic counter
// for usage:
//
//	rc := resource.NewController(resource.Config{MemoryLimitBytes: 64 << 20})
//	if err := rc.AcquireMemory(n); err != nil {
//	    // ErrMemoryLimitExceeded
//	}
//	defer rc.ReleaseMemory(n)
//
// # IO
//
//	w := resource.NewRateLimitedWriter(ctx, conn, rc)
//
// # Nil Safety
//
// All methods handle a nil Controller gracefully - they become no-ops.
package resource
