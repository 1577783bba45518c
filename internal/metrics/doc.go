// Package metrics provides real-time metrics collection for the generation
// pipeline.
//
// It uses a channel-based event pipeline to asynchronously collect:
//   - Request, cache-hit/miss, and rate-limited counts
//   - Per-backend attempt, success, and failure counts with average latency
//   - Circuit-breaker state per backend
//
// The collector runs in a dedicated goroutine and processes events without
// blocking the request path. Events are emitted with non-blocking semantics
// and dropped if the buffer is full.
//
// Example usage:
//
//	collector := metrics.NewCollector(1000, logger)
//	collector.Start(ctx)
//
//	collector.Emit(metrics.Event{
//	    Type:     metrics.EventBackendCompleted,
//	    Backend:  "ollama",
//	    Duration: 150 * time.Millisecond,
//	    Success:  true,
//	})
//
//	snapshot := collector.Snapshot()
//
// The collector drains pending events on shutdown to prevent data loss.
package metrics
