// Package cache avoids recomputing generations for repeated prompts.
//
// The store is content-addressed: the key is a SHA-256 hash over backend,
// model, and the trimmed, case-folded prompt, so an arbitrary name never
// leaks into the keyspace. Expired entries are purged lazily on lookup and
// proactively by Cleanup. GetOrCompute coalesces concurrent misses for the
// same key into a single computation.
package cache
