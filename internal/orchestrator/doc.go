// Package orchestrator selects among candidate generative-model backends,
// invokes the winner behind its circuit breaker and the retry executor, and
// falls back across the remaining candidates on failure.
//
// Candidate order is the explicitly preferred backend first (when supplied
// and healthy), then every other healthy backend by descending score:
//
//	score = priority + successRate*successWeight - normalizedLatencyPenalty
//
// Per-backend metrics update only on completed real calls, with a weighted
// running average so memory stays O(1) per backend. When every candidate
// fails the caller receives an *ExhaustedError naming each backend tried.
package orchestrator
