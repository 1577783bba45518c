// Package health runs named dependency probes with a fixed timeout and
// aggregates a system-wide status.
//
// Each probe's last result overwrites the previous one; no history is kept.
// Aggregation is pessimistic: one unhealthy check makes the whole system
// unhealthy, one degraded check degrades it.
package health
