// Package circuitbreaker implements the circuit breaker pattern for the
// generative-model backends and any other external dependency.
//
// A circuit breaker stops calling a failing dependency for a cooldown period
// to avoid pile-up. It has three states:
//
//   - CLOSED: normal operation, calls pass through
//   - OPEN: dependency failing, calls rejected fast
//   - HALF_OPEN: probing whether the dependency recovered
//
// Usage:
//
//	registry := circuitbreaker.NewRegistry(circuitbreaker.DefaultConfig(), nil)
//	cb := registry.GetBreaker("ollama")
//	err := cb.Execute(func() error {
//	    return callBackend()
//	})
//
// Execute fails with *aierrors.CircuitOpenError while the circuit is open.
package circuitbreaker
