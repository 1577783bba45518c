// Package aierrors defines the error taxonomy shared by the resilience layer.
//
// Every failure crossing a component boundary carries a Kind so retry,
// fallback, and breaker logic can classify it by pattern match:
//
//	if aierrors.IsRetryable(err) {
//	    // transient: backend fault or timeout
//	}
//	switch aierrors.KindOf(err) {
//	case aierrors.KindRateLimit:
//	    // tell the caller to slow down
//	case aierrors.KindCircuitOpen:
//	    // backend systemically unavailable
//	}
package aierrors
