// Package retry provides the general-purpose retry, fallback, and graceful
// degradation executors used around every external call.
//
// Do retries classified-retryable failures with exponential backoff and
// jitter, re-returning the last error unmodified:
//
//	resp, err := retry.Do(ctx, retry.DefaultPolicy(), func() (*Response, error) {
//	    return client.Invoke(ctx, req)
//	})
//
// WithFallback converts a failure into a configured value or computed
// alternative, and GracefulDegradation walks an ordered list of alternatives,
// never failing once a fallback value is supplied.
package retry
