// Package ratelimit bounds request volume per caller with a sliding window.
//
// Only timestamps within the trailing window count toward the limit. An
// identifier that fills its quota is explicitly blocked until the window
// resets, which avoids a thundering-herd of re-tests the moment the oldest
// timestamp ages out.
//
//	limiter := ratelimit.NewLimiter(ratelimit.Config{Max: 5, Window: time.Minute}, log)
//	if res := limiter.Check(clientIP); !res.Allowed {
//	    // deny until res.ResetTime
//	}
package ratelimit
