// Package retry provides retry loops and backoff strategies for transient
// failures: API calls, media downloads and HLS segments.
//
//	err := retry.Do(func() error {
//		return fetch(ctx)
//	}, &retry.Config{
//		MaxAttempts: 3,
//		Backoff:     retry.NewErrorTypeBackoff(),
//		Context:     ctx,
//		Logger:      log,
//	})
//
// ErrorTypeBackoff waits a fixed 60 seconds after rate limiting and backs off
// exponentially after network and server errors. Auth, parsing and not-found
// errors are never retried by DefaultRetryIf.
package retry
