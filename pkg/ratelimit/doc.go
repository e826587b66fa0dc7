// Package ratelimit paces requests to the e621 API.
//
// e621 enforces a hard limit of two requests per second and asks clients to
// stay at one. A single Limiter is shared by every goroutine that talks to
// the API, so concurrent downloads never exceed the configured pace.
//
// Usage:
//
//	limiter := ratelimit.NewTokenBucket(1, 1)
//	if err := limiter.Wait(ctx); err != nil {
//	    return err // context cancelled
//	}
//	// proceed with request
package ratelimit
