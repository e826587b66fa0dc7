// Package retry provides bounded retries with backoff for transient failures
// talking to the e621 API.
//
// Only typed errors from pkg/errors whose type is retryable (network,
// rate_limit, server_error) are retried by default; a missing pool or a
// rejected API key fails immediately.
//
//	pool, err := retry.DoWithResult(ctx, func(ctx context.Context) (*e621.Pool, error) {
//	    return client.GetPool(ctx, id)
//	}, &retry.Config{MaxAttempts: 3, Backoff: retry.DefaultExponentialBackoff()})
package retry
