package ratelimit

import (
	"context"
	"math"
	"time"

	"golang.org/x/time/rate"
)

// Limiter defines the interface for rate limiting
type Limiter interface {
	// Allow checks if a request is allowed right now without waiting
	Allow() bool
	// Wait blocks until the rate limit allows another request or ctx ends
	Wait(ctx context.Context) error
	// Delay reports how long the next request would have to wait
	Delay() time.Duration
}

// TokenBucket implements Limiter on top of golang.org/x/time/rate
type TokenBucket struct {
	limiter *rate.Limiter
}

// NewTokenBucket creates a limiter allowing requestsPerSecond on average with
// bursts of up to burst requests
func NewTokenBucket(requestsPerSecond float64, burst int) *TokenBucket {
	if burst < 1 {
		burst = 1
	}
	return &TokenBucket{limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), burst)}
}

// Every creates a limiter allowing one request per interval
func Every(interval time.Duration) *TokenBucket {
	return &TokenBucket{limiter: rate.NewLimiter(rate.Every(interval), 1)}
}

// Unlimited creates a limiter that never blocks
func Unlimited() *TokenBucket {
	return &TokenBucket{limiter: rate.NewLimiter(rate.Inf, 1)}
}

// Allow checks if a request can proceed
func (tb *TokenBucket) Allow() bool {
	return tb.limiter.Allow()
}

// Wait blocks until a token is available
func (tb *TokenBucket) Wait(ctx context.Context) error {
	return tb.limiter.Wait(ctx)
}

// Delay reports how long a request made now would wait. It only reads the
// bucket; no token is reserved.
func (tb *TokenBucket) Delay() time.Duration {
	limit := tb.limiter.Limit()
	if limit == rate.Inf {
		return 0
	}
	missing := 1 - tb.limiter.Tokens()
	if missing <= 0 {
		return 0
	}
	if limit <= 0 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(missing / float64(limit) * float64(time.Second))
}
