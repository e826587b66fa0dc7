package retry

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/biscuitvixen/e6-dl/pkg/config"
)

// BackoffStrategy picks the pause after a failed attempt
type BackoffStrategy interface {
	// NextDelay returns the delay to wait after the given failed attempt
	NextDelay(attempt int) time.Duration
}

// ExponentialBackoff grows the pause by Multiplier after every failure,
// up to MaxDelay, and spreads it by up to JitterFactor in either direction
type ExponentialBackoff struct {
	BaseDelay    time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	JitterFactor float64
}

// DefaultExponentialBackoff starts at one second and stops growing at 30
func DefaultExponentialBackoff() *ExponentialBackoff {
	return NewBackoff(config.RetryConfig{BaseDelay: time.Second, MaxDelay: 30 * time.Second})
}

// NewBackoff builds the backoff described by the retry section of the
// configuration: doubling delays with 10% jitter
func NewBackoff(cfg config.RetryConfig) *ExponentialBackoff {
	return &ExponentialBackoff{
		BaseDelay:    cfg.BaseDelay,
		MaxDelay:     cfg.MaxDelay,
		Multiplier:   2.0,
		JitterFactor: 0.1,
	}
}

// NextDelay returns BaseDelay * Multiplier^(attempt-1), capped and jittered
func (eb *ExponentialBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 || eb.BaseDelay <= 0 {
		return 0
	}

	multiplier := eb.Multiplier
	if multiplier < 1 {
		multiplier = 1
	}

	delay := float64(eb.BaseDelay)
	capped := false
	for i := 1; i < attempt && !capped; i++ {
		delay *= multiplier
		if eb.MaxDelay > 0 && delay >= float64(eb.MaxDelay) {
			capped = true
		}
	}
	if eb.MaxDelay > 0 && delay > float64(eb.MaxDelay) {
		delay = float64(eb.MaxDelay)
	}

	if eb.JitterFactor > 0 {
		delay *= 1 + eb.JitterFactor*(2*rand.Float64()-1)
	}
	if delay < 0 {
		return 0
	}
	return time.Duration(delay)
}

// ConstantBackoff waits the same Delay after every failure
type ConstantBackoff struct {
	Delay time.Duration
}

// NextDelay returns Delay for any attempt after the first
func (cb *ConstantBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	return cb.Delay
}

// Wait sleeps for delay or until ctx is done, whichever comes first
func Wait(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
