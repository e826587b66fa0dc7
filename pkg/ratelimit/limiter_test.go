package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestTokenBucketBurst(t *testing.T) {
	tb := NewTokenBucket(1, 3)

	for i := 0; i < 3; i++ {
		if !tb.Allow() {
			t.Errorf("Expected token %d to be available", i+1)
		}
	}

	if tb.Allow() {
		t.Error("Expected no more tokens to be available")
	}

	if tb.Delay() <= 0 {
		t.Error("Expected a positive delay once the burst is spent")
	}
}

func TestTokenBucketDelayKeepsTokens(t *testing.T) {
	tb := Every(time.Hour)

	for i := 0; i < 5; i++ {
		if d := tb.Delay(); d != 0 {
			t.Fatalf("Expected no delay with a full bucket, got %v", d)
		}
	}
	if !tb.Allow() {
		t.Fatal("Expected Delay to leave the token in the bucket")
	}

	d := tb.Delay()
	if d < 59*time.Minute || d > time.Hour {
		t.Errorf("Expected a delay close to one hour, got %v", d)
	}
	if d2 := tb.Delay(); d2 > d {
		t.Errorf("Expected repeated Delay calls not to grow the wait, got %v after %v", d2, d)
	}
}

func TestUnlimitedDelay(t *testing.T) {
	tb := Unlimited()
	tb.Allow()
	if d := tb.Delay(); d != 0 {
		t.Errorf("Expected no delay, got %v", d)
	}
}

func TestTokenBucketWait(t *testing.T) {
	tb := Every(50 * time.Millisecond)

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := tb.Wait(context.Background()); err != nil {
			t.Fatalf("Wait() error = %v", err)
		}
	}

	// first token is immediate, the next two are paced
	if elapsed := time.Since(start); elapsed < 90*time.Millisecond {
		t.Errorf("Expected pacing of at least 90ms, got %v", elapsed)
	}
}

func TestTokenBucketWaitCancelled(t *testing.T) {
	tb := Every(time.Hour)
	tb.Allow()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := tb.Wait(ctx); err == nil {
		t.Error("Expected Wait to fail on a cancelled context")
	}
}

func TestUnlimited(t *testing.T) {
	tb := Unlimited()
	for i := 0; i < 100; i++ {
		if !tb.Allow() {
			t.Fatal("Unlimited limiter denied a request")
		}
	}
}
