package handlers

import (
	"testing"
	"time"
)

func TestTokenBucketLimiter(t *testing.T) {
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	limiter := newTokenBucketLimiter(60, 2, func() time.Time { return now })

	if !limiter.Allow("a") || !limiter.Allow("a") {
		t.Fatal("expected burst of two to pass")
	}
	if limiter.Allow("a") {
		t.Fatal("expected third request inside the same second to be limited")
	}
	if !limiter.Allow("b") {
		t.Fatal("expected other clients to have their own bucket")
	}

	now = now.Add(time.Second)
	if !limiter.Allow("a") {
		t.Fatal("expected a token to refill after one second at 60/min")
	}
}

func TestTokenBucketLimiterPrunesIdleClients(t *testing.T) {
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	limiter := newTokenBucketLimiter(10, 1, func() time.Time { return now }).(*tokenBucketLimiter)

	limiter.Allow("idle")
	now = now.Add(2 * limiterIdleTTL)
	limiter.Allow("active")

	limiter.mu.Lock()
	defer limiter.mu.Unlock()
	if _, ok := limiter.buckets["idle"]; ok {
		t.Fatal("expected idle bucket to be pruned")
	}
	if _, ok := limiter.buckets["active"]; !ok {
		t.Fatal("expected active bucket to remain")
	}
}

func TestTokenBucketLimiterDisabled(t *testing.T) {
	if newTokenBucketLimiter(0, 5, nil) != nil {
		t.Fatal("expected nil limiter when disabled")
	}
}
