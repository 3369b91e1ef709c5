package security

import (
	"testing"
	"time"
)

func TestRateLimiterAllow(t *testing.T) {
	rl := NewRateLimiter(1, 2, nil)
	defer rl.Close()

	if !rl.Allow("203.0.113.5") {
		t.Error("first request should be allowed")
	}
	if !rl.Allow("203.0.113.5") {
		t.Error("second request should be within burst")
	}
	if rl.Allow("203.0.113.5") {
		t.Error("third immediate request should exceed the burst")
	}

	// Other identifiers have their own bucket.
	if !rl.Allow("203.0.113.9") {
		t.Error("a different identifier should not be limited")
	}
}

func TestRateLimiterSize(t *testing.T) {
	rl := NewRateLimiter(10, 10, nil)
	defer rl.Close()

	rl.Allow("a")
	rl.Allow("b")
	rl.Allow("a")
	if got := rl.Size(); got != 2 {
		t.Errorf("Size() = %d, want 2", got)
	}
}

func TestRateLimiterCleanup(t *testing.T) {
	rl := NewRateLimiter(10, 10, nil)
	defer rl.Close()
	rl.idleTTL = 10 * time.Millisecond

	rl.Allow("stale")
	time.Sleep(20 * time.Millisecond)
	rl.Allow("fresh")
	rl.cleanup()

	if got := rl.Size(); got != 1 {
		t.Errorf("Size() = %d after cleanup, want only the fresh entry", got)
	}
}

func TestRateLimiterCloseIdempotent(t *testing.T) {
	rl := NewRateLimiter(1, 1, nil)
	rl.Close()
	rl.Close()
}
