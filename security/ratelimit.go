package security

import (
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// rateLimiterEntry tracks a limiter and its last access time.
type rateLimiterEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RateLimiter provides per-identifier (normally per client IP) rate limiting
// using a token bucket per identifier. Idle entries are cleaned up in the
// background to bound memory.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rateLimiterEntry

	rate  int
	burst int

	logger          *slog.Logger
	cleanupInterval time.Duration
	idleTTL         time.Duration
	stop            chan struct{}
	stopOnce        sync.Once
}

// NewRateLimiter creates a rate limiter allowing requestsPerSecond with the
// given burst per identifier. Close releases the cleanup goroutine.
func NewRateLimiter(requestsPerSecond, burst int, logger *slog.Logger) *RateLimiter {
	if logger == nil {
		logger = slog.Default()
	}
	rl := &RateLimiter{
		limiters:        make(map[string]*rateLimiterEntry),
		rate:            requestsPerSecond,
		burst:           burst,
		logger:          logger,
		cleanupInterval: 5 * time.Minute,
		idleTTL:         10 * time.Minute,
		stop:            make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

// Allow reports whether a request from the identifier is within the limit.
func (rl *RateLimiter) Allow(identifier string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	entry, ok := rl.limiters[identifier]
	if !ok {
		entry = &rateLimiterEntry{
			limiter: rate.NewLimiter(rate.Limit(rl.rate), rl.burst),
		}
		rl.limiters[identifier] = entry
	}
	entry.lastAccess = time.Now()
	return entry.limiter.Allow()
}

// Size returns the number of tracked identifiers.
func (rl *RateLimiter) Size() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limiters)
}

// Close stops the background cleanup goroutine.
func (rl *RateLimiter) Close() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stop:
			return
		}
	}
}

// cleanup removes entries idle for longer than idleTTL.
func (rl *RateLimiter) cleanup() {
	cutoff := time.Now().Add(-rl.idleTTL)
	rl.mu.Lock()
	removed := 0
	for id, entry := range rl.limiters {
		if entry.lastAccess.Before(cutoff) {
			delete(rl.limiters, id)
			removed++
		}
	}
	rl.mu.Unlock()
	if removed > 0 {
		rl.logger.Debug("rate limiter cleanup", "entries_removed", removed)
	}
}
