package server

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGlobalConnectionLimiter_AcquireRelease(t *testing.T) {
	limiter := NewGlobalConnectionLimiter(3)

	// Acquire 3 slots (at limit)
	assert.True(t, limiter.Acquire())
	assert.True(t, limiter.Acquire())
	assert.True(t, limiter.Acquire())
	assert.Equal(t, int64(3), limiter.Current())

	// 4th acquire should fail
	assert.False(t, limiter.Acquire())
	assert.Equal(t, int64(3), limiter.Current())

	// Release one slot
	limiter.Release()
	assert.Equal(t, int64(2), limiter.Current())

	// Now acquire should succeed
	assert.True(t, limiter.Acquire())
	assert.Equal(t, int64(3), limiter.Current())
}

func TestGlobalConnectionLimiter_Concurrent(t *testing.T) {
	limiter := NewGlobalConnectionLimiter(100)
	var successCount, failCount int64

	// Barrier so all goroutines try to acquire at roughly the same time
	start := make(chan struct{})
	var wg sync.WaitGroup

	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if limiter.Acquire() {
				atomic.AddInt64(&successCount, 1)
			} else {
				atomic.AddInt64(&failCount, 1)
			}
		}()
	}

	close(start)
	wg.Wait()

	assert.Equal(t, int64(100), atomic.LoadInt64(&successCount))
	assert.Equal(t, int64(100), atomic.LoadInt64(&failCount))
	assert.Equal(t, int64(100), limiter.Current())

	for i := 0; i < 100; i++ {
		limiter.Release()
	}
	assert.Equal(t, int64(0), limiter.Current())
}

func TestGlobalConnectionLimiter_ZeroMax(t *testing.T) {
	limiter := NewGlobalConnectionLimiter(0)
	assert.False(t, limiter.Acquire())
}

func TestIPConnectionLimiter_AcquireRelease(t *testing.T) {
	limiter := NewIPConnectionLimiter(2)

	// Acquire 2 slots for IP1
	assert.True(t, limiter.Acquire("192.168.1.1"))
	assert.True(t, limiter.Acquire("192.168.1.1"))
	assert.Equal(t, 2, limiter.Count("192.168.1.1"))

	// 3rd acquire for IP1 should fail
	assert.False(t, limiter.Acquire("192.168.1.1"))

	// Different IP should succeed
	assert.True(t, limiter.Acquire("192.168.1.2"))

	// Release from IP1
	limiter.Release("192.168.1.1")
	assert.Equal(t, 1, limiter.Count("192.168.1.1"))

	// Now IP1 can acquire again
	assert.True(t, limiter.Acquire("192.168.1.1"))
	assert.Equal(t, 2, limiter.Count("192.168.1.1"))
}

func TestIPConnectionLimiter_ReleaseToZeroForgetsIP(t *testing.T) {
	limiter := NewIPConnectionLimiter(5)

	assert.True(t, limiter.Acquire("192.168.1.1"))
	limiter.Release("192.168.1.1")
	assert.Equal(t, 0, limiter.Count("192.168.1.1"))

	// Releasing an unknown IP is a no-op
	limiter.Release("192.168.1.99")
	assert.Equal(t, 0, limiter.Count("192.168.1.99"))
}

func TestIPConnectionLimiter_Concurrent(t *testing.T) {
	limiter := NewIPConnectionLimiter(10)
	var ip1Success, ip1Fail, ip2Success int64

	var wg sync.WaitGroup

	// 20 goroutines try to acquire for IP1 (limit 10)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if limiter.Acquire("192.168.1.1") {
				atomic.AddInt64(&ip1Success, 1)
				time.Sleep(1 * time.Millisecond)
				limiter.Release("192.168.1.1")
			} else {
				atomic.AddInt64(&ip1Fail, 1)
			}
		}()
	}

	// 5 goroutines acquire for IP2 (should all succeed)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if limiter.Acquire("192.168.1.2") {
				atomic.AddInt64(&ip2Success, 1)
				time.Sleep(1 * time.Millisecond)
				limiter.Release("192.168.1.2")
			}
		}()
	}

	wg.Wait()

	assert.Equal(t, int64(10), atomic.LoadInt64(&ip1Success))
	assert.Equal(t, int64(10), atomic.LoadInt64(&ip1Fail))
	assert.Equal(t, int64(5), atomic.LoadInt64(&ip2Success))
}

func TestConnectionRateLimiter_Allow(t *testing.T) {
	// Allow 2 per second, burst of 2
	limiter := NewConnectionRateLimiter(2.0, 2)

	// First 2 should succeed immediately (burst)
	assert.True(t, limiter.Allow("192.168.1.1"))
	assert.True(t, limiter.Allow("192.168.1.1"))

	// 3rd should fail (burst exhausted, no tokens yet)
	assert.False(t, limiter.Allow("192.168.1.1"))

	// Different IP should have its own limiter
	assert.True(t, limiter.Allow("192.168.1.2"))
}

func TestConnectionRateLimiter_TokenRefill(t *testing.T) {
	// Allow 10 per second, burst of 5
	limiter := NewConnectionRateLimiter(10.0, 5)

	for i := 0; i < 5; i++ {
		assert.True(t, limiter.Allow("192.168.1.1"))
	}
	assert.False(t, limiter.Allow("192.168.1.1"))

	// Wait for token refill (100ms = 1 token at 10/sec)
	time.Sleep(100 * time.Millisecond)
	assert.True(t, limiter.Allow("192.168.1.1"))
}

func TestConnectionRateLimiter_Cleanup(t *testing.T) {
	limiter := NewConnectionRateLimiter(10.0, 5)

	limiter.Allow("192.168.1.1")
	limiter.Allow("192.168.1.2")
	limiter.Allow("192.168.1.3")

	limiter.mu.Lock()
	limiter.cleanup()
	limiter.mu.Unlock()

	// Limiters created <10min ago should still exist
	limiter.mu.Lock()
	assert.Len(t, limiter.limiters, 3)
	limiter.mu.Unlock()

	// Manually age one limiter
	limiter.mu.Lock()
	limiter.limiters["192.168.1.1"].lastSeen = time.Now().Add(-11 * time.Minute)
	limiter.cleanup()
	assert.Len(t, limiter.limiters, 2)
	limiter.mu.Unlock()
}

func TestConnectionLimits_Acquire(t *testing.T) {
	limits := NewConnectionLimits(100, 10, 5.0, 5)

	ok, reason := limits.Acquire("192.168.1.1")
	assert.True(t, ok)
	assert.Equal(t, LimitReason(""), reason)

	limits.Release("192.168.1.1")
}

func TestConnectionLimits_GlobalLimitExceeded(t *testing.T) {
	limits := NewConnectionLimits(2, 100, 100.0, 100)

	ok1, _ := limits.Acquire("192.168.1.1")
	ok2, _ := limits.Acquire("192.168.1.2")
	assert.True(t, ok1)
	assert.True(t, ok2)

	ok3, reason := limits.Acquire("192.168.1.3")
	assert.False(t, ok3)
	assert.Equal(t, LimitReasonGlobal, reason)

	limits.Release("192.168.1.1")
	limits.Release("192.168.1.2")
}

func TestConnectionLimits_PerIPLimitExceeded(t *testing.T) {
	limits := NewConnectionLimits(100, 2, 100.0, 100)

	ok1, _ := limits.Acquire("192.168.1.1")
	ok2, _ := limits.Acquire("192.168.1.1")
	assert.True(t, ok1)
	assert.True(t, ok2)

	ok3, reason := limits.Acquire("192.168.1.1")
	assert.False(t, ok3)
	assert.Equal(t, LimitReasonPerIP, reason)

	ok4, _ := limits.Acquire("192.168.1.2")
	assert.True(t, ok4)

	limits.Release("192.168.1.1")
	limits.Release("192.168.1.1")
	limits.Release("192.168.1.2")
}

func TestConnectionLimits_RateLimitExceeded(t *testing.T) {
	limits := NewConnectionLimits(100, 100, 2.0, 2)

	ok1, _ := limits.Acquire("192.168.1.1")
	ok2, _ := limits.Acquire("192.168.1.1")
	assert.True(t, ok1)
	assert.True(t, ok2)

	ok3, reason := limits.Acquire("192.168.1.1")
	assert.False(t, ok3)
	assert.Equal(t, LimitReasonRate, reason)

	limits.Release("192.168.1.1")
	limits.Release("192.168.1.1")
}

func TestConnectionLimits_RollbackOnFailure(t *testing.T) {
	limits := NewConnectionLimits(100, 1, 100.0, 100)

	ok1, _ := limits.Acquire("192.168.1.1")
	assert.True(t, ok1)
	assert.Equal(t, int64(1), limits.global.Current())

	// Second acquire for same IP fails at the per-IP check
	ok2, reason := limits.Acquire("192.168.1.1")
	assert.False(t, ok2)
	assert.Equal(t, LimitReasonPerIP, reason)

	// Global counter must be rolled back
	assert.Equal(t, int64(1), limits.global.Current())

	limits.Release("192.168.1.1")
	assert.Equal(t, int64(0), limits.global.Current())
}

func TestConnectionLimits_Concurrent(t *testing.T) {
	limits := NewConnectionLimits(50, 5, 100.0, 100)

	var wg sync.WaitGroup
	var successCount int64

	// 10 IPs, each trying 10 connections; per-IP cap of 5 allows
	// 50 concurrent holders, which exactly fills the global limit.
	for ip := 1; ip <= 10; ip++ {
		for conn := 0; conn < 10; conn++ {
			wg.Add(1)
			ipAddr := "192.168.1." + string(rune('0'+ip))
			go func(ip string) {
				defer wg.Done()
				if ok, _ := limits.Acquire(ip); ok {
					atomic.AddInt64(&successCount, 1)
					time.Sleep(1 * time.Millisecond)
					limits.Release(ip)
				}
			}(ipAddr)
		}
	}

	wg.Wait()

	assert.Equal(t, int64(50), atomic.LoadInt64(&successCount))
	assert.Equal(t, int64(0), limits.global.Current())
}
