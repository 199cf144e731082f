package middleware

import (
	"testing"
	"time"

	"github.com/kevin07696/payment-router/test/mocks"
	"github.com/stretchr/testify/assert"
)

func TestRateLimiter_PerClient(t *testing.T) {
	rl := NewRateLimiter(0.001, 2, mocks.NewMockLogger())
	defer rl.Shutdown()

	assert.True(t, rl.Allow("10.0.0.1:1111"))
	// same client on another connection shares the bucket
	assert.True(t, rl.Allow("10.0.0.1:2222"))
	assert.False(t, rl.Allow("10.0.0.1:3333"))

	assert.True(t, rl.Allow("10.0.0.2:1111"))
}

func TestRateLimiter_EvictsAtCapacity(t *testing.T) {
	rl := NewRateLimiter(1, 1, mocks.NewMockLogger())
	defer rl.Shutdown()
	rl.maxSize = 2

	rl.Allow("10.0.0.1:1")
	time.Sleep(time.Millisecond)
	rl.Allow("10.0.0.2:1")
	rl.Allow("10.0.0.3:1")

	rl.mu.Lock()
	defer rl.mu.Unlock()
	assert.Len(t, rl.limiters, 2)
	assert.NotContains(t, rl.limiters, "10.0.0.1")
}

func TestRateLimiter_CleanupDropsIdle(t *testing.T) {
	rl := NewRateLimiter(1, 1, mocks.NewMockLogger())
	defer rl.Shutdown()

	rl.Allow("10.0.0.1:1")
	rl.mu.Lock()
	rl.limiters["10.0.0.1"].lastAccess = time.Now().Add(-time.Hour)
	rl.mu.Unlock()

	rl.cleanup()
	rl.mu.Lock()
	defer rl.mu.Unlock()
	assert.Empty(t, rl.limiters)
}

func TestClientIP(t *testing.T) {
	assert.Equal(t, "10.0.0.1", clientIP("10.0.0.1:443"))
	assert.Equal(t, "::1", clientIP("[::1]:443"))
	assert.Equal(t, "unix", clientIP("unix"))
}
