package lock

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kevin07696/payment-router/internal/domain"
	"github.com/kevin07696/payment-router/test/mocks"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Attempts(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want int
	}{
		{name: "default", cfg: DefaultConfig(), want: 600},
		{name: "exact_division", cfg: Config{Expiry: time.Second, Delay: 100 * time.Millisecond}, want: 10},
		{name: "delay_equals_expiry", cfg: Config{Expiry: time.Second, Delay: time.Second}, want: 1},
		{name: "delay_exceeds_expiry", cfg: Config{Expiry: 10 * time.Millisecond, Delay: time.Second}, want: 1},
		{name: "zero_delay", cfg: Config{Expiry: time.Second}, want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cfg.Attempts())
		})
	}
}

func TestPaymentKey(t *testing.T) {
	assert.Equal(t, "lock:payment:merchant_1:pay_1", PaymentKey("merchant_1", "pay_1"))
}

func TestWithLock_DelayExceedsExpiry_SingleAttempt(t *testing.T) {
	cfg := Config{Expiry: 10 * time.Millisecond, Delay: 500 * time.Millisecond}
	locker := NewMemoryLocker(Config{Expiry: time.Minute, Delay: time.Millisecond}, mocks.NewMockLogger())
	key := PaymentKey("m", "p")

	held := make(chan struct{})
	done := make(chan struct{})
	go func() {
		_ = locker.WithLock(context.Background(), key, func(ctx context.Context) error {
			close(held)
			<-done
			return nil
		})
	}()
	<-held
	defer close(done)

	contender := &MemoryLocker{scoped: &scoped{store: locker.mem, cfg: cfg, logger: mocks.NewMockLogger()}, mem: locker.mem}
	triesBefore := locker.TryCount(key)

	start := time.Now()
	err := contender.WithLock(context.Background(), key, func(ctx context.Context) error {
		t.Fatal("fn must not run while the lock is held")
		return nil
	})
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrLockBusy))
	assert.True(t, domain.IsRetryable(err))
	assert.Equal(t, 1, locker.TryCount(key)-triesBefore, "exactly one acquisition attempt")
	assert.Less(t, elapsed, cfg.Delay, "no sleep after the only attempt")
}

func TestWithLock_RetriesUntilReleased(t *testing.T) {
	locker := NewMemoryLocker(Config{Expiry: time.Second, Delay: 5 * time.Millisecond}, mocks.NewMockLogger())
	key := PaymentKey("m", "p")

	h, err := locker.Acquire(context.Background(), key)
	require.NoError(t, err)

	go func() {
		time.Sleep(30 * time.Millisecond)
		_ = h.Release(context.Background())
	}()

	ran := false
	err = locker.WithLock(context.Background(), key, func(ctx context.Context) error {
		ran = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)
	assert.Greater(t, locker.TryCount(key), 2)
	assert.False(t, locker.Held(key))
}

func TestWithLock_ReleasesOnEveryExit(t *testing.T) {
	key := PaymentKey("m", "p")

	t.Run("fn_error", func(t *testing.T) {
		locker := NewMemoryLocker(DefaultConfig(), mocks.NewMockLogger())
		boom := errors.New("boom")

		err := locker.WithLock(context.Background(), key, func(ctx context.Context) error { return boom })
		assert.ErrorIs(t, err, boom)
		assert.False(t, locker.Held(key))
	})

	t.Run("context_cancelled_inside_fn", func(t *testing.T) {
		locker := NewMemoryLocker(DefaultConfig(), mocks.NewMockLogger())
		ctx, cancel := context.WithCancel(context.Background())

		err := locker.WithLock(ctx, key, func(ctx context.Context) error {
			cancel()
			return ctx.Err()
		})
		assert.ErrorIs(t, err, context.Canceled)
		assert.False(t, locker.Held(key), "release runs with a non-cancellable context")
	})

	t.Run("panic", func(t *testing.T) {
		locker := NewMemoryLocker(DefaultConfig(), mocks.NewMockLogger())

		assert.Panics(t, func() {
			_ = locker.WithLock(context.Background(), key, func(ctx context.Context) error { panic("flow crashed") })
		})
		assert.False(t, locker.Held(key))
	})
}

func TestWithLock_ExpiredLockLogsReleaseFailure(t *testing.T) {
	logger := mocks.NewMockLogger()
	locker := NewMemoryLocker(Config{Expiry: 10 * time.Millisecond, Delay: time.Millisecond}, logger)
	key := PaymentKey("m", "p")

	err := locker.WithLock(context.Background(), key, func(ctx context.Context) error {
		time.Sleep(20 * time.Millisecond)
		// another owner takes the expired lock
		ok, err := locker.mem.tryAcquire(ctx, key, "other-owner", time.Minute)
		require.NoError(t, err)
		require.True(t, ok)
		return nil
	})

	require.NoError(t, err)
	assert.True(t, logger.Logged("Failed to release lock"))
	assert.True(t, locker.Held(key), "the other owner's lock is left intact")
}

func TestWithLock_MutualExclusion(t *testing.T) {
	locker := NewMemoryLocker(Config{Expiry: 5 * time.Second, Delay: time.Millisecond}, mocks.NewMockLogger())
	key := PaymentKey("m", "p")

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := locker.WithLock(context.Background(), key, func(ctx context.Context) error {
				n := atomic.AddInt32(&inside, 1)
				for {
					m := atomic.LoadInt32(&maxInside)
					if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				atomic.AddInt32(&inside, -1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside)
}

func TestRedisLocker(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	opts, err := redis.ParseURL(url)
	require.NoError(t, err)
	client := redis.NewClient(opts)
	defer client.Close()

	locker := NewRedisLocker(client, Config{Expiry: 2 * time.Second, Delay: 10 * time.Millisecond}, mocks.NewMockLogger())
	key := PaymentKey("redis-test", time.Now().Format(time.RFC3339Nano))

	err = locker.WithLock(context.Background(), key, func(ctx context.Context) error {
		val, err := client.Get(ctx, key).Result()
		require.NoError(t, err)
		assert.NotEmpty(t, val)

		single := NewRedisLocker(client, Config{Expiry: time.Second, Delay: 2 * time.Second}, mocks.NewMockLogger())
		err = single.WithLock(ctx, key, func(context.Context) error { return nil })
		assert.True(t, errors.Is(err, domain.ErrLockBusy))
		return nil
	})
	require.NoError(t, err)

	exists, err := client.Exists(context.Background(), key).Result()
	require.NoError(t, err)
	assert.Zero(t, exists)
}
