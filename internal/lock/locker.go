// Package lock serialises mutations to a single payment across router instances.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kevin07696/payment-router/internal/domain"
	"github.com/kevin07696/payment-router/internal/domain/ports"
	"github.com/kevin07696/payment-router/pkg/observability"
	"github.com/kevin07696/payment-router/pkg/resilience"
)

// Config bounds lock lifetime and acquisition retries
type Config struct {
	// Expiry is the lock TTL. It must exceed the longest flow run under the lock.
	Expiry time.Duration
	// Delay is the fixed wait between acquisition attempts
	Delay time.Duration
}

// DefaultConfig returns the production lock settings
func DefaultConfig() Config {
	return Config{
		Expiry: 30 * time.Second,
		Delay:  50 * time.Millisecond,
	}
}

// Attempts is expiry/delay with a floor of one
func (c Config) Attempts() int {
	if c.Delay <= 0 {
		return 1
	}
	n := int(c.Expiry / c.Delay)
	if n < 1 {
		return 1
	}
	return n
}

// Validate checks the configuration
func (c Config) Validate() error {
	if c.Expiry <= 0 {
		return fmt.Errorf("lock expiry must be positive, got %s", c.Expiry)
	}
	if c.Delay < 0 {
		return fmt.Errorf("lock delay must not be negative, got %s", c.Delay)
	}
	return nil
}

// PaymentKey is the lock key guarding one payment
func PaymentKey(merchantID, paymentID string) string {
	return fmt.Sprintf("lock:payment:%s:%s", merchantID, paymentID)
}

// Locker runs fn while holding the named lock
type Locker interface {
	WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

// store is the atomic primitive a backend provides
type store interface {
	tryAcquire(ctx context.Context, key, token string, ttl time.Duration) (bool, error)
	release(ctx context.Context, key, token string) (bool, error)
}

// Handle is a held lock. It is owned by the invocation that acquired it.
type Handle struct {
	key   string
	token string
	store store
}

// Key returns the locked key
func (h *Handle) Key() string { return h.key }

// Release deletes the lock if this handle still owns it
func (h *Handle) Release(ctx context.Context) error {
	released, err := h.store.release(ctx, h.key, h.token)
	if err != nil {
		return domain.WrapError(domain.ErrorCodeLockReleaseFailed, "release lock "+h.key, err)
	}
	if !released {
		return domain.NewDomainError(domain.ErrorCodeLockReleaseFailed,
			"lock "+h.key+" expired before release")
	}
	return nil
}

var errNotAcquired = errors.New("lock held by another owner")

// scoped implements acquire-with-retry and WithLock over any store
type scoped struct {
	store  store
	cfg    Config
	logger ports.Logger
}

// Acquire takes the lock, retrying with a fixed delay up to Config.Attempts times
func (s *scoped) Acquire(ctx context.Context, key string) (*Handle, error) {
	token := uuid.NewString()
	start := time.Now()

	err := resilience.Retry(ctx, s.cfg.Attempts(), &resilience.FixedBackoff{Delay: s.cfg.Delay},
		func(err error) bool { return errors.Is(err, errNotAcquired) },
		func(ctx context.Context) error {
			ok, err := s.store.tryAcquire(ctx, key, token, s.cfg.Expiry)
			if err != nil {
				return err
			}
			if !ok {
				return errNotAcquired
			}
			return nil
		})

	wait := time.Since(start)
	switch {
	case err == nil:
		observability.RecordLockAcquire("acquired", wait)
		return &Handle{key: key, token: token, store: s.store}, nil
	case errors.Is(err, errNotAcquired):
		observability.RecordLockAcquire("busy", wait)
		return nil, domain.NewDomainError(domain.ErrorCodeLockBusy, "lock "+key+" is busy").
			WithDetail("attempts", s.cfg.Attempts())
	default:
		observability.RecordLockAcquire("error", wait)
		return nil, domain.WrapError(domain.ErrorCodeLockBusy, "acquire lock "+key, err)
	}
}

// WithLock acquires key, runs fn and always releases, even when ctx is
// cancelled or fn panics. A failed release is logged; fn's result stands.
func (s *scoped) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	h, err := s.Acquire(ctx, key)
	if err != nil {
		return err
	}
	defer func() {
		if relErr := h.Release(context.WithoutCancel(ctx)); relErr != nil {
			s.logger.Warn("Failed to release lock",
				ports.String("key", key),
				ports.Err(relErr),
			)
		}
	}()

	return fn(ctx)
}
