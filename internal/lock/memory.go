package lock

import (
	"context"
	"sync"
	"time"

	"github.com/kevin07696/payment-router/internal/domain/ports"
)

// MemoryLocker is an in-process lock for single-instance runs and tests
type MemoryLocker struct {
	*scoped
	mem *memoryStore
}

// NewMemoryLocker creates an in-process lock
func NewMemoryLocker(cfg Config, logger ports.Logger) *MemoryLocker {
	mem := &memoryStore{entries: make(map[string]memoryEntry), now: time.Now}
	return &MemoryLocker{
		scoped: &scoped{store: mem, cfg: cfg, logger: logger},
		mem:    mem,
	}
}

// Held reports whether key is currently locked
func (m *MemoryLocker) Held(key string) bool {
	m.mem.mu.Lock()
	defer m.mem.mu.Unlock()
	e, ok := m.mem.entries[key]
	return ok && m.mem.now().Before(e.expires)
}

// TryCount returns how many acquisition attempts were made for key
func (m *MemoryLocker) TryCount(key string) int {
	m.mem.mu.Lock()
	defer m.mem.mu.Unlock()
	return m.mem.tries[key]
}

type memoryEntry struct {
	token   string
	expires time.Time
}

type memoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	tries   map[string]int
	now     func() time.Time
}

func (m *memoryStore) tryAcquire(_ context.Context, key, token string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.tries == nil {
		m.tries = make(map[string]int)
	}
	m.tries[key]++

	now := m.now()
	if e, ok := m.entries[key]; ok && now.Before(e.expires) {
		return false, nil
	}
	m.entries[key] = memoryEntry{token: token, expires: now.Add(ttl)}
	return true, nil
}

func (m *memoryStore) release(_ context.Context, key, token string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok || e.token != token {
		return false, nil
	}
	delete(m.entries, key)
	return true, nil
}
