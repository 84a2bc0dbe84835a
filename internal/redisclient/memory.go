package redisclient

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryEntry struct {
	value     string
	orderID   int64
	expiresAt time.Time
}

// MemoryClient is an in-process stand-in for Client, used when Redis is unavailable and in tests
type MemoryClient struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryClient creates a new in-memory client
func NewMemoryClient() *MemoryClient {
	return &MemoryClient{entries: make(map[string]memoryEntry), now: time.Now}
}

func (m *MemoryClient) live(key string) (memoryEntry, bool) {
	e, ok := m.entries[key]
	if !ok {
		return e, false
	}
	if !e.expiresAt.IsZero() && !m.now().Before(e.expiresAt) {
		delete(m.entries, key)
		return e, false
	}
	return e, true
}

// AcquireLock takes a lock for ttl
func (m *MemoryClient) AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := LockKey(lockKey)
	if _, held := m.live(key); held {
		return "", false, nil
	}
	token := uuid.New().String()
	m.entries[key] = memoryEntry{value: token, expiresAt: m.now().Add(ttl)}
	return token, true, nil
}

// ReleaseLock releases a lock only if token still owns it
func (m *MemoryClient) ReleaseLock(ctx context.Context, lockKey, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := LockKey(lockKey)
	if e, held := m.live(key); held && e.value == token {
		delete(m.entries, key)
	}
	return nil
}

// RememberOrder stores the order created for an idempotency key
func (m *MemoryClient) RememberOrder(ctx context.Context, key string, orderID int64, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[IdempotencyKey(key)] = memoryEntry{orderID: orderID, expiresAt: m.now().Add(ttl)}
	return nil
}

// LookupOrder returns the order remembered for an idempotency key
func (m *MemoryClient) LookupOrder(ctx context.Context, key string) (int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.live(IdempotencyKey(key))
	if !ok {
		return 0, false, nil
	}
	return e.orderID, true, nil
}
