// Package mocks provides shared test doubles.
package mocks

import (
	"context"
	"sync"
	"time"
)

// MockCache is an in-memory mock implementation of the cache.Cache interface.
// Used for testing without requiring a real Redis instance.
type MockCache struct {
	data map[string]string
	err  error
	mu   sync.RWMutex
}

// NewMockCache creates a new mock cache instance.
func NewMockCache() *MockCache {
	return &MockCache{data: make(map[string]string)}
}

// FailWith makes every subsequent operation return err. Pass nil to heal.
func (m *MockCache) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Get retrieves a value. A missing key returns an empty string, like Redis.
func (m *MockCache) Get(ctx context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return "", m.err
	}
	return m.data[key], nil
}

// Set stores a value. Expiration is ignored (no TTL implementation).
func (m *MockCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if s, ok := value.(string); ok {
		m.data[key] = s
	}
	return nil
}

// Del deletes keys.
func (m *MockCache) Del(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	for _, key := range keys {
		delete(m.data, key)
	}
	return nil
}

// Len returns the number of cached keys (useful for assertions).
func (m *MockCache) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

// Clear resets the mock cache.
func (m *MockCache) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = make(map[string]string)
}
