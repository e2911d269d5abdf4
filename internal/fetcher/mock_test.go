package fetcher

import (
	"context"
	"sync"
	"time"

	"sjsage522/webmonitor/internal/monitor"
	"sjsage522/webmonitor/services/cache"
)

// MockCacheService implements a simple in-memory cache for testing
type MockCacheService struct {
	mu    sync.Mutex
	cache map[string][]byte
	ttls  map[string]time.Duration
}

var _ cache.CacheService = (*MockCacheService)(nil)

func NewMockCacheService() *MockCacheService {
	return &MockCacheService{
		cache: make(map[string][]byte),
		ttls:  make(map[string]time.Duration),
	}
}

func (m *MockCacheService) Get(key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if val, ok := m.cache[key]; ok {
		return val, nil
	}
	return nil, &mockError{message: "cache miss"}
}

func (m *MockCacheService) Set(key string, value []byte, expiration time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache[key] = value
	m.ttls[key] = expiration
	return nil
}

func (m *MockCacheService) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.cache, key)
	return nil
}

type mockError struct {
	message string
}

func (e *mockError) Error() string {
	return e.message
}

// countingFetcher counts calls and returns a fixed page
type countingFetcher struct {
	mu    sync.Mutex
	calls int
	page  *monitor.Page
	err   error
}

func (c *countingFetcher) Fetch(ctx context.Context, url string) (*monitor.Page, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return c.page, c.err
}
