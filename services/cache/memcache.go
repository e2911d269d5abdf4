package cache

import (
	"errors"
	"time"

	"sjsage522/webmonitor/logger"

	"github.com/bradfitz/gomemcache/memcache"
)

// memcache rejects items larger than this
const maxItemSize = 1 << 20

// ErrTooLarge is returned for values memcache would refuse
var ErrTooLarge = errors.New("cache: value exceeds item size limit")

// MemcacheService implements CacheService using memcache
type MemcacheService struct {
	client *memcache.Client
}

var _ CacheService = (*MemcacheService)(nil)

// NewMemcacheService creates a memcache-backed cache; addrs may list several servers
func NewMemcacheService(addrs ...string) *MemcacheService {
	client := memcache.New(addrs...)
	client.Timeout = 500 * time.Millisecond
	return &MemcacheService{client: client}
}

// Ping verifies the servers are reachable
func (m *MemcacheService) Ping() error {
	if err := m.client.Ping(); err != nil {
		logger.ForCache().Warn().Err(err).Msg("Memcache unreachable")
		return err
	}
	return nil
}

// Get retrieves a value from memcache
func (m *MemcacheService) Get(key string) ([]byte, error) {
	item, err := m.client.Get(key)
	if err != nil {
		if !IsMiss(err) {
			logger.ForCache().Debug().Err(err).Str("key", key).Msg("Cache get failed")
		}
		return nil, err
	}
	return item.Value, nil
}

// Set stores a value in memcache with an expiration time
func (m *MemcacheService) Set(key string, value []byte, expiration time.Duration) error {
	if len(value) > maxItemSize {
		return ErrTooLarge
	}
	return m.client.Set(&memcache.Item{
		Key:        key,
		Value:      value,
		Expiration: int32(expiration.Seconds()),
	})
}

// Delete removes a value from memcache; deleting an absent key is not an error
func (m *MemcacheService) Delete(key string) error {
	if err := m.client.Delete(key); err != nil && !IsMiss(err) {
		return err
	}
	return nil
}

// IsMiss reports whether err means the key was not cached
func IsMiss(err error) bool {
	return errors.Is(err, memcache.ErrCacheMiss)
}
