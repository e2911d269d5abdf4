package cache

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/stretchr/testify/assert"
)

// This test requires a running memcached instance
// If memcached is not available, the test will be skipped
func TestMemcacheService(t *testing.T) {
	mc := NewMemcacheService("localhost:11211")
	if err := mc.Ping(); err != nil {
		t.Skip("Memcached is not available, skipping test")
	}

	err := mc.Set("page:static:test", []byte("<p>letenky</p>"), 2*time.Second)
	assert.NoError(t, err)

	value, err := mc.Get("page:static:test")
	assert.NoError(t, err)
	assert.Equal(t, "<p>letenky</p>", string(value))

	assert.NoError(t, mc.Delete("page:static:test"))
	assert.NoError(t, mc.Delete("page:static:test"), "deleting twice is fine")

	_, err = mc.Get("page:static:test")
	assert.True(t, IsMiss(err))
}

func TestMemcacheServiceRejectsLargeValues(t *testing.T) {
	mc := NewMemcacheService("localhost:11211")

	err := mc.Set("page:static:big", []byte(strings.Repeat("x", maxItemSize+1)), time.Second)
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestIsMiss(t *testing.T) {
	assert.True(t, IsMiss(memcache.ErrCacheMiss))
	assert.True(t, IsMiss(fmt.Errorf("get: %w", memcache.ErrCacheMiss)))
	assert.False(t, IsMiss(memcache.ErrServerError))
	assert.False(t, IsMiss(nil))
}
