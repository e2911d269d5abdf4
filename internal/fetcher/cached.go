package fetcher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"sjsage522/webmonitor/internal/monitor"
	"sjsage522/webmonitor/logger"
	"sjsage522/webmonitor/services/cache"
)

// CachedFetcher keeps fetched pages for a short TTL so targets sharing a URL
// within one tick hit the site once. Cache failures fall through to the wrapped fetcher.
type CachedFetcher struct {
	next      monitor.Fetcher
	cache     cache.CacheService
	ttl       time.Duration
	namespace string
}

var _ monitor.Fetcher = (*CachedFetcher)(nil)

// NewCachedFetcher wraps next with the given cache. namespace separates
// entries of different fetch strategies for the same URL.
func NewCachedFetcher(next monitor.Fetcher, cacheSvc cache.CacheService, ttl time.Duration, namespace string) *CachedFetcher {
	return &CachedFetcher{next: next, cache: cacheSvc, ttl: ttl, namespace: namespace}
}

// CacheKey derives a memcache-safe key from a URL
func CacheKey(namespace, url string) string {
	sum := sha256.Sum256([]byte(url))
	return "page:" + namespace + ":" + hex.EncodeToString(sum[:])
}

// Fetch implements monitor.Fetcher
func (f *CachedFetcher) Fetch(ctx context.Context, url string) (*monitor.Page, error) {
	key := CacheKey(f.namespace, url)

	if data, err := f.cache.Get(key); err == nil {
		var page monitor.Page
		if err := json.Unmarshal(data, &page); err == nil {
			logger.ForCache().Debug().Str("url", url).Msg("Page cache hit")
			return &page, nil
		}
	}

	page, err := f.next.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(page); err == nil {
		if err := f.cache.Set(key, data, f.ttl); err != nil {
			logger.ForCache().Warn().Err(err).Str("url", url).Msg("Failed to cache page")
		}
	}
	return page, nil
}
