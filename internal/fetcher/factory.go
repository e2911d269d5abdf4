package fetcher

import (
	"context"
	"io"
	"net/http"
	"time"

	"sjsage522/webmonitor/config"
	"sjsage522/webmonitor/internal/monitor"
	"sjsage522/webmonitor/pkg/errors"
	"sjsage522/webmonitor/services/cache"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// New builds the static and rendered fetchers selected by cfg. cacheSvc may be nil.
// The returned closer releases the browser, if one was configured.
func New(cfg *config.Config, cacheSvc cache.CacheService) (monitor.Fetchers, io.Closer, error) {
	static, err := NewHTTPFetcher(cfg.FetchProxyURL)
	if err != nil {
		return monitor.Fetchers{}, nil, err
	}

	fetchers := monitor.Fetchers{Static: static}
	var closer io.Closer = nopCloser{}

	switch cfg.FetcherMode {
	case config.FetcherHTTP, "":
	case config.FetcherBrowser:
		browser := NewBrowserFetcher(BrowserOptions{
			Bin:      cfg.BrowserBin,
			ProxyURL: cfg.FetchProxyURL,
			MaxPages: cfg.BrowserMaxPages,
		})
		fetchers.Rendered = browser
		closer = browser
	case config.FetcherRemote:
		remote := NewRemoteFetcher(cfg.ChromeAddr, &http.Client{})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		remote.Ping(ctx)
		cancel()
		fetchers.Rendered = remote
	default:
		return monitor.Fetchers{}, nil, errors.NewConfiguration("unknown fetcher mode: "+cfg.FetcherMode, nil)
	}

	if cacheSvc != nil && cfg.PageCacheTTL > 0 {
		fetchers.Static = NewCachedFetcher(fetchers.Static, cacheSvc, cfg.PageCacheTTL, "static")
		if fetchers.Rendered != nil {
			fetchers.Rendered = NewCachedFetcher(fetchers.Rendered, cacheSvc, cfg.PageCacheTTL, "rendered")
		}
	}

	return fetchers, closer, nil
}
