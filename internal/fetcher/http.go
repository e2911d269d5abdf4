package fetcher

import (
	"context"
	"net/http"

	"sjsage522/webmonitor/helpers"
	"sjsage522/webmonitor/internal/monitor"
	"sjsage522/webmonitor/pkg/errors"
)

// HTTPFetcher downloads static pages with a plain HTTP GET
type HTTPFetcher struct {
	client *http.Client
}

var _ monitor.Fetcher = (*HTTPFetcher)(nil)

// NewHTTPFetcher creates a fetcher; proxyURL may be empty
func NewHTTPFetcher(proxyURL string) (*HTTPFetcher, error) {
	client, err := helpers.NewHTTPClient(proxyURL)
	if err != nil {
		return nil, errors.NewConfiguration("invalid fetch proxy", err)
	}
	return &HTTPFetcher{client: client}, nil
}

// Fetch implements monitor.Fetcher
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (*monitor.Page, error) {
	body, err := helpers.FetchPage(ctx, f.client, url)
	if err != nil {
		return nil, errors.NewFetch(url, "request failed", err)
	}

	page, err := PageFromHTML(body)
	if err != nil {
		return nil, errors.NewFetch(url, "parse failed", err)
	}
	return page, nil
}
