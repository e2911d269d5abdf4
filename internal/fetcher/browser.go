package fetcher

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"sjsage522/webmonitor/internal/monitor"
	"sjsage522/webmonitor/logger"
	"sjsage522/webmonitor/pkg/errors"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// BrowserOptions configures the local headless browser
type BrowserOptions struct {
	// Bin is the browser binary; empty downloads a default one
	Bin      string
	ProxyURL string
	// MaxPages bounds concurrently open pages
	MaxPages int
}

// BrowserFetcher renders pages in a local headless Chromium driven by rod.
// The browser is launched on first use and shared by all fetches.
type BrowserFetcher struct {
	opts  BrowserOptions
	pages chan struct{}

	mu      sync.Mutex
	browser *rod.Browser
}

var _ monitor.Fetcher = (*BrowserFetcher)(nil)

// NewBrowserFetcher creates a browser fetcher without launching the browser
func NewBrowserFetcher(opts BrowserOptions) *BrowserFetcher {
	if opts.MaxPages <= 0 {
		opts.MaxPages = 1
	}
	return &BrowserFetcher{
		opts:  opts,
		pages: make(chan struct{}, opts.MaxPages),
	}
}

// Fetch implements monitor.Fetcher
func (f *BrowserFetcher) Fetch(ctx context.Context, pageURL string) (*monitor.Page, error) {
	select {
	case f.pages <- struct{}{}:
		defer func() { <-f.pages }()
	case <-ctx.Done():
		return nil, errors.NewFetch(pageURL, "waiting for a browser page", ctx.Err())
	}

	browser, err := f.ensureBrowser()
	if err != nil {
		return nil, errors.NewFetch(pageURL, "browser unavailable", err)
	}

	page, err := browser.Page(proto.TargetCreateTarget{URL: ""})
	if err != nil {
		return nil, errors.NewFetch(pageURL, "create page failed", err)
	}
	defer page.Close()

	if _, err := page.EvalOnNewDocument(stealth.JS); err != nil {
		return nil, errors.NewFetch(pageURL, "apply stealth script", err)
	}

	p := page.Context(ctx)
	if err := p.Navigate(pageURL); err != nil {
		return nil, errors.NewFetch(pageURL, "navigation failed", err)
	}
	if err := p.WaitLoad(); err != nil {
		return nil, errors.NewFetch(pageURL, "page did not load", err)
	}

	html, err := p.HTML()
	if err != nil {
		return nil, errors.NewFetch(pageURL, "read page markup", err)
	}

	text := ""
	if body, err := p.Element("body"); err == nil {
		if t, err := body.Text(); err == nil {
			text = collapseSpace(t)
		}
	}
	if text == "" {
		parsed, err := PageFromHTML([]byte(html))
		if err != nil {
			return nil, errors.NewFetch(pageURL, "parse failed", err)
		}
		return parsed, nil
	}

	return &monitor.Page{Text: text, HTML: html}, nil
}

// Close shuts the browser down if it was started
func (f *BrowserFetcher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.browser == nil {
		return nil
	}
	err := f.browser.Close()
	f.browser = nil
	return err
}

func (f *BrowserFetcher) ensureBrowser() (*rod.Browser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.browser != nil {
		return f.browser, nil
	}

	browser, err := startBrowser(f.opts)
	if err != nil {
		return nil, err
	}
	f.browser = browser
	return browser, nil
}

func startBrowser(opts BrowserOptions) (*rod.Browser, error) {
	log := logger.ForFetcher()

	bin := opts.Bin
	if bin == "" {
		log.Info().Msg("No browser binary specified, downloading default")
		path, err := launcher.NewBrowser().Get()
		if err != nil {
			return nil, fmt.Errorf("download browser: %w", err)
		}
		bin = path
	}

	l := launcher.New().
		Headless(true).
		Bin(bin).
		NoSandbox(true).
		Set("disable-dev-shm-usage", "true").
		Set("disable-gpu", "true").
		Set("disk-cache-size", "1")

	var proxyUser, proxyPass string
	if opts.ProxyURL != "" {
		parsed, err := url.Parse(opts.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("parse proxy url: %w", err)
		}
		if parsed.Scheme == "" || parsed.Host == "" {
			return nil, fmt.Errorf("invalid proxy url: %s", opts.ProxyURL)
		}
		l = l.Proxy(fmt.Sprintf("%s://%s", parsed.Scheme, parsed.Host))
		if parsed.User != nil {
			proxyUser = parsed.User.Username()
			proxyPass, _ = parsed.User.Password()
		}
	}

	wsURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	browser := rod.New().ControlURL(wsURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect browser: %w", err)
	}
	if proxyUser != "" {
		go browser.MustHandleAuth(proxyUser, proxyPass)()
	}

	log.Info().Str("bin", bin).Int("max_pages", opts.MaxPages).Msg("Browser started")
	return browser, nil
}
