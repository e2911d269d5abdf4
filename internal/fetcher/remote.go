package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"sjsage522/webmonitor/internal/monitor"
	"sjsage522/webmonitor/logger"
	"sjsage522/webmonitor/pkg/errors"
)

// renderFunction runs inside a browserless instance and returns the rendered markup
const renderFunction = `module.exports = async ({ page, context }) => {
	await page.setViewport({ width: 1280, height: 800 });
	await page.goto(context.url, { waitUntil: 'networkidle2', timeout: context.timeout });
	return { data: await page.content(), type: 'text/html' };
}`

// RemoteFetcher renders pages through a browserless-compatible /function endpoint
type RemoteFetcher struct {
	addr   string
	client *http.Client
}

var _ monitor.Fetcher = (*RemoteFetcher)(nil)

// NewRemoteFetcher creates a fetcher talking to the renderer at addr
func NewRemoteFetcher(addr string, client *http.Client) *RemoteFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &RemoteFetcher{
		addr:   strings.TrimRight(addr, "/"),
		client: client,
	}
}

// Ping checks that the renderer answers; failures are only logged
func (f *RemoteFetcher) Ping(ctx context.Context) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.addr, nil)
	if err != nil {
		logger.ForFetcher().Warn().Err(err).Str("addr", f.addr).Msg("Renderer address is invalid")
		return
	}
	resp, err := f.client.Do(req)
	if err != nil {
		logger.ForFetcher().Warn().Err(err).Str("addr", f.addr).Msg("Renderer connection check failed")
		return
	}
	resp.Body.Close()
	logger.ForFetcher().Info().Str("addr", f.addr).Int("status", resp.StatusCode).Msg("Renderer reachable")
}

// Fetch implements monitor.Fetcher
func (f *RemoteFetcher) Fetch(ctx context.Context, url string) (*monitor.Page, error) {
	timeoutMs := 30000
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := int(time.Until(deadline).Milliseconds()); remaining > 0 {
			timeoutMs = remaining
		}
	}

	payload, err := json.Marshal(map[string]interface{}{
		"code": renderFunction,
		"context": map[string]interface{}{
			"url":     url,
			"timeout": timeoutMs,
		},
	})
	if err != nil {
		return nil, errors.NewFetch(url, "encode render request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.addr+"/function", bytes.NewReader(payload))
	if err != nil {
		return nil, errors.NewFetch(url, "create render request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, errors.NewFetch(url, "render request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, errors.NewFetch(url, "read render response", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, errors.NewFetch(url, fmt.Sprintf("renderer returned status %d", resp.StatusCode), nil)
	}

	content := unwrapRenderResult(body)
	if strings.TrimSpace(content) == "" {
		return nil, errors.NewFetch(url, "renderer returned empty page", nil)
	}

	page, err := PageFromHTML([]byte(content))
	if err != nil {
		return nil, errors.NewFetch(url, "parse failed", err)
	}
	return page, nil
}

// unwrapRenderResult accepts both raw markup and the {"data": ...} / {"result": ...} JSON envelopes
func unwrapRenderResult(body []byte) string {
	content := string(body)
	if !strings.HasPrefix(strings.TrimSpace(content), "{") {
		return content
	}

	var result map[string]interface{}
	if err := json.Unmarshal(body, &result); err != nil {
		return content
	}
	if data, ok := result["data"].(string); ok && data != "" {
		return data
	}
	if data, ok := result["result"].(string); ok && data != "" {
		return data
	}
	return content
}
