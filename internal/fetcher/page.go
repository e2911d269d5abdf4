package fetcher

import (
	"bytes"
	"fmt"
	"strings"

	"sjsage522/webmonitor/internal/monitor"

	"github.com/PuerkitoBio/goquery"
)

// PageFromHTML builds a page from raw markup. Text is the visible body text with
// scripts and styles removed and whitespace collapsed.
func PageFromHTML(raw []byte) (*monitor.Page, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	doc.Find("script, style, noscript, template").Remove()

	sel := doc.Find("body")
	if sel.Length() == 0 {
		sel = doc.Selection
	}

	return &monitor.Page{
		Text: collapseSpace(sel.Text()),
		HTML: string(raw),
	}, nil
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
