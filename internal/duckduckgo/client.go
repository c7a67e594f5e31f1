// Package duckduckgo implements web search against the DuckDuckGo HTML
// endpoint. There is no official API; results are scraped from the
// no-javascript page, which is stable enough to parse with a tree walk.
package duckduckgo

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"alpaca/backend/internal/config"
	"alpaca/backend/internal/research"
)

const (
	maxTitleRunes   = 200
	maxSnippetRunes = 300
)

type Client struct {
	baseURL   string
	userAgent string
	http      *http.Client
}

func NewClient(cfg config.Config, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.WebSearchTimeout}
	}
	return &Client{
		baseURL:   strings.TrimRight(cfg.DuckDuckGoBaseURL, "/"),
		userAgent: cfg.UserAgent,
		http:      httpClient,
	}
}

func (c *Client) Kind() research.Backend { return research.BackendWeb }

func (c *Client) Search(ctx context.Context, query string, count int) ([]research.Hit, error) {
	endpoint := fmt.Sprintf("%s/?q=%s&kl=us-en", c.baseURL, url.QueryEscape(query))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &research.SearchError{Backend: research.BackendWeb, Kind: research.SearchUnreachable, Detail: err.Error()}
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &research.SearchError{Backend: research.BackendWeb, Kind: research.SearchUnreachable, Detail: err.Error()}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	// DuckDuckGo answers 202 instead of 429 when it throttles scrapers.
	case resp.StatusCode == http.StatusAccepted || resp.StatusCode == http.StatusTooManyRequests:
		return nil, &research.SearchError{
			Backend: research.BackendWeb,
			Kind:    research.SearchRateLimited,
			Detail:  fmt.Sprintf("status %d", resp.StatusCode),
		}
	default:
		return nil, &research.SearchError{
			Backend: research.BackendWeb,
			Kind:    research.SearchUnreachable,
			Detail:  fmt.Sprintf("unexpected status %d", resp.StatusCode),
		}
	}

	doc, err := html.Parse(resp.Body)
	if err != nil {
		return nil, &research.SearchError{Backend: research.BackendWeb, Kind: research.SearchMalformed, Detail: err.Error()}
	}

	hits := parseResults(doc)
	if len(hits) > count {
		hits = hits[:count]
	}
	return hits, nil
}

// parseResults pairs result anchors with their snippets in document order.
// Ad results route through duckduckgo's click tracker and are dropped.
func parseResults(doc *html.Node) []research.Hit {
	var hits []research.Hit
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch {
			case n.Data == "a" && hasClass(n, "result__a"):
				target := decodeRedirect(attrValue(n, "href"))
				if target != "" && !strings.Contains(target, "duckduckgo.com/y.js") {
					hits = append(hits, research.Hit{
						Title:   clip(strings.TrimSpace(nodeText(n)), maxTitleRunes),
						URL:     target,
						Backend: research.BackendWeb,
					})
				}
			case hasClass(n, "result__snippet"):
				if len(hits) > 0 && hits[len(hits)-1].Snippet == "" {
					hits[len(hits)-1].Snippet = clip(strings.TrimSpace(nodeText(n)), maxSnippetRunes)
				}
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)
	return hits
}

// decodeRedirect unwraps DuckDuckGo's /l/?uddg=<target> redirect links.
func decodeRedirect(href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	parsed, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if strings.HasSuffix(parsed.Hostname(), "duckduckgo.com") && strings.HasPrefix(parsed.Path, "/l/") {
		if target := parsed.Query().Get("uddg"); target != "" {
			return target
		}
		return ""
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return ""
	}
	return href
}

func hasClass(n *html.Node, class string) bool {
	for _, field := range strings.Fields(attrValue(n, "class")) {
		if field == class {
			return true
		}
	}
	return false
}

func attrValue(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if strings.EqualFold(attr.Key, key) {
			return attr.Val
		}
	}
	return ""
}

func nodeText(n *html.Node) string {
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(n)
	return b.String()
}

func clip(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
