package research

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

// rewriteTransport sends requests for public-looking URLs to a local test
// server so the URL guard stays active on the request path.
type rewriteTransport struct {
	target *url.URL
}

func (t rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	clone.URL.Scheme = t.target.Scheme
	clone.URL.Host = t.target.Host
	return http.DefaultTransport.RoundTrip(clone)
}

func newTestExtractor(t *testing.T, handler http.Handler, cfg ExtractorConfig) *HTTPExtractor {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	target, err := url.Parse(server.URL)
	if err != nil {
		t.Fatalf("parse test server url: %v", err)
	}
	return NewHTTPExtractor(cfg).WithClient(&http.Client{Transport: rewriteTransport{target: target}})
}

func TestExtractReadsHTMLPage(t *testing.T) {
	page := `<html><head><title>Go Memory Model</title>
<meta name="description" content="How goroutines see writes.">
<script>ignore();</script></head>
<body><nav>site nav</nav><p>Programs that modify data.</p><p>Second paragraph.</p></body></html>`
	extractor := newTestExtractor(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(page))
	}), ExtractorConfig{})

	got, err := extractor.Extract(context.Background(), "http://example.com/mem")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if got.Title != "Go Memory Model" {
		t.Fatalf("unexpected title %q", got.Title)
	}
	if got.Description != "How goroutines see writes." {
		t.Fatalf("unexpected description %q", got.Description)
	}
	if !strings.Contains(got.Content, "Programs that modify data.") {
		t.Fatalf("body text missing from content: %q", got.Content)
	}
	if strings.Contains(got.Content, "ignore()") {
		t.Fatalf("script text leaked into content: %q", got.Content)
	}
	if got.Truncated {
		t.Fatal("small page must not be marked truncated")
	}
}

func TestExtractTruncatesLongContent(t *testing.T) {
	body := "<html><body><p>" + strings.Repeat("word ", 500) + "</p></body></html>"
	extractor := newTestExtractor(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(body))
	}), ExtractorConfig{MaxTextRunes: 100})

	got, err := extractor.Extract(context.Background(), "http://example.com/long")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if !got.Truncated {
		t.Fatal("expected truncation marker")
	}
	if n := len([]rune(got.Content)); n > 100 {
		t.Fatalf("content has %d runes, limit is 100", n)
	}
}

func TestExtractRejectsOversizedBody(t *testing.T) {
	extractor := newTestExtractor(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte(strings.Repeat("x", 2048)))
	}), ExtractorConfig{MaxBodyBytes: 1024})

	_, err := extractor.Extract(context.Background(), "http://example.com/huge")
	var extractErr *ExtractionError
	if !errors.As(err, &extractErr) || extractErr.Kind != ExtractTooLarge {
		t.Fatalf("expected too_large error, got %v", err)
	}
}

func TestExtractMapsUnsupportedContentType(t *testing.T) {
	extractor := newTestExtractor(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte{0x89, 0x50, 0x4e, 0x47})
	}), ExtractorConfig{})

	_, err := extractor.Extract(context.Background(), "http://example.com/logo.png")
	var extractErr *ExtractionError
	if !errors.As(err, &extractErr) || extractErr.Kind != ExtractUnsupported {
		t.Fatalf("expected unsupported error, got %v", err)
	}
}

func TestExtractMapsUpstreamStatusToFetchFailed(t *testing.T) {
	extractor := newTestExtractor(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}), ExtractorConfig{})

	_, err := extractor.Extract(context.Background(), "http://example.com/gone")
	var extractErr *ExtractionError
	if !errors.As(err, &extractErr) || extractErr.Kind != ExtractFetchFailed {
		t.Fatalf("expected fetch_failed error, got %v", err)
	}
}

func TestExtractBlocksInternalTargets(t *testing.T) {
	extractor := NewHTTPExtractor(ExtractorConfig{})

	for _, rawURL := range []string{
		"http://localhost/admin",
		"http://127.0.0.1/metrics",
		"http://10.0.0.8/secrets",
		"http://internal-tool.local/",
		"ftp://example.com/file",
		"http://example.com:8443/",
	} {
		_, err := extractor.Extract(context.Background(), rawURL)
		var extractErr *ExtractionError
		if !errors.As(err, &extractErr) || extractErr.Kind != ExtractFetchFailed {
			t.Fatalf("%s: expected fetch_failed guard error, got %v", rawURL, err)
		}
	}
}

func TestExtractPrettyPrintsJSON(t *testing.T) {
	extractor := newTestExtractor(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"name":"alpaca","tags":["research","api"]}`))
	}), ExtractorConfig{})

	got, err := extractor.Extract(context.Background(), "http://example.com/data")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if !strings.Contains(got.Content, `"name": "alpaca"`) {
		t.Fatalf("expected indented json, got %q", got.Content)
	}
}
