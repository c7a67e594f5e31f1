package duckduckgo

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"alpaca/backend/internal/config"
	"alpaca/backend/internal/research"
)

const resultsPage = `<!DOCTYPE html>
<html><body>
<div class="result results_links results_links_deep web-result">
  <h2 class="result__title">
    <a class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fgo.dev%2Fdoc%2F&rut=abc">Go Documentation</a>
  </h2>
  <a class="result__snippet" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fgo.dev%2Fdoc%2F">Official docs for the <b>Go</b> language.</a>
</div>
<div class="result result--ad">
  <h2 class="result__title">
    <a class="result__a" href="https://duckduckgo.com/y.js?ad_provider=x">Sponsored thing</a>
  </h2>
</div>
<div class="result results_links results_links_deep web-result">
  <h2 class="result__title">
    <a class="result__a" href="https://go.dev/blog/">The Go Blog</a>
  </h2>
  <a class="result__snippet" href="https://go.dev/blog/">News from the team.</a>
</div>
</body></html>`

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := config.Config{
		DuckDuckGoBaseURL: server.URL,
		UserAgent:         "test-agent/1.0",
		WebSearchTimeout:  2 * time.Second,
	}
	return NewClient(cfg, server.Client())
}

func TestSearchParsesResultsAndDecodesRedirects(t *testing.T) {
	var gotQuery, gotAgent string
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		gotAgent = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(resultsPage))
	}))

	hits, err := client.Search(context.Background(), "golang docs", 5)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if gotQuery != "golang docs" {
		t.Fatalf("query not forwarded, got %q", gotQuery)
	}
	if gotAgent != "test-agent/1.0" {
		t.Fatalf("user agent not set, got %q", gotAgent)
	}

	if len(hits) != 2 {
		t.Fatalf("expected 2 hits (ad dropped), got %d: %+v", len(hits), hits)
	}
	if hits[0].URL != "https://go.dev/doc/" {
		t.Fatalf("uddg redirect not decoded: %q", hits[0].URL)
	}
	if hits[0].Title != "Go Documentation" {
		t.Fatalf("unexpected title %q", hits[0].Title)
	}
	if hits[0].Snippet != "Official docs for the Go language." {
		t.Fatalf("unexpected snippet %q", hits[0].Snippet)
	}
	if hits[1].URL != "https://go.dev/blog/" || hits[1].Snippet != "News from the team." {
		t.Fatalf("unexpected second hit %+v", hits[1])
	}
	for _, hit := range hits {
		if hit.Backend != research.BackendWeb {
			t.Fatalf("hit not tagged as web: %+v", hit)
		}
	}
}

func TestSearchCapsResultCount(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(resultsPage))
	}))

	hits, err := client.Search(context.Background(), "golang", 1)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected 1 hit, got %d", len(hits))
	}
}

func TestSearchClassifiesThrottling(t *testing.T) {
	for _, status := range []int{http.StatusAccepted, http.StatusTooManyRequests} {
		client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))

		_, err := client.Search(context.Background(), "q", 3)
		if !research.IsRateLimited(err) {
			t.Fatalf("status %d: expected rate-limited error, got %v", status, err)
		}
	}
}

func TestSearchClassifiesServerErrorsAsUnreachable(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))

	_, err := client.Search(context.Background(), "q", 3)
	var searchErr *research.SearchError
	if !errors.As(err, &searchErr) || searchErr.Kind != research.SearchUnreachable {
		t.Fatalf("expected unreachable error, got %v", err)
	}
}

func TestSearchReturnsEmptyForNoResults(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body><div class='no-results'>nothing</div></body></html>"))
	}))

	hits, err := client.Search(context.Background(), "zxqv", 3)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 0 {
		t.Fatalf("expected no hits, got %+v", hits)
	}
}

func TestDecodeRedirect(t *testing.T) {
	target := "https://example.com/page?x=1"
	wrapped := "//duckduckgo.com/l/?uddg=" + url.QueryEscape(target) + "&rut=zz"
	if got := decodeRedirect(wrapped); got != target {
		t.Fatalf("unexpected decode result %q", got)
	}
	if got := decodeRedirect("javascript:alert(1)"); got != "" {
		t.Fatalf("non-http scheme must be dropped, got %q", got)
	}
	if got := decodeRedirect("https://plain.example.org/"); got != "https://plain.example.org/" {
		t.Fatalf("plain links must pass through, got %q", got)
	}
}
