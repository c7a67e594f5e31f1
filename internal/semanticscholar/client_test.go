package semanticscholar

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"alpaca/backend/internal/config"
	"alpaca/backend/internal/research"
)

const papersResponse = `{
  "total": 3,
  "offset": 0,
  "data": [
    {
      "paperId": "p1",
      "url": "https://www.semanticscholar.org/paper/p1",
      "title": "Attention Is All You Need",
      "abstract": "We propose the Transformer.",
      "venue": "NeurIPS",
      "year": 2017,
      "authors": [
        {"authorId": "1", "name": "Ashish Vaswani"},
        {"authorId": "2", "name": "Noam Shazeer"},
        {"authorId": "3", "name": "Niki Parmar"},
        {"authorId": "4", "name": "Jakob Uszkoreit"}
      ]
    },
    {
      "paperId": "p2",
      "url": "",
      "title": "Paper with no link"
    },
    {
      "paperId": "p3",
      "url": "https://www.semanticscholar.org/paper/p3",
      "title": "Untitled follow-up",
      "year": 0,
      "authors": []
    }
  ]
}`

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := config.Config{
		SemanticScholarBaseURL: server.URL,
		SemanticScholarAPIKey:  "s2-test-key",
		UserAgent:              "test-agent/1.0",
		AcademicSearchTimeout:  2 * time.Second,
	}
	return NewClient(cfg, server.Client())
}

func TestSearchParsesPapers(t *testing.T) {
	var gotPath, gotFields, gotKey string
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotFields = r.URL.Query().Get("fields")
		gotKey = r.Header.Get("x-api-key")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(papersResponse))
	}))

	hits, err := client.Search(context.Background(), "transformers", 5)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if gotPath != "/paper/search" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if !strings.Contains(gotFields, "abstract") {
		t.Fatalf("abstract not requested: %q", gotFields)
	}
	if gotKey != "s2-test-key" {
		t.Fatalf("api key header missing, got %q", gotKey)
	}

	if len(hits) != 2 {
		t.Fatalf("expected 2 hits (linkless paper dropped), got %d", len(hits))
	}
	first := hits[0]
	if first.Title != "Attention Is All You Need" || first.Backend != research.BackendAcademic {
		t.Fatalf("unexpected first hit %+v", first)
	}
	if first.Abstract != "We propose the Transformer." {
		t.Fatalf("abstract not carried: %q", first.Abstract)
	}
	if first.Authors != "Ashish Vaswani, Noam Shazeer, Niki Parmar, et al." {
		t.Fatalf("unexpected author list %q", first.Authors)
	}
	if first.Year != "2017" || first.Venue != "NeurIPS" {
		t.Fatalf("citation fields wrong: year=%q venue=%q", first.Year, first.Venue)
	}
	if !strings.Contains(first.Snippet, "NeurIPS") || !strings.Contains(first.Snippet, "We propose the Transformer.") {
		t.Fatalf("unexpected snippet %q", first.Snippet)
	}
	if hits[1].Year != "" {
		t.Fatalf("zero year must render empty, got %q", hits[1].Year)
	}
}

func TestSearchHonorsCount(t *testing.T) {
	var gotLimit string
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotLimit = r.URL.Query().Get("limit")
		w.Write([]byte(papersResponse))
	}))

	hits, err := client.Search(context.Background(), "transformers", 1)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if gotLimit != "1" {
		t.Fatalf("limit not forwarded, got %q", gotLimit)
	}
	if len(hits) != 1 {
		t.Fatalf("expected 1 hit, got %d", len(hits))
	}
}

func TestSearchClassifiesRateLimit(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))

	_, err := client.Search(context.Background(), "q", 3)
	if !research.IsRateLimited(err) {
		t.Fatalf("expected rate-limited error, got %v", err)
	}
}

func TestSearchClassifiesMalformedBody(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>not json</html>"))
	}))

	_, err := client.Search(context.Background(), "q", 3)
	var searchErr *research.SearchError
	if !errors.As(err, &searchErr) || searchErr.Kind != research.SearchMalformed {
		t.Fatalf("expected malformed error, got %v", err)
	}
}

func TestSearchClassifiesServerErrorsAsUnreachable(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))

	_, err := client.Search(context.Background(), "q", 3)
	var searchErr *research.SearchError
	if !errors.As(err, &searchErr) || searchErr.Kind != research.SearchUnreachable {
		t.Fatalf("expected unreachable error, got %v", err)
	}
}
