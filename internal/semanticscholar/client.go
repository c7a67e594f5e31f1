// Package semanticscholar implements academic search against the Semantic
// Scholar Graph API paper search endpoint.
package semanticscholar

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"alpaca/backend/internal/config"
	"alpaca/backend/internal/research"
)

const (
	searchFields    = "title,abstract,url,year,venue,authors"
	maxSnippetRunes = 300
	maxAuthorsShown = 3
)

type Client struct {
	baseURL   string
	apiKey    string
	userAgent string
	http      *http.Client
}

func NewClient(cfg config.Config, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.AcademicSearchTimeout}
	}
	return &Client{
		baseURL:   strings.TrimRight(cfg.SemanticScholarBaseURL, "/"),
		apiKey:    cfg.SemanticScholarAPIKey,
		userAgent: cfg.UserAgent,
		http:      httpClient,
	}
}

func (c *Client) Kind() research.Backend { return research.BackendAcademic }

type paper struct {
	Title    string `json:"title"`
	Abstract string `json:"abstract"`
	URL      string `json:"url"`
	Year     int    `json:"year"`
	Venue    string `json:"venue"`
	Authors  []struct {
		Name string `json:"name"`
	} `json:"authors"`
}

type searchResponse struct {
	Total int     `json:"total"`
	Data  []paper `json:"data"`
}

func (c *Client) Search(ctx context.Context, query string, count int) ([]research.Hit, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("limit", strconv.Itoa(count))
	params.Set("fields", searchFields)
	endpoint := fmt.Sprintf("%s/paper/search?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &research.SearchError{Backend: research.BackendAcademic, Kind: research.SearchUnreachable, Detail: err.Error()}
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &research.SearchError{Backend: research.BackendAcademic, Kind: research.SearchUnreachable, Detail: err.Error()}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &research.SearchError{Backend: research.BackendAcademic, Kind: research.SearchRateLimited, Detail: "status 429"}
	default:
		return nil, &research.SearchError{
			Backend: research.BackendAcademic,
			Kind:    research.SearchUnreachable,
			Detail:  fmt.Sprintf("unexpected status %d", resp.StatusCode),
		}
	}

	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, &research.SearchError{Backend: research.BackendAcademic, Kind: research.SearchMalformed, Detail: err.Error()}
	}

	hits := make([]research.Hit, 0, len(parsed.Data))
	for _, p := range parsed.Data {
		if p.URL == "" || p.Title == "" {
			continue
		}
		hits = append(hits, research.Hit{
			Title:    p.Title,
			URL:      p.URL,
			Snippet:  snippetFor(p),
			Backend:  research.BackendAcademic,
			Abstract: strings.TrimSpace(p.Abstract),
			Authors:  authorList(p),
			Year:     yearString(p.Year),
			Venue:    strings.TrimSpace(p.Venue),
		})
		if len(hits) == count {
			break
		}
	}
	return hits, nil
}

// snippetFor builds a one-line citation preview: authors, venue, year, then
// as much abstract as fits.
func snippetFor(p paper) string {
	parts := make([]string, 0, 4)
	if authors := authorList(p); authors != "" {
		parts = append(parts, authors)
	}
	if venue := strings.TrimSpace(p.Venue); venue != "" {
		parts = append(parts, venue)
	}
	if year := yearString(p.Year); year != "" {
		parts = append(parts, year)
	}
	snippet := strings.Join(parts, ", ")
	if abstract := strings.TrimSpace(p.Abstract); abstract != "" {
		if snippet != "" {
			snippet += " - "
		}
		snippet += abstract
	}
	runes := []rune(snippet)
	if len(runes) > maxSnippetRunes {
		snippet = string(runes[:maxSnippetRunes])
	}
	return snippet
}

func authorList(p paper) string {
	names := make([]string, 0, maxAuthorsShown)
	for _, author := range p.Authors {
		name := strings.TrimSpace(author.Name)
		if name == "" {
			continue
		}
		names = append(names, name)
		if len(names) == maxAuthorsShown {
			if len(p.Authors) > maxAuthorsShown {
				names = append(names, "et al.")
			}
			break
		}
	}
	return strings.Join(names, ", ")
}

func yearString(year int) string {
	if year <= 0 {
		return ""
	}
	return strconv.Itoa(year)
}
