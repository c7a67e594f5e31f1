package research

import (
	"context"
	"errors"
	"fmt"
)

// Backend identifies one independent search source.
type Backend string

const (
	BackendWeb      Backend = "web"
	BackendAcademic Backend = "academic"
)

// Hit is one result record returned by a backend before content extraction.
// The academic backend fills the citation metadata fields so the pipeline
// can build content from the abstract without a second fetch.
type Hit struct {
	Title   string
	URL     string
	Snippet string
	Backend Backend

	Abstract string
	Authors  string
	Year     string
	Venue    string
}

// Searcher is the single capability every backend implements. New backends
// are added by implementing this contract, not by extending the pipeline.
type Searcher interface {
	Kind() Backend
	Search(ctx context.Context, query string, count int) ([]Hit, error)
}

type SearchErrorKind string

const (
	SearchRateLimited SearchErrorKind = "rate_limited"
	SearchUnreachable SearchErrorKind = "unreachable"
	SearchMalformed   SearchErrorKind = "malformed"
)

type SearchError struct {
	Backend Backend
	Kind    SearchErrorKind
	Detail  string
}

func (e *SearchError) Error() string {
	return fmt.Sprintf("%s search failed (%s): %s", e.Backend, e.Kind, e.Detail)
}

// IsRateLimited reports whether err is a rate-limit failure worth retrying.
func IsRateLimited(err error) bool {
	var searchErr *SearchError
	return errors.As(err, &searchErr) && searchErr.Kind == SearchRateLimited
}

type ExtractionErrorKind string

const (
	ExtractFetchFailed ExtractionErrorKind = "fetch_failed"
	ExtractUnsupported ExtractionErrorKind = "unsupported"
	ExtractTooLarge    ExtractionErrorKind = "too_large"
)

type ExtractionError struct {
	URL    string
	Kind   ExtractionErrorKind
	Detail string
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extraction failed for %s (%s): %s", e.URL, e.Kind, e.Detail)
}

// Extracted is the readable reduction of one fetched page, trimmed to the
// configured content bound. Truncated marks a page cut at that bound.
type Extracted struct {
	Title       string
	URL         string
	Description string
	Content     string
	Truncated   bool
}

// Extractor reduces a hit's URL to plain readable text.
type Extractor interface {
	Extract(ctx context.Context, rawURL string) (Extracted, error)
}

// Generator turns aggregated research text into a formatted report. It is
// an optional collaborator; a nil generator means generation is skipped.
type Generator interface {
	Generate(ctx context.Context, query, rawData, provider, model string) (string, error)
}
