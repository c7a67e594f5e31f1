package research

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

const (
	defaultExtractionTimeout = 8 * time.Second
	defaultMaxBodyBytes      = 1_500_000
	defaultMaxTextRunes      = 8000
	defaultMaxRedirects      = 5
)

// ExtractorConfig bounds a single page fetch. MaxBodyBytes is a hard
// ceiling: bodies past it fail the extraction rather than being silently
// cut, since a truncated byte stream can corrupt PDF and JSON parsing.
// MaxTextRunes trims the readable text after parsing and only marks it.
type ExtractorConfig struct {
	RequestTimeout time.Duration
	MaxBodyBytes   int64
	MaxTextRunes   int
	MaxRedirects   int
	UserAgent      string
}

// HTTPExtractor fetches pages over a hardened client and reduces them to
// readable text. Construct it with NewHTTPExtractor so the dial guard and
// redirect checks are always installed.
type HTTPExtractor struct {
	cfg    ExtractorConfig
	client *http.Client
}

func NewHTTPExtractor(cfg ExtractorConfig) *HTTPExtractor {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultExtractionTimeout
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	if cfg.MaxTextRunes <= 0 {
		cfg.MaxTextRunes = defaultMaxTextRunes
	}
	if cfg.MaxRedirects <= 0 {
		cfg.MaxRedirects = defaultMaxRedirects
	}

	transport := &http.Transport{
		DialContext:         guardedDialContext(&net.Dialer{Timeout: cfg.RequestTimeout}),
		TLSHandshakeTimeout: cfg.RequestTimeout,
		MaxIdleConns:        16,
	}
	client := &http.Client{
		Timeout:   cfg.RequestTimeout,
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= cfg.MaxRedirects {
				return fmt.Errorf("stopped after %d redirects", cfg.MaxRedirects)
			}
			if _, err := validateFetchURL(req.URL.String()); err != nil {
				return err
			}
			return nil
		},
	}
	return &HTTPExtractor{cfg: cfg, client: client}
}

// WithClient swaps the HTTP client, used by tests to bypass the dial guard.
func (e *HTTPExtractor) WithClient(client *http.Client) *HTTPExtractor {
	e.client = client
	return e
}

func (e *HTTPExtractor) Extract(ctx context.Context, rawURL string) (Extracted, error) {
	parsed, err := validateFetchURL(rawURL)
	if err != nil {
		return Extracted{}, &ExtractionError{URL: rawURL, Kind: ExtractFetchFailed, Detail: err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return Extracted{}, &ExtractionError{URL: rawURL, Kind: ExtractFetchFailed, Detail: err.Error()}
	}
	if e.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", e.cfg.UserAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/pdf,application/json,text/plain;q=0.9,*/*;q=0.5")

	resp, err := e.client.Do(req)
	if err != nil {
		return Extracted{}, &ExtractionError{URL: rawURL, Kind: ExtractFetchFailed, Detail: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Extracted{}, &ExtractionError{
			URL:    rawURL,
			Kind:   ExtractFetchFailed,
			Detail: fmt.Sprintf("unexpected status %d", resp.StatusCode),
		}
	}
	if resp.ContentLength > e.cfg.MaxBodyBytes {
		return Extracted{}, &ExtractionError{
			URL:    rawURL,
			Kind:   ExtractTooLarge,
			Detail: fmt.Sprintf("declared length %d exceeds limit %d", resp.ContentLength, e.cfg.MaxBodyBytes),
		}
	}

	body, err := readBounded(resp.Body, e.cfg.MaxBodyBytes)
	if err != nil {
		kind := ExtractFetchFailed
		if errors.Is(err, errBodyTooLarge) {
			kind = ExtractTooLarge
		}
		return Extracted{}, &ExtractionError{URL: rawURL, Kind: kind, Detail: err.Error()}
	}

	page, err := reduceBody(resp.Header.Get("Content-Type"), body)
	if err != nil {
		return Extracted{}, &ExtractionError{URL: rawURL, Kind: ExtractUnsupported, Detail: err.Error()}
	}

	content, truncated := trimToRunes(page.Text, e.cfg.MaxTextRunes)
	return Extracted{
		Title:       firstNonEmpty(page.Title, parsed.Hostname()),
		URL:         parsed.String(),
		Description: page.Description,
		Content:     strings.TrimSpace(content),
		Truncated:   truncated,
	}, nil
}

var errBodyTooLarge = errors.New("response body exceeds size limit")

func readBounded(r io.Reader, limit int64) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > limit {
		return nil, errBodyTooLarge
	}
	return body, nil
}
