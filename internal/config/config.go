package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultPort                 = "8080"
	defaultUserAgent            = "alpaca-research-bot/1.0"
	defaultMaxResults           = 10
	defaultNumResults           = 2
	defaultMinNumResults        = 1
	defaultMaxNumResults        = 5
	defaultSearchMultiplier     = 3
	defaultWebTimeoutSecs       = 10
	defaultAcademicTimeoutSecs  = 5
	defaultExtractionTimeout    = 8
	defaultMaxContentSize       = 8000
	defaultMaxExtractionBytes   = 1_500_000
	defaultMaxConcurrentJobs    = 4
	defaultExtractConcurrency   = 3
	defaultRetryMaxAttempts     = 3
	defaultRetryBaseDelayMillis = 2000
	defaultRetryMaxDelayMillis  = 16000
	defaultRetryJitterFraction  = 0.2
	defaultReportModel          = "gpt-4o-mini"
	defaultReportProvider       = "openai"
)

type Config struct {
	Port           string
	Environment    string
	AllowedOrigins []string
	UserAgent      string

	DuckDuckGoBaseURL      string
	SemanticScholarBaseURL string
	SemanticScholarAPIKey  string
	WebSearchTimeout       time.Duration
	AcademicSearchTimeout  time.Duration

	ExtractionTimeout  time.Duration
	MaxContentSize     int
	MaxExtractionBytes int64

	MaxResults        int
	DefaultNumResults int
	MinNumResults     int
	MaxNumResults     int
	SearchMultiplier  int

	MaxConcurrentJobs  int
	ExtractConcurrency int

	RetryMaxAttempts    int
	RetryBaseDelay      time.Duration
	RetryMaxDelay       time.Duration
	RetryJitterFraction float64

	OpenAIAPIKey   string
	GroqAPIKey     string
	GroqBaseURL    string
	ReportModel    string
	ReportProvider string

	ArchiveDatabaseURL string
	ArchiveAuthToken   string
}

func (c Config) ListenAddress() string {
	return fmt.Sprintf(":%s", c.Port)
}

// ReportingEnabled reports whether at least one report provider has credentials.
// When false the orchestrator skips the generating call entirely.
func (c Config) ReportingEnabled() bool {
	return c.OpenAIAPIKey != "" || c.GroqAPIKey != ""
}

func Load() (Config, error) {
	cfg := Config{
		Port:        envOrDefault("PORT", defaultPort),
		Environment: envOrDefault("APP_ENV", "development"),
		UserAgent:   envOrDefault("RESEARCH_USER_AGENT", defaultUserAgent),

		DuckDuckGoBaseURL:      envOrDefault("DUCKDUCKGO_BASE_URL", "https://html.duckduckgo.com/html"),
		SemanticScholarBaseURL: envOrDefault("SEMANTIC_SCHOLAR_BASE_URL", "https://api.semanticscholar.org/graph/v1"),
		SemanticScholarAPIKey:  strings.TrimSpace(os.Getenv("SEMANTIC_SCHOLAR_API_KEY")),
		WebSearchTimeout:       secondsOrDefault("WEB_SEARCH_TIMEOUT_SECONDS", defaultWebTimeoutSecs),
		AcademicSearchTimeout:  secondsOrDefault("ACADEMIC_SEARCH_TIMEOUT_SECONDS", defaultAcademicTimeoutSecs),

		ExtractionTimeout:  secondsOrDefault("EXTRACTION_TIMEOUT_SECONDS", defaultExtractionTimeout),
		MaxContentSize:     intOrDefault("MAX_CONTENT_SIZE", defaultMaxContentSize),
		MaxExtractionBytes: int64(intOrDefault("MAX_EXTRACTION_BYTES", defaultMaxExtractionBytes)),

		MaxResults:        intOrDefault("MAX_RESULTS", defaultMaxResults),
		DefaultNumResults: intOrDefault("DEFAULT_NUM_RESULTS", defaultNumResults),
		MinNumResults:     intOrDefault("MIN_NUM_RESULTS", defaultMinNumResults),
		MaxNumResults:     intOrDefault("MAX_NUM_RESULTS", defaultMaxNumResults),
		SearchMultiplier:  intOrDefault("SEARCH_MULTIPLIER", defaultSearchMultiplier),

		MaxConcurrentJobs:  intOrDefault("MAX_CONCURRENT_JOBS", defaultMaxConcurrentJobs),
		ExtractConcurrency: intOrDefault("EXTRACT_CONCURRENCY", defaultExtractConcurrency),

		RetryMaxAttempts:    intOrDefault("RETRY_MAX_ATTEMPTS", defaultRetryMaxAttempts),
		RetryBaseDelay:      millisOrDefault("RETRY_BASE_DELAY_MS", defaultRetryBaseDelayMillis),
		RetryMaxDelay:       millisOrDefault("RETRY_MAX_DELAY_MS", defaultRetryMaxDelayMillis),
		RetryJitterFraction: floatOrDefault("RETRY_JITTER_FRACTION", defaultRetryJitterFraction),

		OpenAIAPIKey:   strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
		GroqAPIKey:     strings.TrimSpace(os.Getenv("GROQ_API_KEY")),
		GroqBaseURL:    envOrDefault("GROQ_BASE_URL", "https://api.groq.com/openai/v1"),
		ReportModel:    envOrDefault("REPORT_MODEL", defaultReportModel),
		ReportProvider: envOrDefault("REPORT_PROVIDER", defaultReportProvider),

		ArchiveDatabaseURL: strings.TrimSpace(os.Getenv("ARCHIVE_DATABASE_URL")),
		ArchiveAuthToken:   strings.TrimSpace(os.Getenv("ARCHIVE_AUTH_TOKEN")),
	}

	origins := parseList(envOrDefault("CORS_ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000"))
	if len(origins) == 0 {
		return Config{}, errors.New("CORS_ALLOWED_ORIGINS must include at least one origin")
	}
	cfg.AllowedOrigins = origins

	if cfg.MinNumResults < 1 {
		return Config{}, errors.New("MIN_NUM_RESULTS must be >= 1")
	}
	if cfg.MaxNumResults < cfg.MinNumResults {
		return Config{}, errors.New("MAX_NUM_RESULTS must be >= MIN_NUM_RESULTS")
	}
	if cfg.DefaultNumResults < cfg.MinNumResults || cfg.DefaultNumResults > cfg.MaxNumResults {
		return Config{}, errors.New("DEFAULT_NUM_RESULTS must fall within [MIN_NUM_RESULTS, MAX_NUM_RESULTS]")
	}
	if cfg.MaxResults < cfg.MaxNumResults {
		return Config{}, errors.New("MAX_RESULTS must be >= MAX_NUM_RESULTS")
	}
	if cfg.SearchMultiplier < 1 {
		return Config{}, errors.New("SEARCH_MULTIPLIER must be >= 1")
	}
	if cfg.MaxConcurrentJobs < 1 {
		return Config{}, errors.New("MAX_CONCURRENT_JOBS must be >= 1")
	}
	if cfg.ExtractConcurrency < 1 {
		return Config{}, errors.New("EXTRACT_CONCURRENCY must be >= 1")
	}
	if cfg.RetryMaxAttempts < 1 {
		return Config{}, errors.New("RETRY_MAX_ATTEMPTS must be >= 1")
	}
	if cfg.RetryJitterFraction < 0 || cfg.RetryJitterFraction >= 1 {
		return Config{}, errors.New("RETRY_JITTER_FRACTION must be in [0, 1)")
	}
	if strings.HasPrefix(cfg.ArchiveDatabaseURL, "libsql://") && cfg.ArchiveAuthToken == "" {
		return Config{}, errors.New("ARCHIVE_AUTH_TOKEN is required for libsql:// archive URLs")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func intOrDefault(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return parsed
}

func floatOrDefault(key string, fallback float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func secondsOrDefault(key string, fallback int) time.Duration {
	return time.Duration(intOrDefault(key, fallback)) * time.Second
}

func millisOrDefault(key string, fallback int) time.Duration {
	return time.Duration(intOrDefault(key, fallback)) * time.Millisecond
}

func parseList(raw string) []string {
	items := strings.Split(raw, ",")
	out := make([]string, 0, len(items))
	for _, item := range items {
		trimmed := strings.TrimSpace(item)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
