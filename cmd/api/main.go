package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"alpaca/backend/internal/archive"
	"alpaca/backend/internal/config"
	"alpaca/backend/internal/db"
	"alpaca/backend/internal/duckduckgo"
	"alpaca/backend/internal/httpapi"
	"alpaca/backend/internal/jobs"
	"alpaca/backend/internal/report"
	"alpaca/backend/internal/research"
	"alpaca/backend/internal/semanticscholar"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("skipping .env: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	searchers := []research.Searcher{
		duckduckgo.NewClient(cfg, nil),
		semanticscholar.NewClient(cfg, nil),
	}

	extractor := research.NewHTTPExtractor(research.ExtractorConfig{
		RequestTimeout: cfg.ExtractionTimeout,
		MaxBodyBytes:   cfg.MaxExtractionBytes,
		MaxTextRunes:   cfg.MaxContentSize,
		UserAgent:      cfg.UserAgent,
	})

	var generator research.Generator
	if client := report.NewClient(cfg); client != nil {
		generator = client
	} else {
		log.Printf("no report provider configured, jobs will complete without reports")
	}

	var (
		archiveStore *archive.Store
		archiver     research.Archiver
	)
	if cfg.ArchiveDatabaseURL != "" {
		pool, err := db.Open(cfg)
		if err != nil {
			log.Fatalf("open archive database: %v", err)
		}
		defer pool.Close()

		archiveStore = archive.NewStore(pool)
		if err := archiveStore.Init(context.Background()); err != nil {
			log.Fatalf("init archive schema: %v", err)
		}
		archiver = archiveStore
		log.Printf("archiving terminal jobs to %s", cfg.ArchiveDatabaseURL)
	}

	orch := research.NewOrchestrator(research.Config{
		MaxResults:         cfg.MaxResults,
		DefaultNumResults:  cfg.DefaultNumResults,
		MinNumResults:      cfg.MinNumResults,
		MaxNumResults:      cfg.MaxNumResults,
		SearchMultiplier:   cfg.SearchMultiplier,
		MaxConcurrentJobs:  cfg.MaxConcurrentJobs,
		ExtractConcurrency: cfg.ExtractConcurrency,
		MaxContentRunes:    cfg.MaxContentSize,
		Retry: research.RetryPolicy{
			MaxAttempts:    cfg.RetryMaxAttempts,
			BaseDelay:      cfg.RetryBaseDelay,
			MaxDelay:       cfg.RetryMaxDelay,
			JitterFraction: cfg.RetryJitterFraction,
		},
		DefaultProvider: cfg.ReportProvider,
		DefaultModel:    cfg.ReportModel,
	}, jobs.NewStore(), searchers, extractor, generator, archiver)

	handler := httpapi.NewHandler(cfg, orch, archiveStore)
	server := &http.Server{
		Addr:              cfg.ListenAddress(),
		Handler:           httpapi.NewRouter(cfg, handler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf("research api listening on %s (%s)", server.Addr, cfg.Environment)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("serve: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
