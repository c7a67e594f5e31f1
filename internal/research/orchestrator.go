package research

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"alpaca/backend/internal/jobs"
)

var (
	ErrInvalidQuery      = errors.New("query must not be empty")
	ErrInvalidSources    = errors.New("sources must be web, academic or both")
	ErrInvalidNumResults = errors.New("numResults is out of range")
)

// Progress milestones. Research work is scaled into (5,60) and capped just
// under the generating threshold so the two stages never overlap.
const (
	progressSearchStarted = 5
	progressResearchCap   = 59
	progressGenerating    = 60
)

const (
	defaultMaxConcurrentJobs  = 10
	defaultExtractConcurrency = 3
	defaultSearchMultiplier   = 3
)

// Config tunes the pipeline. Zero values fall back to the defaults above;
// validation bounds come from the service configuration.
type Config struct {
	MaxResults         int
	DefaultNumResults  int
	MinNumResults      int
	MaxNumResults      int
	SearchMultiplier   int
	MaxConcurrentJobs  int
	ExtractConcurrency int
	MaxContentRunes    int
	Retry              RetryPolicy
	DefaultProvider    string
	DefaultModel       string
}

// Archiver persists terminal job snapshots. Archiving is best-effort and
// never changes a job's outcome.
type Archiver interface {
	Record(ctx context.Context, job jobs.Job) error
}

// Orchestrator runs the research pipeline: fan out to search backends,
// extract content from the best hits, assemble the research record, and
// optionally generate a report. Each submitted job gets one goroutine that
// is the only writer for that job.
type Orchestrator struct {
	cfg       Config
	store     *jobs.Store
	searchers map[Backend]Searcher
	extractor Extractor
	generator Generator
	archive   Archiver
	slots     *semaphore.Weighted
}

func NewOrchestrator(cfg Config, store *jobs.Store, searchers []Searcher, extractor Extractor, generator Generator, archive Archiver) *Orchestrator {
	if cfg.MaxConcurrentJobs <= 0 {
		cfg.MaxConcurrentJobs = defaultMaxConcurrentJobs
	}
	if cfg.ExtractConcurrency <= 0 {
		cfg.ExtractConcurrency = defaultExtractConcurrency
	}
	if cfg.SearchMultiplier <= 0 {
		cfg.SearchMultiplier = defaultSearchMultiplier
	}
	if cfg.DefaultNumResults <= 0 {
		cfg.DefaultNumResults = 2
	}
	if cfg.MinNumResults <= 0 {
		cfg.MinNumResults = 1
	}
	if cfg.MaxNumResults <= 0 {
		cfg.MaxNumResults = 5
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 10
	}

	byKind := make(map[Backend]Searcher, len(searchers))
	for _, s := range searchers {
		byKind[s.Kind()] = s
	}
	return &Orchestrator{
		cfg:       cfg,
		store:     store,
		searchers: byKind,
		extractor: extractor,
		generator: generator,
		archive:   archive,
		slots:     semaphore.NewWeighted(int64(cfg.MaxConcurrentJobs)),
	}
}

// SubmitOptions are the optional knobs on a research request. Zero values
// take the configured defaults.
type SubmitOptions struct {
	Sources    jobs.Source
	NumResults int
	Provider   string
	Model      string
}

type request struct {
	query      string
	sources    jobs.Source
	numResults int
	provider   string
	model      string
}

// Submit validates the request, registers a queued job, and starts its
// pipeline. The returned snapshot is the job in its queued state.
func (o *Orchestrator) Submit(query string, opts SubmitOptions) (jobs.Job, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return jobs.Job{}, ErrInvalidQuery
	}

	sources := opts.Sources
	if sources == "" {
		sources = jobs.SourceBoth
	}
	if !sources.Valid() {
		return jobs.Job{}, fmt.Errorf("%w: %q", ErrInvalidSources, opts.Sources)
	}

	numResults := opts.NumResults
	if numResults == 0 {
		numResults = o.cfg.DefaultNumResults
	}
	if numResults < o.cfg.MinNumResults || numResults > o.cfg.MaxNumResults {
		return jobs.Job{}, fmt.Errorf("%w: must be between %d and %d", ErrInvalidNumResults, o.cfg.MinNumResults, o.cfg.MaxNumResults)
	}

	req := request{
		query:      query,
		sources:    sources,
		numResults: numResults,
		provider:   firstNonEmpty(opts.Provider, o.cfg.DefaultProvider),
		model:      firstNonEmpty(opts.Model, o.cfg.DefaultModel),
	}

	ctx, cancel := context.WithCancel(context.Background())
	job := o.store.Create(query, sources, numResults, cancel)
	go o.run(ctx, job.ID, req)
	return job, nil
}

func (o *Orchestrator) Get(id string) (jobs.Job, error) { return o.store.Get(id) }

func (o *Orchestrator) List() []jobs.Job { return o.store.List() }

func (o *Orchestrator) Delete(id string) error { return o.store.Delete(id) }

func (o *Orchestrator) run(ctx context.Context, id string, req request) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("research pipeline panic for job %s: %v", id, r)
			if o.store.Fail(id, fmt.Sprintf("internal error: %v", r)) {
				o.archiveJob(id)
			}
		}
	}()

	if err := o.slots.Acquire(ctx, 1); err != nil {
		return // job deleted while queued
	}
	defer o.slots.Release(1)

	if !o.store.Advance(id, jobs.StatusResearching, progressSearchStarted, "Starting research") {
		return
	}

	backends := backendsFor(req.sources)

	// numResults is per backend: fetch a multiple of it per backend to
	// survive dead links, analyze numResults sources from each.
	fetchCount := req.numResults * o.cfg.SearchMultiplier
	if fetchCount > o.cfg.MaxResults {
		fetchCount = o.cfg.MaxResults
	}
	need := req.numResults * len(backends)

	hits, notes, err := o.searchAll(ctx, req.query, req.sources, fetchCount)
	if ctx.Err() != nil {
		return
	}
	for _, note := range notes {
		o.store.Note(id, note)
	}
	if err != nil {
		if o.store.Fail(id, err.Error()) {
			o.archiveJob(id)
		}
		return
	}
	if len(hits) == 0 {
		if o.store.Fail(id, "no search results found") {
			o.archiveJob(id)
		}
		return
	}
	o.store.SetProgress(id, progressSearchStarted, fmt.Sprintf("Found %d sources", len(hits)))

	selected := interleaveHits(hits)
	contents, failures := o.extractAll(ctx, id, selected, need)
	if ctx.Err() != nil {
		return
	}
	if len(contents) == 0 {
		if o.store.Fail(id, "content extraction failed for every source") {
			o.archiveJob(id)
		}
		return
	}

	raw := buildRawData(req.query, hits, contents, append(notes, failures...))
	o.store.SetRawData(id, raw)

	if !o.store.Advance(id, jobs.StatusGenerating, progressGenerating, "Generating report") {
		return
	}

	report, message := o.generateReport(ctx, id, req, raw)
	if ctx.Err() != nil {
		return
	}
	if o.store.Complete(id, report, message) {
		o.archiveJob(id)
	}
}

func (o *Orchestrator) generateReport(ctx context.Context, id string, req request, raw string) (string, string) {
	if o.generator == nil {
		return "", "Research completed (report generation disabled)"
	}
	report, err := o.generator.Generate(ctx, req.query, raw, req.provider, req.model)
	if err != nil {
		if ctx.Err() != nil {
			return "", ""
		}
		log.Printf("report generation failed for job %s: %v", id, err)
		o.store.Note(id, fmt.Sprintf("report generation failed: %v", err))
		return "", "Research completed without report"
	}
	return report, "Research completed"
}

type searchOutcome struct {
	hits []Hit
	err  error
}

// searchAll queries every backend the request names concurrently, each call
// wrapped in the retry policy. A failed backend degrades the job with a
// note; only all backends failing is an error.
func (o *Orchestrator) searchAll(ctx context.Context, query string, sources jobs.Source, count int) ([]Hit, []string, error) {
	backends := backendsFor(sources)
	outcomes := make([]searchOutcome, len(backends))

	// Plain group on purpose: one backend failing must not cancel the other.
	var g errgroup.Group
	for i, backend := range backends {
		searcher := o.searchers[backend]
		g.Go(func() error {
			if searcher == nil {
				outcomes[i].err = &SearchError{Backend: backend, Kind: SearchUnreachable, Detail: "backend not configured"}
				return nil
			}
			outcomes[i].err = o.cfg.Retry.Do(ctx, func(ctx context.Context) error {
				hits, err := searcher.Search(ctx, query, count)
				if err != nil {
					return err
				}
				outcomes[i].hits = hits
				return nil
			})
			return nil
		})
	}
	g.Wait()

	var (
		merged   []Hit
		notes    []string
		failures []string
		seen     = make(map[string]bool)
	)
	for i, backend := range backends {
		if outcomes[i].err != nil {
			notes = append(notes, fmt.Sprintf("%s search unavailable: %v", backend, outcomes[i].err))
			failures = append(failures, outcomes[i].err.Error())
			continue
		}
		for _, hit := range outcomes[i].hits {
			if hit.URL == "" || seen[hit.URL] {
				continue
			}
			seen[hit.URL] = true
			merged = append(merged, hit)
		}
	}
	if len(failures) == len(backends) {
		return nil, notes, fmt.Errorf("all search backends failed: %s", strings.Join(failures, "; "))
	}
	return merged, notes, nil
}

func backendsFor(sources jobs.Source) []Backend {
	switch sources {
	case jobs.SourceWeb:
		return []Backend{BackendWeb}
	case jobs.SourceAcademic:
		return []Backend{BackendAcademic}
	default:
		return []Backend{BackendWeb, BackendAcademic}
	}
}

// interleaveHits alternates web and academic hits so mixed-source jobs
// analyze a balanced set instead of whichever backend returned first.
func interleaveHits(hits []Hit) []Hit {
	web := hitsFor(hits, BackendWeb)
	academic := hitsFor(hits, BackendAcademic)
	out := make([]Hit, 0, len(hits))
	for len(web) > 0 || len(academic) > 0 {
		if len(web) > 0 {
			out = append(out, web[0])
			web = web[1:]
		}
		if len(academic) > 0 {
			out = append(out, academic[0])
			academic = academic[1:]
		}
	}
	return out
}

// extractAll walks the selected hits in batches until it has numResults
// usable contents or runs out of hits. Academic hits build content from
// their abstract without a fetch; web hits go through the extractor under
// the extraction semaphore. Individual failures become raw-data error lines.
func (o *Orchestrator) extractAll(ctx context.Context, id string, hits []Hit, need int) ([]Extracted, []string) {
	sem := semaphore.NewWeighted(int64(o.cfg.ExtractConcurrency))
	contents := make([]Extracted, 0, need)
	var failures []string

	next := 0
	for len(contents) < need && next < len(hits) {
		batchSize := need - len(contents)
		if rest := len(hits) - next; batchSize > rest {
			batchSize = rest
		}
		batch := hits[next : next+batchSize]
		next += batchSize

		results := make([]Extracted, len(batch))
		errs := make([]error, len(batch))
		g, gctx := errgroup.WithContext(ctx)
		for i, hit := range batch {
			if hit.Backend == BackendAcademic {
				results[i] = academicContent(hit, o.cfg.MaxContentRunes)
				continue
			}
			g.Go(func() error {
				if err := sem.Acquire(gctx, 1); err != nil {
					errs[i] = err
					return nil
				}
				defer sem.Release(1)

				extracted, err := o.extractor.Extract(gctx, hit.URL)
				if err != nil {
					errs[i] = err
					return nil
				}
				extracted.Title = firstNonEmpty(extracted.Title, hit.Title)
				results[i] = extracted
				return nil
			})
		}
		g.Wait()
		if ctx.Err() != nil {
			return contents, failures
		}

		for i := range batch {
			if errs[i] != nil {
				failures = append(failures, errs[i].Error())
				continue
			}
			if results[i].URL == "" {
				continue
			}
			contents = append(contents, results[i])
		}
		o.store.SetProgress(id, researchProgress(len(contents), need),
			fmt.Sprintf("Extracted content from %d of %d sources", len(contents), need))
	}
	return contents, failures
}

func researchProgress(done, need int) int {
	if need <= 0 {
		return progressResearchCap
	}
	p := progressSearchStarted + (progressGenerating-progressSearchStarted)*done/need
	if p > progressResearchCap {
		p = progressResearchCap
	}
	return p
}

// archiveJob records a terminal snapshot. Failures are logged and dropped:
// archiving never changes a job's outcome.
func (o *Orchestrator) archiveJob(id string) {
	if o.archive == nil {
		return
	}
	job, err := o.store.Get(id)
	if err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := o.archive.Record(ctx, job); err != nil {
		log.Printf("archive write failed for job %s: %v", id, err)
	}
}
