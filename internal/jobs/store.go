package jobs

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("research job not found")

// Store holds every live job keyed by id. The map is guarded by one mutex;
// per-job field updates never contend because each job is mutated only by
// the single pipeline goroutine that owns it.
type Store struct {
	mu      sync.Mutex
	records map[string]*record
}

type record struct {
	job    Job
	cancel context.CancelFunc
}

func NewStore() *Store {
	return &Store{records: make(map[string]*record)}
}

// Create registers a new queued job and returns its initial snapshot.
// cancel is invoked by Delete to abandon an in-flight pipeline.
func (s *Store) Create(query string, sources Source, numResults int, cancel context.CancelFunc) Job {
	job := Job{
		ID:         uuid.NewString(),
		Query:      query,
		Sources:    sources,
		NumResults: numResults,
		Status:     StatusQueued,
		Progress:   0,
		CreatedAt:  time.Now().UTC(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[job.ID] = &record{job: job, cancel: cancel}
	return job.snapshot()
}

func (s *Store) Get(id string) (Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return Job{}, ErrNotFound
	}
	return rec.job.snapshot(), nil
}

func (s *Store) List() []Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Job, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec.job.snapshot())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Delete removes the record immediately and cancels any in-flight pipeline.
// A cancelled pipeline's later writes become no-ops, so a deleted job never
// gains a terminal state.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	rec, ok := s.records[id]
	if ok {
		delete(s.records, id)
	}
	s.mu.Unlock()

	if !ok {
		return ErrNotFound
	}
	if rec.cancel != nil {
		rec.cancel()
	}
	return nil
}

// Advance moves a job to the next lifecycle state, appending a progress
// event. Returns false when the job is gone or the transition is not part
// of the state machine; callers treat false as "stop working on this job".
func (s *Store) Advance(id string, status Status, progress int, message string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok || !canTransition(rec.job.Status, status) {
		return false
	}

	rec.job.Status = status
	if progress > rec.job.Progress {
		rec.job.Progress = progress
	}
	s.appendEventLocked(rec, message)
	return true
}

// SetProgress advances the progress cursor within the current state.
// Progress never decreases while a job is live.
func (s *Store) SetProgress(id string, progress int, message string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok || rec.job.Status.Terminal() {
		return false
	}
	if progress > rec.job.Progress {
		rec.job.Progress = progress
	}
	s.appendEventLocked(rec, message)
	return true
}

// Note appends a log event without touching status or progress. Used for
// degradation notices (a rate-limited backend, a skipped report).
func (s *Store) Note(id, message string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok || rec.job.Status.Terminal() {
		return false
	}
	s.appendEventLocked(rec, message)
	return true
}

func (s *Store) SetRawData(id, raw string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok || rec.job.Status.Terminal() || rec.job.RawData != "" {
		return false
	}
	rec.job.RawData = raw
	return true
}

// Complete marks the job completed with progress 100. report may be empty
// when generation was skipped or failed; that is still a successful job.
func (s *Store) Complete(id, report, message string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok || !canTransition(rec.job.Status, StatusCompleted) {
		return false
	}

	now := time.Now().UTC()
	rec.job.Status = StatusCompleted
	rec.job.Progress = 100
	rec.job.Report = report
	rec.job.CompletedAt = &now
	s.appendEventLocked(rec, message)
	return true
}

// Fail marks the job failed and resets progress to zero.
func (s *Store) Fail(id, errMsg string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok || !canTransition(rec.job.Status, StatusFailed) {
		return false
	}

	now := time.Now().UTC()
	rec.job.Status = StatusFailed
	rec.job.Progress = 0
	rec.job.Error = errMsg
	rec.job.CompletedAt = &now
	s.appendEventLocked(rec, errMsg)
	return true
}

func (s *Store) appendEventLocked(rec *record, message string) {
	rec.job.ProgressLog = append(rec.job.ProgressLog, ProgressEvent{
		Timestamp: time.Now().UTC(),
		Status:    rec.job.Status,
		Progress:  rec.job.Progress,
		Message:   message,
	})
}
