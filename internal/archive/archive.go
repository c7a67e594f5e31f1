// Package archive persists terminal research jobs so history survives
// restarts of the in-memory job store.
package archive

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"alpaca/backend/internal/jobs"
)

const schema = `
CREATE TABLE IF NOT EXISTS research_archive (
	id           TEXT PRIMARY KEY,
	query        TEXT NOT NULL,
	sources      TEXT NOT NULL,
	num_results  INTEGER NOT NULL,
	status       TEXT NOT NULL,
	error        TEXT NOT NULL DEFAULT '',
	raw_chars    INTEGER NOT NULL DEFAULT 0,
	report_chars INTEGER NOT NULL DEFAULT 0,
	created_at   TIMESTAMP NOT NULL,
	completed_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_research_archive_completed_at
	ON research_archive (completed_at DESC);
`

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create archive schema: %w", err)
	}
	return nil
}

// Entry is one archived row. Raw data and reports are not stored, only
// their sizes; the archive answers "what ran and how did it end".
type Entry struct {
	ID          string    `json:"id"`
	Query       string    `json:"query"`
	Sources     string    `json:"sources"`
	NumResults  int       `json:"numResults"`
	Status      string    `json:"status"`
	Error       string    `json:"error,omitempty"`
	RawChars    int       `json:"rawChars"`
	ReportChars int       `json:"reportChars"`
	CreatedAt   time.Time `json:"createdAt"`
	CompletedAt time.Time `json:"completedAt"`
}

// Record inserts a terminal job snapshot. Re-recording the same id is an
// upsert so retried archive writes stay idempotent.
func (s *Store) Record(ctx context.Context, job jobs.Job) error {
	if !job.Status.Terminal() {
		return fmt.Errorf("job %s is not terminal (%s)", job.ID, job.Status)
	}
	completedAt := time.Now().UTC()
	if job.CompletedAt != nil {
		completedAt = *job.CompletedAt
	}

	const query = `
INSERT INTO research_archive
	(id, query, sources, num_results, status, error, raw_chars, report_chars, created_at, completed_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
	status = excluded.status,
	error = excluded.error,
	raw_chars = excluded.raw_chars,
	report_chars = excluded.report_chars,
	completed_at = excluded.completed_at`

	_, err := s.db.ExecContext(ctx, query,
		job.ID, job.Query, string(job.Sources), job.NumResults, string(job.Status),
		job.Error, len(job.RawData), len(job.Report), job.CreatedAt, completedAt)
	if err != nil {
		return fmt.Errorf("insert archive row: %w", err)
	}
	return nil
}

// Recent returns up to limit rows, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}

	const query = `
SELECT id, query, sources, num_results, status, error, raw_chars, report_chars, created_at, completed_at
FROM research_archive
ORDER BY completed_at DESC
LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query archive: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0, limit)
	for rows.Next() {
		var entry Entry
		if err := rows.Scan(
			&entry.ID, &entry.Query, &entry.Sources, &entry.NumResults, &entry.Status,
			&entry.Error, &entry.RawChars, &entry.ReportChars, &entry.CreatedAt, &entry.CompletedAt,
		); err != nil {
			return nil, fmt.Errorf("scan archive row: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate archive rows: %w", err)
	}
	return entries, nil
}
