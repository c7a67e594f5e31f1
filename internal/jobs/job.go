package jobs

import "time"

// Source selects which search backends a job queries.
type Source string

const (
	SourceWeb      Source = "web"
	SourceAcademic Source = "academic"
	SourceBoth     Source = "both"
)

func (s Source) Valid() bool {
	switch s {
	case SourceWeb, SourceAcademic, SourceBoth:
		return true
	}
	return false
}

// Status is the job lifecycle state. Transitions only move forward:
// queued -> researching -> generating -> completed, with failed reachable
// from any non-terminal state.
type Status string

const (
	StatusQueued      Status = "queued"
	StatusResearching Status = "researching"
	StatusGenerating  Status = "generating"
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
)

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

var validTransitions = map[Status][]Status{
	StatusQueued:      {StatusResearching, StatusFailed},
	StatusResearching: {StatusGenerating, StatusFailed},
	StatusGenerating:  {StatusCompleted, StatusFailed},
}

func canTransition(from, to Status) bool {
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ProgressEvent is one append-only entry in a job's progress log.
type ProgressEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Status    Status    `json:"status"`
	Progress  int       `json:"progress"`
	Message   string    `json:"message"`
}

// Job is a snapshot of one research request and its accumulated state.
// Store reads always return copies, so callers can never observe a job
// mid-mutation.
type Job struct {
	ID          string          `json:"id"`
	Query       string          `json:"query"`
	Sources     Source          `json:"sources"`
	NumResults  int             `json:"numResults"`
	Status      Status          `json:"status"`
	Progress    int             `json:"progress"`
	RawData     string          `json:"rawData,omitempty"`
	Report      string          `json:"report,omitempty"`
	Error       string          `json:"error,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	CompletedAt *time.Time      `json:"completedAt,omitempty"`
	ProgressLog []ProgressEvent `json:"-"`
}

func (j Job) snapshot() Job {
	out := j
	if j.CompletedAt != nil {
		completed := *j.CompletedAt
		out.CompletedAt = &completed
	}
	out.ProgressLog = make([]ProgressEvent, len(j.ProgressLog))
	copy(out.ProgressLog, j.ProgressLog)
	return out
}
