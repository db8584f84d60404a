package store

import (
	"time"
)

// JobStatus represents the lifecycle state of a job.
type JobStatus string

const (
	JobStatusQueued   JobStatus = "queued"
	JobStatusRunning  JobStatus = "running"
	JobStatusDone     JobStatus = "done"
	JobStatusFailed   JobStatus = "failed"
	JobStatusCanceled JobStatus = "canceled"
)

func (s JobStatus) terminal() bool {
	return s == JobStatusDone || s == JobStatusCanceled || s == JobStatusFailed
}

// DefaultMaxAttempts is how often a job runs before it is marked failed.
const DefaultMaxAttempts = 3

// JobKindDebrief generates the post-session debrief for a finished session.
const JobKindDebrief = "debrief"

// Job is a durable unit of follow-up work.
type Job struct {
	ID          string     `json:"id"`
	Kind        string     `json:"kind"`
	RunAt       time.Time  `json:"run_at"`
	PayloadJSON string     `json:"payload_json"`
	Status      JobStatus  `json:"status"`
	Attempt     int        `json:"attempt"`
	MaxAttempts int        `json:"max_attempts"`
	LastError   string     `json:"last_error"`
	LockedAt    *time.Time `json:"locked_at"`
	DedupeKey   string     `json:"dedupe_key"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// JobRepo is durable job persistence.
type JobRepo interface {
	// EnqueueJob inserts a job. With a non-empty dedupeKey an existing
	// unfinished job with the same key is returned instead.
	EnqueueJob(kind string, runAt time.Time, payloadJSON string, dedupeKey string) (string, error)

	// ClaimDueJobs marks up to limit queued jobs with run_at <= now as
	// running and returns them.
	ClaimDueJobs(now time.Time, limit int) ([]Job, error)

	CompleteJob(id string) error

	// FailJob records errMsg and requeues the job at nextRunAt, or marks it
	// failed once its attempts are used up.
	FailJob(id string, errMsg string, nextRunAt time.Time) error

	CancelJob(id string) error

	// RequeueStaleRunningJobs puts jobs locked before staleBefore back in the
	// queue. Call it once at startup.
	RequeueStaleRunningJobs(staleBefore time.Time) (int, error)

	// GetJob returns nil, nil for unknown IDs.
	GetJob(id string) (*Job, error)
}
