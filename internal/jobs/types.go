// Package jobs describes the background work the shop hands off after a
// change: writing documents to the store and mirroring sales.
package jobs

import (
	"context"
	"time"
)

// JobType names what a job does.
type JobType string

const (
	// JobTypePersistDocument writes one shop document to the store.
	JobTypePersistDocument JobType = "persist_document"
	// JobTypeMirrorSale copies a committed sale to the warehouse.
	JobTypeMirrorSale JobType = "mirror_sale"
)

// JobStatus is the lifecycle state of a job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	// JobStatusSkipped means a newer version of the document was already written.
	JobStatusSkipped  JobStatus = "skipped"
	JobStatusFailed   JobStatus = "failed"
	JobStatusRetrying JobStatus = "retrying"
)

// Job is one unit of background work. For persistence jobs Key is the
// document key and Version orders writes to the same key; for mirror jobs
// Key is the transaction ID.
type Job struct {
	JobID   string  `json:"job_id"`
	Type    JobType `json:"type"`
	Key     string  `json:"key"`
	Version uint64  `json:"version"`

	// Payload is the encoded document. It is not exposed through the job API.
	Payload []byte `json:"-"`

	Status      JobStatus  `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
	RetryCount  int        `json:"retry_count"`
	MaxRetries  int        `json:"max_retries"`
}

// ErrSkipped is returned by a handler when the job is obsolete. The job is
// marked skipped and never retried.
type ErrSkipped struct {
	Reason string
}

func (e *ErrSkipped) Error() string {
	return "skipped: " + e.Reason
}

// Publisher enqueues jobs.
type Publisher interface {
	Publish(ctx context.Context, job *Job) error
	Close() error
}

// Consumer runs a handler over published jobs.
type Consumer interface {
	Start(ctx context.Context, handler JobHandler) error
	// Stop waits for queued and in-flight jobs to finish or ctx to expire.
	Stop(ctx context.Context) error
}

// JobHandler processes one job. A returned error makes the job eligible
// for retry unless it is an *ErrSkipped.
type JobHandler func(ctx context.Context, job *Job) error

// JobStore records job state for the jobs API.
type JobStore interface {
	SaveJob(ctx context.Context, job *Job) error
	GetJob(ctx context.Context, jobID string) (*Job, error)
	// ListJobs returns matching jobs, newest first.
	ListJobs(ctx context.Context, filter JobFilter) ([]*Job, error)
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, errorMsg string) error
}

// JobFilter narrows ListJobs. Zero fields match everything.
type JobFilter struct {
	Key    string
	Type   JobType
	Status JobStatus
	Limit  int
	Offset int
}
