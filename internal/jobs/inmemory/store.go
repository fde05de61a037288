package inmemory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dvloznov/shopkeeper/internal/domain"
	"github.com/dvloznov/shopkeeper/internal/jobs"
)

// DefaultMaxJobs bounds how many jobs NewStore keeps.
const DefaultMaxJobs = 1000

// Store is an in-memory implementation of JobStore. Once it holds more than
// its limit, the oldest finished jobs are evicted; pending and running jobs
// are never evicted. Data is lost on restart.
type Store struct {
	mu    sync.RWMutex
	jobs  map[string]*jobs.Job
	order []string
	max   int
}

// NewStore creates a job store holding up to DefaultMaxJobs jobs.
func NewStore() *Store {
	return NewStoreWithLimit(DefaultMaxJobs)
}

// NewStoreWithLimit creates a job store holding up to max jobs. A max of
// zero or less disables eviction.
func NewStoreWithLimit(max int) *Store {
	return &Store{
		jobs: make(map[string]*jobs.Job),
		max:  max,
	}
}

// SaveJob implements the JobStore interface.
func (s *Store) SaveJob(ctx context.Context, job *jobs.Job) error {
	if job.JobID == "" {
		return fmt.Errorf("SaveJob: %w: job ID is required", domain.ErrInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.JobID]; !exists {
		s.order = append(s.order, job.JobID)
	}
	s.jobs[job.JobID] = copyJob(job)
	s.evict()
	return nil
}

// evict drops the oldest finished jobs while the store is over its limit.
func (s *Store) evict() {
	if s.max <= 0 || len(s.jobs) <= s.max {
		return
	}
	kept := s.order[:0]
	for _, id := range s.order {
		if len(s.jobs) > s.max && finished(s.jobs[id].Status) {
			delete(s.jobs, id)
			continue
		}
		kept = append(kept, id)
	}
	s.order = kept
}

func finished(status jobs.JobStatus) bool {
	switch status {
	case jobs.JobStatusCompleted, jobs.JobStatusSkipped, jobs.JobStatusFailed:
		return true
	}
	return false
}

// GetJob implements the JobStore interface.
func (s *Store) GetJob(ctx context.Context, jobID string) (*jobs.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, exists := s.jobs[jobID]
	if !exists {
		return nil, fmt.Errorf("GetJob: job %s: %w", jobID, domain.ErrNotFound)
	}
	return copyJob(job), nil
}

// ListJobs implements the JobStore interface.
func (s *Store) ListJobs(ctx context.Context, filter jobs.JobFilter) ([]*jobs.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []*jobs.Job{}
	for _, job := range s.jobs {
		if filter.Key != "" && job.Key != filter.Key {
			continue
		}
		if filter.Type != "" && job.Type != filter.Type {
			continue
		}
		if filter.Status != "" && job.Status != filter.Status {
			continue
		}
		result = append(result, copyJob(job))
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].JobID < result[j].JobID
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(result) {
			return []*jobs.Job{}, nil
		}
		result = result[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(result) {
		result = result[:filter.Limit]
	}

	return result, nil
}

// UpdateJobStatus implements the JobStore interface.
func (s *Store) UpdateJobStatus(ctx context.Context, jobID string, status jobs.JobStatus, errorMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, exists := s.jobs[jobID]
	if !exists {
		return fmt.Errorf("UpdateJobStatus: job %s: %w", jobID, domain.ErrNotFound)
	}

	job.Status = status
	if errorMsg != "" {
		job.Error = errorMsg
	}
	return nil
}

func copyJob(job *jobs.Job) *jobs.Job {
	c := *job
	c.Payload = nil
	return &c
}

var _ jobs.JobStore = (*Store)(nil)
