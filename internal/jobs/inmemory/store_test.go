package inmemory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/shopkeeper/internal/domain"
	"github.com/dvloznov/shopkeeper/internal/jobs"
)

func TestStore_ListJobs(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	base := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)

	seed := []*jobs.Job{
		{JobID: "a", Type: jobs.JobTypePersistDocument, Key: "products", Status: jobs.JobStatusCompleted, CreatedAt: base},
		{JobID: "b", Type: jobs.JobTypePersistDocument, Key: "inventory", Status: jobs.JobStatusFailed, CreatedAt: base.Add(time.Minute)},
		{JobID: "c", Type: jobs.JobTypeMirrorSale, Key: "tx-1", Status: jobs.JobStatusCompleted, CreatedAt: base.Add(2 * time.Minute)},
	}
	for _, j := range seed {
		require.NoError(t, s.SaveJob(ctx, j))
	}

	tests := []struct {
		name   string
		filter jobs.JobFilter
		want   []string
	}{
		{"all newest first", jobs.JobFilter{}, []string{"c", "b", "a"}},
		{"by status", jobs.JobFilter{Status: jobs.JobStatusCompleted}, []string{"c", "a"}},
		{"by type", jobs.JobFilter{Type: jobs.JobTypeMirrorSale}, []string{"c"}},
		{"by key", jobs.JobFilter{Key: "inventory"}, []string{"b"}},
		{"limit and offset", jobs.JobFilter{Offset: 1, Limit: 1}, []string{"b"}},
		{"offset past end", jobs.JobFilter{Offset: 10}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ListJobs(ctx, tt.filter)
			require.NoError(t, err)
			ids := []string{}
			for _, j := range got {
				ids = append(ids, j.JobID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestStore_Errors(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	assert.ErrorIs(t, s.SaveJob(ctx, &jobs.Job{}), domain.ErrInput)

	_, err := s.GetJob(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.ErrorIs(t, s.UpdateJobStatus(ctx, "missing", jobs.JobStatusFailed, "x"), domain.ErrNotFound)

	require.NoError(t, s.SaveJob(ctx, &jobs.Job{JobID: "j"}))
	require.NoError(t, s.UpdateJobStatus(ctx, "j", jobs.JobStatusFailed, "boom"))
	j, err := s.GetJob(ctx, "j")
	require.NoError(t, err)
	assert.Equal(t, jobs.JobStatusFailed, j.Status)
	assert.Equal(t, "boom", j.Error)
}

func TestStore_EvictsOldestFinishedJobs(t *testing.T) {
	ctx := context.Background()
	s := NewStoreWithLimit(2)

	require.NoError(t, s.SaveJob(ctx, &jobs.Job{JobID: "running", Status: jobs.JobStatusRunning}))
	require.NoError(t, s.SaveJob(ctx, &jobs.Job{JobID: "done-1", Status: jobs.JobStatusCompleted}))
	require.NoError(t, s.SaveJob(ctx, &jobs.Job{JobID: "done-2", Status: jobs.JobStatusSkipped}))

	_, err := s.GetJob(ctx, "done-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = s.GetJob(ctx, "running")
	assert.NoError(t, err)
	_, err = s.GetJob(ctx, "done-2")
	assert.NoError(t, err)

	require.NoError(t, s.SaveJob(ctx, &jobs.Job{JobID: "pending", Status: jobs.JobStatusPending}))
	all, err := s.ListJobs(ctx, jobs.JobFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	// Updating an existing job does not grow the store.
	require.NoError(t, s.SaveJob(ctx, &jobs.Job{JobID: "pending", Status: jobs.JobStatusRunning}))
	all, err = s.ListJobs(ctx, jobs.JobFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
