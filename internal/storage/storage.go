// Package storage defines persistence for download jobs.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/italolelis/mediafetch/internal/job"
)

var (
	// ErrNotFound is returned when no job has the requested id.
	ErrNotFound = errors.New("job not found")
	// ErrTerminal is returned when updating a job that already reached
	// FINISHED or FAILED.
	ErrTerminal = errors.New("job is in a terminal status")
)

// JobReadRepository reads jobs.
type JobReadRepository interface {
	Get(ctx context.Context, id string) (*job.Job, error)
	ListByStatus(ctx context.Context, statuses ...job.Status) ([]*job.Job, error)
}

// JobWriteRepository creates and mutates jobs.
type JobWriteRepository interface {
	// Create stores a new PENDING job with a fresh id.
	Create(ctx context.Context, spec job.Spec) (*job.Job, error)
	// Update applies patch to a non-terminal job.
	Update(ctx context.Context, id string, patch job.Patch) error
	// Claim atomically moves a PENDING job to DOWNLOADING under instanceID.
	// It reports false when the job exists but is not PENDING.
	Claim(ctx context.Context, id, instanceID string) (bool, error)
	// Heartbeat refreshes the last update time of every active job claimed
	// by instanceID and reports how many were touched.
	Heartbeat(ctx context.Context, instanceID string) (int64, error)
	// ExpireStale marks FAILED every active job last updated before cutoff
	// and returns their ids.
	ExpireStale(ctx context.Context, cutoff time.Time) ([]string, error)
}

// JobRepository is the full job store.
type JobRepository interface {
	JobReadRepository
	JobWriteRepository
}
