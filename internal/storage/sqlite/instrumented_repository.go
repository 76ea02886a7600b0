package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/italolelis/mediafetch/internal/job"
	"github.com/italolelis/mediafetch/internal/telemetry"
)

// InstrumentedJobRepository wraps JobRepository with telemetry.
type InstrumentedJobRepository struct {
	repo      *JobRepository
	telemetry *telemetry.Telemetry
}

// NewInstrumentedJobRepository creates a new instrumented job repository.
func NewInstrumentedJobRepository(dbConn *sql.DB, tel *telemetry.Telemetry) *InstrumentedJobRepository {
	return &InstrumentedJobRepository{
		repo:      NewJobRepository(dbConn),
		telemetry: tel,
	}
}

// Create creates a job with telemetry.
func (r *InstrumentedJobRepository) Create(ctx context.Context, spec job.Spec) (*job.Job, error) {
	var result *job.Job

	var err error

	instrumentedErr := r.telemetry.InstrumentDBOperation(ctx, "create_job", func(ctx context.Context) error {
		result, err = r.repo.Create(ctx, spec)

		return err
	})

	if instrumentedErr != nil {
		return nil, instrumentedErr
	}

	return result, nil
}

// Get retrieves a job with telemetry.
func (r *InstrumentedJobRepository) Get(ctx context.Context, id string) (*job.Job, error) {
	var result *job.Job

	var err error

	instrumentedErr := r.telemetry.InstrumentDBOperation(ctx, "get_job", func(ctx context.Context) error {
		result, err = r.repo.Get(ctx, id)

		return err
	})

	if instrumentedErr != nil {
		return nil, instrumentedErr
	}

	return result, nil
}

// ListByStatus lists jobs with telemetry.
func (r *InstrumentedJobRepository) ListByStatus(ctx context.Context, statuses ...job.Status) ([]*job.Job, error) {
	var result []*job.Job

	var err error

	instrumentedErr := r.telemetry.InstrumentDBOperation(ctx, "list_jobs", func(ctx context.Context) error {
		result, err = r.repo.ListByStatus(ctx, statuses...)

		return err
	})

	if instrumentedErr != nil {
		return nil, instrumentedErr
	}

	return result, nil
}

// Update updates a job with telemetry.
func (r *InstrumentedJobRepository) Update(ctx context.Context, id string, patch job.Patch) error {
	return r.telemetry.InstrumentDBOperation(ctx, "update_job", func(ctx context.Context) error {
		return r.repo.Update(ctx, id, patch)
	})
}

// Claim claims a job with telemetry.
func (r *InstrumentedJobRepository) Claim(ctx context.Context, id, instanceID string) (bool, error) {
	var result bool

	var err error

	instrumentedErr := r.telemetry.InstrumentDBOperation(ctx, "claim_job", func(ctx context.Context) error {
		result, err = r.repo.Claim(ctx, id, instanceID)

		return err
	})

	if instrumentedErr != nil {
		return false, instrumentedErr
	}

	return result, nil
}

// Heartbeat refreshes claimed jobs with telemetry.
func (r *InstrumentedJobRepository) Heartbeat(ctx context.Context, instanceID string) (int64, error) {
	var touched int64

	err := r.telemetry.InstrumentDBOperation(ctx, "heartbeat_jobs", func(ctx context.Context) error {
		var err error

		touched, err = r.repo.Heartbeat(ctx, instanceID)

		return err
	})

	return touched, err
}

// ExpireStale expires abandoned jobs with telemetry.
func (r *InstrumentedJobRepository) ExpireStale(ctx context.Context, cutoff time.Time) ([]string, error) {
	var expired []string

	err := r.telemetry.InstrumentDBOperation(ctx, "expire_jobs", func(ctx context.Context) error {
		var err error

		expired, err = r.repo.ExpireStale(ctx, cutoff)

		return err
	})

	return expired, err
}
