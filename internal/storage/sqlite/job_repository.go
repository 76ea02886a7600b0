package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/italolelis/mediafetch/internal/job"
	"github.com/italolelis/mediafetch/internal/storage"
)

// timeLayout sorts lexicographically in chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const jobColumns = `id, url, kind, resolution, container, audio_format, audio_quality,
	want_subtitle, want_thumbnail, status, progress, filename, created_at`

type JobRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewJobRepository(dbConn *sql.DB) *JobRepository {
	return &JobRepository{db: dbConn, now: time.Now}
}

// Create inserts a PENDING job for spec.
func (r *JobRepository) Create(ctx context.Context, spec job.Spec) (*job.Job, error) {
	now := r.now().UTC()
	j := &job.Job{
		ID:        uuid.NewString(),
		Spec:      spec,
		Status:    job.StatusPending,
		CreatedAt: now,
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO jobs (id, url, kind, resolution, container, audio_format, audio_quality,
			want_subtitle, want_thumbnail, status, progress, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)`,
		j.ID, spec.URL, string(spec.Kind), spec.Resolution, string(spec.Container),
		string(spec.AudioFormat), string(spec.AudioQuality), spec.WantSubtitle, spec.WantThumbnail,
		j.Status.String(), now.Format(timeLayout), now.Format(timeLayout),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert job: %w", err)
	}

	return j, nil
}

// Get returns the job with id or storage.ErrNotFound.
func (r *JobRepository) Get(ctx context.Context, id string) (*job.Job, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)

	j, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to read job: %w", err)
	}

	return j, nil
}

// ListByStatus returns jobs in any of statuses, oldest first.
func (r *JobRepository) ListByStatus(ctx context.Context, statuses ...job.Status) ([]*job.Job, error) {
	if len(statuses) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(statuses)), ", ")
	args := make([]any, 0, len(statuses))

	for _, s := range statuses {
		args = append(args, s.String())
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE status IN (`+placeholders+`) ORDER BY created_at, id`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*job.Job

	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to read job: %w", err)
		}

		jobs = append(jobs, j)
	}

	return jobs, rows.Err()
}

// Update applies the non-nil fields of patch. Terminal jobs are never
// modified.
func (r *JobRepository) Update(ctx context.Context, id string, patch job.Patch) error {
	if patch.IsEmpty() {
		return nil
	}

	var (
		sets []string
		args []any
	)

	if patch.URL != nil {
		sets = append(sets, "url = ?")
		args = append(args, *patch.URL)
	}

	if patch.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, patch.Status.String())

		if patch.Status.IsTerminal() {
			sets = append(sets, "locked_by = NULL")
		}
	}

	if patch.Progress != nil {
		sets = append(sets, "progress = ?")
		args = append(args, *patch.Progress)
	}

	if patch.Filename != nil {
		sets = append(sets, "filename = ?")
		args = append(args, *patch.Filename)
	}

	sets = append(sets, "updated_at = ?")
	args = append(args, r.now().UTC().Format(timeLayout), id, job.StatusFinished.String(), job.StatusFailed.String())

	res, err := r.db.ExecContext(ctx,
		`UPDATE jobs SET `+strings.Join(sets, ", ")+` WHERE id = ? AND status NOT IN (?, ?)`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}

	if affected > 0 {
		return nil
	}

	return r.missOrTerminal(ctx, id)
}

// Claim atomically sets status to DOWNLOADING and locked_by to instanceID if
// the job is PENDING.
func (r *JobRepository) Claim(ctx context.Context, id, instanceID string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, progress = 0, locked_by = ?, updated_at = ? WHERE id = ? AND status = ?`,
		job.StatusDownloading.String(), instanceID, r.now().UTC().Format(timeLayout), id, job.StatusPending.String(),
	)
	if err != nil {
		return false, fmt.Errorf("failed to claim job: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	if affected > 0 {
		return true, nil
	}

	if _, err := r.Get(ctx, id); err != nil {
		return false, err
	}

	return false, nil
}

// Heartbeat bumps updated_at of the active jobs locked by instanceID.
func (r *JobRepository) Heartbeat(ctx context.Context, instanceID string) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE jobs SET updated_at = ? WHERE locked_by = ? AND status IN (?, ?)`,
		r.now().UTC().Format(timeLayout), instanceID,
		job.StatusDownloading.String(), job.StatusProcessing.String(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to refresh claimed jobs: %w", err)
	}

	return res.RowsAffected()
}

// ExpireStale fails active jobs whose updated_at is older than cutoff. A job
// refreshed between the scan and the update is left alone.
func (r *JobRepository) ExpireStale(ctx context.Context, cutoff time.Time) ([]string, error) {
	before := cutoff.UTC().Format(timeLayout)
	active := []any{job.StatusDownloading.String(), job.StatusProcessing.String()}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id FROM jobs WHERE status IN (?, ?) AND updated_at < ? ORDER BY created_at, id`,
		append(active, before)...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale jobs: %w", err)
	}

	var candidates []string

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()

			return nil, fmt.Errorf("failed to read stale job: %w", err)
		}

		candidates = append(candidates, id)
	}

	rows.Close()

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list stale jobs: %w", err)
	}

	var expired []string

	for _, id := range candidates {
		res, err := r.db.ExecContext(ctx,
			`UPDATE jobs SET status = ?, locked_by = NULL, updated_at = ?
			WHERE id = ? AND status IN (?, ?) AND updated_at < ?`,
			job.StatusFailed.String(), r.now().UTC().Format(timeLayout), id, active[0], active[1], before,
		)
		if err != nil {
			return expired, fmt.Errorf("failed to expire job %s: %w", id, err)
		}

		if n, err := res.RowsAffected(); err == nil && n > 0 {
			expired = append(expired, id)
		}
	}

	return expired, nil
}

func (r *JobRepository) missOrTerminal(ctx context.Context, id string) error {
	if _, err := r.Get(ctx, id); err != nil {
		return err
	}

	return storage.ErrTerminal
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(s scanner) (*job.Job, error) {
	var (
		j                           job.Job
		kind, container, format     string
		quality, status, createdAt  string
		filename                    sql.NullString
		wantSubtitle, wantThumbnail bool
	)

	err := s.Scan(
		&j.ID, &j.Spec.URL, &kind, &j.Spec.Resolution, &container, &format, &quality,
		&wantSubtitle, &wantThumbnail, &status, &j.Progress, &filename, &createdAt,
	)
	if err != nil {
		return nil, err
	}

	j.Spec.Kind = job.Kind(kind)
	j.Spec.Container = job.Container(container)
	j.Spec.AudioFormat = job.AudioFormat(format)
	j.Spec.AudioQuality = job.AudioQuality(quality)
	j.Spec.WantSubtitle = wantSubtitle
	j.Spec.WantThumbnail = wantThumbnail

	st, ok := job.ParseStatus(status)
	if !ok {
		return nil, fmt.Errorf("unknown job status %q", status)
	}

	j.Status = st

	if filename.Valid {
		j.Filename = filename.String
	}

	if j.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return nil, fmt.Errorf("invalid created_at %q: %w", createdAt, err)
	}

	return &j, nil
}
