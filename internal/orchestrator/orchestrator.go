// Package orchestrator drives download jobs through their lifecycle: it claims
// a job, derives the engine configuration, runs the engine with a single
// cookie-less fallback, bridges progress and settles the job as FINISHED or
// FAILED.
package orchestrator

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"runtime/debug"
	"sync"

	"github.com/italolelis/mediafetch/internal/engine"
	"github.com/italolelis/mediafetch/internal/job"
	"github.com/italolelis/mediafetch/internal/logctx"
	"github.com/italolelis/mediafetch/internal/plan"
	"github.com/italolelis/mediafetch/internal/progress"
	"github.com/italolelis/mediafetch/internal/storage"
	"github.com/italolelis/mediafetch/internal/telemetry"
	"github.com/italolelis/mediafetch/internal/tools"
)

const (
	dirPerm = 0755

	// processingProgress marks "download done, post-processing pending".
	// The engine does not report post-processing progress.
	processingProgress = 98.0
	finishedProgress   = 100.0
	// downloadCeiling caps download readings below processingProgress.
	downloadCeiling = processingProgress - 1

	eventBufferSize = 64
)

// ToolDiscoverer resolves the optional external tools.
type ToolDiscoverer interface {
	Discover() tools.Toolset
}

// Failure is emitted when a job ends FAILED.
type Failure struct {
	Job *job.Job
	Err error
}

// Options configures an Orchestrator.
type Options struct {
	OutputDir string
	// CookieFile is attached to the first attempt only while the file exists.
	CookieFile string
	// ProgressStep is the minimum progress increase persisted.
	ProgressStep float64
	InstanceID   string
}

// Orchestrator runs jobs one at a time per call to Run. It is safe for
// concurrent use across different job ids. OnJobFinished and OnJobFailed
// must be drained by the caller.
type Orchestrator struct {
	repo      storage.JobRepository
	engine    engine.Engine
	tools     ToolDiscoverer
	telemetry *telemetry.Telemetry
	opts      Options
	stat      func(string) (os.FileInfo, error)

	OnJobFinished chan *job.Job
	OnJobFailed   chan Failure
}

// New creates an orchestrator.
func New(repo storage.JobRepository, eng engine.Engine, td ToolDiscoverer, tel *telemetry.Telemetry, opts Options) *Orchestrator {
	if opts.InstanceID == "" {
		opts.InstanceID = storage.GenerateInstanceID()
	}

	return &Orchestrator{
		repo:          repo,
		engine:        eng,
		tools:         td,
		telemetry:     tel,
		opts:          opts,
		stat:          os.Stat,
		OnJobFinished: make(chan *job.Job, eventBufferSize),
		OnJobFailed:   make(chan Failure, eventBufferSize),
	}
}

// Close closes the event channels. Run must not be called afterwards.
func (o *Orchestrator) Close() {
	close(o.OnJobFinished)
	close(o.OnJobFailed)
}

// Environment returns the environment a configuration is derived from right
// now. Cookie presence is checked on every call.
func (o *Orchestrator) Environment() plan.Environment {
	env := plan.Environment{
		OutputDir: o.opts.OutputDir,
		Tools:     o.tools.Discover(),
	}

	if o.opts.CookieFile != "" {
		if fi, err := o.stat(o.opts.CookieFile); err == nil && fi.Mode().IsRegular() {
			env.CookieFile = o.opts.CookieFile
		}
	}

	return env
}

// Run executes the job with id. Re-delivery of a job that is no longer
// PENDING is a no-op. Once claimed, the job always ends FINISHED or FAILED;
// the returned error is the failure cause, if any.
func (o *Orchestrator) Run(ctx context.Context, id string) error {
	logger := logctx.LoggerFromContext(ctx).With("job_id", id)
	ctx = logctx.WithLogger(ctx, logger)

	claimed, err := o.repo.Claim(ctx, id, o.opts.InstanceID)
	if err != nil {
		return fmt.Errorf("failed to claim job: %w", err)
	}

	if !claimed {
		o.logUnclaimed(ctx, id)

		return nil
	}

	// A claimed job runs to completion even if the caller goes away.
	ctx = context.WithoutCancel(ctx)

	j, err := o.repo.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load claimed job: %w", err)
	}

	r := &run{Orchestrator: o, job: j}

	return o.telemetry.InstrumentJob(ctx, string(j.Spec.Kind), func(ctx context.Context) error {
		return r.execute(ctx)
	})
}

func (o *Orchestrator) logUnclaimed(ctx context.Context, id string) {
	logger := logctx.LoggerFromContext(ctx)

	j, err := o.repo.Get(ctx, id)
	if err != nil {
		logger.Error("failed to inspect unclaimed job", "err", err)

		return
	}

	if j.Status.IsTerminal() {
		logger.Info("skipping job because it's already settled", "status", j.Status)

		return
	}

	logger.Warn("skipping job because it's owned by another run", "status", j.Status)
}

// run holds the state of a single claimed job.
type run struct {
	*Orchestrator

	mu      sync.Mutex
	job     *job.Job
	tracker *progress.Tracker
}

func (r *run) execute(ctx context.Context) (err error) {
	logger := logctx.LoggerFromContext(ctx)

	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("job run panic", "panic", rec, "stack", string(debug.Stack()))
			r.telemetry.RecordSystemError(ctx, "orchestrator", "panic")

			err = &PanicError{Value: rec}
		}

		if err != nil {
			r.fail(ctx, err)
		}
	}()

	if err := r.normalizeURL(ctx); err != nil {
		return err
	}

	if err := os.MkdirAll(r.opts.OutputDir, dirPerm); err != nil {
		return &SetupError{Step: "output_dir", Err: err}
	}

	r.tracker = progress.NewTracker(r.job.Progress, r.opts.ProgressStep, func(v float64) {
		r.persistProgress(ctx, v)
	})

	spec := r.snapshot().Spec
	cfg := plan.Derive(spec, r.Environment())

	logger.Info("job started",
		"url", spec.URL,
		"kind", spec.Kind,
		"cookies", cfg.HasCookies(),
		"accelerator", cfg.Accelerator != nil,
		"ffmpeg", cfg.FFmpegLocation != "",
	)

	result, err := r.invoke(ctx, spec.URL, cfg)
	if err != nil {
		return err
	}

	filename := finalFilename(spec, cfg, result)

	if err := r.transition(ctx, job.StatusFinished, job.Patch{
		Progress: ptr(finishedProgress),
		Filename: ptr(filename),
	}); err != nil {
		return err
	}

	logger.Info("job finished", "filename", filename)

	r.OnJobFinished <- r.snapshot()

	return nil
}

// invoke runs the engine and applies the cookie-less fallback.
func (r *run) invoke(ctx context.Context, url string, cfg plan.Config) (*engine.Result, error) {
	logger := logctx.LoggerFromContext(ctx)

	result, err := r.engine.ExtractAndDownload(ctx, url, cfg, r.onProgress(ctx))
	if err != nil {
		return nil, &EngineError{Attempt: "primary", Err: err}
	}

	if result != nil {
		return result, nil
	}

	if !cfg.HasCookies() {
		return nil, &ExhaustedError{Attempts: 1}
	}

	logger.Warn("engine returned no result with cookies, retrying without them")
	r.telemetry.RecordFallback(ctx)

	result, err = r.engine.ExtractAndDownload(ctx, url, cfg.WithoutCookies(), r.onProgress(ctx))
	if err != nil {
		return nil, &EngineError{Attempt: "anonymous", Err: err}
	}

	if result == nil {
		return nil, &ExhaustedError{Attempts: 2}
	}

	return result, nil
}

// onProgress bridges engine events into job updates.
func (r *run) onProgress(ctx context.Context) func(engine.Event) {
	logger := logctx.LoggerFromContext(ctx)

	return func(ev engine.Event) {
		switch ev.Phase {
		case engine.PhaseDownloading:
			v, ok := progress.Parse(ev.Percent)
			if !ok {
				logger.Debug("ignoring malformed progress", "percent", ev.Percent)

				return
			}

			r.tracker.Observe(math.Min(v, downloadCeiling))
		case engine.PhaseFinished:
			if r.snapshot().Status != job.StatusDownloading {
				return
			}

			if err := r.transition(ctx, job.StatusProcessing, job.Patch{Progress: ptr(processingProgress)}); err != nil {
				logger.Error("failed to mark job as processing", "err", err)

				return
			}

			r.tracker.Observe(processingProgress)
		}
	}
}

func (r *run) normalizeURL(ctx context.Context) error {
	raw := r.snapshot().Spec.URL

	normalized := plan.NormalizeURL(raw)
	if normalized == raw {
		return nil
	}

	if err := r.repo.Update(ctx, r.job.ID, job.Patch{URL: &normalized}); err != nil {
		return fmt.Errorf("failed to persist normalized url: %w", err)
	}

	r.mu.Lock()
	r.job.Spec.URL = normalized
	r.mu.Unlock()

	return nil
}

func (r *run) persistProgress(ctx context.Context, v float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.job.Status.IsTerminal() || v <= r.job.Progress {
		return
	}

	if err := r.repo.Update(ctx, r.job.ID, job.Patch{Progress: &v}); err != nil {
		logctx.LoggerFromContext(ctx).Error("failed to persist progress", "progress", v, "err", err)

		return
	}

	r.job.Progress = v
}

// transition moves the job to next, writing patch in the same update.
func (r *run) transition(ctx context.Context, next job.Status, patch job.Patch) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.job.Status.CanTransitionTo(next) {
		return &TransitionError{From: r.job.Status, To: next}
	}

	if patch.Progress != nil && *patch.Progress < r.job.Progress {
		patch.Progress = nil
	}

	patch.Status = &next

	if err := r.repo.Update(ctx, r.job.ID, patch); err != nil {
		return fmt.Errorf("failed to move job to %s: %w", next, err)
	}

	*r.job = patch.Apply(*r.job)

	return nil
}

// fail settles the job as FAILED, keeping its last progress.
func (r *run) fail(ctx context.Context, cause error) {
	logger := logctx.LoggerFromContext(ctx)

	logger.Error("job failed", "err", cause)

	if err := r.transition(ctx, job.StatusFailed, job.Patch{}); err != nil {
		logger.Error("failed to mark job as failed", "err", err)

		return
	}

	r.OnJobFailed <- Failure{Job: r.snapshot(), Err: cause}
}

func (r *run) snapshot() *job.Job {
	r.mu.Lock()
	defer r.mu.Unlock()

	j := *r.job

	return &j
}

// finalFilename picks the base name of the produced file. A final path
// reported by the engine wins, then the engine's pre-processing name with its
// extension corrected, then the rendered template.
func finalFilename(spec job.Spec, cfg plan.Config, result *engine.Result) string {
	if len(result.Files) > 0 && result.Files[0] != "" {
		return filepath.Base(result.Files[0])
	}

	if result.Filename != "" {
		return filepath.Base(plan.CorrectExtension(spec, result.Filename))
	}

	rendered := plan.RenderFilename(cfg.OutputTemplate, result.Item())

	return filepath.Base(plan.CorrectExtension(spec, rendered))
}

func ptr[T any](v T) *T {
	return &v
}
