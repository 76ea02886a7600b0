package orchestrator

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/italolelis/mediafetch/internal/job"
	"github.com/italolelis/mediafetch/internal/logctx"
	"github.com/italolelis/mediafetch/internal/storage"
	"golang.org/x/sync/errgroup"
)

// Runner executes a single job.
type Runner interface {
	Run(ctx context.Context, id string) error
}

const (
	DefaultHeartbeatInterval = 30 * time.Second
	DefaultStaleAfter        = 5 * time.Minute
)

// PoolOptions configures a Pool.
type PoolOptions struct {
	Workers   int
	QueueSize int
	// InstanceID must match the id the runner claims jobs under.
	InstanceID string
	// HeartbeatInterval is how often claimed jobs are marked alive.
	HeartbeatInterval time.Duration
	// StaleAfter is how long an active job may go without an update before
	// it is considered abandoned by a dead process.
	StaleAfter time.Duration
}

// Pool feeds submitted job ids to a bounded number of workers.
type Pool struct {
	runner Runner
	repo   storage.JobRepository
	opts   PoolOptions
	queue  chan string
	now    func() time.Time
}

// NewPool creates a pool. Zero options fall back to defaults.
func NewPool(runner Runner, repo storage.JobRepository, opts PoolOptions) *Pool {
	if opts.Workers < 1 {
		opts.Workers = 1
	}

	if opts.QueueSize < 0 {
		opts.QueueSize = 0
	}

	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = DefaultHeartbeatInterval
	}

	if opts.StaleAfter <= opts.HeartbeatInterval {
		opts.StaleAfter = max(DefaultStaleAfter, 3*opts.HeartbeatInterval)
	}

	return &Pool{
		runner: runner,
		repo:   repo,
		opts:   opts,
		queue:  make(chan string, opts.QueueSize),
		now:    time.Now,
	}
}

// Submit enqueues a job id for pickup, blocking while the queue is full.
func (p *Pool) Submit(ctx context.Context, id string) error {
	select {
	case p.queue <- id:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("failed to enqueue job %s: %w", id, ctx.Err())
	}
}

// Run starts the workers, settles jobs abandoned by dead processes and
// re-enqueues jobs that were never picked up. While it runs, jobs claimed
// under the pool's instance id are kept alive and abandoned ones are expired
// periodically. It blocks until ctx is cancelled and in-flight jobs have
// completed.
func (p *Pool) Run(ctx context.Context) error {
	logger := logctx.LoggerFromContext(ctx).With("instance_id", p.opts.InstanceID)
	ctx = logctx.WithLogger(ctx, logger)

	logger.Info("starting job workers", "workers", p.opts.Workers)

	if err := p.expireStale(ctx); err != nil {
		return err
	}

	stop := make(chan struct{})
	stopped := make(chan struct{})

	// In-flight jobs outlive ctx, so the heartbeat does too.
	go func() {
		defer close(stopped)
		p.keepAlive(context.WithoutCancel(ctx), stop)
	}()

	wg, gctx := errgroup.WithContext(ctx)

	for i := 0; i < p.opts.Workers; i++ {
		workerCtx := logctx.WithLogger(gctx, logger.With("worker", i))

		wg.Go(func() error {
			p.work(workerCtx)

			return nil
		})
	}

	wg.Go(func() error {
		return p.requeuePending(gctx)
	})

	err := wg.Wait()

	close(stop)
	<-stopped

	return err
}

// keepAlive refreshes this instance's claimed jobs and expires abandoned
// ones on every tick until stop is closed.
func (p *Pool) keepAlive(ctx context.Context, stop <-chan struct{}) {
	logger := logctx.LoggerFromContext(ctx)

	ticker := time.NewTicker(p.opts.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if _, err := p.repo.Heartbeat(ctx, p.opts.InstanceID); err != nil {
				logger.Error("failed to refresh claimed jobs", "err", err)
			}

			if err := p.expireStale(ctx); err != nil {
				logger.Error("failed to expire abandoned jobs", "err", err)
			}
		}
	}
}

func (p *Pool) work(ctx context.Context) {
	logger := logctx.LoggerFromContext(ctx)

	for {
		select {
		case <-ctx.Done():
			logger.Debug("worker shutdown", "reason", "context_cancelled")

			return
		case id := <-p.queue:
			p.runSafely(ctx, id)
		}
	}
}

// runSafely keeps a worker alive across a panicking job.
func (p *Pool) runSafely(ctx context.Context, id string) {
	logger := logctx.LoggerFromContext(ctx).With("job_id", id)

	defer func() {
		if r := recover(); r != nil {
			logger.Error("worker panic", "panic", r, "stack", string(debug.Stack()))
		}
	}()

	if err := p.runner.Run(ctx, id); err != nil {
		logger.Warn("job did not finish", "err", err)
	}
}

// expireStale marks FAILED the active jobs nobody has updated within
// StaleAfter. Their engine invocation died with the owning process and cannot
// be resumed. Jobs owned by live processes keep being refreshed and are left
// alone.
func (p *Pool) expireStale(ctx context.Context) error {
	logger := logctx.LoggerFromContext(ctx)

	expired, err := p.repo.ExpireStale(ctx, p.now().Add(-p.opts.StaleAfter))
	if err != nil {
		return fmt.Errorf("failed to expire abandoned jobs: %w", err)
	}

	for _, id := range expired {
		logger.Warn("settled abandoned job as failed", "job_id", id, "stale_after", p.opts.StaleAfter)
	}

	return nil
}

func (p *Pool) requeuePending(ctx context.Context) error {
	logger := logctx.LoggerFromContext(ctx)

	pending, err := p.repo.ListByStatus(ctx, job.StatusPending)
	if err != nil {
		return fmt.Errorf("failed to list pending jobs: %w", err)
	}

	if len(pending) > 0 {
		logger.Info("re-enqueueing pending jobs", "count", len(pending))
	}

	for _, j := range pending {
		if err := p.Submit(ctx, j.ID); err != nil {
			logger.Debug("stopped re-enqueueing", "err", err)

			return nil
		}
	}

	return nil
}
