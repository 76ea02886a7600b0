package cleanup

import (
	"context"
	"fmt"
	"time"

	"github.com/gofrs/flock"
	"github.com/italolelis/mediafetch/internal/logctx"
)

// Scheduler runs a Sweeper on a fixed interval. A file lock keeps two
// processes sharing an output directory from sweeping it at the same time.
type Scheduler struct {
	sweeper  *Sweeper
	dir      string
	maxAge   time.Duration
	interval time.Duration
	lock     *flock.Flock
}

// NewScheduler creates a Scheduler guarded by the lock file at lockPath.
func NewScheduler(sweeper *Sweeper, dir string, maxAge, interval time.Duration, lockPath string) *Scheduler {
	return &Scheduler{
		sweeper:  sweeper,
		dir:      dir,
		maxAge:   maxAge,
		interval: interval,
		lock:     flock.New(lockPath),
	}
}

// Run sweeps once immediately and then on every tick until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	logger := logctx.LoggerFromContext(ctx).With("component", "cleanup")
	ctx = logctx.WithLogger(ctx, logger)

	logger.InfoContext(ctx, "cleanup scheduler started",
		"dir", s.dir,
		"retention", s.maxAge,
		"interval", s.interval,
	)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if _, err := s.SweepOnce(ctx); err != nil {
			logger.ErrorContext(ctx, "sweep failed", "err", err)
		}

		select {
		case <-ctx.Done():
			logger.InfoContext(ctx, "cleanup scheduler stopped")

			return nil
		case <-ticker.C:
		}
	}
}

// SweepOnce runs a single pass if the lock is free. When another process
// holds the lock the pass is skipped and ok is false.
func (s *Scheduler) SweepOnce(ctx context.Context) (ok bool, err error) {
	locked, err := s.lock.TryLock()
	if err != nil {
		return false, fmt.Errorf("acquire sweep lock: %w", err)
	}

	if !locked {
		logctx.LoggerFromContext(ctx).DebugContext(ctx, "another sweeper holds the lock, skipping", "lock", s.lock.Path())

		return false, nil
	}

	defer func() {
		if uerr := s.lock.Unlock(); uerr != nil && err == nil {
			err = fmt.Errorf("release sweep lock: %w", uerr)
		}
	}()

	if _, err := s.sweeper.Sweep(ctx, s.dir, s.maxAge); err != nil {
		return true, err
	}

	return true, nil
}
