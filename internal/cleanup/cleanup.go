// Package cleanup deletes output files once they outlive the retention
// window. It only looks at file modification times and knows nothing about
// jobs, so a finished file that was never fetched is deleted all the same.
package cleanup

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/italolelis/mediafetch/internal/logctx"
	"github.com/italolelis/mediafetch/internal/telemetry"
)

// DefaultRetention is how long a produced file is kept.
const DefaultRetention = time.Hour

// Result summarizes one sweep pass.
type Result struct {
	Scanned    int
	Deleted    int
	Failed     int
	FreedBytes int64
}

// Sweeper removes expired regular files directly inside a directory.
type Sweeper struct {
	telemetry *telemetry.Telemetry

	now    func() time.Time
	remove func(string) error
}

// NewSweeper creates a Sweeper. tel may be nil.
func NewSweeper(tel *telemetry.Telemetry) *Sweeper {
	return &Sweeper{
		telemetry: tel,
		now:       time.Now,
		remove:    os.Remove,
	}
}

// Sweep deletes every regular file in dir whose age exceeds maxAge.
// Subdirectories are neither descended into nor deleted. A file that cannot
// be inspected or removed is logged and counted, and the pass carries on. The
// only error returned is failing to list dir itself.
func (s *Sweeper) Sweep(ctx context.Context, dir string, maxAge time.Duration) (Result, error) {
	logger := logctx.LoggerFromContext(ctx).With("dir", dir)

	var res Result

	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logger.DebugContext(ctx, "output directory does not exist yet, nothing to sweep")

			return res, nil
		}

		return res, fmt.Errorf("failed to list %s: %w", dir, err)
	}

	now := s.now()

	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}

		res.Scanned++

		path := filepath.Join(dir, entry.Name())

		info, err := entry.Info()
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				res.Failed++

				logger.ErrorContext(ctx, "failed to stat file", "file", path, "err", err)
			}

			continue
		}

		age := now.Sub(info.ModTime())
		if age <= maxAge {
			continue
		}

		if err := s.remove(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}

			res.Failed++

			logger.ErrorContext(ctx, "failed to delete expired file", "file", path, "err", err)

			continue
		}

		res.Deleted++
		res.FreedBytes += info.Size()

		logger.InfoContext(ctx, "deleted expired file",
			"file", entry.Name(),
			"size", humanize.Bytes(uint64(info.Size())),
			"modified", humanize.RelTime(info.ModTime(), now, "ago", "from now"),
		)
	}

	s.telemetry.RecordSweep(ctx, res.Deleted, res.Failed, res.FreedBytes)

	logger.InfoContext(ctx, "sweep completed",
		"scanned", res.Scanned,
		"deleted", res.Deleted,
		"failed", res.Failed,
		"freed", humanize.Bytes(uint64(res.FreedBytes)),
	)

	return res, nil
}
