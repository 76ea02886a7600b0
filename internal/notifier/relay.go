package notifier

import (
	"context"
	"fmt"

	"github.com/italolelis/mediafetch/internal/job"
	"github.com/italolelis/mediafetch/internal/logctx"
	"github.com/italolelis/mediafetch/internal/orchestrator"
)

// FinishedMessage is the notification text for a finished job.
func FinishedMessage(j *job.Job) string {
	return fmt.Sprintf("✅ Download finished: %s (%s)", j.Filename, j.ID)
}

// FailedMessage is the notification text for a failed job. The cause is
// logged, not sent.
func FailedMessage(j *job.Job) string {
	return fmt.Sprintf("❌ Download failed: %s (%s)", j.Spec.URL, j.ID)
}

// Relay forwards job outcomes to n until both channels are closed. Failing
// to notify is logged and never blocks the orchestrator.
func Relay(ctx context.Context, n Notifier, finished <-chan *job.Job, failed <-chan orchestrator.Failure) {
	logger := logctx.LoggerFromContext(ctx)

	for finished != nil || failed != nil {
		select {
		case j, ok := <-finished:
			if !ok {
				finished = nil

				continue
			}

			logger.InfoContext(ctx, "download finished", "job_id", j.ID, "filename", j.Filename)

			if err := n.Notify(ctx, FinishedMessage(j)); err != nil {
				logger.ErrorContext(ctx, "failed to send notification", "job_id", j.ID, "err", err)
			}
		case f, ok := <-failed:
			if !ok {
				failed = nil

				continue
			}

			logger.ErrorContext(ctx, "download failed", "job_id", f.Job.ID, "url", f.Job.Spec.URL, "err", f.Err)

			if err := n.Notify(ctx, FailedMessage(f.Job)); err != nil {
				logger.ErrorContext(ctx, "failed to send notification", "job_id", f.Job.ID, "err", err)
			}
		}
	}
}
