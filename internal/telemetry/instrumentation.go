package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// CARDINALITY:
//
// Span attributes and metric labels must stay bounded. Job ids, URLs, titles
// and file names are logged with the job_id correlation field instead of
// being attached here.
//
// SAFE attributes (bounded cardinality):
// - Operation types ("extract_and_download", "create_job", "sweep")
// - Status values ("success", "error")
// - Job kinds ("video", "audio") and engine names ("yt-dlp")
// - Component names ("database", "engine", "orchestrator")

// InstrumentedFunc represents a function that can be instrumented.
type InstrumentedFunc func(ctx context.Context) error

func statusOf(err error) string {
	if err != nil {
		return "error"
	}

	return "success"
}

// InstrumentOperation instruments a generic operation with telemetry.
func (t *Telemetry) InstrumentOperation(ctx context.Context, operationName, component string, fn InstrumentedFunc) error {
	if t == nil || t.tracer == nil {
		return fn(ctx)
	}

	start := time.Now()
	ctx, span := t.tracer.Start(ctx, operationName)

	defer span.End()

	span.SetAttributes(
		attribute.String("component", component),
		attribute.String("operation", operationName),
	)

	err := fn(ctx)
	duration := time.Since(start)

	if err != nil {
		// The message goes into the span status, never into an attribute.
		span.SetAttributes(attribute.Bool("error", true))
		span.SetStatus(codes.Error, err.Error())
	}

	span.SetAttributes(
		attribute.String("status", statusOf(err)),
		attribute.Float64("duration_seconds", duration.Seconds()),
	)

	return err
}

// InstrumentDBOperation instruments database operations.
func (t *Telemetry) InstrumentDBOperation(ctx context.Context, operation string, fn InstrumentedFunc) error {
	if t == nil {
		return fn(ctx)
	}

	start := time.Now()
	err := t.InstrumentOperation(ctx, "db_"+operation, "database", fn)

	t.RecordDBOperation(ctx, operation, statusOf(err), time.Since(start))

	return err
}

// InstrumentEngineOperation instruments extraction engine invocations.
func (t *Telemetry) InstrumentEngineOperation(ctx context.Context, engine, operation string, fn InstrumentedFunc) error {
	if t == nil {
		return fn(ctx)
	}

	err := t.InstrumentOperation(ctx, "engine_"+operation, "engine", func(ctx context.Context) error {
		ctx, span := t.tracer.Start(ctx, "engine_"+operation)
		defer span.End()

		span.SetAttributes(
			attribute.String("engine.name", engine),
			attribute.String("engine.operation", operation),
		)

		return fn(ctx)
	})

	t.RecordEngineOperation(ctx, engine, operation, statusOf(err))

	return err
}

// InstrumentJob instruments a whole job run, from claim to settlement.
func (t *Telemetry) InstrumentJob(ctx context.Context, kind string, fn InstrumentedFunc) error {
	if t == nil {
		return fn(ctx)
	}

	start := time.Now()

	t.IncrementActiveJobs(ctx)
	defer t.DecrementActiveJobs(ctx)

	err := t.InstrumentOperation(ctx, "job", "orchestrator", func(ctx context.Context) error {
		ctx, span := t.tracer.Start(ctx, "job_"+kind)
		defer span.End()

		span.SetAttributes(attribute.String("job.kind", kind))

		return fn(ctx)
	})

	t.RecordJob(ctx, kind, statusOf(err), time.Since(start))

	return err
}
