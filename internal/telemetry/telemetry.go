package telemetry

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const (
	runtimeReadInterval = 15 * time.Second
	otlpPushInterval    = 30 * time.Second
)

// Telemetry holds all telemetry instruments and providers. A nil *Telemetry
// is valid and records nothing.
type Telemetry struct {
	meterProvider  *sdkmetric.MeterProvider
	tracerProvider *sdktrace.TracerProvider
	tracer         trace.Tracer
	meter          metric.Meter
	exporter       *prometheus.Exporter

	// RED Metrics (Rate, Errors, Duration)
	httpRequestsTotal    metric.Int64Counter
	httpRequestDuration  metric.Float64Histogram
	httpRequestsInFlight metric.Int64UpDownCounter

	// Business Metrics
	jobsTotal             metric.Int64Counter
	jobsActive            metric.Int64UpDownCounter
	jobDuration           metric.Float64Histogram
	engineOperationsTotal metric.Int64Counter
	engineErrors          metric.Int64Counter
	engineOutcomesTotal   metric.Int64Counter
	engineFallbacksTotal  metric.Int64Counter
	sweepFilesDeleted     metric.Int64Counter
	sweepFilesFailed      metric.Int64Counter
	sweepBytesFreed       metric.Int64Counter
	dbOperationsTotal     metric.Int64Counter
	dbOperationDuration   metric.Float64Histogram

	// System health
	systemErrors metric.Int64Counter
	systemUptime metric.Float64Gauge
}

// Config holds telemetry configuration.
type Config struct {
	Enabled        bool
	ServiceName    string
	ServiceVersion string
	// OTLPEndpoint additionally pushes metrics over OTLP/gRPC when set.
	OTLPEndpoint string
}

// New creates a new telemetry instance.
func New(ctx context.Context, cfg Config) (*Telemetry, error) {
	if !cfg.Enabled {
		return &Telemetry{tracer: noop.NewTracerProvider().Tracer(cfg.ServiceName)}, nil
	}

	res, err := resource.New(ctx,
		resource.WithFromEnv(),
		resource.WithHost(),
		resource.WithAttributes(
			attribute.String("service.name", cfg.ServiceName),
			attribute.String("service.version", cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	// Create Prometheus exporter
	exporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	opts := []sdkmetric.Option{
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exporter),
	}

	if cfg.OTLPEndpoint != "" {
		otlpExporter, err := otlpmetricgrpc.New(ctx,
			otlpmetricgrpc.WithEndpoint(cfg.OTLPEndpoint),
			otlpmetricgrpc.WithInsecure(),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create otlp exporter: %w", err)
		}

		opts = append(opts, sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(otlpExporter, sdkmetric.WithInterval(otlpPushInterval)),
		))
	}

	meterProvider := sdkmetric.NewMeterProvider(opts...)
	tracerProvider := sdktrace.NewTracerProvider(sdktrace.WithResource(res))

	// Set global providers
	otel.SetMeterProvider(meterProvider)
	otel.SetTracerProvider(tracerProvider)

	t := &Telemetry{
		meterProvider:  meterProvider,
		tracerProvider: tracerProvider,
		tracer:         tracerProvider.Tracer(cfg.ServiceName),
		meter:          meterProvider.Meter(cfg.ServiceName),
		exporter:       exporter,
	}

	// Initialize all metrics
	if err := t.initializeMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	// Go runtime metrics (memory, GC, goroutines)
	if err := runtime.Start(
		runtime.WithMeterProvider(meterProvider),
		runtime.WithMinimumReadMemStatsInterval(runtimeReadInterval),
	); err != nil {
		return nil, fmt.Errorf("failed to start runtime instrumentation: %w", err)
	}

	go t.collectSystemMetrics(ctx)

	return t, nil
}

// Tracer returns the OpenTelemetry tracer.
func (t *Telemetry) Tracer() trace.Tracer {
	return t.tracer
}

// Meter returns the OpenTelemetry meter.
func (t *Telemetry) Meter() metric.Meter {
	return t.meter
}

// MeterProvider returns the meter provider, nil when telemetry is disabled.
func (t *Telemetry) MeterProvider() metric.MeterProvider {
	if t == nil || t.meterProvider == nil {
		return nil
	}

	return t.meterProvider
}

// TracerProvider returns the tracer provider, nil when telemetry is disabled.
func (t *Telemetry) TracerProvider() trace.TracerProvider {
	if t == nil || t.tracerProvider == nil {
		return nil
	}

	return t.tracerProvider
}

// Enabled reports whether instruments are recording.
func (t *Telemetry) Enabled() bool {
	return t != nil && t.meterProvider != nil
}

// RecordHTTPRequest records HTTP request metrics.
func (t *Telemetry) RecordHTTPRequest(ctx context.Context, method, path, status string, duration time.Duration) {
	if t == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("path", path),
		attribute.String("status", status),
	)

	if t.httpRequestsTotal != nil {
		t.httpRequestsTotal.Add(ctx, 1, attrs)
	}

	if t.httpRequestDuration != nil {
		t.httpRequestDuration.Record(ctx, duration.Seconds(), attrs)
	}
}

// IncrementHTTPInFlight increments in-flight HTTP requests.
func (t *Telemetry) IncrementHTTPInFlight(ctx context.Context) {
	if t != nil && t.httpRequestsInFlight != nil {
		t.httpRequestsInFlight.Add(ctx, 1)
	}
}

// DecrementHTTPInFlight decrements in-flight HTTP requests.
func (t *Telemetry) DecrementHTTPInFlight(ctx context.Context) {
	if t != nil && t.httpRequestsInFlight != nil {
		t.httpRequestsInFlight.Add(ctx, -1)
	}
}

// RecordJob records a settled job.
func (t *Telemetry) RecordJob(ctx context.Context, kind, status string, duration time.Duration) {
	if t == nil {
		return
	}

	if t.jobsTotal != nil {
		t.jobsTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String("kind", kind),
			attribute.String("status", status),
		))
	}

	if t.jobDuration != nil {
		t.jobDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
			attribute.String("kind", kind),
			attribute.String("status", status),
		))
	}
}

// IncrementActiveJobs increments active jobs counter.
func (t *Telemetry) IncrementActiveJobs(ctx context.Context) {
	if t != nil && t.jobsActive != nil {
		t.jobsActive.Add(ctx, 1)
	}
}

// DecrementActiveJobs decrements active jobs counter.
func (t *Telemetry) DecrementActiveJobs(ctx context.Context) {
	if t != nil && t.jobsActive != nil {
		t.jobsActive.Add(ctx, -1)
	}
}

// RecordEngineOperation records engine operation metrics.
func (t *Telemetry) RecordEngineOperation(ctx context.Context, engine, operation, status string) {
	if t == nil {
		return
	}

	if t.engineOperationsTotal != nil {
		t.engineOperationsTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String("engine", engine),
			attribute.String("operation", operation),
			attribute.String("status", status),
		))
	}

	if status == "error" && t.engineErrors != nil {
		t.engineErrors.Add(ctx, 1, metric.WithAttributes(
			attribute.String("engine", engine),
			attribute.String("operation", operation),
		))
	}
}

// RecordEngineOutcome records whether an invocation that ran produced a
// usable result.
func (t *Telemetry) RecordEngineOutcome(ctx context.Context, engine, attempt, outcome string) {
	if t != nil && t.engineOutcomesTotal != nil {
		t.engineOutcomesTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String("engine", engine),
			attribute.String("attempt", attempt),
			attribute.String("outcome", outcome),
		))
	}
}

// RecordFallback records a retry without cookies.
func (t *Telemetry) RecordFallback(ctx context.Context) {
	if t != nil && t.engineFallbacksTotal != nil {
		t.engineFallbacksTotal.Add(ctx, 1)
	}
}

// RecordSweep records the outcome of one cleanup pass.
func (t *Telemetry) RecordSweep(ctx context.Context, deleted, failed int, freedBytes int64) {
	if t == nil {
		return
	}

	if t.sweepFilesDeleted != nil {
		t.sweepFilesDeleted.Add(ctx, int64(deleted))
	}

	if t.sweepFilesFailed != nil {
		t.sweepFilesFailed.Add(ctx, int64(failed))
	}

	if t.sweepBytesFreed != nil {
		t.sweepBytesFreed.Add(ctx, freedBytes)
	}
}

// RecordDBOperation records database operation metrics.
func (t *Telemetry) RecordDBOperation(ctx context.Context, operation, status string, duration time.Duration) {
	if t == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("status", status),
	)

	if t.dbOperationsTotal != nil {
		t.dbOperationsTotal.Add(ctx, 1, attrs)
	}

	if t.dbOperationDuration != nil {
		t.dbOperationDuration.Record(ctx, duration.Seconds(), attrs)
	}
}

// RecordSystemError records system error metrics.
func (t *Telemetry) RecordSystemError(ctx context.Context, component, errorType string) {
	if t != nil && t.systemErrors != nil {
		t.systemErrors.Add(ctx, 1, metric.WithAttributes(
			attribute.String("component", component),
			attribute.String("error_type", errorType),
		))
	}
}

// Handler returns the HTTP handler for metrics endpoint.
func (t *Telemetry) Handler() http.Handler {
	if t == nil || t.exporter == nil {
		return http.NotFoundHandler()
	}

	// Return the standard Prometheus HTTP handler
	return promhttp.Handler()
}

// Shutdown gracefully shuts down the telemetry system.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t == nil || t.meterProvider == nil {
		return nil
	}

	if err := t.tracerProvider.Shutdown(ctx); err != nil {
		return err
	}

	return t.meterProvider.Shutdown(ctx)
}

// initializeMetrics creates all metric instruments.
func (t *Telemetry) initializeMetrics() error {
	if err := t.initializeREDMetrics(); err != nil {
		return err
	}

	if err := t.initializeBusinessMetrics(); err != nil {
		return err
	}

	return t.initializeSystemMetrics()
}

func (t *Telemetry) initializeREDMetrics() error {
	var err error

	t.httpRequestsTotal, err = t.meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create http_requests_total counter: %w", err)
	}

	t.httpRequestDuration, err = t.meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return fmt.Errorf("failed to create http_request_duration histogram: %w", err)
	}

	t.httpRequestsInFlight, err = t.meter.Int64UpDownCounter(
		"http_requests_in_flight",
		metric.WithDescription("Number of HTTP requests currently being processed"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create http_requests_in_flight counter: %w", err)
	}

	return nil
}

func (t *Telemetry) initializeBusinessMetrics() error {
	var err error

	counters := []struct {
		dst         *metric.Int64Counter
		name        string
		description string
		unit        string
	}{
		{&t.jobsTotal, "jobs_total", "Total number of settled jobs", "1"},
		{&t.engineOperationsTotal, "engine_operations_total", "Total number of engine invocations", "1"},
		{&t.engineErrors, "engine_errors_total", "Total number of engine invocations that could not run", "1"},
		{&t.engineOutcomesTotal, "engine_outcomes_total", "Engine invocations by result outcome", "1"},
		{&t.engineFallbacksTotal, "engine_fallbacks_total", "Total number of retries without cookies", "1"},
		{&t.sweepFilesDeleted, "sweep_files_deleted_total", "Total number of expired files deleted", "1"},
		{&t.sweepFilesFailed, "sweep_files_failed_total", "Total number of expired files that could not be deleted", "1"},
		{&t.sweepBytesFreed, "sweep_bytes_freed_total", "Total bytes reclaimed by the cleanup sweep", "By"},
		{&t.dbOperationsTotal, "db_operations_total", "Total number of database operations", "1"},
	}

	for _, c := range counters {
		*c.dst, err = t.meter.Int64Counter(c.name, metric.WithDescription(c.description), metric.WithUnit(c.unit))
		if err != nil {
			return fmt.Errorf("failed to create %s counter: %w", c.name, err)
		}
	}

	t.jobsActive, err = t.meter.Int64UpDownCounter(
		"jobs_active",
		metric.WithDescription("Number of jobs currently running"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create jobs_active counter: %w", err)
	}

	t.jobDuration, err = t.meter.Float64Histogram(
		"job_duration_seconds",
		metric.WithDescription("Job duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return fmt.Errorf("failed to create job_duration histogram: %w", err)
	}

	t.dbOperationDuration, err = t.meter.Float64Histogram(
		"db_operation_duration_seconds",
		metric.WithDescription("Database operation duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return fmt.Errorf("failed to create db_operation_duration histogram: %w", err)
	}

	return nil
}

func (t *Telemetry) initializeSystemMetrics() error {
	var err error

	t.systemErrors, err = t.meter.Int64Counter(
		"system_errors_total",
		metric.WithDescription("Total number of system errors"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create system_errors counter: %w", err)
	}

	t.systemUptime, err = t.meter.Float64Gauge(
		"system_uptime_seconds",
		metric.WithDescription("System uptime in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return fmt.Errorf("failed to create system_uptime gauge: %w", err)
	}

	return nil
}

// collectSystemMetrics records uptime periodically.
func (t *Telemetry) collectSystemMetrics(ctx context.Context) {
	ticker := time.NewTicker(runtimeReadInterval)
	defer ticker.Stop()

	startTime := time.Now()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.systemUptime.Record(ctx, time.Since(startTime).Seconds())
		}
	}
}
