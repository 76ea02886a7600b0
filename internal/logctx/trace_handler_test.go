package logctx

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func newJSONLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(NewTraceHandler(slog.NewJSONHandler(buf, nil)))
}

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))

	return entry
}

func TestTraceHandler_NoSpan(t *testing.T) {
	var buf bytes.Buffer

	newJSONLogger(&buf).InfoContext(context.Background(), "job claimed", "job_id", "a1")

	entry := decode(t, &buf)
	assert.NotContains(t, entry, "trace_id")
	assert.NotContains(t, entry, "span_id")
	assert.Equal(t, "job claimed", entry["msg"])
	assert.Equal(t, "a1", entry["job_id"])
}

func TestTraceHandler_WithSpan(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()

	ctx, span := tp.Tracer("test").Start(context.Background(), "job_video")
	defer span.End()

	var buf bytes.Buffer

	newJSONLogger(&buf).InfoContext(ctx, "progress", "percent", 42.5)

	entry := decode(t, &buf)
	assert.Equal(t, span.SpanContext().TraceID().String(), entry["trace_id"])
	assert.Equal(t, span.SpanContext().SpanID().String(), entry["span_id"])
	assert.InDelta(t, 42.5, entry["percent"], 0)
}

func TestTraceHandler_KeepsAttrsAndGroups(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()

	ctx, span := tp.Tracer("test").Start(context.Background(), "sweep")
	defer span.End()

	var buf bytes.Buffer

	logger := newJSONLogger(&buf).With("worker", 2).WithGroup("file")
	logger.InfoContext(ctx, "deleted", "name", "a.mp4")

	entry := decode(t, &buf)
	assert.InDelta(t, 2, entry["worker"], 0)
	assert.Equal(t, map[string]any{
		"name":     "a.mp4",
		"trace_id": span.SpanContext().TraceID().String(),
		"span_id":  span.SpanContext().SpanID().String(),
	}, entry["file"])
}

func TestNewTraceHandler_NilPanics(t *testing.T) {
	assert.Panics(t, func() { NewTraceHandler(nil) })
}

func TestLoggerFromContext(t *testing.T) {
	assert.Same(t, slog.Default(), LoggerFromContext(context.Background()))

	var buf bytes.Buffer

	ctx := WithLogger(context.Background(), newJSONLogger(&buf))
	ctx = With(ctx, "job_id", "b2")

	LoggerFromContext(ctx).Info("claimed")

	assert.Equal(t, "b2", decode(t, &buf)["job_id"])
}
