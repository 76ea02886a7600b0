package engine

import (
	"context"

	"github.com/italolelis/mediafetch/internal/plan"
	"github.com/italolelis/mediafetch/internal/telemetry"
)

// InstrumentedEngine wraps an Engine with telemetry.
type InstrumentedEngine struct {
	engine    Engine
	telemetry *telemetry.Telemetry
	name      string
}

// NewInstrumentedEngine creates a new instrumented engine.
func NewInstrumentedEngine(engine Engine, tel *telemetry.Telemetry, name string) *InstrumentedEngine {
	return &InstrumentedEngine{
		engine:    engine,
		telemetry: tel,
		name:      name,
	}
}

// ExtractAndDownload runs the wrapped engine with telemetry. An empty result
// is recorded separately from a hard failure.
func (e *InstrumentedEngine) ExtractAndDownload(
	ctx context.Context, url string, cfg plan.Config, onProgress func(Event),
) (*Result, error) {
	var result *Result

	attempt := "primary"
	if !cfg.HasCookies() {
		attempt = "anonymous"
	}

	err := e.telemetry.InstrumentEngineOperation(ctx, e.name, "extract_and_download", func(ctx context.Context) error {
		var err error

		result, err = e.engine.ExtractAndDownload(ctx, url, cfg, onProgress)

		return err
	})
	if err != nil {
		return nil, err
	}

	outcome := "result"
	if result == nil {
		outcome = "empty"
	}

	e.telemetry.RecordEngineOutcome(ctx, e.name, attempt, outcome)

	return result, nil
}
