// Package engine defines the boundary to the external media extraction
// engine.
package engine

import (
	"context"

	"github.com/italolelis/mediafetch/internal/plan"
)

// Phase is the stage an engine progress event reports.
type Phase string

const (
	PhaseDownloading Phase = "downloading"
	PhaseFinished    Phase = "finished"
)

// Event is a single progress report. Percent is the engine's raw string and
// may be malformed.
type Event struct {
	Phase   Phase
	Percent string
}

// Result describes the item an invocation resolved.
type Result struct {
	ID        string
	Title     string
	Extractor string
	Ext       string
	// Filename is the path the engine chose before post-processing, empty
	// when not reported.
	Filename string
	// Files are the final paths after post-processing, in order. Empty when
	// the engine did not report them.
	Files []string
}

// Item converts the result into the fields used to render filenames.
func (r *Result) Item() plan.Item {
	return plan.Item{
		Extractor: r.Extractor,
		Title:     r.Title,
		ID:        r.ID,
		Ext:       r.Ext,
	}
}

// Engine runs one extract-and-download invocation.
//
// A nil result with a nil error means the engine ran but produced nothing
// usable; callers may retry with a different configuration. A non-nil error
// means the engine could not run at all.
type Engine interface {
	ExtractAndDownload(ctx context.Context, url string, cfg plan.Config, onProgress func(Event)) (*Result, error)
}

// Func adapts a function to the Engine interface.
type Func func(ctx context.Context, url string, cfg plan.Config, onProgress func(Event)) (*Result, error)

// ExtractAndDownload calls f.
func (f Func) ExtractAndDownload(ctx context.Context, url string, cfg plan.Config, onProgress func(Event)) (*Result, error) {
	return f(ctx, url, cfg, onProgress)
}
