package orchestrator

import (
	"fmt"

	"github.com/italolelis/mediafetch/internal/job"
)

// EngineError represents an engine invocation that could not run at all,
// such as a missing executable or an interrupted process. It fails the job
// without a fallback attempt.
type EngineError struct {
	Attempt string // "primary" or "anonymous"
	Err     error  // Underlying error
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("engine failed on %s attempt: %v", e.Attempt, e.Err)
}

func (e *EngineError) Unwrap() error {
	return e.Err
}

// ExhaustedError represents a job for which every attempt ran but none
// produced a usable result.
type ExhaustedError struct {
	Attempts int
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("no usable result after %d attempt(s)", e.Attempts)
}

// TransitionError represents a status change the job lifecycle forbids.
type TransitionError struct {
	From job.Status
	To   job.Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid status transition from %s to %s", e.From, e.To)
}

// SetupError represents a failure preparing the job before the engine runs,
// such as an unwritable output directory.
type SetupError struct {
	Step string // The preparation step that failed (e.g., "output_dir")
	Err  error  // Underlying error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("job setup failed at %s: %v", e.Step, e.Err)
}

func (e *SetupError) Unwrap() error {
	return e.Err
}

// PanicError wraps a value recovered from a panic during a run.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic during job run: %v", e.Value)
}
