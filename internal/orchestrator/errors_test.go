package orchestrator

import (
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/italolelis/mediafetch/internal/job"
)

// TestEngineError_Error verifies error message formatting
func TestEngineError_Error(t *testing.T) {
	err := &EngineError{Attempt: "primary", Err: errors.New("exec: \"yt-dlp\": executable file not found")}

	expected := "engine failed on primary attempt: exec: \"yt-dlp\": executable file not found"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

// TestExhaustedError_Error verifies error message formatting
func TestExhaustedError_Error(t *testing.T) {
	tests := []struct {
		name     string
		attempts int
		want     string
	}{
		{name: "single attempt", attempts: 1, want: "no usable result after 1 attempt(s)"},
		{name: "with fallback", attempts: 2, want: "no usable result after 2 attempt(s)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := &ExhaustedError{Attempts: tt.attempts}
			if got := err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

// TestTransitionError_Error verifies error message formatting
func TestTransitionError_Error(t *testing.T) {
	err := &TransitionError{From: job.StatusFinished, To: job.StatusDownloading}

	expected := "invalid status transition from FINISHED to DOWNLOADING"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

// TestSetupError_Error verifies error message formatting
func TestSetupError_Error(t *testing.T) {
	err := &SetupError{Step: "output_dir", Err: os.ErrPermission}

	expected := "job setup failed at output_dir: permission denied"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

// TestErrors_Unwrap verifies errors.Is sees through wrapped errors
func TestErrors_Unwrap(t *testing.T) {
	underlying := errors.New("underlying")

	tests := []struct {
		name string
		err  error
	}{
		{name: "EngineError", err: &EngineError{Attempt: "primary", Err: underlying}},
		{name: "SetupError", err: &SetupError{Step: "output_dir", Err: underlying}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, underlying) {
				t.Errorf("errors.Is(%T, underlying) = false, want true", tt.err)
			}
		})
	}
}

// TestErrors_As verifies errors.As finds typed errors through fmt wrapping
func TestErrors_As(t *testing.T) {
	wrapped := fmt.Errorf("run job: %w", &ExhaustedError{Attempts: 2})

	var exhausted *ExhaustedError
	if !errors.As(wrapped, &exhausted) {
		t.Fatal("errors.As() = false, want true")
	}

	if exhausted.Attempts != 2 {
		t.Errorf("Attempts = %d, want 2", exhausted.Attempts)
	}

	var engineErr *EngineError
	if errors.As(wrapped, &engineErr) {
		t.Error("errors.As() found EngineError in an ExhaustedError chain")
	}
}

// TestPanicError_Error verifies error message formatting
func TestPanicError_Error(t *testing.T) {
	err := &PanicError{Value: "boom"}

	expected := "panic during job run: boom"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}
