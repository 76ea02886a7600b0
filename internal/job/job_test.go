package job

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatus_CanTransitionTo(t *testing.T) {
	all := []Status{StatusPending, StatusDownloading, StatusProcessing, StatusFinished, StatusFailed}

	allowed := map[Status][]Status{
		StatusPending:     {StatusDownloading, StatusFailed},
		StatusDownloading: {StatusProcessing, StatusFinished, StatusFailed},
		StatusProcessing:  {StatusFinished, StatusFailed},
		StatusFinished:    nil,
		StatusFailed:      nil,
	}

	for _, from := range all {
		for _, to := range all {
			want := false
			for _, a := range allowed[from] {
				if a == to {
					want = true
				}
			}

			assert.Equal(t, want, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
}

func TestStatus_ProcessingRequiresDownloading(t *testing.T) {
	assert.False(t, StatusPending.CanTransitionTo(StatusProcessing))
	assert.True(t, StatusDownloading.CanTransitionTo(StatusProcessing))
}

func TestStatus_Flags(t *testing.T) {
	tests := []struct {
		status   Status
		terminal bool
		active   bool
	}{
		{StatusPending, false, false},
		{StatusDownloading, false, true},
		{StatusProcessing, false, true},
		{StatusFinished, true, false},
		{StatusFailed, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.status.String(), func(t *testing.T) {
			assert.Equal(t, tt.terminal, tt.status.IsTerminal())
			assert.Equal(t, tt.active, tt.status.IsActive())
		})
	}
}

func TestParseStatus(t *testing.T) {
	s, ok := ParseStatus("PROCESSING")
	assert.True(t, ok)
	assert.Equal(t, StatusProcessing, s)

	_, ok = ParseStatus("processing")
	assert.False(t, ok)
}

func TestPatch_Apply(t *testing.T) {
	j := Job{ID: "a", Spec: NewSpec("https://x"), Status: StatusPending}

	assert.True(t, Patch{}.IsEmpty())
	assert.Equal(t, j, Patch{}.Apply(j))

	status := StatusFinished
	progress := 100.0
	name := "clip [1].mp4"
	url := "https://y"

	got := Patch{URL: &url, Status: &status, Progress: &progress, Filename: &name}.Apply(j)

	assert.Equal(t, "https://y", got.Spec.URL)
	assert.Equal(t, StatusFinished, got.Status)
	assert.Equal(t, 100.0, got.Progress)
	assert.Equal(t, name, got.Filename)
	assert.Equal(t, StatusPending, j.Status, "original must not change")
}
