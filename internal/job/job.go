package job

import (
	"time"
)

// Status is the lifecycle state of a download job.
type Status string

const (
	StatusPending     Status = "PENDING"
	StatusDownloading Status = "DOWNLOADING"
	StatusProcessing  Status = "PROCESSING"
	StatusFinished    Status = "FINISHED"
	StatusFailed      Status = "FAILED"
)

// String returns the string representation of Status.
func (s Status) String() string {
	return string(s)
}

// IsTerminal reports whether no transition can leave s.
func (s Status) IsTerminal() bool {
	return s == StatusFinished || s == StatusFailed
}

// IsActive reports whether an engine invocation owns the job.
func (s Status) IsActive() bool {
	return s == StatusDownloading || s == StatusProcessing
}

// CanTransitionTo reports whether moving from s to next is allowed.
// Statuses only move forward through PENDING, DOWNLOADING, PROCESSING,
// FINISHED; FAILED is reachable from any non-terminal status.
func (s Status) CanTransitionTo(next Status) bool {
	if s.IsTerminal() {
		return false
	}

	switch next {
	case StatusFailed:
		return true
	case StatusDownloading:
		return s == StatusPending
	case StatusProcessing:
		return s == StatusDownloading
	case StatusFinished:
		return s == StatusDownloading || s == StatusProcessing
	default:
		return false
	}
}

// ParseStatus converts a stored status string. Unknown values report false.
func ParseStatus(v string) (Status, bool) {
	switch s := Status(v); s {
	case StatusPending, StatusDownloading, StatusProcessing, StatusFinished, StatusFailed:
		return s, true
	}

	return "", false
}

// Job is the mutable record of one request to fetch a single media item.
type Job struct {
	ID        string
	Spec      Spec
	Status    Status
	Progress  float64
	Filename  string
	CreatedAt time.Time
}

// Patch is a partial update of a job. Nil fields are left untouched.
type Patch struct {
	URL      *string
	Status   *Status
	Progress *float64
	Filename *string
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.URL == nil && p.Status == nil && p.Progress == nil && p.Filename == nil
}

// Apply returns a copy of j with the patch applied.
func (p Patch) Apply(j Job) Job {
	if p.URL != nil {
		j.Spec.URL = *p.URL
	}

	if p.Status != nil {
		j.Status = *p.Status
	}

	if p.Progress != nil {
		j.Progress = *p.Progress
	}

	if p.Filename != nil {
		j.Filename = *p.Filename
	}

	return j
}
