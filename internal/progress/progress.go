// Package progress turns the engine's textual progress reports into
// monotonic percentages.
package progress

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"sync"
)

var ansiEscape = regexp.MustCompile(`\x1b\[[0-9;]*m`)

// Parse converts a percent string such as " 42.5%" into a number in [0,100].
// Terminal color codes and surrounding whitespace are ignored.
func Parse(s string) (float64, bool) {
	s = ansiEscape.ReplaceAllString(s, "")
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))

	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 || v > 100 || math.IsNaN(v) {
		return 0, false
	}

	return v, true
}

// Tracker forwards readings that move progress forward by at least step.
// Readings at or below the last forwarded value are dropped, so separate
// video and audio streams that each run from 0 to 100 never move the
// reported value backwards. Calls to onUpdate are serialized.
type Tracker struct {
	mu       sync.Mutex
	current  float64
	step     float64
	onUpdate func(float64)
}

// NewTracker returns a tracker starting at start.
func NewTracker(start, step float64, onUpdate func(float64)) *Tracker {
	return &Tracker{
		current:  start,
		step:     step,
		onUpdate: onUpdate,
	}
}

// Observe records a reading and reports whether it was forwarded.
func (t *Tracker) Observe(v float64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if v <= t.current {
		return false
	}

	if v-t.current < t.step && v < 100 {
		return false
	}

	t.current = v
	t.onUpdate(v)

	return true
}

// Current returns the last forwarded value.
func (t *Tracker) Current() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.current
}
