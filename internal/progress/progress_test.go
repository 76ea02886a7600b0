package progress

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"42.5%", 42.5, true},
		{"  7.0% ", 7, true},
		{"100%", 100, true},
		{"0", 0, true},
		{"\x1b[0;94m 63.1%\x1b[0m", 63.1, true},
		{"N/A", 0, false},
		{"", 0, false},
		{"%", 0, false},
		{"-3%", 0, false},
		{"140%", 0, false},
		{"NaN%", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := Parse(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.InDelta(t, tt.want, got, 0.0001)
		})
	}
}

func TestTracker_IsMonotonic(t *testing.T) {
	var got []float64
	tr := NewTracker(0, 0, func(v float64) { got = append(got, v) })

	for _, v := range []float64{10, 50, 100, 3, 40, 100} {
		tr.Observe(v)
	}

	assert.Equal(t, []float64{10, 50, 100}, got)
	assert.InDelta(t, 100, tr.Current(), 0)
}

func TestTracker_Step(t *testing.T) {
	var got []float64
	tr := NewTracker(0, 5, func(v float64) { got = append(got, v) })

	assert.False(t, tr.Observe(1))
	assert.False(t, tr.Observe(4.9))
	assert.True(t, tr.Observe(5))
	assert.False(t, tr.Observe(9))
	assert.True(t, tr.Observe(12))
	assert.True(t, tr.Observe(100), "completion is always forwarded")

	assert.Equal(t, []float64{5, 12, 100}, got)
}

func TestTracker_SerializesUpdates(t *testing.T) {
	var (
		inside int
		peak   int
		mu     sync.Mutex
	)

	tr := NewTracker(0, 0, func(float64) {
		mu.Lock()
		inside++
		if inside > peak {
			peak = inside
		}
		mu.Unlock()

		mu.Lock()
		inside--
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 1; i <= 100; i++ {
		wg.Add(1)
		go func(v float64) {
			defer wg.Done()
			tr.Observe(v)
		}(float64(i))
	}
	wg.Wait()

	require.Equal(t, 1, peak)
	assert.InDelta(t, 100, tr.Current(), 0)
}
