package record

import (
	"math"
	"time"
)

// RateWindow is the minimum span of timestamps folded into one measurement.
const RateWindow = 50 * time.Millisecond

// RateTracker estimates the real capture rate from hardware timestamps.
// The first callback only establishes a reference timestamp.
type RateTracker struct {
	nominal  int
	channels int

	last     time.Duration
	hasLast  bool
	frames   int64
	elapsed  time.Duration
	measured int
}

// NewRateTracker returns a tracker that reports nominal until a window completes.
func NewRateTracker(nominal, channels int) *RateTracker {
	if channels < 1 {
		channels = 1
	}
	return &RateTracker{nominal: nominal, channels: channels}
}

// Update folds in one callback of n interleaved samples captured at ts.
func (t *RateTracker) Update(n int, ts time.Duration) {
	if t.hasLast && ts >= t.last {
		t.frames += int64(n / t.channels)
		t.elapsed += ts - t.last
		if t.elapsed >= RateWindow {
			secs := t.elapsed.Seconds()
			if secs > 0 && t.frames > 0 {
				t.measured = int(math.Round(float64(t.frames) / secs))
			}
			t.frames = 0
			t.elapsed = 0
		}
	}
	t.last = ts
	t.hasLast = true
}

// Rate returns the last measured rate, or the nominal rate if none completed.
func (t *RateTracker) Rate() int {
	if t.measured > 0 {
		return t.measured
	}
	return t.nominal
}

// Measured reports whether at least one window completed.
func (t *RateTracker) Measured() bool { return t.measured > 0 }
