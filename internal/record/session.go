package record

import (
	"errors"
	"math"
	"sync"
	"time"
)

const (
	// DefaultSampleRate is the nominal capture rate requested from hardware.
	DefaultSampleRate = 16000
	levelWindow       = 1024
)

// ErrSessionStopped is returned by Stop on a session that already stopped.
var ErrSessionStopped = errors.New("recording session already stopped")

// Captured is the audio collected by a session. SampleRate is the measured
// rate when available, else the nominal one.
type Captured struct {
	Samples    []float32
	SampleRate int
}

// Duration returns the captured length. Zero for empty captures.
func (c Captured) Duration() time.Duration {
	if len(c.Samples) == 0 || c.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(len(c.Samples)) / float64(c.SampleRate) * float64(time.Second))
}

// Session owns one live capture stream and its buffer.
type Session struct {
	mu      sync.Mutex
	samples []float32
	tracker *RateTracker
	stopped bool

	stream    Stream
	selection Selection
	nominal   int
	startedAt time.Time
}

// StartSession opens a mono stream through sel at the nominal rate.
func StartSession(sel *Selector, nominal int) (*Session, error) {
	if nominal <= 0 {
		nominal = DefaultSampleRate
	}
	s := &Session{
		tracker: NewRateTracker(nominal, 1),
		nominal: nominal,
	}
	stream, selection, err := sel.Open(nominal, 1, s.onSamples)
	if err != nil {
		return nil, err
	}
	s.stream = stream
	s.selection = selection
	s.startedAt = time.Now()
	return s, nil
}

// onSamples runs on the audio thread and only takes the buffer lock.
func (s *Session) onSamples(in []float32, captured time.Duration) {
	s.mu.Lock()
	s.samples = append(s.samples, in...)
	s.tracker.Update(len(in), captured)
	s.mu.Unlock()
}

// Stop halts capture and hands over the buffered samples.
func (s *Session) Stop() (Captured, error) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return Captured{}, ErrSessionStopped
	}
	s.stopped = true
	s.mu.Unlock()

	var closeErr error
	if s.stream != nil {
		closeErr = s.stream.Close()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	out := Captured{Samples: s.samples, SampleRate: s.tracker.Rate()}
	s.samples = nil
	if out.Samples == nil {
		out.Samples = []float32{}
	}
	return out, closeErr
}

// Level returns the RMS of the most recent samples scaled into [0, 1].
func (s *Session) Level() float32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Level(s.samples)
}

// Len returns the number of buffered samples.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.samples)
}

// Selection returns the device the session is bound to.
func (s *Session) Selection() Selection { return s.selection }

// StartedAt returns when the stream started.
func (s *Session) StartedAt() time.Time { return s.startedAt }

// Level computes the meter value for the tail of samples.
func Level(samples []float32) float32 {
	if len(samples) == 0 {
		return 0
	}
	tail := samples
	if len(tail) > levelWindow {
		tail = tail[len(tail)-levelWindow:]
	}
	var sum float64
	for _, v := range tail {
		sum += float64(v) * float64(v)
	}
	rms := math.Sqrt(sum / float64(len(tail)))
	return float32(math.Min(math.Max(rms*10, 0), 1))
}
