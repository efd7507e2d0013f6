package status

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"whspr/internal/benchmark"
)

// State is the externally visible dictation state.
type State int

const (
	Inactive State = iota
	Active
	Processing
	Error
)

func (s State) String() string {
	switch s {
	case Active:
		return "active"
	case Processing:
		return "processing"
	case Error:
		return "error"
	}
	return "inactive"
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *State) UnmarshalText(b []byte) error {
	switch string(b) {
	case "inactive":
		*s = Inactive
	case "active":
		*s = Active
	case "processing":
		*s = Processing
	case "error":
		*s = Error
	default:
		return fmt.Errorf("unknown state %q", b)
	}
	return nil
}

// Kind tags an Event.
type Kind string

const (
	KindState      Kind = "state"
	KindTranscript Kind = "transcript"
	KindLevel      Kind = "level"
	KindBenchmark  Kind = "benchmark"
)

// Event is what sinks receive.
type Event struct {
	Kind    Kind               `json:"kind"`
	At      time.Time          `json:"at"`
	State   State              `json:"state"`
	Tooltip string             `json:"tooltip,omitempty"`
	Text    string             `json:"text,omitempty"`
	Level   float32            `json:"level,omitempty"`
	Summary *benchmark.Summary `json:"summary,omitempty"`
}

// Sink consumes events. Implementations must not block for long; they are
// called from the orchestrator goroutine.
type Sink interface {
	Publish(ev Event) error
}

// Multi fans events out to several sinks.
type Multi []Sink

func (m Multi) Publish(ev Event) error {
	var first error
	for _, s := range m {
		if err := s.Publish(ev); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Reporter is the typed front of a Sink. Errors are logged, never returned.
type Reporter struct {
	mu    sync.Mutex
	sink  Sink
	state State
	now   func() time.Time
	log   *zap.SugaredLogger
}

// NewReporter wraps sink. A nil sink drops everything.
func NewReporter(sink Sink, log *zap.SugaredLogger) *Reporter {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Reporter{sink: sink, now: time.Now, log: log}
}

func (r *Reporter) publish(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ev.Kind == KindState {
		r.state = ev.State
	} else {
		ev.State = r.state
	}
	if r.sink == nil {
		return
	}
	ev.At = r.now()
	if err := r.sink.Publish(ev); err != nil {
		r.log.Debugw("status publish failed", "kind", ev.Kind, "error", err)
	}
}

// State returns the last published state.
func (r *Reporter) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Reporter) Ready()      { r.publish(Event{Kind: KindState, State: Inactive, Tooltip: "Ready"}) }
func (r *Reporter) Recording()  { r.publish(Event{Kind: KindState, State: Active, Tooltip: "Recording..."}) }
func (r *Reporter) Processing() { r.publish(Event{Kind: KindState, State: Processing, Tooltip: "Transcribing..."}) }

func (r *Reporter) Error(msg string) {
	r.publish(Event{Kind: KindState, State: Error, Tooltip: fmt.Sprintf("Error: %s", msg)})
}

func (r *Reporter) Transcript(text string) { r.publish(Event{Kind: KindTranscript, Text: text}) }
func (r *Reporter) Level(level float32)    { r.publish(Event{Kind: KindLevel, Level: level}) }

func (r *Reporter) Benchmark(s benchmark.Summary) {
	r.publish(Event{Kind: KindBenchmark, Summary: &s})
}

// LogSink writes events to a logger.
type LogSink struct{ Log *zap.SugaredLogger }

func (l LogSink) Publish(ev Event) error {
	switch ev.Kind {
	case KindState:
		l.Log.Infow("status", "state", ev.State, "tooltip", ev.Tooltip)
	case KindTranscript:
		l.Log.Infow("transcription", "text", ev.Text)
	case KindBenchmark:
		if ev.Summary != nil {
			l.Log.Infof("benchmark\n%s", ev.Summary)
		}
	}
	return nil
}
