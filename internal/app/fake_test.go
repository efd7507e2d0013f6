package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"whspr/internal/asr"
	"whspr/internal/history"
	"whspr/internal/record"
	"whspr/internal/status"
	"whspr/internal/vad"
)

type fakeRecorder struct {
	mu       sync.Mutex
	starts   int
	stops    int
	running  bool
	startErr error
	captured record.Captured
}

func (r *fakeRecorder) Start(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.startErr != nil {
		return r.startErr
	}
	r.starts++
	r.running = true
	return nil
}

func (r *fakeRecorder) Stop() (record.Captured, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.running {
		return record.Captured{}, errors.New("recorder not running")
	}
	r.stops++
	r.running = false
	return r.captured, nil
}

func (r *fakeRecorder) Level() float32 { return 0.5 }

type fakeTranscriber struct {
	mu    sync.Mutex
	text  string
	err   error
	got   [][]float32
	block chan struct{}
}

func (f *fakeTranscriber) Initialize(context.Context) error { return nil }
func (f *fakeTranscriber) Provider() string                 { return "fake" }

func (f *fakeTranscriber) Transcribe(ctx context.Context, samples []float32) (asr.Result, error) {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return asr.Result{}, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.got = append(f.got, samples)
	if f.err != nil {
		return asr.Result{Metrics: asr.Metrics{Attempts: 3}}, f.err
	}
	return asr.Result{Text: f.text, Metrics: asr.Metrics{Attempts: 1, Request: time.Millisecond}}, nil
}

func (f *fakeTranscriber) calls() [][]float32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]float32(nil), f.got...)
}

type fakeInjector struct {
	mu    sync.Mutex
	texts []string
}

func (f *fakeInjector) Inject(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
	return nil
}

func (f *fakeInjector) injected() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.texts...)
}

type fakeHistory struct {
	mu      sync.Mutex
	entries []history.Entry
}

func (f *fakeHistory) Append(_ context.Context, e history.Entry) (history.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, e)
	return e, nil
}

// silenceTrimmer reports every capture as silence.
type silenceTrimmer struct{}

func (silenceTrimmer) SupportsRate(int) bool { return true }
func (silenceTrimmer) Trim(samples []float32, _ int) (vad.Outcome, error) {
	return vad.Outcome{Dropped: len(samples)}, nil
}

type recordingSink struct {
	mu     sync.Mutex
	events []status.Event
}

func (s *recordingSink) Publish(ev status.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

func (s *recordingSink) states() []status.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []status.State
	for _, ev := range s.events {
		if ev.Kind == status.KindState {
			out = append(out, ev.State)
		}
	}
	return out
}

func (s *recordingSink) count(kind status.Kind) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, ev := range s.events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}
