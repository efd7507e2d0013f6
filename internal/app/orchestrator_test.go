package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"whspr/internal/asr"
	"whspr/internal/hotkey"
	"whspr/internal/record"
	"whspr/internal/status"
)

type harness struct {
	o    *Orchestrator
	rec  *fakeRecorder
	tr   *fakeTranscriber
	inj  *fakeInjector
	hist *fakeHistory
	sink *recordingSink
}

func newHarness(opts Options) *harness {
	h := &harness{
		rec:  &fakeRecorder{captured: record.Captured{Samples: make([]float32, 1600), SampleRate: 16000}},
		tr:   &fakeTranscriber{text: " hello world "},
		inj:  &fakeInjector{},
		hist: &fakeHistory{},
		sink: &recordingSink{},
	}
	h.o = New(Deps{
		Recorder:    h.rec,
		Transcriber: h.tr,
		Injector:    h.inj,
		History:     h.hist,
		Status:      status.NewReporter(h.sink, nil),
	}, opts, nil)
	return h
}

func (h *harness) send(kind hotkey.Kind, phase hotkey.Phase) {
	h.o.handleShortcut(context.Background(), hotkey.Event{TriggeredAt: time.Now(), Kind: kind, Phase: phase})
}

// finish waits for the pipeline and applies its result the way Run does.
func (h *harness) finish(t *testing.T) pipelineResult {
	t.Helper()
	select {
	case res := <-h.o.done:
		h.o.handlePipelineDone(res)
		return res
	case <-time.After(2 * time.Second):
		t.Fatalf("pipeline did not finish")
	}
	return pipelineResult{}
}

func (h *harness) expectState(t *testing.T, want State) {
	t.Helper()
	if got := h.o.State(); got != want {
		t.Fatalf("expected state %s, got %s", want, got)
	}
}

func TestPressTogglesRecording(t *testing.T) {
	h := newHarness(Options{})
	h.send(hotkey.Press, hotkey.Start)
	h.expectState(t, State{Phase: Recording, Trigger: hotkey.Press})

	h.send(hotkey.Press, hotkey.Start)
	h.expectState(t, State{Phase: Processing})

	res := h.finish(t)
	if res.Err != nil {
		t.Fatalf("unexpected pipeline error: %v", res.Err)
	}
	h.expectState(t, State{Phase: Idle})

	if got := h.inj.injected(); len(got) != 1 || got[0] != "hello world" {
		t.Fatalf("unexpected injected text %q", got)
	}
	if len(h.hist.entries) != 1 || h.hist.entries[0].Provider != "fake" {
		t.Fatalf("expected one history entry, got %+v", h.hist.entries)
	}
	want := []status.State{status.Active, status.Processing, status.Inactive}
	got := h.sink.states()
	if len(got) != len(want) {
		t.Fatalf("expected states %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected states %v, got %v", want, got)
		}
	}
	if h.sink.count(status.KindTranscript) != 1 {
		t.Fatalf("expected one transcript event")
	}
}

func TestHoldReleaseStopsHoldRecording(t *testing.T) {
	h := newHarness(Options{})
	h.send(hotkey.Hold, hotkey.Start)
	h.expectState(t, State{Phase: Recording, Trigger: hotkey.Hold})

	h.send(hotkey.Hold, hotkey.Start)
	h.expectState(t, State{Phase: Recording, Trigger: hotkey.Hold})

	h.send(hotkey.Hold, hotkey.End)
	h.expectState(t, State{Phase: Processing})
	h.finish(t)
	h.expectState(t, State{Phase: Idle})
	if h.rec.starts != 1 || h.rec.stops != 1 {
		t.Fatalf("expected one start and stop, got %d/%d", h.rec.starts, h.rec.stops)
	}
}

func TestHoldReleaseIgnoredForPressRecording(t *testing.T) {
	h := newHarness(Options{})
	h.send(hotkey.Press, hotkey.Start)
	h.send(hotkey.Hold, hotkey.End)
	h.expectState(t, State{Phase: Recording, Trigger: hotkey.Press})
	if h.rec.stops != 0 {
		t.Fatalf("hold release must not stop a press recording")
	}
}

func TestHoldReleaseIgnoredWhenIdle(t *testing.T) {
	h := newHarness(Options{})
	h.send(hotkey.Hold, hotkey.End)
	h.expectState(t, State{Phase: Idle})
	if h.rec.starts != 0 || h.rec.stops != 0 {
		t.Fatalf("idle hold release touched the recorder")
	}
}

func TestPressStopsHoldRecording(t *testing.T) {
	h := newHarness(Options{})
	h.send(hotkey.Hold, hotkey.Start)
	h.send(hotkey.Press, hotkey.Start)
	h.expectState(t, State{Phase: Processing})
	h.finish(t)
}

func TestProcessingIgnoresShortcuts(t *testing.T) {
	h := newHarness(Options{})
	h.tr.block = make(chan struct{})
	h.send(hotkey.Press, hotkey.Start)
	h.send(hotkey.Press, hotkey.Start)
	h.expectState(t, State{Phase: Processing})

	h.send(hotkey.Press, hotkey.Start)
	h.send(hotkey.Hold, hotkey.Start)
	h.expectState(t, State{Phase: Processing})
	if h.rec.starts != 1 {
		t.Fatalf("recorder restarted during processing: %d starts", h.rec.starts)
	}

	close(h.tr.block)
	h.finish(t)
	h.expectState(t, State{Phase: Idle})
}

func TestEmptyCaptureReturnsToIdle(t *testing.T) {
	h := newHarness(Options{})
	h.rec.captured = record.Captured{SampleRate: 16000}
	h.send(hotkey.Press, hotkey.Start)
	h.send(hotkey.Press, hotkey.Start)
	h.expectState(t, State{Phase: Idle})
	if len(h.tr.calls()) != 0 {
		t.Fatalf("empty capture should not be transcribed")
	}
	select {
	case <-h.o.done:
		t.Fatalf("no pipeline should run for an empty capture")
	default:
	}
}

func TestStartFailureStaysIdle(t *testing.T) {
	h := newHarness(Options{})
	h.rec.startErr = &record.StreamStartError{Device: "mic", Err: errors.New("busy")}
	h.send(hotkey.Press, hotkey.Start)
	h.expectState(t, State{Phase: Idle})
	got := h.sink.states()
	if len(got) != 1 || got[0] != status.Error {
		t.Fatalf("expected a single error state, got %v", got)
	}
}

func TestSilenceSkipsTranscription(t *testing.T) {
	h := newHarness(Options{})
	h.o.deps.Trimmer = silenceTrimmer{}
	h.send(hotkey.Press, hotkey.Start)
	h.send(hotkey.Press, hotkey.Start)
	res := h.finish(t)
	if res.Err != nil || res.Text != "" {
		t.Fatalf("unexpected result %+v", res)
	}
	if len(h.tr.calls()) != 0 || len(h.inj.injected()) != 0 {
		t.Fatalf("silence should skip transcription and injection")
	}
	h.expectState(t, State{Phase: Idle})
}

func TestCaptureResampledToTarget(t *testing.T) {
	h := newHarness(Options{TargetRate: 16000})
	h.rec.captured = record.Captured{Samples: make([]float32, 4800), SampleRate: 48000}
	h.send(hotkey.Press, hotkey.Start)
	h.send(hotkey.Press, hotkey.Start)
	h.finish(t)
	calls := h.tr.calls()
	if len(calls) != 1 || len(calls[0]) != 1600 {
		t.Fatalf("expected 1600 samples at 16 kHz, got %v", len(calls[0]))
	}
}

func TestRetryExhaustedInjectsMarker(t *testing.T) {
	h := newHarness(Options{FailureMarker: true})
	h.tr.err = &asr.RetryExhaustedError{Attempts: 3, MaxRetry: 3}
	h.send(hotkey.Press, hotkey.Start)
	h.send(hotkey.Press, hotkey.Start)
	res := h.finish(t)
	var re *asr.RetryExhaustedError
	if !errors.As(res.Err, &re) {
		t.Fatalf("expected retry exhausted error, got %v", res.Err)
	}
	if got := h.inj.injected(); len(got) != 1 || got[0] != requestFailedMarker {
		t.Fatalf("expected failure marker, got %q", got)
	}
	h.expectState(t, State{Phase: Idle})
	states := h.sink.states()
	if states[len(states)-1] != status.Error {
		t.Fatalf("expected error status, got %v", states)
	}
}

func TestBenchmarkPublished(t *testing.T) {
	h := newHarness(Options{Benchmark: true})
	h.send(hotkey.Press, hotkey.Start)
	h.send(hotkey.Press, hotkey.Start)
	h.finish(t)
	if h.sink.count(status.KindBenchmark) != 1 {
		t.Fatalf("expected one benchmark event")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestApplyConfigRejectedWhileRecording(t *testing.T) {
	h := newHarness(Options{})
	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan error, 1)
	go func() { runDone <- h.o.Run(ctx) }()

	replacement := &fakeTranscriber{text: "other"}
	swap := func(d *Deps, _ *Options) error {
		d.Transcriber = replacement
		return nil
	}

	h.o.Events() <- hotkey.Event{TriggeredAt: time.Now(), Kind: hotkey.Press, Phase: hotkey.Start}
	waitFor(t, func() bool { return h.o.State().Phase == Recording })

	if err := h.o.ApplyConfig(context.Background(), swap); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}

	h.o.Events() <- hotkey.Event{TriggeredAt: time.Now(), Kind: hotkey.Press, Phase: hotkey.Start}
	waitFor(t, func() bool { return h.o.State().Phase == Idle })

	if err := h.o.ApplyConfig(context.Background(), swap); err != nil {
		t.Fatalf("apply while idle: %v", err)
	}
	h.o.Events() <- hotkey.Event{TriggeredAt: time.Now(), Kind: hotkey.Press, Phase: hotkey.Start}
	h.o.Events() <- hotkey.Event{TriggeredAt: time.Now(), Kind: hotkey.Press, Phase: hotkey.Start}
	waitFor(t, func() bool { return len(replacement.calls()) == 1 && h.o.State().Phase == Idle })

	cancel()
	select {
	case err := <-runDone:
		if err != nil {
			t.Fatalf("run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("run did not stop")
	}
}

func TestShutdownDiscardsRecording(t *testing.T) {
	h := newHarness(Options{})
	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan error, 1)
	go func() { runDone <- h.o.Run(ctx) }()

	h.o.Events() <- hotkey.Event{TriggeredAt: time.Now(), Kind: hotkey.Press, Phase: hotkey.Start}
	waitFor(t, func() bool { return h.o.State().Phase == Recording })
	cancel()
	<-runDone

	if h.rec.stops != 1 {
		t.Fatalf("expected the recording to be stopped on shutdown")
	}
	if len(h.tr.calls()) != 0 {
		t.Fatalf("discarded recording must not be transcribed")
	}
	h.expectState(t, State{Phase: Idle})
}
