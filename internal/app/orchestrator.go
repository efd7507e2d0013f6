package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"whspr/internal/asr"
	"whspr/internal/audio"
	"whspr/internal/benchmark"
	"whspr/internal/history"
	"whspr/internal/hotkey"
	"whspr/internal/record"
	"whspr/internal/status"
	"whspr/internal/vad"
)

// ErrBusy is returned by ApplyConfig while a recording or pipeline is active.
var ErrBusy = errors.New("busy: recording or processing in progress")

// requestFailedMarker is pasted when every upload attempt failed and
// REQUEST_FAILED_NOTIFICATION is on.
const requestFailedMarker = "[request failed]"

// Recorder captures audio between Start and Stop.
type Recorder interface {
	Start(ctx context.Context) error
	Stop() (record.Captured, error)
	Level() float32
}

// Trimmer removes silence. Outcome.Samples is empty for silence-only audio.
type Trimmer interface {
	SupportsRate(rate int) bool
	Trim(samples []float32, rate int) (vad.Outcome, error)
}

// Injector delivers text to the focused application.
type Injector interface {
	Inject(ctx context.Context, text string) error
}

// History persists transcripts.
type History interface {
	Append(ctx context.Context, e history.Entry) (history.Entry, error)
}

// Deps are the collaborators the orchestrator drives. Trimmer, Injector
// and History may be nil.
type Deps struct {
	Recorder    Recorder
	Transcriber asr.Transcriber
	Trimmer     Trimmer
	Injector    Injector
	History     History
	Status      *status.Reporter
}

// Options are orchestrator policies.
type Options struct {
	TargetRate    int           // rate sent to the transcriber
	LevelInterval time.Duration // input meter period while recording, 0 disables
	Benchmark     bool          // log the benchmark table per utterance
	FailureMarker bool          // paste requestFailedMarker on exhausted retries
}

// Phase is the coarse orchestrator state.
type Phase int

const (
	Idle Phase = iota
	Recording
	Processing
)

func (p Phase) String() string {
	switch p {
	case Recording:
		return "recording"
	case Processing:
		return "processing"
	}
	return "idle"
}

// State is the orchestrator state. Trigger is meaningful while Recording.
type State struct {
	Phase   Phase
	Trigger hotkey.Kind
}

func (s State) String() string {
	if s.Phase == Recording {
		return fmt.Sprintf("recording(%s)", s.Trigger)
	}
	return s.Phase.String()
}

type pipelineResult struct {
	Text string
	Err  error
}

type configRequest struct {
	apply func(*Deps, *Options) error
	reply chan error
}

// Orchestrator owns the dictation state machine. All transitions happen on
// the goroutine running Run.
type Orchestrator struct {
	deps Deps
	opts Options
	log  *zap.SugaredLogger
	now  func() time.Time

	mu    sync.Mutex
	state State

	events  chan hotkey.Event
	done    chan pipelineResult
	configs chan configRequest

	bench    *benchmark.Recorder
	pipeline sync.WaitGroup
}

// New creates an orchestrator in the Idle state.
func New(deps Deps, opts Options, log *zap.SugaredLogger) *Orchestrator {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if deps.Status == nil {
		deps.Status = status.NewReporter(nil, log)
	}
	if opts.TargetRate <= 0 {
		opts.TargetRate = audio.TargetSampleRate
	}
	return &Orchestrator{
		deps:    deps,
		opts:    opts,
		log:     log,
		now:     time.Now,
		events:  make(chan hotkey.Event, 16),
		done:    make(chan pipelineResult, 1),
		configs: make(chan configRequest),
	}
}

// Events is the sink shortcut listeners deliver to.
func (o *Orchestrator) Events() chan<- hotkey.Event { return o.events }

// State returns a snapshot of the current state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	prev := o.state
	o.state = s
	o.mu.Unlock()
	if prev != s {
		o.log.Debugw("state changed", "from", prev, "to", s)
	}
}

// Run processes events until ctx is done. An active recording is discarded
// and an in-flight pipeline is awaited before returning.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.deps.Status.Ready()

	var tick <-chan time.Time
	if o.opts.LevelInterval > 0 {
		t := time.NewTicker(o.opts.LevelInterval)
		defer t.Stop()
		tick = t.C
	}

	for {
		select {
		case <-ctx.Done():
			o.shutdown()
			return nil
		case ev := <-o.events:
			o.handleShortcut(ctx, ev)
		case res := <-o.done:
			o.handlePipelineDone(res)
		case req := <-o.configs:
			req.reply <- o.applyConfig(req.apply)
		case <-tick:
			if o.State().Phase == Recording {
				o.deps.Status.Level(o.deps.Recorder.Level())
			}
		}
	}
}

func (o *Orchestrator) shutdown() {
	if o.State().Phase == Recording {
		if _, err := o.deps.Recorder.Stop(); err != nil {
			o.log.Debugw("discarding recording on shutdown failed", "error", err)
		}
		o.log.Infow("discarded active recording on shutdown")
	}
	o.pipeline.Wait()
	select {
	case res := <-o.done:
		o.handlePipelineDone(res)
	default:
	}
	o.setState(State{Phase: Idle})
}

// ApplyConfig runs apply on the event loop when Idle. It returns ErrBusy
// while recording or processing.
func (o *Orchestrator) ApplyConfig(ctx context.Context, apply func(*Deps, *Options) error) error {
	req := configRequest{apply: apply, reply: make(chan error, 1)}
	select {
	case o.configs <- req:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-req.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *Orchestrator) applyConfig(apply func(*Deps, *Options) error) error {
	if o.State().Phase != Idle {
		o.log.Warnw("configuration change rejected", "state", o.State())
		return ErrBusy
	}
	deps, opts := o.deps, o.opts
	if err := apply(&deps, &opts); err != nil {
		return err
	}
	if deps.Status == nil {
		deps.Status = o.deps.Status
	}
	if opts.TargetRate <= 0 {
		opts.TargetRate = audio.TargetSampleRate
	}
	o.deps, o.opts = deps, opts
	o.log.Infow("configuration applied", "provider", deps.Transcriber.Provider())
	return nil
}

func (o *Orchestrator) handleShortcut(ctx context.Context, ev hotkey.Event) {
	cur := o.State()
	switch {
	case ev.Kind == hotkey.Press && ev.Phase == hotkey.Start:
		switch cur.Phase {
		case Idle:
			o.startRecording(ctx, hotkey.Press, ev.TriggeredAt)
		case Recording:
			o.stopRecording(ctx, ev.TriggeredAt)
		case Processing:
			o.log.Warnw("still processing previous recording; ignoring shortcut")
		}
	case ev.Kind == hotkey.Hold && ev.Phase == hotkey.Start:
		switch cur.Phase {
		case Idle:
			o.startRecording(ctx, hotkey.Hold, ev.TriggeredAt)
		case Recording:
			o.log.Debugw("hold start ignored; already recording", "trigger", cur.Trigger)
		case Processing:
			o.log.Warnw("still processing previous recording; ignoring shortcut")
		}
	case ev.Kind == hotkey.Hold && ev.Phase == hotkey.End:
		switch {
		case cur.Phase == Recording && cur.Trigger == hotkey.Hold:
			o.stopRecording(ctx, ev.TriggeredAt)
		case cur.Phase == Recording:
			o.log.Debugw("hold release ignored; recording was started by press shortcut")
		default:
			o.log.Debugw("hold release ignored", "state", cur)
		}
	default:
		o.log.Debugw("unhandled shortcut event", "kind", ev.Kind, "phase", ev.Phase)
	}
}

func (o *Orchestrator) startRecording(ctx context.Context, trigger hotkey.Kind, at time.Time) {
	if at.IsZero() {
		at = o.now()
	}
	if err := o.deps.Recorder.Start(ctx); err != nil {
		var sse *record.StreamStartError
		if errors.As(err, &sse) {
			o.log.Errorw("audio stream failed to start", "device", sse.Device, "retried", sse.Retried, "error", sse.Err)
		} else {
			o.log.Errorw("failed to start recording", "error", err)
		}
		o.deps.Status.Error("recording failed to start")
		return
	}
	o.bench = benchmark.Start(o.deps.Transcriber.Provider(), at, o.now())
	o.setState(State{Phase: Recording, Trigger: trigger})
	o.deps.Status.Recording()
	o.log.Infow("recording started", "trigger", trigger)
}

func (o *Orchestrator) stopRecording(ctx context.Context, at time.Time) {
	if at.IsZero() {
		at = o.now()
	}
	captured, err := o.deps.Recorder.Stop()
	stopAt := o.now()
	bench := o.bench
	o.bench = nil
	if bench != nil {
		bench.MarkKeybindStop(at)
		bench.MarkRecordingStop(stopAt)
		bench.RecordOriginal(len(captured.Samples), captured.SampleRate)
	}
	if err != nil {
		o.log.Errorw("failed to stop recording", "error", err)
		o.setState(State{Phase: Idle})
		o.deps.Status.Error("recording failed")
		return
	}
	if len(captured.Samples) == 0 {
		o.log.Warnw("no audio data captured")
		o.setState(State{Phase: Idle})
		o.deps.Status.Ready()
		return
	}
	o.log.Infow("recording stopped", "samples", len(captured.Samples), "rate", captured.SampleRate, "duration", captured.Duration())

	o.setState(State{Phase: Processing})
	o.deps.Status.Processing()
	deps, opts := o.deps, o.opts
	o.pipeline.Add(1)
	go func() {
		defer o.pipeline.Done()
		o.done <- runPipeline(context.WithoutCancel(ctx), deps, opts, captured, bench, o.log, o.now)
	}()
}

func (o *Orchestrator) handlePipelineDone(res pipelineResult) {
	if o.State().Phase != Processing {
		o.log.Debugw("pipeline completion without processing state", "state", o.State())
	}
	o.setState(State{Phase: Idle})
	if res.Err != nil {
		o.log.Errorw("processing failed", "error", res.Err)
		o.deps.Status.Error(shortError(res.Err))
		return
	}
	o.deps.Status.Ready()
}

func shortError(err error) string {
	var re *asr.RetryExhaustedError
	if errors.As(err, &re) {
		return fmt.Sprintf("transcription failed after %d attempts", re.Attempts)
	}
	msg := err.Error()
	if i := strings.IndexByte(msg, '\n'); i >= 0 {
		msg = msg[:i]
	}
	return msg
}
