package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"whspr/internal/asr"
	"whspr/internal/config"
	"whspr/internal/history"
	"whspr/internal/inject"
	"whspr/internal/logging"
	"whspr/internal/record"
	"whspr/internal/status"
	"whspr/internal/telemetry"
	"whspr/internal/vad"
)

// levelInterval is how often the input meter is published while recording.
const levelInterval = 100 * time.Millisecond

// Runtime holds the long-lived components built from a Config.
type Runtime struct {
	Config      config.Config
	Status      *status.Reporter
	Recorder    *record.Recorder
	Transcriber asr.Transcriber
	Trimmer     *vad.Trimmer
	Injector    *inject.Injector
	History     *history.Store
	Metrics     *telemetry.Metrics

	host      *record.PortAudioHost
	transport *http.Transport
	nats      *status.NATSSink
	file      *status.FileSink
	cues      *status.Cues
	log       *zap.SugaredLogger
}

// Interactive selects whether Build opens audio capture, the injector and
// the status sinks. File mode only needs the transcriber and trimmer.
type Interactive bool

// Build constructs every component cfg enables. The caller must Close the
// returned Runtime.
func Build(ctx context.Context, cfg config.Config, interactive Interactive) (rt *Runtime, err error) {
	rt = &Runtime{Config: cfg, log: logging.For("app", false)}
	defer func() {
		if err != nil {
			rt.Close()
			rt = nil
		}
	}()

	rt.Transcriber, rt.transport, err = buildTranscriber(ctx, cfg)
	if err != nil {
		return rt, err
	}
	rt.Trimmer = buildTrimmer(cfg)

	if !interactive {
		rt.Status = status.NewReporter(status.LogSink{Log: rt.log}, rt.log)
		return rt, nil
	}

	recLog := logging.For("record", cfg.RECORD_DEBUG)
	rt.host, err = record.NewPortAudioHost(cfg.FramesPerBuffer)
	if err != nil {
		return rt, fmt.Errorf("initialize audio: %w", err)
	}
	rt.Recorder = record.New(record.NewSelector(rt.host, cfg.AudioDevice, recLog), cfg.SAMPLING_RATE, recLog)
	record.CleanupTemp(config.TempDir(&cfg), rt.log)

	rt.Injector, err = buildInjector(cfg)
	if err != nil {
		return rt, err
	}

	if cfg.HistoryPath != "" {
		rt.History, err = history.Open(ctx, cfg.HistoryPath, cfg.HistoryMax, logging.For("history", false))
		if err != nil {
			return rt, err
		}
	}

	sinks, err := rt.buildSinks(cfg)
	if err != nil {
		return rt, err
	}
	rt.Status = status.NewReporter(sinks, rt.log)
	return rt, nil
}

func buildTranscriber(ctx context.Context, cfg config.Config) (asr.Transcriber, *http.Transport, error) {
	client, transport := asr.NewHTTPClient(cfg)
	t, err := asr.New(cfg, client, logging.For("upload", cfg.UPLOAD_DEBUG))
	if err != nil {
		transport.CloseIdleConnections()
		return nil, nil, err
	}
	if err := t.Initialize(ctx); err != nil {
		transport.CloseIdleConnections()
		return nil, nil, fmt.Errorf("initialize %s transcriber: %w", t.Provider(), err)
	}
	return t, transport, nil
}

func buildTrimmer(cfg config.Config) *vad.Trimmer {
	if !cfg.VADEnabled {
		return nil
	}
	return vad.New(vad.Config{
		Threshold: float32(cfg.VADThreshold),
		Frame:     time.Duration(cfg.VADFrameMs) * time.Millisecond,
		MinSpeech: time.Duration(cfg.VADMinSpeechMs) * time.Millisecond,
		Padding:   time.Duration(cfg.VADPaddingMs) * time.Millisecond,
	})
}

func buildInjector(cfg config.Config) (*inject.Injector, error) {
	log := logging.For("inject", false)
	opts, err := inject.OptionsFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	var kb inject.Keyboard
	if opts.Paste {
		skb, err := inject.NewSystemKeyboard()
		if err != nil {
			log.Warnw("virtual keyboard unavailable; transcripts will only be copied", "error", err)
			opts.Paste = false
		} else {
			kb = skb
		}
	}
	return inject.New(inject.SystemClipboard{}, kb, opts, log), nil
}

func (rt *Runtime) buildSinks(cfg config.Config) (status.Multi, error) {
	sinks := status.Multi{status.LogSink{Log: rt.log}}
	if cfg.StatusFile != "" {
		fs, err := status.NewFileSink(cfg.StatusFile, cfg.SignalWaybar)
		if err != nil {
			return nil, err
		}
		rt.file = fs
		sinks = append(sinks, fs)
	}
	if cfg.Notification {
		sinks = append(sinks, status.NewNotifier(true, true))
	}
	rt.cues = status.NewCues(cfg.SoundCues, rt.log)
	sinks = append(sinks, rt.cues)
	if cfg.NATSURL != "" {
		ns, err := status.ConnectNATS(cfg.NATSURL, cfg.NATSSubject, false, logging.For("nats", false))
		if err != nil {
			rt.log.Warnw("status events will not be published to NATS", "error", err)
		} else {
			rt.nats = ns
			sinks = append(sinks, ns)
		}
	}
	if cfg.MetricsAddr != "" {
		m, err := telemetry.New(logging.For("metrics", false))
		if err != nil {
			return nil, err
		}
		rt.Metrics = m
		sinks = append(sinks, m)
	}
	return sinks, nil
}

// Deps returns the orchestrator collaborators. Disabled parts stay nil
// interfaces.
func (rt *Runtime) Deps() Deps {
	d := Deps{Transcriber: rt.Transcriber, Status: rt.Status}
	if rt.Recorder != nil {
		d.Recorder = rt.Recorder
	}
	if rt.Trimmer != nil {
		d.Trimmer = rt.Trimmer
	}
	if rt.Injector != nil {
		d.Injector = rt.Injector
	}
	if rt.History != nil {
		d.History = rt.History
	}
	return d
}

// Options returns the orchestrator policies for the current config.
func (rt *Runtime) Options() Options {
	return optionsFor(rt.Config)
}

func optionsFor(cfg config.Config) Options {
	return Options{
		TargetRate:    cfg.TargetRate,
		LevelInterval: levelInterval,
		Benchmark:     cfg.Benchmark,
		FailureMarker: cfg.RequestFailedNotification,
	}
}

// Reload applies next to the running orchestrator. The new transcriber
// is built and initialized before the swap, so a failed reload leaves the
// old configuration in place. rebind, when set, runs on the orchestrator
// loop together with the swap and never while a recording is active.
func (rt *Runtime) Reload(ctx context.Context, o *Orchestrator, next config.Config, rebind func(config.Config) error) error {
	t, transport, err := buildTranscriber(ctx, next)
	if err != nil {
		return err
	}
	var injOpts inject.Options
	if rt.Injector != nil {
		if injOpts, err = inject.OptionsFromConfig(next); err != nil {
			transport.CloseIdleConnections()
			return err
		}
	}
	trimmer := buildTrimmer(next)

	err = o.ApplyConfig(ctx, func(d *Deps, opts *Options) error {
		if rt.Recorder != nil {
			rt.Recorder.SetPreferredDevice(next.AudioDevice)
			rt.Recorder.SetNominalRate(next.SAMPLING_RATE)
		}
		if rt.Injector != nil {
			rt.Injector.SetOptions(injOpts)
		}
		if rt.cues != nil {
			rt.cues.SetEnabled(next.SoundCues)
		}
		d.Transcriber = t
		d.Trimmer = nil
		if trimmer != nil {
			d.Trimmer = trimmer
		}
		*opts = optionsFor(next)
		if rebind != nil {
			if err := rebind(next); err != nil {
				rt.log.Errorw("failed to rebind shortcuts", "error", err)
			}
		}
		return nil
	})
	if err != nil {
		transport.CloseIdleConnections()
		return err
	}

	if rt.transport != nil {
		rt.transport.CloseIdleConnections()
	}
	rt.Transcriber, rt.transport, rt.Trimmer, rt.Config = t, transport, trimmer, next
	logging.SetLevel(next.LogLevel)
	return nil
}

// Close releases everything Build opened.
func (rt *Runtime) Close() {
	if rt == nil {
		return
	}
	var errs []error
	if rt.History != nil {
		errs = append(errs, rt.History.Close())
	}
	if rt.host != nil {
		errs = append(errs, rt.host.Close())
	}
	if rt.file != nil {
		errs = append(errs, rt.file.Remove())
	}
	if rt.Metrics != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		errs = append(errs, rt.Metrics.Shutdown(ctx))
		cancel()
	}
	rt.nats.Close()
	if rt.transport != nil {
		rt.transport.CloseIdleConnections()
	}
	if err := errors.Join(errs...); err != nil {
		rt.log.Warnw("shutdown incomplete", "error", err)
	}
}
