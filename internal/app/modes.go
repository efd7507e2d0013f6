package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"whspr/internal/audio/ffmpeg"
	"whspr/internal/benchmark"
	"whspr/internal/config"
	"whspr/internal/hotkey"
	"whspr/internal/logging"
	"whspr/internal/record"
)

// Reloader produces a fresh validated Config, e.g. from the config file
// and command-line flags.
type Reloader func() (config.Config, error)

// RunRecordMode listens for the configured shortcuts until ctx is done.
// SIGHUP reloads the configuration through reload when the orchestrator
// is idle.
func RunRecordMode(ctx context.Context, cfg config.Config, reload Reloader) error {
	log := logging.For("app", false)
	rt, err := Build(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer rt.Close()

	orch := New(rt.Deps(), rt.Options(), log)
	if rt.Metrics != nil {
		if err := rt.Metrics.Serve(ctx, cfg.MetricsAddr); err != nil {
			return err
		}
	}

	b := newBindings(orch.Events(), hotkeyOptions(cfg), log)
	defer b.Stop()
	if err := b.Apply(cfg); err != nil {
		return err
	}
	if !b.Running() {
		return fmt.Errorf("no shortcut listener could be started: %w", hotkey.ErrNoKeyboards)
	}

	done := make(chan error, 1)
	go func() { done <- orch.Run(ctx) }()

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	log.Infow("ready", "press", cfg.PressShortcut, "hold", cfg.HoldShortcut, "provider", rt.Transcriber.Provider())
	for {
		select {
		case err := <-done:
			return err
		case <-hup:
			if reload == nil {
				continue
			}
			next, err := reload()
			if err != nil {
				log.Errorw("configuration reload failed", "error", err)
				continue
			}
			rebind := func(c config.Config) error {
				b.SetOptions(hotkeyOptions(c))
				return b.Apply(c)
			}
			if err := rt.Reload(ctx, orch, next, rebind); err != nil {
				if errors.Is(err, ErrBusy) {
					log.Warnw("configuration reload deferred; send SIGHUP again when idle")
				} else {
					log.Errorw("configuration reload failed", "error", err)
				}
				continue
			}
		}
	}
}

// RunTestMode records with Enter on stdin in place of a global shortcut.
func RunTestMode(ctx context.Context, cfg config.Config, in io.Reader) error {
	log := logging.For("app", false)
	rt, err := Build(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer rt.Close()

	orch := New(rt.Deps(), rt.Options(), log)
	go feedLines(ctx, in, orch.Events())
	log.Infow("test mode: press Enter to start and stop recording, Ctrl+C to exit")
	return orch.Run(ctx)
}

// feedLines turns every input line into a press shortcut event.
func feedLines(ctx context.Context, in io.Reader, sink chan<- hotkey.Event) {
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		ev := hotkey.Event{TriggeredAt: time.Now(), Kind: hotkey.Press, Phase: hotkey.Start}
		select {
		case sink <- ev:
		case <-ctx.Done():
			return
		}
	}
}

// RunFileMode transcribes inputPath and writes the text next to it, or to
// outputPath when set.
func RunFileMode(ctx context.Context, cfg config.Config, inputPath, outputPath string) error {
	log := logging.For("app", false)
	if _, err := os.Stat(inputPath); err != nil {
		return fmt.Errorf("file '%s' stat failed: %w", inputPath, err)
	}
	tempDir := config.TempDir(&cfg)
	record.CleanupTemp(tempDir, log)

	rt, err := Build(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer rt.Close()

	captured, err := loadAudio(ctx, cfg, inputPath, tempDir, log)
	if err != nil {
		return err
	}
	if len(captured.Samples) == 0 {
		return fmt.Errorf("file '%s' contains no audio", inputPath)
	}
	log.Infow("loaded audio", "path", inputPath, "rate", captured.SampleRate, "duration", captured.Duration())

	deps := rt.Deps()
	opts := rt.Options()
	bench := benchmark.Start(deps.Transcriber.Provider(), time.Now(), time.Now())
	bench.MarkRecordingStop(time.Now())
	bench.RecordOriginal(len(captured.Samples), captured.SampleRate)

	var text string
	samples, _, ok := prepare(deps, opts, captured, bench, log)
	if ok {
		res, err := deps.Transcriber.Transcribe(ctx, samples)
		if err != nil {
			return fmt.Errorf("transcription failed: %w", err)
		}
		text = strings.TrimSpace(res.Text)
		bench.RecordBackend(res.Metrics.Encode, res.Metrics.Request, res.Metrics.UploadBytes, res.Metrics.Attempts)
	} else {
		log.Warnw("no speech detected", "path", inputPath)
	}
	bench.MarkSkipped(time.Now())

	outPath := outputPath
	if outPath == "" {
		base := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
		outPath = filepath.Join(".", base+".txt")
	}
	if err := os.WriteFile(outPath, []byte(text), 0644); err != nil {
		return err
	}
	log.Infow("transcript written", "path", outPath, "chars", len(text))
	if cfg.Benchmark {
		if s, ok := bench.Finalize(); ok {
			log.Infof("benchmark\n%s", s)
		}
	}
	return nil
}

// loadAudio decodes WAV input directly and converts anything else to a
// temporary 16-bit WAV with ffmpeg.
func loadAudio(ctx context.Context, cfg config.Config, inputPath, tempDir string, log *zap.SugaredLogger) (record.Captured, error) {
	if strings.EqualFold(filepath.Ext(inputPath), ".wav") {
		c, err := record.ReadWAV(inputPath)
		if err == nil {
			return c, nil
		}
		log.Debugw("direct wav decode failed; converting with ffmpeg", "error", err)
	}
	if err := ffmpeg.Available(); err != nil {
		return record.Captured{}, err
	}

	conv := cfg
	conv.CODECS, conv.CONTAINER, conv.SAMPLING_RATE_DEPTH = "pcm_s16le", "wav", 16
	tmp := record.TempWavPath(tempDir)
	ffLog := logging.For("ffmpeg", cfg.FFMPEG_DEBUG)
	if err := ffmpeg.Convert(ctx, conv, inputPath, tmp, ffLog); err != nil {
		_ = os.Remove(tmp)
		return record.Captured{}, err
	}
	if !cfg.KeepCache {
		defer os.Remove(tmp)
	}
	return record.ReadWAV(tmp)
}
