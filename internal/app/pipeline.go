package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"whspr/internal/asr"
	"whspr/internal/audio"
	"whspr/internal/benchmark"
	"whspr/internal/history"
	"whspr/internal/record"
)

// runPipeline turns one captured utterance into injected text. It never
// touches orchestrator state; the caller applies the result on its loop.
func runPipeline(ctx context.Context, deps Deps, opts Options, captured record.Captured, bench *benchmark.Recorder, log *zap.SugaredLogger, now func() time.Time) pipelineResult {
	if bench == nil {
		bench = benchmark.Start(deps.Transcriber.Provider(), now(), now())
	}
	bench.MarkProcessingStart(now())

	prepStart := now()
	samples, rate, ok := prepare(deps, opts, captured, bench, log)
	bench.RecordPreprocess(now().Sub(prepStart))
	if !ok {
		log.Infow("no speech detected; skipping transcription")
		bench.MarkSkipped(now())
		return pipelineResult{}
	}
	bench.RecordSent(len(samples), rate)

	res, err := deps.Transcriber.Transcribe(ctx, samples)
	bench.RecordBackend(res.Metrics.Encode, res.Metrics.Request, res.Metrics.UploadBytes, res.Metrics.Attempts)
	if err != nil {
		var re *asr.RetryExhaustedError
		if errors.As(err, &re) && opts.FailureMarker && deps.Injector != nil {
			if ierr := deps.Injector.Inject(ctx, requestFailedMarker); ierr != nil {
				log.Warnw("failed to inject failure marker", "error", ierr)
			}
		}
		return pipelineResult{Err: fmt.Errorf("transcription failed: %w", err)}
	}

	text := strings.TrimSpace(res.Text)
	if text == "" {
		log.Warnw("empty transcription result")
		bench.MarkSkipped(now())
		return pipelineResult{}
	}
	log.Infow("transcription complete", "provider", deps.Transcriber.Provider(), "chars", len(text), "attempts", res.Metrics.Attempts)
	deps.Status.Transcript(text)

	if deps.History != nil {
		entry := history.Entry{Text: text, Provider: deps.Transcriber.Provider(), Audio: captured.Duration(), CreatedAt: now()}
		if _, err := deps.History.Append(ctx, entry); err != nil {
			log.Warnw("failed to record history", "error", err)
		}
	}

	bench.MarkInjectStart(now())
	if deps.Injector != nil {
		if err := deps.Injector.Inject(ctx, text); err != nil {
			bench.MarkInjectEnd(now())
			return pipelineResult{Text: text, Err: fmt.Errorf("inject failed: %w", err)}
		}
	}
	bench.MarkInjectEnd(now())

	if opts.Benchmark {
		if summary, ok := bench.Finalize(); ok {
			deps.Status.Benchmark(summary)
		}
	}
	return pipelineResult{Text: text}
}

// prepare trims silence and converts to the target rate. It reports false
// when nothing is left to transcribe.
func prepare(deps Deps, opts Options, captured record.Captured, bench *benchmark.Recorder, log *zap.SugaredLogger) ([]float32, int, bool) {
	samples, rate := captured.Samples, captured.SampleRate
	if deps.Trimmer != nil {
		if !deps.Trimmer.SupportsRate(rate) {
			samples = audio.Resample(samples, rate, opts.TargetRate)
			rate = opts.TargetRate
		}
		out, err := deps.Trimmer.Trim(samples, rate)
		switch {
		case err != nil:
			log.Warnw("silence trimming failed; sending untrimmed audio", "error", err)
		case len(out.Samples) == 0:
			bench.RecordTrimmed(0, rate, len(samples))
			return nil, rate, false
		default:
			log.Debugw("trimmed silence", "segments", out.Segments, "dropped", out.Dropped, "kept", len(out.Samples))
			samples = out.Samples
			bench.RecordTrimmed(len(out.Samples), rate, out.Dropped)
		}
	}
	if len(samples) == 0 {
		return nil, rate, false
	}
	if rate != opts.TargetRate {
		samples = audio.Resample(samples, rate, opts.TargetRate)
		rate = opts.TargetRate
	}
	return samples, rate, true
}
