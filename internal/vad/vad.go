package vad

import (
	"fmt"
	"math"
	"time"
)

// Config controls the energy trimmer.
type Config struct {
	Threshold float32       // frame RMS above this counts as speech
	Frame     time.Duration // analysis frame length
	MinSpeech time.Duration // shorter speech runs are discarded
	Padding   time.Duration // kept on each side of a speech run
}

// DefaultConfig mirrors the config package defaults.
func DefaultConfig() Config {
	return Config{
		Threshold: 0.02,
		Frame:     30 * time.Millisecond,
		MinSpeech: 150 * time.Millisecond,
		Padding:   200 * time.Millisecond,
	}
}

// Outcome is the result of trimming one capture.
type Outcome struct {
	Samples  []float32
	Segments int
	Dropped  int
}

// Trimmer drops silence around and between speech runs.
type Trimmer struct {
	cfg Config
}

// New returns a Trimmer. Zero fields fall back to DefaultConfig.
func New(cfg Config) *Trimmer {
	def := DefaultConfig()
	if cfg.Frame <= 0 {
		cfg.Frame = def.Frame
	}
	if cfg.Threshold < 0 {
		cfg.Threshold = def.Threshold
	}
	if cfg.MinSpeech < 0 {
		cfg.MinSpeech = 0
	}
	if cfg.Padding < 0 {
		cfg.Padding = 0
	}
	return &Trimmer{cfg: cfg}
}

var supportedRates = map[int]bool{8000: true, 16000: true, 32000: true, 48000: true}

// SupportsRate reports whether Trim accepts audio at rate.
func SupportsRate(rate int) bool { return supportedRates[rate] }

type span struct{ start, end int }

// Trim keeps the speech runs of samples plus padding. A silent capture
// yields an empty Outcome.Samples.
func (t *Trimmer) Trim(samples []float32, rate int) (Outcome, error) {
	if !SupportsRate(rate) {
		return Outcome{}, fmt.Errorf("vad: unsupported sample rate %d", rate)
	}
	if len(samples) == 0 {
		return Outcome{Samples: []float32{}}, nil
	}
	frame := samplesFor(t.cfg.Frame, rate)
	if frame < 1 {
		frame = 1
	}
	minRun := samplesFor(t.cfg.MinSpeech, rate)
	pad := samplesFor(t.cfg.Padding, rate)

	var runs []span
	cur := span{start: -1}
	for off := 0; off < len(samples); off += frame {
		end := min(off+frame, len(samples))
		if rms(samples[off:end]) > t.cfg.Threshold {
			if cur.start < 0 {
				cur.start = off
			}
			cur.end = end
			continue
		}
		if cur.start >= 0 {
			runs = appendRun(runs, cur, minRun)
			cur = span{start: -1}
		}
	}
	if cur.start >= 0 {
		runs = appendRun(runs, cur, minRun)
	}

	kept := mergePadded(runs, pad, len(samples))
	out := make([]float32, 0, len(samples))
	for _, s := range kept {
		out = append(out, samples[s.start:s.end]...)
	}
	return Outcome{Samples: out, Segments: len(kept), Dropped: len(samples) - len(out)}, nil
}

func appendRun(runs []span, s span, minRun int) []span {
	if s.end-s.start < minRun {
		return runs
	}
	return append(runs, s)
}

func mergePadded(runs []span, pad, n int) []span {
	var out []span
	for _, r := range runs {
		r.start = max(r.start-pad, 0)
		r.end = min(r.end+pad, n)
		if len(out) > 0 && r.start <= out[len(out)-1].end {
			out[len(out)-1].end = max(out[len(out)-1].end, r.end)
			continue
		}
		out = append(out, r)
	}
	return out
}

func samplesFor(d time.Duration, rate int) int {
	return int(int64(d) * int64(rate) / int64(time.Second))
}

func rms(samples []float32) float32 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return float32(math.Sqrt(sum / float64(len(samples))))
}

// SupportsRate reports whether Trim accepts audio at rate.
func (t *Trimmer) SupportsRate(rate int) bool { return SupportsRate(rate) }
