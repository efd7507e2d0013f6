package benchmark

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"
)

// Recorder collects timestamps and sizes for one utterance. The zero
// value of each field means "not recorded".
type Recorder struct {
	Provider string

	keybindStart    time.Time
	keybindStop     time.Time
	recordingStart  time.Time
	recordingStop   time.Time
	processingStart time.Time
	injectStart     time.Time
	injectEnd       time.Time
	finished        bool

	preprocess time.Duration
	encode     time.Duration
	request    time.Duration
	attempts   int

	originalSamples, originalRate int
	trimmedSamples, trimmedRate   int
	sentSamples, sentRate         int
	droppedSamples                int
	uploadBytes                   int64
}

// Start begins a recorder at the moment the shortcut fired.
func Start(provider string, keybind, recording time.Time) *Recorder {
	return &Recorder{Provider: provider, keybindStart: keybind, recordingStart: recording}
}

func (r *Recorder) MarkKeybindStop(at time.Time)     { r.keybindStop = at }
func (r *Recorder) MarkRecordingStop(at time.Time)   { r.recordingStop = at }
func (r *Recorder) MarkProcessingStart(at time.Time) { r.processingStart = at }

func (r *Recorder) RecordOriginal(samples, rate int) {
	r.originalSamples, r.originalRate = samples, rate
}

func (r *Recorder) RecordPreprocess(d time.Duration) { r.preprocess = d }

func (r *Recorder) RecordTrimmed(samples, rate, dropped int) {
	r.trimmedSamples, r.trimmedRate, r.droppedSamples = samples, rate, dropped
}

func (r *Recorder) RecordSent(samples, rate int) { r.sentSamples, r.sentRate = samples, rate }

// RecordBackend stores the transcriber's own timing.
func (r *Recorder) RecordBackend(encode, request time.Duration, uploadBytes int64, attempts int) {
	r.encode, r.request, r.uploadBytes, r.attempts = encode, request, uploadBytes, attempts
}

func (r *Recorder) MarkInjectStart(at time.Time) { r.injectStart = at }

func (r *Recorder) MarkInjectEnd(at time.Time) {
	r.injectEnd = at
	r.finished = true
}

// MarkSkipped ends the run without injection.
func (r *Recorder) MarkSkipped(at time.Time) {
	r.injectStart, r.injectEnd = at, at
	r.finished = true
}

// Summary is the finalized view of a Recorder.
type Summary struct {
	Provider       string        `json:"provider"`
	KeybindToStart time.Duration `json:"keybind_to_start"`
	Recording      time.Duration `json:"recording"`
	StopToProcess  time.Duration `json:"stop_to_process"`
	Preprocess     time.Duration `json:"preprocess"`
	Encode         time.Duration `json:"encode"`
	Transcription  time.Duration `json:"transcription"`
	Injection      time.Duration `json:"injection"`
	Total          time.Duration `json:"total"`
	Attempts       int           `json:"attempts"`

	OriginalAudio time.Duration `json:"original_audio"`
	TrimmedAudio  time.Duration `json:"trimmed_audio"`
	SentAudio     time.Duration `json:"sent_audio"`
	SavedAudio    time.Duration `json:"saved_audio"`
	SavedPercent  float64       `json:"saved_percent"`
	UploadBytes   int64         `json:"upload_bytes"`
}

// Finalize returns the summary, or false if the run never finished.
func (r *Recorder) Finalize() (Summary, bool) {
	if r == nil || !r.finished {
		return Summary{}, false
	}
	s := Summary{
		Provider:       r.Provider,
		KeybindToStart: since(r.keybindStart, r.recordingStart),
		Recording:      since(r.recordingStart, r.recordingStop),
		StopToProcess:  since(r.keybindStop, r.processingStart),
		Preprocess:     r.preprocess,
		Encode:         r.encode,
		Transcription:  r.request,
		Injection:      since(r.injectStart, r.injectEnd),
		Total:          since(r.keybindStart, r.injectEnd),
		Attempts:       r.attempts,
		OriginalAudio:  audioDur(r.originalSamples, r.originalRate),
		TrimmedAudio:   audioDur(r.trimmedSamples, r.trimmedRate),
		SentAudio:      audioDur(r.sentSamples, r.sentRate),
		UploadBytes:    r.uploadBytes,
	}
	if r.trimmedRate > 0 && s.OriginalAudio >= s.TrimmedAudio {
		s.SavedAudio = s.OriginalAudio - s.TrimmedAudio
		if s.OriginalAudio > 0 {
			s.SavedPercent = float64(s.SavedAudio) / float64(s.OriginalAudio) * 100
		}
	}
	return s, true
}

func since(start, end time.Time) time.Duration {
	if start.IsZero() || end.IsZero() || end.Before(start) {
		return 0
	}
	return end.Sub(start)
}

func audioDur(samples, rate int) time.Duration {
	if rate <= 0 {
		return 0
	}
	return time.Duration(float64(samples) / float64(rate) * float64(time.Second))
}

// Render writes the summary as an aligned two-column table.
func (s Summary) Render(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	row := func(name, value string) { fmt.Fprintf(tw, "%s\t%s\t\n", name, value) }
	row("provider", s.Provider)
	row("keybind -> record", ms(s.KeybindToStart))
	row("recording", ms(s.Recording))
	row("stop -> processing", ms(s.StopToProcess))
	row("preprocess", ms(s.Preprocess))
	row("encode", ms(s.Encode))
	row("transcription", ms(s.Transcription))
	row("injection", ms(s.Injection))
	row("total", ms(s.Total))
	row("audio captured", ms(s.OriginalAudio))
	if s.TrimmedAudio > 0 {
		row("audio after vad", ms(s.TrimmedAudio))
		row("vad saved", fmt.Sprintf("%s (%.1f%%)", ms(s.SavedAudio), s.SavedPercent))
	}
	row("audio sent", ms(s.SentAudio))
	if s.UploadBytes > 0 {
		row("upload size", fmt.Sprintf("%.1f KB", float64(s.UploadBytes)/1024))
	}
	return tw.Flush()
}

func (s Summary) String() string {
	var b strings.Builder
	_ = s.Render(&b)
	return b.String()
}

func ms(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	return fmt.Sprintf("%.1f ms", float64(d)/float64(time.Millisecond))
}
