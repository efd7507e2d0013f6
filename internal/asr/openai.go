package asr

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"go.uber.org/zap"

	"whspr/internal/config"
	"whspr/internal/record"
)

// OpenAITranscriber calls the audio transcription API through the official
// SDK. API_ENDPOINT, when set, is used as the SDK base URL.
type OpenAITranscriber struct {
	cfg    config.Config
	client openai.Client
	log    *zap.SugaredLogger
}

// NewOpenAI builds the SDK client. The SDK handles its own retries.
func NewOpenAI(cfg config.Config, httpClient *http.Client, log *zap.SugaredLogger) *OpenAITranscriber {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.Token),
		option.WithMaxRetries(max(cfg.MaxRetry-1, 0)),
		option.WithRequestTimeout(time.Duration(cfg.RequestTimeout) * time.Second),
	}
	if cfg.APIEndpoint != "" {
		opts = append(opts, option.WithBaseURL(cfg.APIEndpoint))
	}
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}
	return &OpenAITranscriber{cfg: cfg, client: openai.NewClient(opts...), log: log}
}

func (o *OpenAITranscriber) Provider() string { return "openai" }

func (o *OpenAITranscriber) Initialize(ctx context.Context) error {
	if o.cfg.Token == "" && o.cfg.APIEndpoint == "" {
		return fmt.Errorf("openai provider needs TOKEN or a compatible API_ENDPOINT")
	}
	return nil
}

func (o *OpenAITranscriber) Transcribe(ctx context.Context, samples []float32) (Result, error) {
	var m Metrics
	encStart := time.Now()
	var buf writeSeekBuffer
	if err := record.EncodeWAV(&buf, samples, o.cfg.TargetRate); err != nil {
		return Result{}, fmt.Errorf("encode wav: %w", err)
	}
	m.Encode = time.Since(encStart)
	m.UploadBytes = int64(len(buf.b))

	model := o.cfg.Model
	if model == "" {
		model = string(openai.AudioModelWhisper1)
	}
	params := openai.AudioTranscriptionNewParams{
		File:  openai.File(bytes.NewReader(buf.b), "audio.wav", "audio/wav"),
		Model: openai.AudioModel(model),
	}
	if o.cfg.Language != "" {
		params.Language = openai.String(o.cfg.Language)
	}
	if o.cfg.Prompt != "" {
		params.Prompt = openai.String(o.cfg.Prompt)
	}

	reqStart := time.Now()
	resp, err := o.client.Audio.Transcriptions.New(ctx, params)
	m.Request = time.Since(reqStart)
	m.Attempts = 1
	if err != nil {
		return Result{Metrics: m}, fmt.Errorf("openai transcription: %w", err)
	}
	o.log.Debugw("openai transcription done", "model", model, "duration", m.Request)
	return Result{Text: resp.Text, Metrics: m}, nil
}

// writeSeekBuffer is an in-memory io.WriteSeeker for the WAV encoder,
// which rewrites the header sizes on Close.
type writeSeekBuffer struct {
	b   []byte
	pos int
}

func (w *writeSeekBuffer) Write(p []byte) (int, error) {
	end := w.pos + len(p)
	if end > len(w.b) {
		w.b = append(w.b, make([]byte, end-len(w.b))...)
	}
	copy(w.b[w.pos:], p)
	w.pos = end
	return len(p), nil
}

func (w *writeSeekBuffer) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = int64(w.pos) + offset
	case io.SeekEnd:
		abs = int64(len(w.b)) + offset
	default:
		return 0, fmt.Errorf("invalid whence %d", whence)
	}
	if abs < 0 {
		return 0, fmt.Errorf("negative position")
	}
	w.pos = int(abs)
	return abs, nil
}
