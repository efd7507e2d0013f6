package asr

import (
	"context"
	"crypto/tls"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/net/http2"

	"whspr/internal/config"
	"whspr/internal/record"
)

// Metrics describes one transcription call.
type Metrics struct {
	Attempts    int
	UploadBytes int64
	Encode      time.Duration
	Request     time.Duration
}

// Result is the text produced from one utterance.
type Result struct {
	Text    string
	Metrics Metrics
}

// Transcriber turns mono float32 samples into text. Samples are at the
// configured target rate.
type Transcriber interface {
	Initialize(ctx context.Context) error
	Transcribe(ctx context.Context, samples []float32) (Result, error)
	Provider() string
}

// RetryExhaustedError is returned when every upload attempt failed.
type RetryExhaustedError struct {
	Attempts int
	MaxRetry int
	Last     []byte
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("exceeded max retries (%d): %s", e.MaxRetry, formatResponse(e.Last))
}

// New returns the Transcriber selected by cfg.Provider.
func New(cfg config.Config, httpClient *http.Client, log *zap.SugaredLogger) (Transcriber, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	switch cfg.Provider {
	case "", "http":
		return NewHTTP(cfg, httpClient, log)
	case "openai":
		return NewOpenAI(cfg, httpClient, log), nil
	case "exec":
		return NewExec(cfg, log)
	}
	return nil, fmt.Errorf("unknown transcription provider %q", cfg.Provider)
}

// NewHTTPClient builds the shared upload client.
func NewHTTPClient(cfg config.Config) (*http.Client, *http.Transport) {
	tr := &http.Transport{
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	if !cfg.VerifySSL {
		tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	if cfg.EnableHTTP2 {
		_ = http2.ConfigureTransport(tr)
	}
	return &http.Client{
		Transport: tr,
		Timeout:   time.Duration(cfg.RequestTimeout) * time.Second,
	}, tr
}

// writeTempWAV stores samples as a RecordTemp_ file under the cache dir.
func writeTempWAV(cfg config.Config, samples []float32) (string, error) {
	path := record.TempWavPath(config.TempDir(&cfg))
	if err := record.WriteWAV(path, samples, cfg.TargetRate); err != nil {
		return "", err
	}
	return path, nil
}

func removeTemp(cfg config.Config, log *zap.SugaredLogger, paths ...string) {
	if cfg.KeepCache {
		return
	}
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			log.Debugw("remove temp file failed", "path", p, "error", err)
		}
	}
}

func formatResponse(b []byte) string {
	if len(b) == 0 {
		return "<empty>"
	}
	const maxText = 1000
	const maxBin = 256

	if utf8.Valid(b) {
		s := string(b)
		if len(s) > maxText {
			return fmt.Sprintf("%s... (truncated, total %d bytes)", s[:maxText], len(b))
		}
		return s
	}

	if len(b) > maxBin {
		return fmt.Sprintf("<binary %d bytes, prefix hex: %s...>", len(b), hex.EncodeToString(b[:maxBin]))
	}
	return fmt.Sprintf("<binary %d bytes, hex: %s>", len(b), hex.EncodeToString(b))
}
