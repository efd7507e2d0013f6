package asr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"whspr/internal/audio/ffmpeg"
	"whspr/internal/config"
)

// HTTPTranscriber uploads audio as multipart form data to an
// OpenAI-compatible endpoint and extracts text via TEXT_PATH.
type HTTPTranscriber struct {
	cfg            config.Config
	httpClient     *http.Client
	extraConfigMap map[string]interface{}
	log            *zap.SugaredLogger
	sleep          func(context.Context, time.Duration) error
}

// NewHTTP creates the multipart upload backend and parses ExtraConfig.
func NewHTTP(cfg config.Config, httpClient *http.Client, log *zap.SugaredLogger) (*HTTPTranscriber, error) {
	c := &HTTPTranscriber{cfg: cfg, httpClient: httpClient, log: log, sleep: sleepCtx}
	if cfg.ExtraConfig != "" {
		c.extraConfigMap = make(map[string]interface{})
		if err := json.Unmarshal([]byte(cfg.ExtraConfig), &c.extraConfigMap); err != nil {
			return nil, fmt.Errorf("invalid extra-config JSON: %w", err)
		}
	}
	return c, nil
}

func (c *HTTPTranscriber) Provider() string { return "http" }

// Initialize checks the endpoint and, when transcoding, that ffmpeg exists.
func (c *HTTPTranscriber) Initialize(ctx context.Context) error {
	if c.cfg.APIEndpoint == "" {
		return fmt.Errorf("API endpoint is empty")
	}
	if config.NeedsTranscode(&c.cfg) {
		if err := ffmpeg.Available(); err != nil {
			return err
		}
	}
	return nil
}

// Transcribe encodes samples, uploads them and returns the extracted text.
func (c *HTTPTranscriber) Transcribe(ctx context.Context, samples []float32) (Result, error) {
	var m Metrics
	encStart := time.Now()
	wavPath, err := writeTempWAV(c.cfg, samples)
	if err != nil {
		return Result{}, fmt.Errorf("encode wav: %w", err)
	}
	uploadPath := wavPath
	if config.NeedsTranscode(&c.cfg) {
		uploadPath = strings.TrimSuffix(wavPath, filepath.Ext(wavPath)) + "." + config.ContainerExt(c.cfg.CONTAINER)
		if err := ffmpeg.Convert(ctx, c.cfg, wavPath, uploadPath, c.log); err != nil {
			removeTemp(c.cfg, c.log, wavPath, uploadPath)
			return Result{}, err
		}
	}
	defer removeTemp(c.cfg, c.log, wavPath, uploadPath)
	m.Encode = time.Since(encStart)
	if fi, err := os.Stat(uploadPath); err == nil {
		m.UploadBytes = fi.Size()
	}

	reqStart := time.Now()
	text, attempts, err := c.upload(ctx, uploadPath)
	m.Request = time.Since(reqStart)
	m.Attempts = attempts
	if err != nil {
		return Result{Metrics: m}, err
	}
	return Result{Text: text, Metrics: m}, nil
}

// upload retries with exponential backoff starting at RETRY_BASE_DELAY.
func (c *HTTPTranscriber) upload(ctx context.Context, filePath string) (string, int, error) {
	if c.cfg.APIEndpoint == "" {
		return "", 0, fmt.Errorf("API endpoint is empty")
	}
	maxRetry := c.cfg.MaxRetry
	if maxRetry < 1 {
		maxRetry = 1
	}

	try := 0
	delay := c.cfg.RetryBaseDelay
	var lastResp []byte
	for {
		try++
		ok, res := c.doUpload(ctx, filePath)
		lastResp = res
		if ok {
			return extractText(res, c.cfg.TEXTPath), try, nil
		}

		c.log.Debugw("upload attempt failed", "attempt", try, "response", formatResponse(res))
		if try >= maxRetry {
			return "", try, &RetryExhaustedError{Attempts: try, MaxRetry: maxRetry, Last: lastResp}
		}
		if err := c.sleep(ctx, time.Duration(delay*float64(time.Second))); err != nil {
			return "", try, err
		}
		delay *= 2
	}
}

func (c *HTTPTranscriber) doUpload(ctx context.Context, filePath string) (bool, []byte) {
	c.log.Debugw("uploading", "file", filePath, "endpoint", c.cfg.APIEndpoint)
	f, err := os.Open(filePath)
	if err != nil {
		return false, []byte(fmt.Sprintf("open file error: %v", err))
	}
	defer f.Close()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filepath.Base(filePath))
	if err != nil {
		return false, []byte(fmt.Sprintf("create form file error: %v", err))
	}
	if _, err := io.Copy(part, f); err != nil {
		return false, []byte(fmt.Sprintf("copy file error: %v", err))
	}

	for k, v := range c.formFields() {
		_ = writer.WriteField(k, v)
	}
	_ = writer.Close()

	client := c.httpClient
	if client == nil {
		client = &http.Client{Timeout: time.Duration(c.cfg.RequestTimeout) * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.APIEndpoint, body)
	if err != nil {
		return false, []byte(fmt.Sprintf("new request error: %v", err))
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}
	req.Header.Set("User-Agent", "whspr/1.0")

	start := time.Now()
	resp, err := client.Do(req)
	c.log.Debugw("request finished", "duration", time.Since(start))
	if err != nil {
		return false, []byte(fmt.Sprintf("request error: %v", err))
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return false, respBody
	}
	return true, respBody
}

// formFields merges model, language and prompt with ExtraConfig, which wins.
func (c *HTTPTranscriber) formFields() map[string]string {
	base := make(map[string]interface{})
	if c.cfg.Model != "" {
		base["model"] = c.cfg.Model
	}
	if c.cfg.Language != "" {
		base["language"] = c.cfg.Language
	}
	if c.cfg.Prompt != "" {
		base["prompt"] = c.cfg.Prompt
	}
	for k, v := range c.extraConfigMap {
		base[k] = v
	}
	out := make(map[string]string, len(base))
	for k, v := range base {
		switch val := v.(type) {
		case string:
			out[k] = val
		case bool, float64, int:
			out[k] = fmt.Sprintf("%v", val)
		default:
			if b, err := json.Marshal(val); err == nil {
				out[k] = string(b)
			} else {
				out[k] = fmt.Sprintf("%v", val)
			}
		}
	}
	return out
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
