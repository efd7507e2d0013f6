package asr

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"whspr/internal/config"
)

func testConfig(t *testing.T, endpoint string) config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.APIEndpoint = endpoint
	cfg.TEXTPath = "text"
	cfg.RetryBaseDelay = 0
	cfg.RequestTimeout = 2
	cfg.CacheDir = t.TempDir()
	return cfg
}

func TestTranscribeRetryExhaustedError(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("fail"))
	}))
	defer server.Close()

	cfg := testConfig(t, server.URL)
	cfg.MaxRetry = 2

	client, err := NewHTTP(cfg, &http.Client{Timeout: time.Second}, nopLog())
	if err != nil {
		t.Fatalf("NewHTTP failed: %v", err)
	}

	_, err = client.Transcribe(context.Background(), make([]float32, 1600))
	if err == nil {
		t.Fatalf("expected error")
	}

	var re *RetryExhaustedError
	if !errors.As(err, &re) {
		t.Fatalf("expected RetryExhaustedError, got %T: %v", err, err)
	}
	if re.Attempts != cfg.MaxRetry {
		t.Fatalf("expected attempts %d, got %d", cfg.MaxRetry, re.Attempts)
	}
	if re.MaxRetry != cfg.MaxRetry {
		t.Fatalf("expected MaxRetry %d, got %d", cfg.MaxRetry, re.MaxRetry)
	}
	if calls != cfg.MaxRetry {
		t.Fatalf("server saw %d calls, want %d", calls, cfg.MaxRetry)
	}
	if !strings.Contains(re.Error(), "fail") {
		t.Fatalf("error should carry the last response, got %q", re.Error())
	}
}

func TestTranscribeUploadsForm(t *testing.T) {
	var gotAuth, gotModel, gotLang, gotExtra, gotFile string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse form: %v", err)
		}
		gotModel = r.FormValue("model")
		gotLang = r.FormValue("language")
		gotExtra = r.FormValue("temperature")
		if _, fh, err := r.FormFile("file"); err == nil {
			gotFile = fh.Filename
		}
		_, _ = w.Write([]byte(`{"result":{"segments":[{"text":"hello world"}]}}`))
	}))
	defer server.Close()

	cfg := testConfig(t, server.URL)
	cfg.Token = "secret"
	cfg.Model = "whisper-large"
	cfg.Language = "en"
	cfg.TEXTPath = "result.segments[0].text"
	cfg.ExtraConfig = `{"temperature":0}`

	client, err := NewHTTP(cfg, nil, nopLog())
	if err != nil {
		t.Fatalf("NewHTTP failed: %v", err)
	}
	res, err := client.Transcribe(context.Background(), make([]float32, 1600))
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if res.Text != "hello world" {
		t.Fatalf("text = %q", res.Text)
	}
	if gotAuth != "Bearer secret" || gotModel != "whisper-large" || gotLang != "en" || gotExtra != "0" {
		t.Fatalf("unexpected request: auth=%q model=%q lang=%q extra=%q", gotAuth, gotModel, gotLang, gotExtra)
	}
	if !strings.HasPrefix(gotFile, "RecordTemp_") || !strings.HasSuffix(gotFile, ".wav") {
		t.Fatalf("unexpected upload name %q", gotFile)
	}
	if res.Metrics.Attempts != 1 || res.Metrics.UploadBytes <= 44 {
		t.Fatalf("unexpected metrics %+v", res.Metrics)
	}
	entries, _ := os.ReadDir(cfg.CacheDir)
	if len(entries) != 0 {
		t.Fatalf("temp files left behind: %d", len(entries))
	}
}

func TestTranscribeKeepCache(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"text":"kept"}`))
	}))
	defer server.Close()

	cfg := testConfig(t, server.URL)
	cfg.KeepCache = true
	client, err := NewHTTP(cfg, nil, nopLog())
	if err != nil {
		t.Fatalf("NewHTTP failed: %v", err)
	}
	if _, err := client.Transcribe(context.Background(), make([]float32, 160)); err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	entries, _ := os.ReadDir(cfg.CacheDir)
	if len(entries) != 1 {
		t.Fatalf("expected kept wav, found %d files", len(entries))
	}
}

func TestTranscribeContextCancelStopsRetry(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	cfg := testConfig(t, server.URL)
	cfg.MaxRetry = 5
	cfg.RetryBaseDelay = 10
	client, err := NewHTTP(cfg, nil, nopLog())
	if err != nil {
		t.Fatalf("NewHTTP failed: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = client.Transcribe(ctx, make([]float32, 160))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestNewSelectsProvider(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1/v1/audio/transcriptions")
	for _, tc := range []struct {
		provider string
		command  string
		want     string
	}{
		{"http", "", "http"},
		{"openai", "", "openai"},
		{"exec", "whisper-cli --json", "exec"},
	} {
		cfg.Provider = tc.provider
		cfg.Command = tc.command
		tr, err := New(cfg, nil, nil)
		if err != nil {
			t.Fatalf("New(%s): %v", tc.provider, err)
		}
		if tr.Provider() != tc.want {
			t.Fatalf("Provider() = %q, want %q", tr.Provider(), tc.want)
		}
	}
	cfg.Provider = "carrier-pigeon"
	if _, err := New(cfg, nil, nil); err == nil {
		t.Fatalf("expected error for unknown provider")
	}
}

func TestInvalidExtraConfig(t *testing.T) {
	cfg := testConfig(t, "http://localhost")
	cfg.ExtraConfig = "{not json"
	if _, err := NewHTTP(cfg, nil, nopLog()); err == nil {
		t.Fatalf("expected error")
	}
}
