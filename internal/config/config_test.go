package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func validConfig() Config {
	cfg := DefaultConfig()
	cfg.APIEndpoint = "https://api.example.com/v1/audio/transcriptions"
	return cfg
}

func TestDefaultConfigNeedsEndpoint(t *testing.T) {
	cfg := DefaultConfig()
	err := Validate(&cfg)
	if err == nil || !strings.Contains(err.Error(), "API_ENDPOINT") {
		t.Fatalf("expected API_ENDPOINT error, got %v", err)
	}
	cfg = validConfig()
	if err := Validate(&cfg); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
}

func TestLoadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{"PRESS_SHORTCUT":"CTRL+SHIFT+SPACE","DEBOUNCE_MS":250,"TARGET_SAMPLE_RATE":24000,"API_ENDPOINT":"http://localhost:9000/asr"}`
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.PressShortcut != "CTRL+SHIFT+SPACE" || cfg.DebounceMs != 250 || cfg.TargetRate != 24000 {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.Model != "whisper-1" {
		t.Fatalf("defaults not kept for absent keys: model=%q", cfg.Model)
	}
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := "provider: exec\ncommand: whisper-cli --model base\nhold_shortcut: SUPER+SPACE\naudio_device: 2\n"
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Provider != "exec" || cfg.HoldShortcut != "SUPER+SPACE" {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.AudioDevice == nil || *cfg.AudioDevice != 2 {
		t.Fatalf("expected audio device 2, got %v", cfg.AudioDevice)
	}
	if err := Validate(&cfg); err != nil {
		t.Fatalf("exec config rejected: %v", err)
	}
}

func TestLoadRejectsMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte("{"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestSaveDefaultRoundTrip(t *testing.T) {
	for _, name := range []string{"config.json", "config.yml"} {
		path := filepath.Join(t.TempDir(), name)
		if err := SaveDefault(path); err != nil {
			t.Fatalf("%s: save: %v", name, err)
		}
		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("%s: load: %v", name, err)
		}
		if cfg.PressShortcut != DefaultConfig().PressShortcut || cfg.VADFrameMs != 30 {
			t.Fatalf("%s: unexpected config %+v", name, cfg)
		}
	}
}

func TestValidateRejects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad shortcut", func(c *Config) { c.PressShortcut = "CTRL+NOPE" }, "PRESS_SHORTCUT"},
		{"bad hold shortcut", func(c *Config) { c.HoldShortcut = "+" }, "HOLD_SHORTCUT"},
		{"provider", func(c *Config) { c.Provider = "grpc" }, "Provider"},
		{"exec without command", func(c *Config) { c.Provider = "exec" }, "COMMAND"},
		{"codec", func(c *Config) { c.CODECS = "h264" }, "CODECS"},
		{"container", func(c *Config) { c.CONTAINER = "avi" }, "CONTAINER"},
		{"depth", func(c *Config) { c.SAMPLING_RATE_DEPTH = 12 }, "SAMPLING_RATE_DEPTH"},
		{"extra config", func(c *Config) { c.ExtraConfig = "{nope" }, "extra-config"},
		{"paste key", func(c *Config) { c.PasteKey = "ctrl+x" }, "PASTE_KEY"},
		{"target rate", func(c *Config) { c.TargetRate = 4000 }, "TargetRate"},
		{"max retry", func(c *Config) { c.MaxRetry = 0 }, "MaxRetry"},
		{"metrics addr", func(c *Config) { c.MetricsAddr = "not an addr" }, "MetricsAddr"},
	}
	for _, tc := range cases {
		cfg := validConfig()
		tc.mutate(&cfg)
		err := Validate(&cfg)
		if err == nil || !strings.Contains(err.Error(), tc.want) {
			t.Fatalf("%s: expected error mentioning %q, got %v", tc.name, tc.want, err)
		}
	}
}

func TestParsePasteKey(t *testing.T) {
	pc, err := ParsePasteKey("Ctrl+Shift+V")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !pc.Ctrl || !pc.Shift || pc.Alt || pc.Key != "v" {
		t.Fatalf("unexpected chord %+v", pc)
	}
	pc, err = ParsePasteKey("shift+insert")
	if err != nil || pc.Ctrl || !pc.Shift || pc.Key != "insert" {
		t.Fatalf("unexpected chord %+v err=%v", pc, err)
	}
	if _, err := ParsePasteKey("ctrl"); err == nil {
		t.Fatalf("expected missing key error")
	}
}

func TestNeedsTranscode(t *testing.T) {
	cfg := DefaultConfig()
	if NeedsTranscode(&cfg) {
		t.Fatalf("16-bit PCM WAV should not need ffmpeg")
	}
	cfg.CODECS, cfg.CONTAINER = "opus", "ogg"
	if !NeedsTranscode(&cfg) {
		t.Fatalf("opus should need ffmpeg")
	}
}

func TestDefaultsEnableStatusAndHistory(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/tmp/xdg-data")
	cfg := DefaultConfig()
	if cfg.HistoryPath != filepath.Join("/tmp/xdg-data", "whspr", "history.db") {
		t.Fatalf("unexpected history path %q", cfg.HistoryPath)
	}
	if cfg.StatusFile == "" || filepath.Base(cfg.StatusFile) != "status.json" {
		t.Fatalf("unexpected status file %q", cfg.StatusFile)
	}

	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"STATUS_FILE":"","HISTORY_PATH":""}`), 0644); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.StatusFile != "" || loaded.HistoryPath != "" {
		t.Fatalf("explicit empty paths must disable the features: %+v", loaded)
	}
}
