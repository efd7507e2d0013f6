package asr

import (
	"reflect"
	"testing"

	"go.uber.org/zap"

	"whspr/internal/config"
)

func nopLog() *zap.SugaredLogger { return zap.NewNop().Sugar() }

func TestExecCommandArgs(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Command = `whisper-cli -m "models/base en.bin" -f {audio} --json`
	e, err := NewExec(cfg, nopLog())
	if err != nil {
		t.Fatalf("NewExec: %v", err)
	}
	got := e.commandArgs("/tmp/a.wav")
	want := []string{"whisper-cli", "-m", "models/base en.bin", "-f", "/tmp/a.wav", "--json"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("args = %q, want %q", got, want)
	}

	cfg.Command = "transcribe"
	cfg.Language = "de"
	e, err = NewExec(cfg, nopLog())
	if err != nil {
		t.Fatalf("NewExec: %v", err)
	}
	got = e.commandArgs("/tmp/b.wav")
	want = []string{"transcribe", "--audio", "/tmp/b.wav", "--language", "de"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("args = %q, want %q", got, want)
	}
}

func TestExecEmptyCommand(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Command = "   "
	if _, err := NewExec(cfg, nopLog()); err == nil {
		t.Fatalf("expected error for empty command")
	}
}

func TestParseCommandOutput(t *testing.T) {
	if got := parseCommandOutput([]byte(`{"text":" hi there "}`+"\n"), "text"); got != " hi there " {
		t.Fatalf("json output: got %q", got)
	}
	if got := parseCommandOutput([]byte("plain words\n"), "text"); got != "plain words" {
		t.Fatalf("plain output: got %q", got)
	}
}
