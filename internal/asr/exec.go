package asr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-shellwords"
	"go.uber.org/zap"

	"whspr/internal/config"
)

// ExecTranscriber runs a local command per utterance. "{audio}" in the
// command is replaced by the WAV path, otherwise "--audio <path>" is
// appended. Stdout is read as JSON via TEXT_PATH, or as plain text.
type ExecTranscriber struct {
	cfg  config.Config
	args []string
	log  *zap.SugaredLogger
	mu   sync.Mutex
}

// NewExec parses COMMAND with shell quoting rules.
func NewExec(cfg config.Config, log *zap.SugaredLogger) (*ExecTranscriber, error) {
	parser := shellwords.NewParser()
	parser.ParseEnv = true
	args, err := parser.Parse(cfg.Command)
	if err != nil {
		return nil, fmt.Errorf("parse transcription command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("transcription command is empty")
	}
	return &ExecTranscriber{cfg: cfg, args: args, log: log}, nil
}

func (e *ExecTranscriber) Provider() string { return "exec" }

func (e *ExecTranscriber) Initialize(ctx context.Context) error {
	if _, err := exec.LookPath(e.args[0]); err != nil {
		return fmt.Errorf("transcription command %q not found: %w", e.args[0], err)
	}
	return nil
}

func (e *ExecTranscriber) Transcribe(ctx context.Context, samples []float32) (Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var m Metrics
	encStart := time.Now()
	wavPath, err := writeTempWAV(e.cfg, samples)
	if err != nil {
		return Result{}, fmt.Errorf("encode wav: %w", err)
	}
	defer removeTemp(e.cfg, e.log, wavPath)
	m.Encode = time.Since(encStart)

	cmdArgs := e.commandArgs(wavPath)
	e.log.Debugw("running transcription command", "args", cmdArgs)

	command := exec.CommandContext(ctx, cmdArgs[0], cmdArgs[1:]...)
	var stdout, stderr bytes.Buffer
	command.Stdout = &stdout
	command.Stderr = &stderr

	start := time.Now()
	err = command.Run()
	m.Request = time.Since(start)
	m.Attempts = 1
	if err != nil {
		return Result{Metrics: m}, fmt.Errorf("transcription command failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return Result{Text: parseCommandOutput(stdout.Bytes(), e.cfg.TEXTPath), Metrics: m}, nil
}

func (e *ExecTranscriber) commandArgs(wavPath string) []string {
	out := make([]string, 0, len(e.args)+6)
	substituted := false
	for _, a := range e.args {
		if strings.Contains(a, "{audio}") {
			a = strings.ReplaceAll(a, "{audio}", wavPath)
			substituted = true
		}
		out = append(out, a)
	}
	if !substituted {
		out = append(out, "--audio", wavPath)
	}
	if e.cfg.Language != "" {
		out = append(out, "--language", e.cfg.Language)
	}
	return out
}

func parseCommandOutput(stdout []byte, textPath string) string {
	trimmed := bytes.TrimSpace(stdout)
	if json.Valid(trimmed) {
		return extractText(trimmed, textPath)
	}
	return string(trimmed)
}
