package logging

import (
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu    sync.Mutex
	root  = zap.NewNop()
	level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
)

// Init builds the process logger. LOG_LEVEL overrides the configured level.
// Subsystem loggers obtained through For may still log at debug level when
// their debug switch is on.
func Init(configured string, jsonOutput bool) (*zap.Logger, error) {
	lvl := strings.TrimSpace(os.Getenv("LOG_LEVEL"))
	if lvl == "" {
		lvl = configured
	}
	parsed, err := zapcore.ParseLevel(strings.ToLower(lvl))
	if err != nil {
		parsed = zapcore.InfoLevel
	}

	cfg := zap.NewDevelopmentConfig()
	if jsonOutput {
		cfg = zap.NewProductionConfig()
	}
	// The core accepts everything; filtering happens per subsystem in For.
	cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.DisableStacktrace = true

	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	_ = zap.RedirectStdLog(logger)

	mu.Lock()
	root = logger
	level.SetLevel(parsed)
	mu.Unlock()
	return logger, nil
}

// For returns a named logger for a subsystem. With debug set it logs at
// debug level regardless of the process level.
func For(name string, debug bool) *zap.SugaredLogger {
	mu.Lock()
	base := root
	mu.Unlock()
	l := base.Named(name)
	if !debug {
		l = l.WithOptions(zap.IncreaseLevel(level))
	}
	return l.Sugar()
}

// Sync flushes buffered entries.
func Sync() {
	mu.Lock()
	l := root
	mu.Unlock()
	_ = l.Sync()
}

// SetLevel changes the process level used by non-debug subsystem loggers.
func SetLevel(configured string) {
	if env := strings.TrimSpace(os.Getenv("LOG_LEVEL")); env != "" {
		configured = env
	}
	if parsed, err := zapcore.ParseLevel(strings.ToLower(configured)); err == nil {
		level.SetLevel(parsed)
	}
}
