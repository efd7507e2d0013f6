package record

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// State represents recorder state.
type State int

const (
	StateIdle State = iota
	StateRecording
)

func (s State) String() string {
	if s == StateRecording {
		return "recording"
	}
	return "idle"
}

// Recorder owns at most one Session at a time.
type Recorder struct {
	mu       sync.Mutex
	state    State
	selector *Selector
	nominal  int
	session  *Session
	log      *zap.SugaredLogger
}

// New creates a recorder capturing at the nominal rate through selector.
func New(selector *Selector, nominal int, log *zap.SugaredLogger) *Recorder {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Recorder{selector: selector, nominal: nominal, log: log, state: StateIdle}
}

// Start opens a new session.
func (r *Recorder) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StateIdle {
		return fmt.Errorf("recorder not idle")
	}
	s, err := StartSession(r.selector, r.nominal)
	if err != nil {
		return err
	}
	r.session = s
	r.state = StateRecording
	r.log.Debugw("recording started", "device", s.Selection().Device.Name, "source", s.Selection().Source, "rate", r.nominal)
	return nil
}

// Stop ends the session and returns its audio.
func (r *Recorder) Stop() (Captured, error) {
	r.mu.Lock()
	if r.state != StateRecording || r.session == nil {
		r.mu.Unlock()
		return Captured{}, fmt.Errorf("recorder not running")
	}
	s := r.session
	r.session = nil
	r.state = StateIdle
	r.mu.Unlock()

	c, err := s.Stop()
	if err != nil {
		r.log.Warnw("closing audio stream failed", "error", err)
	}
	r.log.Debugw("recording stopped", "samples", len(c.Samples), "rate", c.SampleRate, "elapsed", time.Since(s.StartedAt()))
	return c, nil
}

// Level returns the live input level, or 0 when idle.
func (r *Recorder) Level() float32 {
	r.mu.Lock()
	s := r.session
	r.mu.Unlock()
	if s == nil {
		return 0
	}
	return s.Level()
}

// State returns the current recorder state.
func (r *Recorder) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// SetPreferredDevice changes the device used by the next Start.
func (r *Recorder) SetPreferredDevice(idx *int) {
	r.selector.SetPreferred(idx)
}

// SetNominalRate changes the rate requested by the next Start.
func (r *Recorder) SetNominalRate(rate int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rate > 0 {
		r.nominal = rate
	}
}

// TempWavPath returns a unique RecordTemp_ path in dir, or the working directory.
func TempWavPath(dir string) string {
	id := strings.ReplaceAll(uuid.New().String(), "-", "")[:16]
	base := fmt.Sprintf("RecordTemp_%s.wav", id)
	if dir == "" {
		cwd, _ := os.Getwd()
		dir = cwd
	}
	return filepath.Join(dir, base)
}

// CleanupTemp removes leftover RecordTemp_ files from dir.
func CleanupTemp(dir string, log *zap.SugaredLogger) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		log.Debugw("read temp dir failed", "dir", dir, "error", err)
		return
	}
	for _, e := range entries {
		if !strings.HasPrefix(e.Name(), "RecordTemp_") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if err := os.Remove(path); err != nil {
			log.Warnw("failed to remove temp file", "path", path, "error", err)
		} else {
			log.Debugw("removed temp file", "path", path)
		}
	}
}
