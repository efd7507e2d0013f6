package status

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gen2brain/beeep"
	"go.uber.org/zap"
)

const (
	startCueFreq = 880.0
	stopCueFreq  = 440.0
	cueLength    = 120 * time.Millisecond
)

// Cues beeps when recording starts and when it ends. It follows state
// events, so a recording that fails to start stays silent.
type Cues struct {
	enabled atomic.Bool

	mu        sync.Mutex
	recording bool

	beep func(freq float64, ms int) error
	log  *zap.SugaredLogger
}

func NewCues(enabled bool, log *zap.SugaredLogger) *Cues {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	c := &Cues{beep: beeep.Beep, log: log}
	c.enabled.Store(enabled)
	return c
}

// SetEnabled toggles the tones without rebuilding the sink chain.
func (c *Cues) SetEnabled(on bool) { c.enabled.Store(on) }

func (c *Cues) Publish(ev Event) error {
	if ev.Kind != KindState {
		return nil
	}
	c.mu.Lock()
	was := c.recording
	c.recording = ev.State == Active
	c.mu.Unlock()

	switch {
	case ev.State == Active && !was:
		c.play(startCueFreq)
	case ev.State != Active && was:
		c.play(stopCueFreq)
	}
	return nil
}

func (c *Cues) play(freq float64) {
	if !c.enabled.Load() {
		return
	}
	beep, log := c.beep, c.log
	go func() {
		if err := beep(freq, int(cueLength/time.Millisecond)); err != nil {
			log.Debugw("sound cue failed", "error", err)
		}
	}()
}
