package hotkey

import (
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultPollInterval   = 10 * time.Millisecond
	DefaultRescanInterval = time.Second
)

// Loop multiplexes hot-plug notifications and key polling for one detector.
// Each Step drains hot-plug events first, then polls every device once.
type Loop struct {
	Detector *Detector
	Devices  *DeviceSet
	// HotPlug may be nil, in which case the loop rescans periodically.
	HotPlug <-chan DeviceEvent
	Sink    chan<- Event

	PollInterval   time.Duration
	RescanInterval time.Duration
	Now            func() time.Time
	Sleep          func(time.Duration)
	Log            *zap.SugaredLogger

	fallback   bool
	lastRescan time.Time
}

func (l *Loop) init() {
	if l.Now == nil {
		l.Now = time.Now
	}
	if l.Sleep == nil {
		l.Sleep = time.Sleep
	}
	if l.PollInterval <= 0 {
		l.PollInterval = DefaultPollInterval
	}
	if l.RescanInterval <= 0 {
		l.RescanInterval = DefaultRescanInterval
	}
	if l.Log == nil {
		l.Log = zap.NewNop().Sugar()
	}
	if l.HotPlug == nil && !l.fallback {
		l.enableFallback("no device monitor", false)
	}
}

// Run polls until stop is set.
func (l *Loop) Run(stop *atomic.Bool) {
	l.init()
	for !stop.Load() {
		if !l.Step(stop) {
			return
		}
		l.Sleep(l.PollInterval)
	}
}

// Step runs one iteration. It returns false if stop was observed mid-iteration.
func (l *Loop) Step(stop *atomic.Bool) bool {
	l.init()
	l.drainHotPlug()

	changed := false
	for _, d := range l.Devices.sorted() {
		if stop.Load() {
			return false
		}
		events, err := d.Read()
		for _, ev := range events {
			if stop.Load() {
				return false
			}
			l.handleKey(ev)
		}
		if err != nil {
			if IsWouldBlock(err) {
				continue
			}
			l.Log.Errorw("error reading input device", "path", d.Path(), "error", err)
			if IsDisconnect(err) {
				l.Log.Warnw("input device went away", "path", d.Path())
				if l.Devices.Remove(d.Path()) {
					changed = true
				}
			}
		}
	}
	if changed {
		l.Detector.Reset()
	}

	if l.fallback && l.Now().Sub(l.lastRescan) >= l.RescanInterval {
		l.lastRescan = l.Now()
		l.Detector.Reset()
		if err := l.Devices.Rescan(); err != nil {
			l.Log.Errorw("failed to refresh keyboard devices", "error", err)
		}
	}
	return !stop.Load()
}

func (l *Loop) drainHotPlug() {
	if l.HotPlug == nil {
		return
	}
	for {
		select {
		case ev, ok := <-l.HotPlug:
			if !ok {
				l.HotPlug = nil
				l.enableFallback("device monitor closed", true)
				return
			}
			if ev.Kind == MonitorUnavailable {
				l.enableFallback(ev.Reason, true)
				continue
			}
			l.Log.Debugw("input device event", "kind", ev.Kind, "path", ev.Path)
			l.Devices.Apply(ev)
			l.Detector.Reset()
		default:
			return
		}
	}
}

func (l *Loop) enableFallback(reason string, immediate bool) {
	if !l.fallback {
		l.Log.Warnw("input device monitor unavailable; falling back to periodic rescan", "reason", reason)
	}
	l.fallback = true
	if immediate {
		l.lastRescan = time.Time{}
	} else {
		l.lastRescan = l.Now()
	}
}

func (l *Loop) handleKey(ev KeyEvent) {
	now := l.Now()
	var (
		out Event
		ok  bool
	)
	switch ev.Value {
	case 1:
		wasActive := l.Detector.Active()
		out, ok = l.Detector.KeyDown(ev.Code, now)
		if !ok && !wasActive && l.Detector.target.SubsetOf(l.Detector.pressed) {
			l.Log.Debug("shortcut debounced (too soon)")
		}
	case 0:
		out, ok = l.Detector.KeyUp(ev.Code, now)
	default:
		return
	}
	if !ok {
		return
	}
	l.Log.Infow("shortcut triggered", "keys", l.Detector.target.String(), "kind", out.Kind, "phase", out.Phase)
	select {
	case l.Sink <- out:
	default:
		l.Log.Warnw("failed to send shortcut event; receiver busy", "kind", out.Kind, "phase", out.Phase)
	}
}
