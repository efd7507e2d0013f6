package hotkey

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Options configures a Listener. Zero durations select the package defaults;
// a negative Debounce selects DefaultDebounce.
type Options struct {
	Debounce       time.Duration
	PollInterval   time.Duration
	RescanInterval time.Duration
	Enumerator     Enumerator
	// Watcher may be nil; the loop then rescans periodically.
	Watcher Watcher
	Log     *zap.SugaredLogger
	Now     func() time.Time
}

// Listener owns the background polling loop for one binding.
// Stop is idempotent and always waits for the loop to exit.
type Listener struct {
	mu   sync.Mutex
	keys KeySet
	kind Kind
	opts Options
	run  *listenerRun
}

type listenerRun struct {
	stop      atomic.Bool
	watchStop chan struct{}
	done      chan struct{}
}

// exited reports whether the loop goroutine has returned, e.g. after a panic.
func (r *listenerRun) exited() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

// Spawn enumerates keyboards and starts polling for keys. Events are
// delivered to sink with a non-blocking send.
func Spawn(keys KeySet, kind Kind, sink chan<- Event, opts Options) (*Listener, error) {
	if opts.Enumerator == nil {
		opts.Enumerator = SystemEnumerator()
	}
	if opts.Log == nil {
		opts.Log = zap.NewNop().Sugar()
	}
	l := &Listener{opts: opts}
	if err := l.start(keys, kind, sink); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *Listener) start(keys KeySet, kind Kind, sink chan<- Event) error {
	if len(keys) == 0 {
		return fmt.Errorf("%w: empty key set", ErrInvalidShortcut)
	}
	log := l.opts.Log.With("shortcut", keys.String(), "kind", kind)

	devices := NewDeviceSet(l.opts.Enumerator, log)
	if err := devices.Rescan(); err != nil {
		return fmt.Errorf("enumerate keyboards: %w", err)
	}
	if devices.Len() == 0 {
		return ErrNoKeyboards
	}
	for _, p := range devices.Paths() {
		log.Infow("found keyboard device", "path", p, "name", devices.devices[p].Name())
	}

	run := &listenerRun{watchStop: make(chan struct{}), done: make(chan struct{})}
	var hotplug <-chan DeviceEvent
	if l.opts.Watcher != nil {
		ch, err := l.opts.Watcher.Watch(run.watchStop)
		if err != nil {
			log.Warnw("input device monitor unavailable", "error", err)
		} else {
			hotplug = ch
		}
	}

	loop := &Loop{
		Detector:       NewDetector(keys, kind, l.opts.Debounce),
		Devices:        devices,
		HotPlug:        hotplug,
		Sink:           sink,
		PollInterval:   l.opts.PollInterval,
		RescanInterval: l.opts.RescanInterval,
		Now:            l.opts.Now,
		Log:            log,
	}

	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		defer close(run.done)
		defer devices.Close()
		defer func() {
			if r := recover(); r != nil {
				log.Errorw("shortcut listener panicked", "panic", r)
			}
		}()
		log.Infow("listening for shortcut", "keys", describeKeys(keys))
		loop.Run(&run.stop)
		log.Info("stopped shortcut listener")
	}()

	l.keys = keys
	l.kind = kind
	l.run = run
	return nil
}

// Restart stops the current loop and starts a new one with the given binding.
func (l *Listener) Restart(keys KeySet, kind Kind, sink chan<- Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stopLocked()
	return l.start(keys, kind, sink)
}

// Stop signals the loop and waits for it to exit. Safe to call repeatedly.
func (l *Listener) Stop() {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stopLocked()
}

func (l *Listener) stopLocked() {
	r := l.run
	if r == nil {
		return
	}
	l.run = nil
	r.stop.Store(true)
	close(r.watchStop)
	<-r.done
}

// Matches reports whether the listener already serves this binding.
func (l *Listener) Matches(keys KeySet, kind Kind) bool {
	if l == nil {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.run != nil && !l.run.exited() && l.kind == kind && l.keys.Equal(keys)
}

// Running reports whether the loop is active. A loop that died from a
// panic is not running; Restart brings it back.
func (l *Listener) Running() bool {
	if l == nil {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.run != nil && !l.run.exited()
}

func describeKeys(keys KeySet) []string {
	out := make([]string, 0, len(keys))
	for _, c := range keys.Codes() {
		out = append(out, DescribeKey(c))
	}
	return out
}

// KeyboardInfo describes a detected keyboard for listings.
type KeyboardInfo struct {
	Path string
	Name string
}

// ListKeyboards enumerates keyboards without polling them.
func ListKeyboards(enum Enumerator) ([]KeyboardInfo, error) {
	if enum == nil {
		enum = SystemEnumerator()
	}
	set := NewDeviceSet(enum, nil)
	if err := set.Rescan(); err != nil {
		return nil, err
	}
	defer set.Close()
	out := make([]KeyboardInfo, 0, set.Len())
	for _, p := range set.Paths() {
		out = append(out, KeyboardInfo{Path: p, Name: set.devices[p].Name()})
	}
	return out, nil
}
