package hotkey

import (
	"errors"
	"sort"
	"strings"

	"go.uber.org/zap"
)

var (
	// ErrNoKeyboards is returned when enumeration finds no keyboard devices.
	ErrNoKeyboards = errors.New("no keyboard devices found")
	// ErrNotKeyboard is returned by Enumerator.Open for devices that fail the keyboard check.
	ErrNotKeyboard = errors.New("not a keyboard device")
	// ErrUnsupported is returned on platforms without raw input device access.
	ErrUnsupported = errors.New("raw keyboard input not supported on this platform")
)

// KeyEvent is a key transition read from a device. Value is 1 for press,
// 0 for release and 2 for autorepeat.
type KeyEvent struct {
	Code  KeyCode
	Value int32
}

// Device is an open keyboard device.
type Device interface {
	Path() string
	Name() string
	// Read drains pending key events without blocking. A nil error with no
	// events means nothing was pending.
	Read() ([]KeyEvent, error)
	Close() error
}

// Enumerator finds and opens keyboard devices.
type Enumerator interface {
	// Scan lists candidate device node paths.
	Scan() ([]string, error)
	// Open opens path in non-blocking mode. It returns ErrNotKeyboard for
	// devices lacking the A, S and D keys.
	Open(path string) (Device, error)
}

// DeviceSet is the set of keyboards being polled, keyed by path.
type DeviceSet struct {
	enum    Enumerator
	devices map[string]Device
	log     *zap.SugaredLogger
}

// NewDeviceSet returns an empty set backed by enum.
func NewDeviceSet(enum Enumerator, log *zap.SugaredLogger) *DeviceSet {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &DeviceSet{enum: enum, devices: make(map[string]Device), log: log}
}

// Len returns the number of monitored devices.
func (s *DeviceSet) Len() int { return len(s.devices) }

// Paths returns monitored paths in sorted order.
func (s *DeviceSet) Paths() []string {
	out := make([]string, 0, len(s.devices))
	for p := range s.devices {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Rescan replaces the set with a fresh enumeration.
func (s *DeviceSet) Rescan() error {
	paths, err := s.enum.Scan()
	if err != nil {
		return err
	}
	next := make(map[string]Device, len(paths))
	for _, p := range paths {
		d, err := s.enum.Open(p)
		if err != nil {
			if !errors.Is(err, ErrNotKeyboard) {
				s.log.Debugw("skipping input device", "path", p, "error", err)
			}
			continue
		}
		next[p] = d
	}
	previous := len(s.devices)
	s.closeAll()
	s.devices = next

	switch {
	case len(next) == 0 && previous != 0:
		s.log.Warn("no keyboard devices found")
	case len(next) != previous:
		s.log.Infow("keyboard devices refreshed", "count", len(next))
	default:
		s.log.Debugw("keyboard devices refreshed", "count", len(next))
	}
	return nil
}

// Add opens path and adds it if it is a keyboard. It reports whether the set changed.
func (s *DeviceSet) Add(path string) bool {
	if _, ok := s.devices[path]; ok {
		return false
	}
	d, err := s.enum.Open(path)
	if err != nil {
		if errors.Is(err, ErrNotKeyboard) {
			s.log.Debugw("input device added but not a keyboard", "path", path)
		} else {
			s.log.Warnw("failed to open input device", "path", path, "error", err)
		}
		return false
	}
	s.devices[path] = d
	s.log.Infow("keyboard device added", "path", path, "name", d.Name(), "count", len(s.devices))
	return true
}

// Remove closes and drops path. It reports whether the set changed.
func (s *DeviceSet) Remove(path string) bool {
	d, ok := s.devices[path]
	if !ok {
		return false
	}
	_ = d.Close()
	delete(s.devices, path)
	s.log.Infow("keyboard device removed", "path", path, "count", len(s.devices))
	if len(s.devices) == 0 {
		s.log.Warn("no keyboard devices found")
	}
	return true
}

// Apply handles a hot-plug notification.
func (s *DeviceSet) Apply(ev DeviceEvent) {
	switch ev.Kind {
	case DeviceAdded:
		s.Add(ev.Path)
	case DeviceRemoved:
		s.Remove(ev.Path)
	case DeviceChanged:
		s.Remove(ev.Path)
		s.Add(ev.Path)
	}
}

// Close releases every device.
func (s *DeviceSet) Close() {
	s.closeAll()
	s.devices = make(map[string]Device)
}

func (s *DeviceSet) closeAll() {
	for _, d := range s.devices {
		_ = d.Close()
	}
}

// sorted returns devices in path order so polling is deterministic.
func (s *DeviceSet) sorted() []Device {
	out := make([]Device, 0, len(s.devices))
	for _, p := range s.Paths() {
		out = append(out, s.devices[p])
	}
	return out
}

// DeviceEventKind classifies a hot-plug notification.
type DeviceEventKind int

const (
	DeviceAdded DeviceEventKind = iota
	DeviceRemoved
	DeviceChanged
	// MonitorUnavailable tells the loop to fall back to periodic rescans.
	MonitorUnavailable
)

func (k DeviceEventKind) String() string {
	switch k {
	case DeviceAdded:
		return "added"
	case DeviceRemoved:
		return "removed"
	case DeviceChanged:
		return "changed"
	default:
		return "monitor-unavailable"
	}
}

// DeviceEvent is a hot-plug notification. Reason is set for MonitorUnavailable.
type DeviceEvent struct {
	Kind   DeviceEventKind
	Path   string
	Reason string
}

// Watcher delivers hot-plug notifications until stop is closed.
type Watcher interface {
	Watch(stop <-chan struct{}) (<-chan DeviceEvent, error)
}

// IsEventNode reports whether path is an evdev event node.
func IsEventNode(path string) bool {
	return strings.HasPrefix(path, "/dev/input/event")
}
