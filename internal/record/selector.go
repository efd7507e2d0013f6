package record

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrNoInputDevice is returned when the host reports no capture devices.
var ErrNoInputDevice = errors.New("no audio input devices found")

// DeviceInfo describes a capture device. Index is the position among input devices.
type DeviceInfo struct {
	Index       int
	Name        string
	Channels    int
	DefaultRate float64
	IsDefault   bool

	ref interface{}
}

// Callback receives interleaved samples and the hardware capture timestamp.
// It runs on the audio thread.
type Callback func(samples []float32, captured time.Duration)

// Stream is an open capture stream.
type Stream interface {
	Start() error
	// Close halts capture and releases the device.
	Close() error
}

// Host is the platform audio backend.
type Host interface {
	InputDevices() ([]DeviceInfo, error)
	DefaultInput() (DeviceInfo, error)
	OpenInput(dev DeviceInfo, rate, channels int, cb Callback) (Stream, error)
}

// Source records why a device was chosen.
type Source int

const (
	SourcePreferred Source = iota
	SourceDefault
	SourceFallback
)

func (s Source) String() string {
	switch s {
	case SourcePreferred:
		return "preferred"
	case SourceDefault:
		return "default"
	default:
		return "fallback"
	}
}

// Selection is a resolved device.
type Selection struct {
	Device DeviceInfo
	Source Source
}

// StreamStartError is returned when no device could be started, including
// after the fallback retry.
type StreamStartError struct {
	Device  string
	Retried bool
	Err     error
}

func (e *StreamStartError) Error() string {
	if e.Retried {
		return fmt.Sprintf("start audio stream on fallback device %q: %v", e.Device, e.Err)
	}
	return fmt.Sprintf("start audio stream on %q: %v", e.Device, e.Err)
}

func (e *StreamStartError) Unwrap() error { return e.Err }

// Selector resolves which input device to open.
type Selector struct {
	host Host
	log  *zap.SugaredLogger

	mu        sync.Mutex
	preferred *int
}

// NewSelector returns a selector with an optional preferred device index.
func NewSelector(host Host, preferred *int, log *zap.SugaredLogger) *Selector {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	s := &Selector{host: host, log: log}
	s.SetPreferred(preferred)
	return s
}

// SetPreferred changes the preferred index. It applies from the next Open.
func (s *Selector) SetPreferred(idx *int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx == nil {
		s.preferred = nil
		return
	}
	v := *idx
	s.preferred = &v
}

// Preferred returns the preferred index, if any.
func (s *Selector) Preferred() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.preferred == nil {
		return 0, false
	}
	return *s.preferred, true
}

// Select resolves preferred, then system default, then first device.
func (s *Selector) Select() (Selection, error) {
	devices, err := s.host.InputDevices()
	if err != nil {
		return Selection{}, fmt.Errorf("enumerate input devices: %w", err)
	}

	if idx, ok := s.Preferred(); ok {
		for _, d := range devices {
			if d.Index == idx {
				return Selection{Device: d, Source: SourcePreferred}, nil
			}
		}
		s.log.Warnw("preferred audio device not available; using default", "index", idx)
	}

	def, err := s.host.DefaultInput()
	if err == nil {
		return Selection{Device: def, Source: SourceDefault}, nil
	}
	s.log.Debugw("no default input device", "error", err)

	if len(devices) == 0 {
		return Selection{}, ErrNoInputDevice
	}
	s.log.Warnw("no default input device; using first available", "device", devices[0].Name)
	return Selection{Device: devices[0], Source: SourceFallback}, nil
}

// fallbackExcluding returns the first device whose name differs from failed.
func (s *Selector) fallbackExcluding(failed string) (DeviceInfo, bool) {
	devices, err := s.host.InputDevices()
	if err != nil {
		return DeviceInfo{}, false
	}
	for _, d := range devices {
		if !strings.EqualFold(d.Name, failed) {
			return d, true
		}
	}
	return DeviceInfo{}, false
}

// Open resolves a device and starts a stream on it. A failed non-fallback
// selection is retried once on another device.
func (s *Selector) Open(rate, channels int, cb Callback) (Stream, Selection, error) {
	sel, err := s.Select()
	if err != nil {
		return nil, Selection{}, err
	}
	s.log.Infow("using audio input", "device", sel.Device.Name, "source", sel.Source)

	stream, err := s.start(sel.Device, rate, channels, cb)
	if err == nil {
		return stream, sel, nil
	}
	if sel.Source == SourceFallback {
		return nil, sel, &StreamStartError{Device: sel.Device.Name, Err: err}
	}

	fb, ok := s.fallbackExcluding(sel.Device.Name)
	if !ok {
		return nil, sel, &StreamStartError{Device: sel.Device.Name, Err: err}
	}
	s.log.Warnw("audio device failed to start; retrying with fallback",
		"device", sel.Device.Name, "fallback", fb.Name, "error", err)

	stream, ferr := s.start(fb, rate, channels, cb)
	if ferr != nil {
		return nil, sel, &StreamStartError{Device: fb.Name, Retried: true, Err: ferr}
	}
	return stream, Selection{Device: fb, Source: SourceFallback}, nil
}

func (s *Selector) start(dev DeviceInfo, rate, channels int, cb Callback) (Stream, error) {
	stream, err := s.host.OpenInput(dev, rate, channels, cb)
	if err != nil {
		return nil, err
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		return nil, err
	}
	return stream, nil
}
