package record

import (
	"errors"
	"time"
)

type fakeStream struct {
	cb       Callback
	startErr error
	started  bool
	closed   bool
}

func (s *fakeStream) Start() error {
	if s.startErr != nil {
		return s.startErr
	}
	s.started = true
	return nil
}

func (s *fakeStream) Close() error {
	s.closed = true
	return nil
}

func (s *fakeStream) emit(samples []float32, at time.Duration) { s.cb(samples, at) }

type fakeHost struct {
	devices    []DeviceInfo
	defaultIdx int // -1 for none
	failing    map[string]bool
	opened     []string
	streams    []*fakeStream
}

func newFakeHost(names ...string) *fakeHost {
	h := &fakeHost{defaultIdx: -1, failing: map[string]bool{}}
	for i, n := range names {
		h.devices = append(h.devices, DeviceInfo{Index: i, Name: n, Channels: 1, DefaultRate: 48000})
	}
	return h
}

func (h *fakeHost) InputDevices() ([]DeviceInfo, error) { return h.devices, nil }

func (h *fakeHost) DefaultInput() (DeviceInfo, error) {
	if h.defaultIdx < 0 || h.defaultIdx >= len(h.devices) {
		return DeviceInfo{}, errors.New("no default device")
	}
	return h.devices[h.defaultIdx], nil
}

func (h *fakeHost) OpenInput(dev DeviceInfo, rate, channels int, cb Callback) (Stream, error) {
	h.opened = append(h.opened, dev.Name)
	s := &fakeStream{cb: cb}
	if h.failing[dev.Name] {
		s.startErr = errors.New("device busy")
	}
	h.streams = append(h.streams, s)
	return s, nil
}

func (h *fakeHost) last() *fakeStream { return h.streams[len(h.streams)-1] }

func intPtr(v int) *int { return &v }
