package record

import (
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
)

// PortAudioHost is the Host backed by PortAudio.
type PortAudioHost struct {
	framesPerBuffer int
	closeOnce       sync.Once
}

// NewPortAudioHost initializes PortAudio. Call Close when done.
func NewPortAudioHost(framesPerBuffer int) (*PortAudioHost, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio init failed: %w", err)
	}
	return &PortAudioHost{framesPerBuffer: framesPerBuffer}, nil
}

// Close terminates PortAudio.
func (h *PortAudioHost) Close() error {
	var err error
	h.closeOnce.Do(func() { err = portaudio.Terminate() })
	return err
}

func (h *PortAudioHost) InputDevices() ([]DeviceInfo, error) {
	all, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}
	def, _ := portaudio.DefaultInputDevice()
	out := make([]DeviceInfo, 0, len(all))
	for _, d := range all {
		if d.MaxInputChannels <= 0 {
			continue
		}
		out = append(out, DeviceInfo{
			Index:       len(out),
			Name:        d.Name,
			Channels:    d.MaxInputChannels,
			DefaultRate: d.DefaultSampleRate,
			IsDefault:   sameDevice(d, def),
			ref:         d,
		})
	}
	return out, nil
}

func (h *PortAudioHost) DefaultInput() (DeviceInfo, error) {
	def, err := portaudio.DefaultInputDevice()
	if err != nil {
		return DeviceInfo{}, err
	}
	devices, err := h.InputDevices()
	if err != nil {
		return DeviceInfo{}, err
	}
	for _, d := range devices {
		if d.IsDefault {
			return d, nil
		}
	}
	return DeviceInfo{Index: -1, Name: def.Name, Channels: def.MaxInputChannels, DefaultRate: def.DefaultSampleRate, IsDefault: true, ref: def}, nil
}

func (h *PortAudioHost) OpenInput(dev DeviceInfo, rate, channels int, cb Callback) (Stream, error) {
	info, ok := dev.ref.(*portaudio.DeviceInfo)
	if !ok || info == nil {
		return nil, fmt.Errorf("device %q is not a portaudio device", dev.Name)
	}
	params := portaudio.LowLatencyParameters(info, nil)
	params.Input.Channels = channels
	params.SampleRate = float64(rate)
	if h.framesPerBuffer > 0 {
		params.FramesPerBuffer = h.framesPerBuffer
	}

	stream, err := portaudio.OpenStream(params, func(in []float32, ti portaudio.StreamCallbackTimeInfo) {
		ts := ti.InputBufferAdcTime
		if ts == 0 {
			// Some host APIs never fill the ADC time.
			ts = ti.CurrentTime
		}
		cb(in, ts)
	})
	if err != nil {
		return nil, fmt.Errorf("open stream failed: %w", err)
	}
	return &paStream{s: stream}, nil
}

func sameDevice(a, b *portaudio.DeviceInfo) bool {
	if a == nil || b == nil {
		return false
	}
	if a == b {
		return true
	}
	return a.Name == b.Name && a.HostApi != nil && b.HostApi != nil && a.HostApi.Name == b.HostApi.Name
}

type paStream struct {
	s *portaudio.Stream
}

func (p *paStream) Start() error {
	if err := p.s.Start(); err != nil {
		return fmt.Errorf("start stream failed: %w", err)
	}
	return nil
}

func (p *paStream) Close() error {
	_ = p.s.Stop()
	return p.s.Close()
}
