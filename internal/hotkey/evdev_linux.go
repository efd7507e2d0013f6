//go:build linux

package hotkey

import (
	"encoding/binary"
	"fmt"
	"sort"
	"unsafe"

	"github.com/holoplot/go-evdev"
	"golang.org/x/sys/unix"
)

const evKey = 0x01

var inputEventSize = int(unsafe.Sizeof(unix.Timeval{})) + 8

// SystemEnumerator returns the evdev-backed enumerator.
func SystemEnumerator() Enumerator { return evdevEnumerator{} }

type evdevEnumerator struct{}

func (evdevEnumerator) Scan() ([]string, error) {
	inputs, err := evdev.ListDevicePaths()
	if err != nil {
		return nil, fmt.Errorf("list input devices: %w", err)
	}
	paths := make([]string, 0, len(inputs))
	for _, in := range inputs {
		if IsEventNode(in.Path) {
			paths = append(paths, in.Path)
		}
	}
	sort.Strings(paths)
	return paths, nil
}

func (evdevEnumerator) Open(path string) (Device, error) {
	info, err := evdev.Open(path)
	if err != nil {
		return nil, err
	}
	ok := isKeyboard(info)
	name, _ := info.Name()
	_ = info.Close()
	if !ok {
		return nil, ErrNotKeyboard
	}
	if name == "" {
		name = "Unknown"
	}

	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &evdevDevice{
		path: path,
		name: name,
		fd:   fd,
		buf:  make([]byte, inputEventSize*64),
	}, nil
}

func isKeyboard(d *evdev.InputDevice) bool {
	var a, s, dk bool
	for _, code := range d.CapableEvents(evdev.EV_KEY) {
		switch code {
		case evdev.KEY_A:
			a = true
		case evdev.KEY_S:
			s = true
		case evdev.KEY_D:
			dk = true
		}
	}
	return a && s && dk
}

// evdevDevice reads raw input_event records from a non-blocking descriptor.
type evdevDevice struct {
	path string
	name string
	fd   int
	buf  []byte
}

func (d *evdevDevice) Path() string { return d.path }
func (d *evdevDevice) Name() string { return d.name }

func (d *evdevDevice) Read() ([]KeyEvent, error) {
	if d.fd < 0 {
		return nil, unix.EBADF
	}
	var out []KeyEvent
	for {
		n, err := unix.Read(d.fd, d.buf)
		if err != nil {
			if IsWouldBlock(err) {
				return out, nil
			}
			return out, err
		}
		if n <= 0 {
			return out, nil
		}
		out = appendKeyEvents(out, d.buf[:n])
		if n < len(d.buf) {
			return out, nil
		}
	}
}

func (d *evdevDevice) Close() error {
	if d.fd < 0 {
		return nil
	}
	err := unix.Close(d.fd)
	d.fd = -1
	return err
}

func appendKeyEvents(out []KeyEvent, b []byte) []KeyEvent {
	off := inputEventSize - 8
	for len(b) >= inputEventSize {
		typ := binary.NativeEndian.Uint16(b[off:])
		code := binary.NativeEndian.Uint16(b[off+2:])
		value := int32(binary.NativeEndian.Uint32(b[off+4:]))
		if typ == evKey {
			out = append(out, KeyEvent{Code: KeyCode(code), Value: value})
		}
		b = b[inputEventSize:]
	}
	return out
}

// DescribeKey names a key code using the kernel's identifiers.
func DescribeKey(c KeyCode) string {
	return evdev.CodeName(evdev.EV_KEY, evdev.EvCode(c))
}
