package hotkey

import (
	"sort"
	"sync"
)

type fakeDevice struct {
	path string

	mu      sync.Mutex
	pending []KeyEvent
	err     error
	closed  bool
	explode bool
}

func (d *fakeDevice) Path() string { return d.path }
func (d *fakeDevice) Name() string { return "fake " + d.path }

func (d *fakeDevice) Read() ([]KeyEvent, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.explode {
		panic("device read exploded")
	}
	ev := d.pending
	d.pending = nil
	return ev, d.err
}

func (d *fakeDevice) Close() error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	return nil
}

func (d *fakeDevice) push(events ...KeyEvent) {
	d.mu.Lock()
	d.pending = append(d.pending, events...)
	d.mu.Unlock()
}

func (d *fakeDevice) fail(err error) {
	d.mu.Lock()
	d.err = err
	d.mu.Unlock()
}

func (d *fakeDevice) panicOnRead() {
	d.mu.Lock()
	d.explode = true
	d.mu.Unlock()
}

func (d *fakeDevice) isClosed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// fakeEnum hands out fakeDevices; paths listed in mice fail the keyboard check.
type fakeEnum struct {
	mu      sync.Mutex
	present map[string]bool
	mice    map[string]bool
	opened  map[string]*fakeDevice
	scans   int
}

func newFakeEnum(paths ...string) *fakeEnum {
	e := &fakeEnum{present: map[string]bool{}, mice: map[string]bool{}, opened: map[string]*fakeDevice{}}
	for _, p := range paths {
		e.present[p] = true
	}
	return e
}

func (e *fakeEnum) Scan() ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.scans++
	out := make([]string, 0, len(e.present))
	for p := range e.present {
		out = append(out, p)
	}
	sort.Strings(out)
	return out, nil
}

func (e *fakeEnum) Open(path string) (Device, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.present[path] {
		return nil, errNoSuchDevice
	}
	if e.mice[path] {
		return nil, ErrNotKeyboard
	}
	d := &fakeDevice{path: path}
	e.opened[path] = d
	return d, nil
}

func (e *fakeEnum) device(path string) *fakeDevice {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.opened[path]
}

func (e *fakeEnum) plug(path string) {
	e.mu.Lock()
	e.present[path] = true
	e.mu.Unlock()
}

func (e *fakeEnum) unplug(path string) {
	e.mu.Lock()
	delete(e.present, path)
	e.mu.Unlock()
}

func (e *fakeEnum) scanCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.scans
}

type staticErr string

func (e staticErr) Error() string { return string(e) }

const errNoSuchDevice = staticErr("no such device")

func down(c KeyCode) KeyEvent { return KeyEvent{Code: c, Value: 1} }
func up(c KeyCode) KeyEvent   { return KeyEvent{Code: c, Value: 0} }
