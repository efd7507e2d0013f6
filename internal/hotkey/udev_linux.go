//go:build linux

package hotkey

import (
	"fmt"
	"strings"

	"github.com/pilebones/go-udev/netlink"
)

// SystemWatcher returns a udev netlink hot-plug watcher.
func SystemWatcher() Watcher { return udevWatcher{} }

type udevWatcher struct{}

func (udevWatcher) Watch(stop <-chan struct{}) (<-chan DeviceEvent, error) {
	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		return nil, fmt.Errorf("connect udev monitor: %w", err)
	}

	queue := make(chan netlink.UEvent)
	errs := make(chan error, 1)
	quit := conn.Monitor(queue, errs, nil)

	out := make(chan DeviceEvent, 16)
	go func() {
		defer conn.Close()
		defer close(quit)
		forwardUEvents(stop, queue, errs, out)
	}()
	return out, nil
}

// forwardUEvents translates uevents until stop closes or the monitor fails,
// then closes out. Undecodable messages are skipped; only read failures
// end the monitor.
func forwardUEvents(stop <-chan struct{}, queue <-chan netlink.UEvent, errs <-chan error, out chan<- DeviceEvent) {
	defer close(out)
	for {
		select {
		case <-stop:
			return
		case uev, open := <-queue:
			if !open {
				select {
				case out <- DeviceEvent{Kind: MonitorUnavailable, Reason: "udev monitor stopped"}:
				case <-stop:
				}
				return
			}
			ev, ok := translateUEvent(uev)
			if !ok {
				continue
			}
			select {
			case out <- ev:
			case <-stop:
				return
			}
		case err := <-errs:
			if isParseError(err) {
				continue
			}
			select {
			case out <- DeviceEvent{Kind: MonitorUnavailable, Reason: err.Error()}:
			case <-stop:
			}
			return
		}
	}
}

// isParseError matches the error go-udev reports for a message it could
// not decode; the monitor keeps running after those.
func isParseError(err error) bool {
	return err != nil && strings.HasPrefix(err.Error(), "Unable to parse uevent")
}

func translateUEvent(uev netlink.UEvent) (DeviceEvent, bool) {
	if uev.Env["SUBSYSTEM"] != "input" {
		return DeviceEvent{}, false
	}
	name := uev.Env["DEVNAME"]
	if name == "" {
		return DeviceEvent{}, false
	}
	if !strings.HasPrefix(name, "/") {
		name = "/dev/" + name
	}
	if !IsEventNode(name) {
		return DeviceEvent{}, false
	}
	switch uev.Action {
	case netlink.ADD:
		return DeviceEvent{Kind: DeviceAdded, Path: name}, true
	case netlink.REMOVE:
		return DeviceEvent{Kind: DeviceRemoved, Path: name}, true
	case netlink.CHANGE:
		return DeviceEvent{Kind: DeviceChanged, Path: name}, true
	}
	return DeviceEvent{}, false
}
