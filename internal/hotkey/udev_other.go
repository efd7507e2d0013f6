//go:build !linux

package hotkey

// SystemWatcher returns a watcher that is never available on this platform.
func SystemWatcher() Watcher { return unsupportedWatcher{} }

type unsupportedWatcher struct{}

func (unsupportedWatcher) Watch(<-chan struct{}) (<-chan DeviceEvent, error) {
	return nil, ErrUnsupported
}
