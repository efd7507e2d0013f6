//go:build linux

package hotkey

import (
	"errors"

	"golang.org/x/sys/unix"
)

// IsDisconnect reports whether err means the device node went away.
func IsDisconnect(err error) bool {
	return errors.Is(err, unix.ENODEV) || errors.Is(err, unix.EBADF) || errors.Is(err, unix.ENXIO)
}

// IsWouldBlock reports whether err is a transient no-data condition.
func IsWouldBlock(err error) bool {
	return errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK) || errors.Is(err, unix.EINTR)
}
