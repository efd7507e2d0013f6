//go:build !linux

package hotkey

import (
	"errors"
	"syscall"
)

// IsDisconnect reports whether err means the device node went away.
func IsDisconnect(err error) bool {
	return errors.Is(err, syscall.ENODEV) || errors.Is(err, syscall.EBADF) || errors.Is(err, syscall.ENXIO)
}

// IsWouldBlock reports whether err is a transient no-data condition.
func IsWouldBlock(err error) bool {
	return errors.Is(err, syscall.EAGAIN) || errors.Is(err, syscall.EINTR)
}
