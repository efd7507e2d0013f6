//go:build !linux

package hotkey

// SystemEnumerator returns an enumerator that always fails on this platform.
func SystemEnumerator() Enumerator { return unsupportedEnumerator{} }

type unsupportedEnumerator struct{}

func (unsupportedEnumerator) Scan() ([]string, error) { return nil, ErrUnsupported }
func (unsupportedEnumerator) Open(string) (Device, error) { return nil, ErrUnsupported }

// DescribeKey names a key code.
func DescribeKey(c KeyCode) string { return KeyName(c) }
