//go:build darwin

package virt

import "golang.org/x/sys/unix"

// hostMemoryBytes returns the host's physical memory size.
func hostMemoryBytes() (uint64, error) {
	return unix.SysctlUint64("hw.memsize")
}

// Supported reports whether the host can run hardware-virtualized
// guests.
func Supported() bool {
	v, err := unix.SysctlUint32("kern.hv_support")
	return err == nil && v != 0
}
