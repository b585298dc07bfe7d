//go:build linux

package virt

import (
	"os"

	"golang.org/x/sys/unix"
)

// hostMemoryBytes returns the host's physical memory size.
func hostMemoryBytes() (uint64, error) {
	var info unix.Sysinfo_t
	if err := unix.Sysinfo(&info); err != nil {
		return 0, err
	}
	return uint64(info.Totalram) * uint64(info.Unit), nil
}

// Supported reports whether the host can run hardware-virtualized
// guests.
func Supported() bool {
	_, err := os.Stat("/dev/kvm")
	return err == nil
}
