//go:build !darwin && !linux

package virt

// hostMemoryBytes has no probe on this platform.
func hostMemoryBytes() (uint64, error) {
	return 0, ErrUnsupportedPlatform
}

// Supported reports whether the host can run hardware-virtualized
// guests.
func Supported() bool { return false }
