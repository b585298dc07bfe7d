//go:build !darwin && !linux

package virt

// newNativeMachine fails on platforms without a hypervisor adapter.
func newNativeMachine(cfg *Configuration) (nativeMachine, error) {
	return nil, ErrUnsupportedPlatform
}
