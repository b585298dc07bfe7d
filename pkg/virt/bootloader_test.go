package virt

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLinuxBootLoaderOptions(t *testing.T) {
	b := NewLinuxBootLoader("/boot/vmlinuz",
		WithInitrd("/boot/initrd.img"),
		WithCommandLine("console=hvc0 root=/dev/vda"),
	)
	require.Equal(t, "/boot/vmlinuz", b.KernelPath())
	require.Equal(t, "/boot/initrd.img", b.InitrdPath())
	require.Equal(t, "console=hvc0 root=/dev/vda", b.CommandLine())
}

func TestLinuxBootLoaderDefaults(t *testing.T) {
	b := NewLinuxBootLoader("/boot/vmlinuz")
	require.Empty(t, b.InitrdPath())
	require.Empty(t, b.CommandLine())
}

func TestEFIBootLoader(t *testing.T) {
	b := NewEFIBootLoader("/var/lib/vm/nvram.bin")
	require.Equal(t, "/var/lib/vm/nvram.bin", b.VariableStorePath())
	require.False(t, b.CreatesVariableStore())

	b = NewEFIBootLoader("/var/lib/vm/nvram.bin", WithCreatingVariableStore())
	require.True(t, b.CreatesVariableStore())
}
