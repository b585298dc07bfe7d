package virt

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/mosvirt/virtkit/internal/testutil"
	"github.com/stretchr/testify/require"
)

// pinHostLimits makes the validator deterministic: 8 GiB of memory and
// 8 logical cores, restored when the test ends.
func pinHostLimits(t *testing.T) {
	t.Helper()
	origMem, origCPU := hostMemory, hostCPUs
	hostMemory = func() (uint64, error) { return 8 << 30, nil }
	hostCPUs = func() int { return 8 }
	t.Cleanup(func() {
		hostMemory, hostCPUs = origMem, origCPU
	})
}

// testBuilder returns a builder for a minimal valid configuration: an
// existing kernel, 512 MiB of memory, 2 CPUs and no disk.
func testBuilder(t *testing.T) *ConfigBuilder {
	t.Helper()
	pinHostLimits(t)
	kernel := testutil.WriteFile(t, "vmlinuz")
	return NewConfigBuilder().
		SetBootLoader(NewLinuxBootLoader(kernel, WithCommandLine("console=hvc0"))).
		SetCPUCount(2).
		SetMemorySize(512 << 20).
		AllowNoStorage()
}

func TestBuildValid(t *testing.T) {
	kernel := testutil.WriteFile(t, "vmlinuz")
	initrd := testutil.WriteFile(t, "initrd.img")
	disk := testutil.WriteSparseFile(t, "ubuntu.iso", 1)
	pinHostLimits(t)

	res, err := OpenResource(disk, ReadOnly)
	require.NoError(t, err)

	cfg, err := NewConfigBuilder().
		SetBootLoader(NewLinuxBootLoader(kernel, WithInitrd(initrd), WithCommandLine("console=hvc0"))).
		SetCPUCount(2).
		SetMemorySize(512 << 20).
		AddStorageDevice(NewStorageDevice(res)).
		Build()
	require.NoError(t, err)

	bl, ok := cfg.BootLoader().(*LinuxBootLoader)
	require.True(t, ok)
	require.Equal(t, kernel, bl.KernelPath())
	require.Equal(t, initrd, bl.InitrdPath())
	require.Equal(t, "console=hvc0", bl.CommandLine())
	require.Equal(t, 2, cfg.CPUCount())
	require.Equal(t, uint64(512<<20), cfg.MemorySize())
	require.Len(t, cfg.StorageDevices(), 1)
	require.Empty(t, cfg.NetworkDevices())
}

func TestBuildMissingKernel(t *testing.T) {
	pinHostLimits(t)
	cfg, err := NewConfigBuilder().
		SetBootLoader(NewLinuxBootLoader("/nonexistent/vmlinuz")).
		SetCPUCount(1).
		SetMemorySize(512 << 20).
		AllowNoStorage().
		Build()
	require.Nil(t, cfg)
	require.ErrorIs(t, err, ErrNotFound)

	var cerr *ConfigError
	require.ErrorAs(t, err, &cerr)
	require.Equal(t, "kernel", cerr.Rule)
	require.Equal(t, "/nonexistent/vmlinuz", cerr.Value)
}

func TestBuildMissingBootLoader(t *testing.T) {
	pinHostLimits(t)
	_, err := NewConfigBuilder().
		SetCPUCount(1).
		SetMemorySize(512 << 20).
		AllowNoStorage().
		Build()
	require.ErrorIs(t, err, ErrMissingBootLoader)
}

func TestBuildEFIBootLoader(t *testing.T) {
	t.Run("existing store", func(t *testing.T) {
		store := testutil.WriteFile(t, "nvram.bin")
		_, err := testBuilder(t).SetBootLoader(NewEFIBootLoader(store)).Build()
		require.NoError(t, err)
	})
	t.Run("missing store", func(t *testing.T) {
		b := testBuilder(t)
		missing := filepath.Join(t.TempDir(), "nvram.bin")
		_, err := b.SetBootLoader(NewEFIBootLoader(missing)).Build()
		require.ErrorIs(t, err, ErrNotFound)
		var cerr *ConfigError
		require.ErrorAs(t, err, &cerr)
		require.Equal(t, "efi-variable-store", cerr.Rule)
	})
	t.Run("missing store to be created", func(t *testing.T) {
		b := testBuilder(t)
		missing := filepath.Join(t.TempDir(), "nvram.bin")
		_, err := b.SetBootLoader(NewEFIBootLoader(missing, WithCreatingVariableStore())).Build()
		require.NoError(t, err)
	})
}

func TestBuildMemoryOutOfRange(t *testing.T) {
	tests := []struct {
		name   string
		memory uint64
	}{
		{"below minimum", 64 << 20},
		{"above host", 16 << 30},
		{"zero", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := testBuilder(t).SetMemorySize(tt.memory).Build()
			require.ErrorIs(t, err, ErrOutOfRange)
			var cerr *ConfigError
			require.ErrorAs(t, err, &cerr)
			require.Equal(t, "memory", cerr.Rule)
		})
	}
}

func TestBuildCPUOutOfRange(t *testing.T) {
	tests := []struct {
		name string
		cpus int
	}{
		{"zero", 0},
		{"negative", -1},
		{"above host cores", 9},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := testBuilder(t).SetCPUCount(tt.cpus).Build()
			require.ErrorIs(t, err, ErrOutOfRange)
			var cerr *ConfigError
			require.ErrorAs(t, err, &cerr)
			require.Equal(t, "cpu", cerr.Rule)
		})
	}
}

func TestBuildRuleOrder(t *testing.T) {
	// Memory and CPU are both invalid; the memory rule runs first.
	_, err := testBuilder(t).SetMemorySize(0).SetCPUCount(0).Build()
	var cerr *ConfigError
	require.ErrorAs(t, err, &cerr)
	require.Equal(t, "memory", cerr.Rule)
}

func TestBuildNoStorageUnacknowledged(t *testing.T) {
	pinHostLimits(t)
	kernel := testutil.WriteFile(t, "vmlinuz")
	_, err := NewConfigBuilder().
		SetBootLoader(NewLinuxBootLoader(kernel)).
		SetCPUCount(1).
		SetMemorySize(512 << 20).
		Build()
	require.ErrorIs(t, err, ErrNoStorage)
}

func TestBuildStorageFileVanished(t *testing.T) {
	b := testBuilder(t)
	disk := testutil.WriteSparseFile(t, "root.img", 1)
	res, err := OpenResource(disk, ReadOnly)
	require.NoError(t, err)
	require.NoError(t, os.Remove(disk))

	_, err = b.AddStorageDevice(NewStorageDevice(res)).Build()
	require.ErrorIs(t, err, ErrNotFound)
	var cerr *ConfigError
	require.ErrorAs(t, err, &cerr)
	require.Equal(t, "storage", cerr.Rule)
	require.Equal(t, disk, cerr.Value)
}

func TestBuildWritableDiskReadOnlyFile(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root bypasses permission bits")
	}
	b := testBuilder(t)
	disk := testutil.WriteSparseFile(t, "root.img", 1)
	res, err := OpenResource(disk, ReadWrite)
	require.NoError(t, err)
	require.NoError(t, os.Chmod(disk, 0400))

	_, err = b.AddStorageDevice(NewStorageDevice(res)).Build()
	require.ErrorIs(t, err, ErrPermissionDenied)
}

func TestBuildDuplicateMAC(t *testing.T) {
	b := testBuilder(t)
	d1 := NewNATNetworkDevice()
	require.NoError(t, d1.SetMACAddress("06:00:00:11:22:33"))
	d2 := NewNATNetworkDevice()
	require.NoError(t, d2.SetMACAddress("06:00:00:11:22:33"))

	_, err := b.AddNetworkDevice(d1).AddNetworkDevice(d2).Build()
	require.ErrorIs(t, err, ErrDuplicateMAC)
	var cerr *ConfigError
	require.ErrorAs(t, err, &cerr)
	require.Equal(t, "06:00:00:11:22:33", cerr.Value)
}

func TestBuildGeneratesMACs(t *testing.T) {
	cfg, err := testBuilder(t).
		AddNetworkDevice(NewNATNetworkDevice()).
		AddNetworkDevice(NewNATNetworkDevice()).
		Build()
	require.NoError(t, err)

	devices := cfg.NetworkDevices()
	require.Len(t, devices, 2)
	seen := map[string]bool{}
	for _, d := range devices {
		mac := d.MACAddress()
		require.Len(t, []byte(mac), 6)
		require.Zero(t, mac[0]&0x01, "generated MAC must be unicast")
		require.NotZero(t, mac[0]&0x02, "generated MAC must be locally administered")
		seen[mac.String()] = true
	}
	require.Len(t, seen, 2, "generated MACs must be unique")
}

func TestBuildDeviceOrderRoundTrip(t *testing.T) {
	b := testBuilder(t)

	var paths []string
	for _, name := range []string{"a.img", "b.img", "c.img"} {
		disk := testutil.WriteSparseFile(t, name, 1)
		res, err := OpenResource(disk, ReadOnly)
		require.NoError(t, err)
		b.AddStorageDevice(NewStorageDevice(res))
		paths = append(paths, disk)
	}
	macs := []string{"06:00:00:00:00:01", "06:00:00:00:00:02"}
	for _, mac := range macs {
		d := NewNATNetworkDevice()
		require.NoError(t, d.SetMACAddress(mac))
		b.AddNetworkDevice(d)
	}

	cfg, err := b.Build()
	require.NoError(t, err)

	storage := cfg.StorageDevices()
	require.Len(t, storage, 3)
	for i, d := range storage {
		require.Equal(t, paths[i], d.Path())
	}
	network := cfg.NetworkDevices()
	require.Len(t, network, 2)
	for i, d := range network {
		require.Equal(t, macs[i], d.MACAddress().String())
	}
}

func TestConfigurationImmutable(t *testing.T) {
	cfg, err := testBuilder(t).
		AddNetworkDevice(NewNATNetworkDevice()).
		Build()
	require.NoError(t, err)

	// Mutating accessor results must not leak back into the configuration.
	devices := cfg.NetworkDevices()
	orig := devices[0].MACAddress().String()
	require.NoError(t, devices[0].SetMACAddress("06:aa:bb:cc:dd:ee"))
	require.Equal(t, orig, cfg.NetworkDevices()[0].MACAddress().String())

	bl := cfg.BootLoader().(*LinuxBootLoader)
	bl.commandLine = "mutated"
	require.NotEqual(t, "mutated", cfg.BootLoader().(*LinuxBootLoader).CommandLine())
}

func TestBuilderMutationAfterAdd(t *testing.T) {
	b := testBuilder(t)
	d := NewNATNetworkDevice()
	require.NoError(t, d.SetMACAddress("06:00:00:00:00:01"))
	b.AddNetworkDevice(d)

	// Changing the descriptor after adding it must not affect the build.
	require.NoError(t, d.SetMACAddress("06:00:00:00:00:02"))

	cfg, err := b.Build()
	require.NoError(t, err)
	require.Equal(t, "06:00:00:00:00:01", cfg.NetworkDevices()[0].MACAddress().String())
}

func TestBuildHostMemoryProbeFails(t *testing.T) {
	b := testBuilder(t)
	hostMemory = func() (uint64, error) { return 0, errors.New("sysctl failed") }
	_, err := b.Build()
	require.Error(t, err)
	var cerr *ConfigError
	require.False(t, errors.As(err, &cerr), "probe failure is not a validation diagnostic")
}
