package virt

import (
	"runtime"
	"strconv"
)

// MinimumMemory is the smallest guest memory size the framework accepts.
const MinimumMemory uint64 = 128 << 20

// Host limit probes. Function vars so validator tests can pin them.
var (
	hostMemory = hostMemoryBytes
	hostCPUs   = runtime.NumCPU
)

// ConfigBuilder assembles device descriptors into a validated
// Configuration. Devices are copied in, so mutating a descriptor after
// adding it has no effect on the built configuration.
type ConfigBuilder struct {
	bootLoader BootLoader
	cpus       int
	memory     uint64
	storage    []StorageDevice
	noStorage  bool
	network    []NetworkDevice
	serial     []SerialConsole
	entropy    []EntropyDevice
	balloon    []MemoryBalloonDevice
	sockets    []SocketDevice
}

// NewConfigBuilder creates an empty builder.
func NewConfigBuilder() *ConfigBuilder { return &ConfigBuilder{} }

// SetBootLoader sets the boot loader. Required.
func (b *ConfigBuilder) SetBootLoader(bl BootLoader) *ConfigBuilder {
	b.bootLoader = cloneBootLoader(bl)
	return b
}

// SetCPUCount sets the number of virtual CPUs.
func (b *ConfigBuilder) SetCPUCount(n int) *ConfigBuilder {
	b.cpus = n
	return b
}

// SetMemorySize sets the guest memory size in bytes.
func (b *ConfigBuilder) SetMemorySize(bytes uint64) *ConfigBuilder {
	b.memory = bytes
	return b
}

// AddStorageDevice appends a storage device. Devices are attached to the
// guest in the order they were added.
func (b *ConfigBuilder) AddStorageDevice(d *StorageDevice) *ConfigBuilder {
	b.storage = append(b.storage, *d)
	return b
}

// AllowNoStorage acknowledges that the guest boots without a disk.
// Without this, building a configuration with no storage devices fails.
func (b *ConfigBuilder) AllowNoStorage() *ConfigBuilder {
	b.noStorage = true
	return b
}

// AddNetworkDevice appends a network device.
func (b *ConfigBuilder) AddNetworkDevice(d *NetworkDevice) *ConfigBuilder {
	c := *d
	c.mac = d.MACAddress()
	b.network = append(b.network, c)
	return b
}

// AddSerialConsole appends a serial console device.
func (b *ConfigBuilder) AddSerialConsole(c *SerialConsole) *ConfigBuilder {
	b.serial = append(b.serial, *c)
	return b
}

// AddEntropyDevice appends an entropy device.
func (b *ConfigBuilder) AddEntropyDevice(d *EntropyDevice) *ConfigBuilder {
	b.entropy = append(b.entropy, *d)
	return b
}

// AddMemoryBalloonDevice appends a memory balloon device.
func (b *ConfigBuilder) AddMemoryBalloonDevice(d *MemoryBalloonDevice) *ConfigBuilder {
	b.balloon = append(b.balloon, *d)
	return b
}

// AddSocketDevice appends a vsock socket device.
func (b *ConfigBuilder) AddSocketDevice(d *SocketDevice) *ConfigBuilder {
	b.sockets = append(b.sockets, *d)
	return b
}

// configRules are applied in order by Build, failing fast on the first
// violation. The set is deliberately not exhaustive: platform-specific
// limits are re-checked by the hypervisor itself at machine creation,
// and new portable rules slot in here without disturbing the order of
// existing diagnostics.
var configRules = []func(*ConfigBuilder) error{
	checkBootLoader,
	checkMemory,
	checkCPU,
	checkStorage,
	checkNetwork,
}

// Build validates the assembled configuration and freezes it. On
// success the returned Configuration is immutable; any change requires
// building a new one.
func (b *ConfigBuilder) Build() (*Configuration, error) {
	for _, rule := range configRules {
		if err := rule(b); err != nil {
			return nil, err
		}
	}
	return &Configuration{
		bootLoader: cloneBootLoader(b.bootLoader),
		cpus:       b.cpus,
		memory:     b.memory,
		storage:    append([]StorageDevice(nil), b.storage...),
		network:    cloneNetworkDevices(b.network),
		serial:     append([]SerialConsole(nil), b.serial...),
		entropy:    append([]EntropyDevice(nil), b.entropy...),
		balloon:    append([]MemoryBalloonDevice(nil), b.balloon...),
		sockets:    append([]SocketDevice(nil), b.sockets...),
	}, nil
}

func checkBootLoader(b *ConfigBuilder) error {
	switch bl := b.bootLoader.(type) {
	case nil:
		return &ConfigError{Rule: "bootloader", Value: "(none)", Err: ErrMissingBootLoader}
	case *LinuxBootLoader:
		if bl.kernelPath == "" {
			return &ConfigError{Rule: "kernel", Value: "(empty)", Err: ErrNotFound}
		}
		if err := probeAccess(bl.kernelPath, ReadOnly); err != nil {
			return &ConfigError{Rule: "kernel", Value: bl.kernelPath, Err: err}
		}
		if bl.initrdPath != "" {
			if err := probeAccess(bl.initrdPath, ReadOnly); err != nil {
				return &ConfigError{Rule: "initrd", Value: bl.initrdPath, Err: err}
			}
		}
	case *EFIBootLoader:
		if bl.variableStorePath == "" {
			return &ConfigError{Rule: "efi-variable-store", Value: "(empty)", Err: ErrNotFound}
		}
		if !bl.createStore {
			if err := probeAccess(bl.variableStorePath, ReadWrite); err != nil {
				return &ConfigError{Rule: "efi-variable-store", Value: bl.variableStorePath, Err: err}
			}
		}
	}
	return nil
}

func checkMemory(b *ConfigBuilder) error {
	max, err := hostMemory()
	if err != nil {
		return err
	}
	if b.memory < MinimumMemory || b.memory > max {
		return &ConfigError{Rule: "memory", Value: strconv.FormatUint(b.memory, 10), Err: ErrOutOfRange}
	}
	return nil
}

func checkCPU(b *ConfigBuilder) error {
	if b.cpus < 1 || b.cpus > hostCPUs() {
		return &ConfigError{Rule: "cpu", Value: strconv.Itoa(b.cpus), Err: ErrOutOfRange}
	}
	return nil
}

func checkStorage(b *ConfigBuilder) error {
	if len(b.storage) == 0 && !b.noStorage {
		return &ConfigError{Rule: "storage", Value: "(none)", Err: ErrNoStorage}
	}
	for i := range b.storage {
		d := &b.storage[i]
		// Re-probe at validation time: the backing file may have changed
		// since the resource was opened, and writable disks require
		// writable files.
		if err := probeAccess(d.res.path, d.res.mode); err != nil {
			return &ConfigError{Rule: "storage", Value: d.res.path, Err: err}
		}
	}
	return nil
}

func checkNetwork(b *ConfigBuilder) error {
	seen := make(map[string]bool, len(b.network))
	for i := range b.network {
		d := &b.network[i]
		if d.mac == nil {
			mac, err := randomLocallyAdministeredMAC()
			if err != nil {
				return err
			}
			d.mac = mac
		}
		key := d.mac.String()
		if seen[key] {
			return &ConfigError{Rule: "network", Value: key, Err: ErrDuplicateMAC}
		}
		seen[key] = true
	}
	return nil
}

// Configuration is an immutable, validated virtual machine
// configuration. It is safe for concurrent use; accessors return copies.
type Configuration struct {
	bootLoader BootLoader
	cpus       int
	memory     uint64
	storage    []StorageDevice
	network    []NetworkDevice
	serial     []SerialConsole
	entropy    []EntropyDevice
	balloon    []MemoryBalloonDevice
	sockets    []SocketDevice
}

// BootLoader returns a copy of the boot loader.
func (c *Configuration) BootLoader() BootLoader { return cloneBootLoader(c.bootLoader) }

// CPUCount returns the number of virtual CPUs.
func (c *Configuration) CPUCount() int { return c.cpus }

// MemorySize returns the guest memory size in bytes.
func (c *Configuration) MemorySize() uint64 { return c.memory }

// StorageDevices returns the storage devices in attachment order.
func (c *Configuration) StorageDevices() []StorageDevice {
	return append([]StorageDevice(nil), c.storage...)
}

// NetworkDevices returns the network devices in attachment order, with
// their MAC addresses materialized.
func (c *Configuration) NetworkDevices() []NetworkDevice {
	return cloneNetworkDevices(c.network)
}

// SerialConsoles returns the serial console devices in attachment order.
func (c *Configuration) SerialConsoles() []SerialConsole {
	return append([]SerialConsole(nil), c.serial...)
}

// EntropyDevices returns the entropy devices.
func (c *Configuration) EntropyDevices() []EntropyDevice {
	return append([]EntropyDevice(nil), c.entropy...)
}

// MemoryBalloonDevices returns the memory balloon devices.
func (c *Configuration) MemoryBalloonDevices() []MemoryBalloonDevice {
	return append([]MemoryBalloonDevice(nil), c.balloon...)
}

// SocketDevices returns the vsock socket devices.
func (c *Configuration) SocketDevices() []SocketDevice {
	return append([]SocketDevice(nil), c.sockets...)
}

func cloneBootLoader(bl BootLoader) BootLoader {
	switch v := bl.(type) {
	case *LinuxBootLoader:
		c := *v
		return &c
	case *EFIBootLoader:
		c := *v
		return &c
	default:
		return bl
	}
}

func cloneNetworkDevices(devices []NetworkDevice) []NetworkDevice {
	out := make([]NetworkDevice, len(devices))
	for i := range devices {
		out[i] = devices[i]
		out[i].mac = devices[i].MACAddress()
	}
	return out
}
