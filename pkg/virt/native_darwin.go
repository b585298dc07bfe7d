//go:build darwin

package virt

import (
	"fmt"

	"github.com/Code-Hex/vz/v3"
)

// vzMachine drives a Virtualization.framework VM. The vz v3 lifecycle
// calls block until the framework's completion handler fires, so each is
// issued on its own goroutine and funneled back through the supplied
// completion callback.
type vzMachine struct {
	vm     *vz.VirtualMachine
	events chan guestEvent
	stop   chan struct{}
}

// newNativeMachine maps the validated Configuration onto the framework's
// object graph and creates the VM. Foreign objects are built here,
// immediately before use.
func newNativeMachine(cfg *Configuration) (nativeMachine, error) {
	vmCfg, err := buildVZConfiguration(cfg)
	if err != nil {
		return nil, err
	}
	vm, err := vz.NewVirtualMachine(vmCfg)
	if err != nil {
		return nil, fmt.Errorf("create virtual machine: %w", err)
	}
	m := &vzMachine{
		vm:     vm,
		events: make(chan guestEvent),
		stop:   make(chan struct{}),
	}
	go m.watchState()
	return m, nil
}

func buildVZConfiguration(cfg *Configuration) (*vz.VirtualMachineConfiguration, error) {
	bootLoader, err := buildVZBootLoader(cfg.BootLoader())
	if err != nil {
		return nil, err
	}
	vmCfg, err := vz.NewVirtualMachineConfiguration(bootLoader, uint(cfg.CPUCount()), cfg.MemorySize())
	if err != nil {
		return nil, fmt.Errorf("create configuration: %w", err)
	}
	platform, err := vz.NewGenericPlatformConfiguration()
	if err != nil {
		return nil, fmt.Errorf("create platform configuration: %w", err)
	}
	vmCfg.SetPlatformVirtualMachineConfiguration(platform)

	var serialPorts []*vz.VirtioConsoleDeviceSerialPortConfiguration
	for _, c := range cfg.SerialConsoles() {
		serialCfg, err := vz.NewVirtioConsoleDeviceSerialPortConfiguration(
			vz.NewFileHandleSerialPortAttachment(c.Reader(), c.Writer()),
		)
		if err != nil {
			return nil, fmt.Errorf("create serial port: %w", err)
		}
		serialPorts = append(serialPorts, serialCfg)
	}
	if len(serialPorts) > 0 {
		vmCfg.SetSerialPortsVirtualMachineConfiguration(serialPorts)
	}

	var networkDevices []*vz.VirtioNetworkDeviceConfiguration
	for _, d := range cfg.NetworkDevices() {
		attachment, err := buildVZNetworkAttachment(d)
		if err != nil {
			return nil, err
		}
		netCfg, err := vz.NewVirtioNetworkDeviceConfiguration(attachment)
		if err != nil {
			return nil, fmt.Errorf("create network device: %w", err)
		}
		mac, err := vz.NewMACAddress(d.MACAddress())
		if err != nil {
			return nil, fmt.Errorf("create MAC address: %w", err)
		}
		netCfg.SetMACAddress(mac)
		networkDevices = append(networkDevices, netCfg)
	}
	if len(networkDevices) > 0 {
		vmCfg.SetNetworkDevicesVirtualMachineConfiguration(networkDevices)
	}

	var storageDevices []vz.StorageDeviceConfiguration
	for _, d := range cfg.StorageDevices() {
		attachment, err := vz.NewDiskImageStorageDeviceAttachment(d.Path(), d.ReadOnly())
		if err != nil {
			return nil, fmt.Errorf("attach disk %s: %w", d.Path(), err)
		}
		blockDevice, err := vz.NewVirtioBlockDeviceConfiguration(attachment)
		if err != nil {
			return nil, fmt.Errorf("create block device: %w", err)
		}
		storageDevices = append(storageDevices, blockDevice)
	}
	if len(storageDevices) > 0 {
		vmCfg.SetStorageDevicesVirtualMachineConfiguration(storageDevices)
	}

	if n := len(cfg.EntropyDevices()); n > 0 {
		var devices []*vz.VirtioEntropyDeviceConfiguration
		for i := 0; i < n; i++ {
			dev, err := vz.NewVirtioEntropyDeviceConfiguration()
			if err != nil {
				return nil, fmt.Errorf("create entropy device: %w", err)
			}
			devices = append(devices, dev)
		}
		vmCfg.SetEntropyDevicesVirtualMachineConfiguration(devices)
	}

	if n := len(cfg.MemoryBalloonDevices()); n > 0 {
		var devices []vz.MemoryBalloonDeviceConfiguration
		for i := 0; i < n; i++ {
			dev, err := vz.NewVirtioTraditionalMemoryBalloonDeviceConfiguration()
			if err != nil {
				return nil, fmt.Errorf("create memory balloon: %w", err)
			}
			devices = append(devices, dev)
		}
		vmCfg.SetMemoryBalloonDevicesVirtualMachineConfiguration(devices)
	}

	if n := len(cfg.SocketDevices()); n > 0 {
		var devices []vz.SocketDeviceConfiguration
		for i := 0; i < n; i++ {
			dev, err := vz.NewVirtioSocketDeviceConfiguration()
			if err != nil {
				return nil, fmt.Errorf("create socket device: %w", err)
			}
			devices = append(devices, dev)
		}
		vmCfg.SetSocketDevicesVirtualMachineConfiguration(devices)
	}

	// The framework re-validates against the platform's actual device
	// support, which may be stricter than the portable rules.
	ok, err := vmCfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("framework validation: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("framework rejected the configuration")
	}
	return vmCfg, nil
}

func buildVZBootLoader(bl BootLoader) (vz.BootLoader, error) {
	switch v := bl.(type) {
	case *LinuxBootLoader:
		var opts []vz.LinuxBootLoaderOption
		if v.CommandLine() != "" {
			opts = append(opts, vz.WithCommandLine(v.CommandLine()))
		}
		if v.InitrdPath() != "" {
			opts = append(opts, vz.WithInitrd(v.InitrdPath()))
		}
		loader, err := vz.NewLinuxBootLoader(v.KernelPath(), opts...)
		if err != nil {
			return nil, fmt.Errorf("create boot loader: %w", err)
		}
		return loader, nil
	case *EFIBootLoader:
		var store *vz.EFIVariableStore
		var err error
		if v.CreatesVariableStore() {
			store, err = vz.NewEFIVariableStore(v.VariableStorePath(), vz.WithCreatingEFIVariableStore())
		} else {
			store, err = vz.NewEFIVariableStore(v.VariableStorePath())
		}
		if err != nil {
			return nil, fmt.Errorf("EFI variable store: %w", err)
		}
		loader, err := vz.NewEFIBootLoader(vz.WithEFIVariableStore(store))
		if err != nil {
			return nil, fmt.Errorf("create EFI boot loader: %w", err)
		}
		return loader, nil
	default:
		return nil, fmt.Errorf("unsupported boot loader %T", bl)
	}
}

func buildVZNetworkAttachment(d NetworkDevice) (vz.NetworkDeviceAttachment, error) {
	switch d.Mode() {
	case NetworkNAT:
		attachment, err := vz.NewNATNetworkDeviceAttachment()
		if err != nil {
			return nil, fmt.Errorf("create NAT attachment: %w", err)
		}
		return attachment, nil
	case NetworkBridged:
		for _, iface := range vz.NetworkInterfaces() {
			if iface.Identifier() != d.HostInterface() {
				continue
			}
			attachment, err := vz.NewBridgedNetworkDeviceAttachment(iface)
			if err != nil {
				return nil, fmt.Errorf("create bridged attachment: %w", err)
			}
			return attachment, nil
		}
		return nil, fmt.Errorf("bridged interface %s not found", d.HostInterface())
	default:
		return nil, fmt.Errorf("unsupported network mode %s", d.Mode())
	}
}

func (m *vzMachine) Start(complete func(error)) {
	go func() { complete(m.vm.Start()) }()
}

func (m *vzMachine) Pause(complete func(error)) {
	go func() { complete(m.vm.Pause()) }()
}

func (m *vzMachine) Resume(complete func(error)) {
	go func() { complete(m.vm.Resume()) }()
}

func (m *vzMachine) Stop(complete func(error)) {
	go func() { complete(m.vm.Stop()) }()
}

// watchState surfaces guest-initiated stops that arrive outside any
// pending lifecycle call.
func (m *vzMachine) watchState() {
	defer close(m.events)
	changed := m.vm.StateChangedNotify()
	for {
		select {
		case <-m.stop:
			return
		case state, ok := <-changed:
			if !ok {
				return
			}
			var ev guestEvent
			switch state {
			case vz.VirtualMachineStateStopped:
				ev = guestEvent{}
			case vz.VirtualMachineStateError:
				ev = guestEvent{err: fmt.Errorf("virtual machine entered error state")}
			default:
				continue
			}
			select {
			case m.events <- ev:
			case <-m.stop:
				return
			}
		}
	}
}

func (m *vzMachine) Events() <-chan guestEvent { return m.events }

func (m *vzMachine) Release() error {
	close(m.stop)
	return nil
}
