//go:build linux

package virt

import (
	"context"
	"fmt"
	"os"
	"runtime"

	hypeos "github.com/c35s/hype/os/linux"
	"github.com/c35s/hype/virtio"
	"github.com/c35s/hype/vmm"
)

// kvmMachine drives a KVM guest through hype. The backend runs the guest
// to completion on a dedicated goroutine: start completes once the vcpu
// loop is up, and guest exit arrives as an event. Pause and resume are
// not supported by this backend, and entropy, balloon and vsock
// descriptors have no hype equivalent and are skipped.
type kvmMachine struct {
	vm       *vmm.VM
	cancel   context.CancelFunc
	events   chan guestEvent
	released chan struct{}
	runDone  chan error
	disks    []*os.File
}

func newNativeMachine(cfg *Configuration) (nativeMachine, error) {
	bl, ok := cfg.BootLoader().(*LinuxBootLoader)
	if !ok {
		return nil, fmt.Errorf("kvm backend supports only the Linux boot loader")
	}
	if len(cfg.NetworkDevices()) > 0 {
		return nil, fmt.Errorf("kvm backend does not support network devices")
	}

	kernel, err := os.ReadFile(bl.KernelPath())
	if err != nil {
		return nil, fmt.Errorf("read kernel: %w", err)
	}
	var initrd []byte
	if bl.InitrdPath() != "" {
		initrd, err = os.ReadFile(bl.InitrdPath())
		if err != nil {
			return nil, fmt.Errorf("read initrd: %w", err)
		}
	}

	hypeCfg := vmm.Config{
		MemSize: int(cfg.MemorySize()),
		Loader: &hypeos.Loader{
			Kernel:  kernel,
			Initrd:  initrd,
			Cmdline: bl.CommandLine(),
		},
	}
	for _, c := range cfg.SerialConsoles() {
		hypeCfg.Devices = append(hypeCfg.Devices, &virtio.ConsoleDevice{
			In:  c.Reader(),
			Out: c.Writer(),
		})
	}

	var disks []*os.File
	closeDisks := func() {
		for _, f := range disks {
			f.Close()
		}
	}
	for _, d := range cfg.StorageDevices() {
		flag := os.O_RDWR
		if d.ReadOnly() {
			flag = os.O_RDONLY
		}
		f, err := os.OpenFile(d.Path(), flag, 0)
		if err != nil {
			closeDisks()
			return nil, fmt.Errorf("open disk %s: %w", d.Path(), err)
		}
		disks = append(disks, f)
		hypeCfg.Devices = append(hypeCfg.Devices, &virtio.BlockDevice{
			Storage: &virtio.FileStorage{File: f},
		})
	}

	vm, err := vmm.New(hypeCfg)
	if err != nil {
		closeDisks()
		return nil, fmt.Errorf("create VM: %w", err)
	}
	return &kvmMachine{
		vm:       vm,
		events:   make(chan guestEvent, 1),
		released: make(chan struct{}),
		runDone:  make(chan error, 1),
		disks:    disks,
	}, nil
}

func (m *kvmMachine) Start(complete func(error)) {
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	started := make(chan struct{})
	go func() {
		defer close(m.events)
		// vcpu ioctls must stay on one OS thread.
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		close(started)
		err := m.vm.Run(ctx)
		if ctx.Err() != nil {
			// Shutdown was requested; not a guest failure.
			err = nil
		}
		select {
		case m.runDone <- err:
		default:
		}
		select {
		case m.events <- guestEvent{err: err}:
		case <-m.released:
		}
	}()
	<-started
	complete(nil)
}

func (m *kvmMachine) Pause(complete func(error)) {
	go complete(fmt.Errorf("kvm backend does not support pause"))
}

func (m *kvmMachine) Resume(complete func(error)) {
	go complete(fmt.Errorf("kvm backend does not support resume"))
}

func (m *kvmMachine) Stop(complete func(error)) {
	go func() {
		m.cancel()
		complete(<-m.runDone)
	}()
}

func (m *kvmMachine) Events() <-chan guestEvent { return m.events }

func (m *kvmMachine) Release() error {
	if m.cancel != nil {
		m.cancel()
	}
	close(m.released)
	var first error
	for _, f := range m.disks {
		if err := f.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
