package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mosvirt/virtkit/internal/config"
	"github.com/mosvirt/virtkit/internal/timing"
	"github.com/mosvirt/virtkit/pkg/virt"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Boot a kernel in a new VM",
	Long: `Boot a Linux kernel in a new virtual machine with the guest console
attached to this terminal.

The configuration is validated before the VM is created: the kernel,
initrd and disk images must exist, writable disks must be writable, and
CPU and memory requests must fit the host. Press ctrl-c to shut the VM
down.`,
	RunE: runRun,
}

var (
	runKernel   string
	runInitrd   string
	runDisks    []string
	runDisksRW  []string
	runCmdline  string
	runCPUs     int
	runMemoryMB int
	runNet      bool
	runMAC      string
)

func init() {
	f := runCmd.Flags()
	f.StringVarP(&runKernel, "kernel", "k", "", "path to the Linux kernel image (required)")
	f.StringVar(&runInitrd, "initrd", "", "path to the initial ramdisk image")
	f.StringArrayVar(&runDisks, "disk", nil, "disk image attached read-only (repeatable)")
	f.StringArrayVar(&runDisksRW, "disk-rw", nil, "disk image attached read-write (repeatable)")
	f.StringVar(&runCmdline, "cmdline", "", "kernel command line (overrides config)")
	f.IntVar(&runCPUs, "cpus", 0, "number of virtual CPUs (overrides config)")
	f.IntVar(&runMemoryMB, "memory", 0, "guest memory in MiB (overrides config)")
	f.BoolVar(&runNet, "net", false, "attach a NAT network device")
	f.StringVar(&runMAC, "mac", "", "MAC address for the network device (overrides config)")
	runCmd.MarkFlagRequired("kernel")
}

// buildConfiguration merges flags with the loaded config and validates
// the result. Flags win; unset flags fall back to config values.
func buildConfiguration() (*virt.Configuration, error) {
	cfg := config.Global
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	cpus := cfg.CPUs
	if runCPUs > 0 {
		cpus = runCPUs
	}
	memoryMB := cfg.MemoryMB
	if runMemoryMB > 0 {
		memoryMB = runMemoryMB
	}
	cmdline := cfg.Cmdline
	if runCmdline != "" {
		cmdline = runCmdline
	}

	var opts []virt.LinuxBootLoaderOption
	if runInitrd != "" {
		opts = append(opts, virt.WithInitrd(runInitrd))
	}
	if cmdline != "" {
		opts = append(opts, virt.WithCommandLine(cmdline))
	}

	b := virt.NewConfigBuilder().
		SetBootLoader(virt.NewLinuxBootLoader(runKernel, opts...)).
		SetCPUCount(cpus).
		SetMemorySize(uint64(memoryMB) << 20).
		AddSerialConsole(virt.NewSerialConsole(os.Stdin, os.Stdout)).
		AddEntropyDevice(virt.NewEntropyDevice())

	attached := false
	for _, path := range runDisks {
		res, err := virt.OpenResource(path, virt.ReadOnly)
		if err != nil {
			return nil, err
		}
		b.AddStorageDevice(virt.NewStorageDevice(res))
		attached = true
	}
	for _, path := range runDisksRW {
		res, err := virt.OpenResource(path, virt.ReadWrite)
		if err != nil {
			return nil, err
		}
		b.AddStorageDevice(virt.NewStorageDevice(res))
		attached = true
	}
	if !attached {
		// Booting straight into an initrd without a disk is a supported
		// workflow, so the missing-disk check is acknowledged here.
		b.AllowNoStorage()
	}

	if runNet || cfg.EnableNetwork {
		dev := virt.NewNATNetworkDevice()
		mac := cfg.MACAddress
		if runMAC != "" {
			mac = runMAC
		}
		if mac != "" {
			if err := dev.SetMACAddress(mac); err != nil {
				return nil, err
			}
		}
		b.AddNetworkDevice(dev)
	}

	return b.Build()
}

func runRun(cmd *cobra.Command, args []string) error {
	// Initialize timing if SIMPLEVM_TIMING=1
	var timer *timing.Timer
	if os.Getenv("SIMPLEVM_TIMING") == "1" {
		timer = timing.New()
	}

	if !virt.Supported() {
		return fmt.Errorf("virtualization is not supported on this host")
	}

	cfg, err := buildConfiguration()
	if err != nil {
		return err
	}
	if timer != nil {
		timer.Mark("validate")
	}

	m, err := virt.NewMachine(cfg)
	if err != nil {
		return err
	}
	defer m.Close()

	op, err := m.Start()
	if err != nil {
		return err
	}
	if err := op.Wait(cmd.Context()); err != nil {
		return fmt.Errorf("failed to start VM: %w", err)
	}
	if timer != nil {
		timer.Mark("boot")
		timer.Report(os.Stderr)
	}
	fmt.Fprintln(os.Stderr, "VM running. Press ctrl-c to stop.")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sig)

	for {
		select {
		case <-sig:
			// A second signal while stopping is ignored; the state
			// machine rejects the duplicate stop.
			if stop, err := m.Stop(); err == nil {
				go stop.Wait(context.Background())
			}
		case err := <-m.Done():
			if err != nil {
				return fmt.Errorf("VM failed: %w", err)
			}
			fmt.Fprintln(os.Stderr, "VM stopped.")
			return nil
		}
	}
}
