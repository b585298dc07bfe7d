package virt

// BootLoader describes how the guest kernel or firmware is supplied to
// the virtual machine. Implemented by LinuxBootLoader and EFIBootLoader.
type BootLoader interface {
	bootLoader()
}

// LinuxBootLoader boots a Linux kernel image directly, optionally with an
// initial ramdisk and a kernel command line.
type LinuxBootLoader struct {
	kernelPath  string
	initrdPath  string
	commandLine string
}

// LinuxBootLoaderOption configures a LinuxBootLoader.
type LinuxBootLoaderOption func(*LinuxBootLoader)

// WithInitrd supplies an initial ramdisk image.
func WithInitrd(path string) LinuxBootLoaderOption {
	return func(b *LinuxBootLoader) { b.initrdPath = path }
}

// WithCommandLine sets the kernel command line.
func WithCommandLine(cmdline string) LinuxBootLoaderOption {
	return func(b *LinuxBootLoader) { b.commandLine = cmdline }
}

// NewLinuxBootLoader creates a boot loader for the kernel image at
// kernelPath. The path is checked for existence at configuration
// validation time, not here.
func NewLinuxBootLoader(kernelPath string, opts ...LinuxBootLoaderOption) *LinuxBootLoader {
	b := &LinuxBootLoader{kernelPath: kernelPath}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// KernelPath returns the kernel image path.
func (b *LinuxBootLoader) KernelPath() string { return b.kernelPath }

// InitrdPath returns the initial ramdisk path, or "" if none was set.
func (b *LinuxBootLoader) InitrdPath() string { return b.initrdPath }

// CommandLine returns the kernel command line.
func (b *LinuxBootLoader) CommandLine() string { return b.commandLine }

func (*LinuxBootLoader) bootLoader() {}

// EFIBootLoader boots guest operating systems that expect an EFI ROM.
// NVRAM variables live in a variable store file on the host.
type EFIBootLoader struct {
	variableStorePath string
	createStore       bool
}

// EFIBootLoaderOption configures an EFIBootLoader.
type EFIBootLoaderOption func(*EFIBootLoader)

// WithCreatingVariableStore creates the variable store file if it does
// not exist yet.
func WithCreatingVariableStore() EFIBootLoaderOption {
	return func(b *EFIBootLoader) { b.createStore = true }
}

// NewEFIBootLoader creates an EFI boot loader backed by the variable
// store at variableStorePath.
func NewEFIBootLoader(variableStorePath string, opts ...EFIBootLoaderOption) *EFIBootLoader {
	b := &EFIBootLoader{variableStorePath: variableStorePath}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// VariableStorePath returns the path of the EFI variable store.
func (b *EFIBootLoader) VariableStorePath() string { return b.variableStorePath }

// CreatesVariableStore reports whether a missing variable store will be
// created at machine start.
func (b *EFIBootLoader) CreatesVariableStore() bool { return b.createStore }

func (*EFIBootLoader) bootLoader() {}
