package virt

// EntropyDevice feeds host entropy to the guest (virtio-rng).
type EntropyDevice struct{}

// NewEntropyDevice creates an entropy device.
func NewEntropyDevice() *EntropyDevice { return &EntropyDevice{} }

// MemoryBalloonDevice lets the host reclaim guest memory dynamically
// (traditional virtio memory balloon).
type MemoryBalloonDevice struct{}

// NewMemoryBalloonDevice creates a memory balloon device.
func NewMemoryBalloonDevice() *MemoryBalloonDevice { return &MemoryBalloonDevice{} }

// SocketDevice provides a vsock transport between host and guest.
type SocketDevice struct{}

// NewSocketDevice creates a vsock socket device.
func NewSocketDevice() *SocketDevice { return &SocketDevice{} }
