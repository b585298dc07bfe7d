package virt

// StorageDevice exposes a disk image to the guest as a virtio block
// device. The device owns its copy of the backing resource; the access
// mode of the resource decides whether the guest sees a writable disk.
type StorageDevice struct {
	res Resource
}

// NewStorageDevice attaches the disk image referenced by res.
func NewStorageDevice(res *Resource) *StorageDevice {
	return &StorageDevice{res: *res}
}

// Path returns the absolute path of the disk image.
func (d *StorageDevice) Path() string { return d.res.path }

// ReadOnly reports whether the guest sees a read-only disk.
func (d *StorageDevice) ReadOnly() bool { return !d.res.Writable() }
