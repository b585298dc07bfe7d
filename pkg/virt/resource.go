// Package virt provides memory-safe bindings to the host's native
// hypervisor for creating and running lightweight virtual machines.
//
// Callers open Resources for the kernel, initrd and disk artifacts,
// assemble device descriptors around them, validate everything into an
// immutable Configuration, and drive the resulting Machine through its
// lifecycle. The foreign VM object is created lazily on Start and
// released exactly once when the machine stops.
package virt

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// AccessMode describes how the guest will access a resource.
type AccessMode int

const (
	// ReadOnly exposes the resource to the guest without write access.
	ReadOnly AccessMode = iota

	// ReadWrite lets the guest write to the resource.
	ReadWrite
)

func (m AccessMode) String() string {
	if m == ReadWrite {
		return "read-write"
	}
	return "read-only"
}

// Resource is a validated handle to a host file backing a virtual device.
// It is a read-only view: the native layer consumes the path directly,
// and the device descriptor that references the resource owns it.
type Resource struct {
	path string
	mode AccessMode
}

// OpenResource resolves path to an absolute path and verifies that it
// exists and satisfies mode. The returned error wraps ErrNotFound when
// the path does not exist and ErrPermissionDenied when the requested
// access mode is unsatisfiable.
func OpenResource(path string, mode AccessMode) (*Resource, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}
	if err := probeAccess(abs, mode); err != nil {
		return nil, &ConfigError{Rule: "resource", Value: abs, Err: err}
	}
	return &Resource{path: abs, mode: mode}, nil
}

// Path returns the absolute path of the backing file.
func (r *Resource) Path() string { return r.path }

// Mode returns the access mode the resource was opened with.
func (r *Resource) Mode() AccessMode { return r.mode }

// Writable reports whether the guest may write to the resource.
func (r *Resource) Writable() bool { return r.mode == ReadWrite }

// probeAccess verifies that path names an accessible regular file under
// mode and maps the failure to a validation sentinel.
func probeAccess(path string, mode AccessMode) error {
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return ErrNotFound
	case errors.Is(err, fs.ErrPermission):
		return ErrPermissionDenied
	case err != nil:
		return err
	}
	if info.IsDir() {
		// Directories cannot back a kernel, initrd or disk device.
		return ErrNotFound
	}

	flag := os.O_RDONLY
	if mode == ReadWrite {
		flag = os.O_RDWR
	}
	f, err := os.OpenFile(path, flag, 0)
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return ErrPermissionDenied
		}
		return err
	}
	return f.Close()
}
