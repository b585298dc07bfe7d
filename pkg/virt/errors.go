package virt

import (
	"errors"
	"fmt"
)

// Validation sentinels. A ConfigError wraps exactly one of these.
var (
	ErrNotFound          = errors.New("virt: file not found")
	ErrPermissionDenied  = errors.New("virt: permission denied")
	ErrOutOfRange        = errors.New("virt: value out of range")
	ErrMissingBootLoader = errors.New("virt: boot loader is required")
	ErrNoStorage         = errors.New("virt: no storage device configured")
	ErrInvalidMAC        = errors.New("virt: invalid MAC address")
	ErrDuplicateMAC      = errors.New("virt: duplicate MAC address")
)

// Lifecycle errors.
var (
	// ErrInvalidTransition reports a lifecycle call issued from a state
	// that does not permit it. This is a caller bug, not a VM failure.
	ErrInvalidTransition = errors.New("virt: invalid lifecycle transition")

	// ErrProtocolViolation reports a breach of the completion contract,
	// such as a duplicate native callback. It is always a bug signal and
	// never swallowed.
	ErrProtocolViolation = errors.New("virt: completion protocol violation")
)

// Platform errors.
var ErrUnsupportedPlatform = errors.New("virt: platform not supported")

// ConfigError reports a violated validation rule together with the
// offending value. The hypervisor rejects bad configurations opaquely;
// this is the readable diagnostic produced in its place.
type ConfigError struct {
	Rule  string // the violated rule: "kernel", "memory", "cpu", "storage", "network", ...
	Value string // the offending value
	Err   error  // the validation sentinel
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Rule, e.Value, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// NativeError carries a failure surfaced by the hypervisor framework.
// It is terminal for the machine that produced it: the caller must build
// a new machine to try again.
type NativeError struct {
	Op  string // the lifecycle operation that failed
	Err error
}

func (e *NativeError) Error() string {
	return fmt.Sprintf("virt: native %s failed: %v", e.Op, e.Err)
}

func (e *NativeError) Unwrap() error { return e.Err }
