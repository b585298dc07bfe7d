package virt

import (
	"crypto/rand"
	"fmt"
	"net"
)

// NetworkMode selects the backend a network device attaches to.
type NetworkMode int

const (
	// NetworkNAT routes guest traffic through the host with address
	// translation.
	NetworkNAT NetworkMode = iota

	// NetworkBridged bridges the guest onto a physical host interface.
	NetworkBridged
)

func (m NetworkMode) String() string {
	switch m {
	case NetworkNAT:
		return "nat"
	case NetworkBridged:
		return "bridged"
	default:
		return "unknown"
	}
}

// NetworkDevice is a virtio network device. Without an explicit MAC
// address, a random locally-administered one is generated when the
// configuration is validated.
type NetworkDevice struct {
	mode  NetworkMode
	iface string
	mac   net.HardwareAddr
}

// NewNATNetworkDevice creates a network device attached to the host's
// NAT backend.
func NewNATNetworkDevice() *NetworkDevice {
	return &NetworkDevice{mode: NetworkNAT}
}

// NewBridgedNetworkDevice creates a network device bridged onto the host
// interface with the given identifier (e.g. "en0").
func NewBridgedNetworkDevice(hostInterface string) *NetworkDevice {
	return &NetworkDevice{mode: NetworkBridged, iface: hostInterface}
}

// SetMACAddress sets an explicit MAC address. The address must be a
// 6-octet unicast address with the locally-administered bit set.
func (d *NetworkDevice) SetMACAddress(s string) error {
	hw, err := net.ParseMAC(s)
	if err != nil || len(hw) != 6 {
		return &ConfigError{Rule: "network", Value: s, Err: ErrInvalidMAC}
	}
	if hw[0]&0x01 != 0 || hw[0]&0x02 == 0 {
		return &ConfigError{Rule: "network", Value: s, Err: ErrInvalidMAC}
	}
	d.mac = hw
	return nil
}

// Mode returns the device's backend mode.
func (d *NetworkDevice) Mode() NetworkMode { return d.mode }

// HostInterface returns the bridged host interface identifier, or "" for
// NAT devices.
func (d *NetworkDevice) HostInterface() string { return d.iface }

// MACAddress returns a copy of the device's MAC address, or nil if one
// has not been set or generated yet.
func (d *NetworkDevice) MACAddress() net.HardwareAddr {
	if d.mac == nil {
		return nil
	}
	return append(net.HardwareAddr(nil), d.mac...)
}

// randomLocallyAdministeredMAC generates a unicast MAC address with the
// locally-administered bit set, mirroring what the framework would pick.
func randomLocallyAdministeredMAC() (net.HardwareAddr, error) {
	b := make([]byte, 6)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("generate MAC address: %w", err)
	}
	b[0] = b[0]&0xfe | 0x02
	return net.HardwareAddr(b), nil
}
