package virt

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetMACAddress(t *testing.T) {
	tests := []struct {
		name    string
		mac     string
		wantErr bool
	}{
		{"locally administered unicast", "06:00:00:11:22:33", false},
		{"uppercase", "0A:1B:2C:3D:4E:5F", false},
		{"dash separated", "06-00-00-11-22-33", false},
		{"not parseable", "not-a-mac", true},
		{"too long", "02:00:00:00:00:00:00:01", true},
		{"multicast bit set", "07:00:00:11:22:33", true},
		{"globally unique", "00:1c:42:11:22:33", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewNATNetworkDevice()
			err := d.SetMACAddress(tt.mac)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidMAC)
				require.Nil(t, d.MACAddress())
				return
			}
			require.NoError(t, err)
			require.NotNil(t, d.MACAddress())
		})
	}
}

func TestMACAddressCopy(t *testing.T) {
	d := NewNATNetworkDevice()
	require.NoError(t, d.SetMACAddress("06:00:00:11:22:33"))

	mac := d.MACAddress()
	mac[5] = 0xff
	require.Equal(t, "06:00:00:11:22:33", d.MACAddress().String())
}

func TestBridgedNetworkDevice(t *testing.T) {
	d := NewBridgedNetworkDevice("en0")
	require.Equal(t, NetworkBridged, d.Mode())
	require.Equal(t, "en0", d.HostInterface())
	require.Nil(t, d.MACAddress())
}

func TestRandomLocallyAdministeredMAC(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 64; i++ {
		mac, err := randomLocallyAdministeredMAC()
		require.NoError(t, err)
		require.Len(t, []byte(mac), 6)
		require.Zero(t, mac[0]&0x01)
		require.NotZero(t, mac[0]&0x02)
		seen[mac.String()] = true
	}
	require.Greater(t, len(seen), 1)
}

func TestNetworkModeString(t *testing.T) {
	require.Equal(t, "nat", NetworkNAT.String())
	require.Equal(t, "bridged", NetworkBridged.String())
	require.Equal(t, "unknown", NetworkMode(42).String())
}
