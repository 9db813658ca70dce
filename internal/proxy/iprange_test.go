package proxy

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsPrivateIPBlockedRanges(t *testing.T) {
	blocked := []string{
		// IPv4
		"10.0.0.1", "10.255.255.255",
		"172.16.0.1", "172.31.255.254",
		"192.168.0.1", "192.168.255.1",
		"127.0.0.1", "127.255.255.254",
		"169.254.169.254",
		"0.0.0.0", "0.1.2.3",
		"224.0.0.1", "239.255.255.255",
		"240.0.0.1", "255.255.255.255",
		// IPv6
		"::1",
		"::",
		"fc00::1", "fdff:ffff::1",
		"fe80::1",
		"ff02::1",
	}
	for _, raw := range blocked {
		ip := net.ParseIP(raw)
		require.NotNil(t, ip, raw)
		assert.True(t, IsPrivateIP(ip), "expected %s to be private", raw)
	}
}

func TestIsPrivateIPPublicAddresses(t *testing.T) {
	public := []string{
		"8.8.8.8",
		"8.8.4.4",
		"1.1.1.1",
		"9.9.9.9",
		"93.184.216.34",
		"2001:4860:4860::8888",
		"2606:4700:4700::1111",
	}
	for _, raw := range public {
		ip := net.ParseIP(raw)
		require.NotNil(t, ip, raw)
		assert.False(t, IsPrivateIP(ip), "expected %s to be public", raw)
	}
}

func TestIsPrivateIPUnwrapsMappedAddresses(t *testing.T) {
	// A blocked IPv4 address smuggled inside an IPv6 literal must still be
	// blocked, and a public one must still pass.
	assert.True(t, IsPrivateIP(net.ParseIP("::ffff:127.0.0.1")))
	assert.True(t, IsPrivateIP(net.ParseIP("::ffff:10.0.0.1")))
	assert.True(t, IsPrivateIP(net.ParseIP("::ffff:192.168.1.1")))
	assert.False(t, IsPrivateIP(net.ParseIP("::ffff:8.8.8.8")))
}

func TestIsPrivateIPUnparseable(t *testing.T) {
	assert.True(t, IsPrivateIP(nil))
	assert.True(t, IsPrivateIP(net.IP{0x01}))
}
