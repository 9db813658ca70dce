package proxy

import (
	"net"
	"net/netip"
)

// blockedPrefixes lists the address ranges the proxy must never connect to.
// Any resolved address falling inside one of these rejects the whole URL.
var blockedPrefixes = []netip.Prefix{
	// IPv4
	netip.MustParsePrefix("0.0.0.0/8"),      // "this" network
	netip.MustParsePrefix("10.0.0.0/8"),     // RFC 1918
	netip.MustParsePrefix("127.0.0.0/8"),    // loopback
	netip.MustParsePrefix("169.254.0.0/16"), // link-local
	netip.MustParsePrefix("172.16.0.0/12"),  // RFC 1918
	netip.MustParsePrefix("192.168.0.0/16"), // RFC 1918
	netip.MustParsePrefix("224.0.0.0/4"),    // multicast
	netip.MustParsePrefix("240.0.0.0/4"),    // reserved

	// IPv6
	netip.MustParsePrefix("::/128"),    // unspecified
	netip.MustParsePrefix("::1/128"),   // loopback
	netip.MustParsePrefix("fc00::/7"),  // unique local
	netip.MustParsePrefix("fe80::/10"), // link-local
	netip.MustParsePrefix("ff00::/8"),  // multicast
}

// IsPrivateIP reports whether ip falls in a private, reserved, loopback,
// link-local or multicast range. IPv4-mapped IPv6 addresses are unwrapped and
// checked against the IPv4 rules, so ::ffff:127.0.0.1 is blocked the same as
// 127.0.0.1. Unparseable input is treated as private.
func IsPrivateIP(ip net.IP) bool {
	addr, ok := netip.AddrFromSlice(ip)
	if !ok {
		return true
	}
	return isBlockedAddr(addr)
}

func isBlockedAddr(addr netip.Addr) bool {
	// Unmap before matching: an attacker can smuggle a blocked IPv4 address
	// inside an IPv4-mapped IPv6 literal past a v4-only check.
	addr = addr.Unmap()
	for _, prefix := range blockedPrefixes {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}
