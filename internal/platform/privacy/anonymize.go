// Package privacy masks personal data before it reaches the logs.
package privacy

import (
	"net/netip"
	"strings"
)

// AnonymizeIP keeps the network part of a client address: the /24 of an
// IPv4 address and the /48 of an IPv6 one. Ports are dropped. Empty input
// yields "unknown" and anything unparseable "invalid".
func AnonymizeIP(ip string) string {
	ip = strings.TrimSpace(ip)
	if ip == "" || ip == "unknown" {
		return "unknown"
	}
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		ap, perr := netip.ParseAddrPort(ip)
		if perr != nil {
			return "invalid"
		}
		addr = ap.Addr()
	}
	addr = addr.Unmap().WithZone("")

	bits := 48
	if addr.Is4() {
		bits = 24
	}
	prefix, err := addr.Prefix(bits)
	if err != nil {
		return "invalid"
	}
	return prefix.Addr().String()
}
