package netsock

import (
	"fmt"
	"net"
	"net/netip"
)

// BroadcastAddr returns the directed broadcast address of the first IPv4
// network configured on the named interface.
func BroadcastAddr(ifaceName string) (netip.Addr, error) {
	ifi, err := net.InterfaceByName(ifaceName)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("interface %q: %w", ifaceName, err)
	}
	if ifi.Flags&net.FlagBroadcast == 0 {
		return netip.Addr{}, fmt.Errorf("interface %q does not support broadcast", ifaceName)
	}

	addrs, err := ifi.Addrs()
	if err != nil {
		return netip.Addr{}, fmt.Errorf("interface %q addresses: %w", ifaceName, err)
	}
	for _, a := range addrs {
		ipnet, ok := a.(*net.IPNet)
		if !ok {
			continue
		}
		if b, ok := directedBroadcast(ipnet); ok {
			return b, nil
		}
	}
	return netip.Addr{}, fmt.Errorf("interface %q has no IPv4 address", ifaceName)
}

// directedBroadcast sets every host bit of an IPv4 network address.
func directedBroadcast(n *net.IPNet) (netip.Addr, bool) {
	ip4 := n.IP.To4()
	if ip4 == nil {
		return netip.Addr{}, false
	}
	mask := n.Mask
	if len(mask) == net.IPv6len {
		mask = mask[12:]
	}
	if len(mask) != net.IPv4len {
		return netip.Addr{}, false
	}

	var out [4]byte
	for i := range out {
		out[i] = ip4[i] | ^mask[i]
	}
	return netip.AddrFrom4(out), true
}
