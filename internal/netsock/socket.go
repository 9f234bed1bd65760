package netsock

import (
	"errors"
	"net/netip"
)

var (
	// ErrTimeout is returned by Wait when no datagram arrived in time.
	ErrTimeout = errors.New("netsock: wait timed out")
	// ErrClosed is returned by any operation on a closed socket.
	ErrClosed = errors.New("netsock: socket closed")
	// ErrAlreadyBound is returned by a second Bind on the same socket.
	ErrAlreadyBound = errors.New("netsock: socket already bound")
	// ErrNotIPv4 is returned when an address is not an IPv4 address.
	ErrNotIPv4 = errors.New("netsock: address is not IPv4")
)

// Wildcard returns the 0.0.0.0:port listen address.
func Wildcard(port uint16) netip.AddrPort {
	return netip.AddrPortFrom(netip.IPv4Unspecified(), port)
}

// LimitedBroadcast is 255.255.255.255, delivered to every host on the
// directly attached segment.
var LimitedBroadcast = netip.AddrFrom4([4]byte{255, 255, 255, 255})

func checkIPv4(ap netip.AddrPort) ([4]byte, error) {
	addr := ap.Addr().Unmap()
	if !addr.Is4() {
		return [4]byte{}, ErrNotIPv4
	}
	return addr.As4(), nil
}
