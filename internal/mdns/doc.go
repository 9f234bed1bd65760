// Package mdns advertises and finds lanprobe responders over multicast DNS.
//
// This is a side channel next to the broadcast protocol. Broadcast discovery
// finds a peer without any infrastructure; mDNS lets an operator list what is
// running on the segment without sending a query that a responder would
// answer.
//
// Responders register as "_lanprobe._udp" in "local." with TXT records:
//
//	component=machine
//	component_id=42
//	version=v0.3.0
//
// # Usage Example
//
//	services, err := mdns.NewScanner().Scan(ctx)
//	if err != nil {
//	    return err
//	}
//	for _, s := range services {
//	    fmt.Println(s)
//	}
//
// Only IPv4 addresses are reported since discovery datagrams are IPv4 only.
//
// # Network Requirements
//
// - Requires multicast support on the network interface
// - Firewall must allow mDNS (UDP port 5353)
package mdns
