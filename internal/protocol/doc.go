// Package protocol implements the lanprobe datagram wire format.
//
// Every datagram carries exactly one frame. A frame wraps a typed message body
// in a small envelope so that a listener on a shared broadcast port can reject
// foreign traffic cheaply before decoding anything.
//
// # Frame Format
//
//   - Sync byte: 0x7e
//   - Protocol version: 0x01
//   - Message type: 1 byte
//   - Payload length: 2 bytes (little-endian)
//   - Payload: variable length
//   - Checksum: 1 byte (XOR of every preceding frame byte)
//
// All multi-byte integers are little-endian. Strings and byte fields carry a
// uint16 length prefix. Addresses are IPv4 only: 4 address bytes and a port.
//
// # Message Types
//
//   - Query (0x01): broadcast by a node that is looking for a peer. Carries a
//     probe id, the sender's role and user, and the port it waits on for replies.
//   - Announcement (0x02): unicast by a peer back to the prober. Echoes the
//     probe id and describes where the peer can be reached.
//
// # Packets
//
// Packet is the reusable buffer the endpoint reads datagrams into. It keeps a
// read and a write cursor over one backing array:
//
//	pkt := protocol.NewPacket(1472)
//	pkt.Reset()
//	n, from, err := sock.RecvFrom(pkt.Data())
//	_ = pkt.SetWpos(n)
//	var ann protocol.Announcement
//	err = protocol.ReadFrame(pkt, &ann)
//
// For one-off use, Encode and Decode work on plain byte slices.
//
// # Error Handling
//
// Envelope problems are reported as *FrameError wrapping one of ErrShortPacket,
// ErrBadSync, ErrBadVersion, ErrBadChecksum, ErrTypeMismatch or ErrTooLarge.
// Body problems are wrapped with the failing field name.
//
// # Thread Safety
//
// Encode, Decode and PeekType are stateless. A Packet must not be shared
// between goroutines.
package protocol
