package protocol

import (
	"encoding/binary"
	"fmt"
)

// Frame envelope constants
const (
	FrameSync    = 0x7e
	FrameVersion = 0x01

	// HeaderSize is sync(1) + version(1) + type(1) + length(2)
	HeaderSize = 5
	// TrailerSize is the XOR checksum byte
	TrailerSize = 1
	// Overhead is the number of bytes a frame adds around its payload
	Overhead = HeaderSize + TrailerSize

	// MaxPayloadSize keeps a full frame inside one unfragmented UDP datagram
	// on a standard Ethernet MTU (1500 - 20 IP - 8 UDP).
	MaxPayloadSize = 1472 - Overhead
)

// Message is a typed body carried inside a frame.
type Message interface {
	// Type is the one-byte message type written into the frame header.
	Type() byte
	String() string
	// WriteBody appends the message fields to p.
	WriteBody(p *Packet) error
	// ReadBody fills the message from p, which holds exactly one payload.
	ReadBody(p *Packet) error
}

// WriteFrame appends a complete frame carrying m to p.
//
// Frame Structure:
//
//	[0]     0x7e       Sync byte (FrameSync)
//	[1]     0x01       Version byte (FrameVersion)
//	[2]     type       Message type
//	[3-4]   length     Payload length (little-endian uint16)
//	[5+]    payload    Message body
//	[N]     checksum   XOR of every preceding frame byte
func WriteFrame(p *Packet, m Message) error {
	start := p.Wpos()

	p.WriteUint8(FrameSync)
	p.WriteUint8(FrameVersion)
	p.WriteUint8(m.Type())
	p.WriteUint16(0) // patched below

	if err := m.WriteBody(p); err != nil {
		return fmt.Errorf("failed to encode %s body: %w", typeName(m.Type()), err)
	}

	payloadLen := p.Wpos() - start - HeaderSize
	if payloadLen > MaxPayloadSize {
		return frameErr(ErrTooLarge, m.Type(), "%d bytes (max %d)", payloadLen, MaxPayloadSize)
	}

	frame := p.Bytes()[start:]
	binary.LittleEndian.PutUint16(frame[3:5], uint16(payloadLen))

	p.WriteUint8(checksum(frame))
	return nil
}

// ReadFrame consumes one frame from p and decodes its payload into m.
// The frame type must match m.Type().
func ReadFrame(p *Packet, m Message) error {
	typ, payload, err := splitFrame(p.Unread())
	if err != nil {
		return err
	}
	if typ != m.Type() {
		return frameErr(ErrTypeMismatch, typ, "got %s, want %s", typeName(typ), typeName(m.Type()))
	}

	body := &Packet{buf: payload, wpos: len(payload)}
	if err := m.ReadBody(body); err != nil {
		return fmt.Errorf("failed to decode %s body: %w", typeName(typ), err)
	}

	return p.Skip(len(payload) + Overhead)
}

// PeekType validates the frame at the start of data and returns its type
// without decoding the payload.
func PeekType(data []byte) (byte, error) {
	typ, _, err := splitFrame(data)
	return typ, err
}

// Encode returns a standalone frame carrying m.
func Encode(m Message) ([]byte, error) {
	p := NewPacket(64)
	if err := WriteFrame(p, m); err != nil {
		return nil, err
	}
	return p.Bytes(), nil
}

// Decode parses a standalone frame from data into m.
func Decode(data []byte, m Message) error {
	p := &Packet{buf: data, wpos: len(data)}
	return ReadFrame(p, m)
}

// splitFrame validates the envelope and returns the type and payload slice.
func splitFrame(data []byte) (byte, []byte, error) {
	if len(data) < Overhead {
		return 0, nil, frameErr(ErrShortPacket, 0, "%d bytes, need at least %d", len(data), Overhead)
	}
	if data[0] != FrameSync {
		return 0, nil, frameErr(ErrBadSync, 0, "got 0x%02x, want 0x%02x", data[0], FrameSync)
	}
	if data[1] != FrameVersion {
		return 0, nil, frameErr(ErrBadVersion, 0, "got 0x%02x, want 0x%02x", data[1], FrameVersion)
	}

	typ := data[2]
	length := int(binary.LittleEndian.Uint16(data[3:5]))
	end := HeaderSize + length
	if len(data) < end+TrailerSize {
		return typ, nil, frameErr(ErrShortPacket, typ, "payload length %d exceeds datagram (%d bytes)", length, len(data))
	}

	if sum := checksum(data[:end]); sum != data[end] {
		return typ, nil, frameErr(ErrBadChecksum, typ, "computed 0x%02x, frame has 0x%02x", sum, data[end])
	}

	return typ, data[HeaderSize:end], nil
}

func checksum(b []byte) byte {
	var sum byte
	for _, c := range b {
		sum ^= c
	}
	return sum
}
