package protocol

import (
	"encoding/binary"
	"fmt"
	"math"
	"net/netip"
)

// Packet is a byte buffer with independent read and write cursors.
//
// A Packet is not safe for concurrent use. Receive paths allocate one Packet
// sized to the receive window and Reset it before every read; the backing
// array is never reallocated by reads, only by writes that outgrow it.
type Packet struct {
	buf  []byte
	rpos int
	wpos int
}

// NewPacket returns an empty packet whose backing array holds capacity bytes.
func NewPacket(capacity int) *Packet {
	if capacity < 0 {
		capacity = 0
	}
	return &Packet{buf: make([]byte, capacity)}
}

// Reset rewinds both cursors without touching the backing array.
func (p *Packet) Reset() {
	p.rpos = 0
	p.wpos = 0
}

// Cap returns the size of the backing array.
func (p *Packet) Cap() int { return len(p.buf) }

// Rpos returns the read cursor.
func (p *Packet) Rpos() int { return p.rpos }

// Wpos returns the write cursor.
func (p *Packet) Wpos() int { return p.wpos }

// Len returns the number of written bytes not yet read.
func (p *Packet) Len() int { return p.wpos - p.rpos }

// Data exposes the whole backing array so a socket can read straight into it.
// Call SetWpos afterwards to mark how much was filled.
func (p *Packet) Data() []byte { return p.buf }

// Bytes returns the written region, from the start of the buffer to Wpos.
func (p *Packet) Bytes() []byte { return p.buf[:p.wpos] }

// Unread returns the bytes between the read and write cursors.
func (p *Packet) Unread() []byte { return p.buf[p.rpos:p.wpos] }

// SetWpos moves the write cursor, typically after a raw read into Data.
func (p *Packet) SetWpos(n int) error {
	if n < p.rpos || n > len(p.buf) {
		return fmt.Errorf("write position %d outside [%d, %d]", n, p.rpos, len(p.buf))
	}
	p.wpos = n
	return nil
}

// Skip advances the read cursor by n bytes.
func (p *Packet) Skip(n int) error {
	if _, err := p.next(n); err != nil {
		return err
	}
	return nil
}

func (p *Packet) grow(n int) []byte {
	need := p.wpos + n
	if need > len(p.buf) {
		size := 2 * len(p.buf)
		if size < need {
			size = need
		}
		nb := make([]byte, size)
		copy(nb, p.buf[:p.wpos])
		p.buf = nb
	}
	b := p.buf[p.wpos:need]
	p.wpos = need
	return b
}

func (p *Packet) next(n int) ([]byte, error) {
	if n < 0 || p.Len() < n {
		return nil, fmt.Errorf("%w: need %d bytes, have %d", ErrShortPacket, n, p.Len())
	}
	b := p.buf[p.rpos : p.rpos+n]
	p.rpos += n
	return b, nil
}

// WriteUint8 appends one byte.
func (p *Packet) WriteUint8(v uint8) {
	p.grow(1)[0] = v
}

// WriteUint16 appends v little-endian.
func (p *Packet) WriteUint16(v uint16) {
	binary.LittleEndian.PutUint16(p.grow(2), v)
}

// WriteUint32 appends v little-endian.
func (p *Packet) WriteUint32(v uint32) {
	binary.LittleEndian.PutUint32(p.grow(4), v)
}

// WriteUint64 appends v little-endian.
func (p *Packet) WriteUint64(v uint64) {
	binary.LittleEndian.PutUint64(p.grow(8), v)
}

// WriteInt32 appends v little-endian.
func (p *Packet) WriteInt32(v int32) {
	p.WriteUint32(uint32(v))
}

// WriteRaw appends b with no length prefix.
func (p *Packet) WriteRaw(b []byte) {
	copy(p.grow(len(b)), b)
}

// WriteBytes appends b behind a uint16 length prefix.
func (p *Packet) WriteBytes(b []byte) error {
	if len(b) > math.MaxUint16 {
		return fmt.Errorf("byte field too long: %d bytes (max %d)", len(b), math.MaxUint16)
	}
	p.WriteUint16(uint16(len(b)))
	p.WriteRaw(b)
	return nil
}

// WriteString appends s behind a uint16 length prefix.
func (p *Packet) WriteString(s string) error {
	if len(s) > math.MaxUint16 {
		return fmt.Errorf("string field too long: %d bytes (max %d)", len(s), math.MaxUint16)
	}
	p.WriteUint16(uint16(len(s)))
	copy(p.grow(len(s)), s)
	return nil
}

// WriteAddrPort appends an IPv4 address (4 bytes) followed by its port.
// The zero AddrPort is written as 0.0.0.0:0.
func (p *Packet) WriteAddrPort(ap netip.AddrPort) error {
	addr := ap.Addr().Unmap()
	switch {
	case !addr.IsValid():
		addr = netip.IPv4Unspecified()
	case !addr.Is4():
		return fmt.Errorf("address %s is not IPv4", addr)
	}
	a4 := addr.As4()
	p.WriteRaw(a4[:])
	p.WriteUint16(ap.Port())
	return nil
}

// ReadUint8 consumes one byte.
func (p *Packet) ReadUint8() (uint8, error) {
	b, err := p.next(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// ReadUint16 consumes a little-endian uint16.
func (p *Packet) ReadUint16() (uint16, error) {
	b, err := p.next(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

// ReadUint32 consumes a little-endian uint32.
func (p *Packet) ReadUint32() (uint32, error) {
	b, err := p.next(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// ReadUint64 consumes a little-endian uint64.
func (p *Packet) ReadUint64() (uint64, error) {
	b, err := p.next(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// ReadInt32 consumes a little-endian int32.
func (p *Packet) ReadInt32() (int32, error) {
	v, err := p.ReadUint32()
	return int32(v), err
}

// ReadRaw consumes n bytes and returns a copy.
func (p *Packet) ReadRaw(n int) ([]byte, error) {
	b, err := p.next(n)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, b)
	return out, nil
}

// ReadBytes consumes a uint16 length prefix and that many bytes.
func (p *Packet) ReadBytes() ([]byte, error) {
	n, err := p.ReadUint16()
	if err != nil {
		return nil, err
	}
	return p.ReadRaw(int(n))
}

// ReadString consumes a uint16 length prefix and that many bytes as a string.
func (p *Packet) ReadString() (string, error) {
	n, err := p.ReadUint16()
	if err != nil {
		return "", err
	}
	b, err := p.next(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ReadAddrPort consumes an IPv4 address and port written by WriteAddrPort.
func (p *Packet) ReadAddrPort() (netip.AddrPort, error) {
	b, err := p.next(4)
	if err != nil {
		return netip.AddrPort{}, err
	}
	addr := netip.AddrFrom4([4]byte{b[0], b[1], b[2], b[3]})
	port, err := p.ReadUint16()
	if err != nil {
		return netip.AddrPort{}, err
	}
	return netip.AddrPortFrom(addr, port), nil
}
