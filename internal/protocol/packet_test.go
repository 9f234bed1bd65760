package protocol

import (
	"bytes"
	"errors"
	"net/netip"
	"strings"
	"testing"
)

func TestPacket_WriteLayout(t *testing.T) {
	p := NewPacket(4)
	p.WriteUint8(0x01)
	p.WriteUint16(0x0302)
	p.WriteUint32(0x07060504)
	p.WriteInt32(-1)
	if err := p.WriteString("ab"); err != nil {
		t.Fatal(err)
	}
	if err := p.WriteAddrPort(netip.MustParseAddrPort("10.0.0.7:20086")); err != nil {
		t.Fatal(err)
	}

	want := []byte{
		0x01,
		0x02, 0x03,
		0x04, 0x05, 0x06, 0x07,
		0xff, 0xff, 0xff, 0xff,
		0x02, 0x00, 'a', 'b',
		10, 0, 0, 7, 0x76, 0x4e, // 20086 = 0x4e76
	}
	if !bytes.Equal(p.Bytes(), want) {
		t.Errorf("Bytes() = % x\nwant      % x", p.Bytes(), want)
	}
	if p.Cap() < len(want) {
		t.Errorf("Cap() = %d, buffer did not grow", p.Cap())
	}
}

func TestPacket_ReadBack(t *testing.T) {
	p := NewPacket(0)
	p.WriteUint64(0x0102030405060708)
	_ = p.WriteBytes([]byte{9, 8, 7})
	_ = p.WriteAddrPort(netip.AddrPort{})

	u64, err := p.ReadUint64()
	if err != nil || u64 != 0x0102030405060708 {
		t.Errorf("ReadUint64() = %#x, %v", u64, err)
	}
	b, err := p.ReadBytes()
	if err != nil || !bytes.Equal(b, []byte{9, 8, 7}) {
		t.Errorf("ReadBytes() = %v, %v", b, err)
	}
	ap, err := p.ReadAddrPort()
	if err != nil || ap != netip.MustParseAddrPort("0.0.0.0:0") {
		t.Errorf("ReadAddrPort() = %s, %v", ap, err)
	}
	if p.Len() != 0 {
		t.Errorf("Len() = %d after reading everything", p.Len())
	}
}

func TestPacket_ShortReads(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		read func(*Packet) error
	}{
		{"uint8", nil, func(p *Packet) error { _, err := p.ReadUint8(); return err }},
		{"uint16", []byte{1}, func(p *Packet) error { _, err := p.ReadUint16(); return err }},
		{"uint32", []byte{1, 2, 3}, func(p *Packet) error { _, err := p.ReadUint32(); return err }},
		{"uint64", []byte{1, 2, 3, 4, 5, 6, 7}, func(p *Packet) error { _, err := p.ReadUint64(); return err }},
		{"string body", []byte{5, 0, 'a'}, func(p *Packet) error { _, err := p.ReadString(); return err }},
		{"addr port", []byte{10, 0, 0, 1, 0x76}, func(p *Packet) error { _, err := p.ReadAddrPort(); return err }},
		{"skip", []byte{1}, func(p *Packet) error { return p.Skip(2) }},
		{"negative raw", []byte{1}, func(p *Packet) error { _, err := p.ReadRaw(-1); return err }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Packet{buf: tt.data, wpos: len(tt.data)}
			if err := tt.read(p); !errors.Is(err, ErrShortPacket) {
				t.Errorf("error = %v, want ErrShortPacket", err)
			}
		})
	}
}

func TestPacket_ReadRawCopies(t *testing.T) {
	p := NewPacket(4)
	p.WriteRaw([]byte{1, 2, 3, 4})
	b, err := p.ReadRaw(4)
	if err != nil {
		t.Fatal(err)
	}
	p.Data()[0] = 0xff
	if b[0] != 1 {
		t.Error("ReadRaw() result aliases the packet buffer")
	}
}

func TestPacket_ResetAndSetWpos(t *testing.T) {
	p := NewPacket(16)
	buf := p.Data()
	copy(buf, []byte{7, 8, 9})

	if err := p.SetWpos(3); err != nil {
		t.Fatalf("SetWpos(3) error = %v", err)
	}
	if v, _ := p.ReadUint8(); v != 7 {
		t.Errorf("ReadUint8() = %d, want 7", v)
	}
	if err := p.SetWpos(0); err == nil {
		t.Error("SetWpos() behind the read cursor accepted")
	}
	if err := p.SetWpos(17); err == nil {
		t.Error("SetWpos() past the buffer accepted")
	}

	p.Reset()
	if p.Rpos() != 0 || p.Wpos() != 0 || p.Len() != 0 {
		t.Errorf("Reset() left rpos=%d wpos=%d", p.Rpos(), p.Wpos())
	}
	if &p.Data()[0] != &buf[0] {
		t.Error("Reset() reallocated the buffer")
	}
}

func TestPacket_WriteLimits(t *testing.T) {
	p := NewPacket(0)
	if err := p.WriteString(strings.Repeat("x", 70000)); err == nil {
		t.Error("WriteString() accepted a string longer than the length prefix")
	}
	if err := p.WriteBytes(make([]byte, 70000)); err == nil {
		t.Error("WriteBytes() accepted a slice longer than the length prefix")
	}
	if err := p.WriteAddrPort(netip.MustParseAddrPort("[::1]:80")); err == nil {
		t.Error("WriteAddrPort() accepted IPv6")
	}
	if err := p.WriteAddrPort(netip.MustParseAddrPort("[::ffff:10.0.0.1]:80")); err != nil {
		t.Errorf("WriteAddrPort() rejected a v4-mapped address: %v", err)
	}
	if NewPacket(-5).Cap() != 0 {
		t.Error("NewPacket() with negative capacity")
	}
}
