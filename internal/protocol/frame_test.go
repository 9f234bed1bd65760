package protocol

import (
	"bytes"
	"errors"
	"testing"
)

// rawMessage carries an arbitrary body, for envelope tests.
type rawMessage struct {
	typ  byte
	body []byte
}

func (m *rawMessage) Type() byte     { return m.typ }
func (m *rawMessage) String() string { return "raw" }

func (m *rawMessage) WriteBody(p *Packet) error {
	p.WriteRaw(m.body)
	return nil
}

func (m *rawMessage) ReadBody(p *Packet) error {
	m.body = append([]byte(nil), p.Unread()...)
	return nil
}

func TestEncode_Envelope(t *testing.T) {
	data, err := Encode(&rawMessage{typ: 0x42, body: []byte{0xaa, 0xbb}})
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	want := []byte{FrameSync, FrameVersion, 0x42, 0x02, 0x00, 0xaa, 0xbb}
	var sum byte
	for _, b := range want {
		sum ^= b
	}
	want = append(want, sum)

	if !bytes.Equal(data, want) {
		t.Errorf("Encode() = % x\nwant     % x", data, want)
	}
	if len(data) != 2+Overhead {
		t.Errorf("len = %d, want payload + %d", len(data), Overhead)
	}

	typ, err := PeekType(data)
	if err != nil || typ != 0x42 {
		t.Errorf("PeekType() = %#x, %v", typ, err)
	}
}

func TestEncode_TooLarge(t *testing.T) {
	_, err := Encode(&rawMessage{typ: 1, body: make([]byte, MaxPayloadSize+1)})
	var fe *FrameError
	if !errors.As(err, &fe) || !errors.Is(err, ErrTooLarge) {
		t.Fatalf("Encode() error = %v, want FrameError(ErrTooLarge)", err)
	}

	if _, err := Encode(&rawMessage{typ: 1, body: make([]byte, MaxPayloadSize)}); err != nil {
		t.Errorf("Encode() of a full payload error = %v", err)
	}
}

func TestDecode_Errors(t *testing.T) {
	good, err := Encode(&rawMessage{typ: 0x42, body: []byte{1, 2, 3}})
	if err != nil {
		t.Fatal(err)
	}
	mutate := func(f func([]byte)) []byte {
		b := append([]byte(nil), good...)
		f(b)
		return b
	}

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"empty", nil, ErrShortPacket},
		{"header only", good[:HeaderSize], ErrShortPacket},
		{"truncated payload", good[:len(good)-2], ErrShortPacket},
		{"bad sync", mutate(func(b []byte) { b[0] = 0x00 }), ErrBadSync},
		{"bad version", mutate(func(b []byte) { b[1] = 0x09 }), ErrBadVersion},
		{"bad checksum", mutate(func(b []byte) { b[len(b)-1] ^= 0xff }), ErrBadChecksum},
		{"flipped payload bit", mutate(func(b []byte) { b[HeaderSize] ^= 0x01 }), ErrBadChecksum},
		{"wrong type", mutate(func(b []byte) { b[2] = 0x43; b[len(b)-1] ^= 0x42 ^ 0x43 }), ErrTypeMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Decode(tt.data, &rawMessage{typ: 0x42})
			if !errors.Is(err, tt.want) {
				t.Errorf("Decode() error = %v, want %v", err, tt.want)
			}
			var fe *FrameError
			if !errors.As(err, &fe) {
				t.Errorf("Decode() error %T is not a *FrameError", err)
			}
		})
	}
}

func TestReadFrame_Sequential(t *testing.T) {
	p := NewPacket(0)
	for _, body := range [][]byte{{1}, {2, 2}, {}} {
		if err := WriteFrame(p, &rawMessage{typ: 7, body: body}); err != nil {
			t.Fatal(err)
		}
	}

	for i, want := range [][]byte{{1}, {2, 2}, {}} {
		var m rawMessage
		m.typ = 7
		if err := ReadFrame(p, &m); err != nil {
			t.Fatalf("frame %d: ReadFrame() error = %v", i, err)
		}
		if !bytes.Equal(m.body, want) {
			t.Errorf("frame %d: body = %v, want %v", i, m.body, want)
		}
	}
	if p.Len() != 0 {
		t.Errorf("%d bytes left over", p.Len())
	}
}

func TestDecode_IgnoresTrailingBytes(t *testing.T) {
	data, _ := Encode(&rawMessage{typ: 5, body: []byte{9}})
	data = append(data, 0xde, 0xad)

	m := rawMessage{typ: 5}
	if err := Decode(data, &m); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if !bytes.Equal(m.body, []byte{9}) {
		t.Errorf("body = %v", m.body)
	}
}

func TestFrameError_Message(t *testing.T) {
	e := &FrameError{Kind: ErrBadSync}
	if e.Error() != "frame: bad sync byte" {
		t.Errorf("Error() = %q", e.Error())
	}
	e.Msg = "got 0x00"
	if e.Error() != "frame: bad sync byte: got 0x00" {
		t.Errorf("Error() = %q", e.Error())
	}
}
