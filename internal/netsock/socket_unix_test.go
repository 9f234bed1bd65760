//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package netsock

import (
	"bytes"
	"errors"
	"net/netip"
	"testing"
	"time"
)

var loopback = netip.MustParseAddr("127.0.0.1")

func openBound(t *testing.T) *UDPSocket {
	t.Helper()
	s, err := Open()
	if err != nil {
		t.Skipf("UDP sockets unavailable: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	if err := s.Bind(netip.AddrPortFrom(loopback, 0)); err != nil {
		t.Skipf("cannot bind loopback: %v", err)
	}
	return s
}

func TestUDPSocket_SendWaitRecv(t *testing.T) {
	rx := openBound(t)
	tx := openBound(t)

	to := rx.LocalAddr()
	if to.Port() == 0 {
		t.Fatalf("LocalAddr() = %s, want kernel-assigned port", to)
	}

	payload := []byte("lanprobe")
	if err := tx.SendTo(payload, to); err != nil {
		t.Fatalf("SendTo() error = %v", err)
	}
	if err := rx.Wait(2 * time.Second); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}

	buf := make([]byte, 64)
	n, from, err := rx.RecvFrom(buf)
	if err != nil {
		t.Fatalf("RecvFrom() error = %v", err)
	}
	if !bytes.Equal(buf[:n], payload) {
		t.Errorf("RecvFrom() = %q, want %q", buf[:n], payload)
	}
	if from != tx.LocalAddr() {
		t.Errorf("RecvFrom() sender = %s, want %s", from, tx.LocalAddr())
	}
}

func TestUDPSocket_WaitTimeout(t *testing.T) {
	rx := openBound(t)

	start := time.Now()
	err := rx.Wait(20 * time.Millisecond)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("Wait() error = %v, want ErrTimeout", err)
	}
	if elapsed := time.Since(start); elapsed < 15*time.Millisecond {
		t.Errorf("Wait() returned after %v, expected to block for the timeout", elapsed)
	}
}

func TestUDPSocket_RecvFromNothingPending(t *testing.T) {
	rx := openBound(t)

	if _, _, err := rx.RecvFrom(make([]byte, 16)); err == nil {
		t.Error("RecvFrom() on an empty non-blocking socket should fail")
	}
}

func TestUDPSocket_Truncates(t *testing.T) {
	rx := openBound(t)
	tx := openBound(t)

	if err := tx.SendTo(bytes.Repeat([]byte{0xab}, 100), rx.LocalAddr()); err != nil {
		t.Fatalf("SendTo() error = %v", err)
	}
	if err := rx.Wait(2 * time.Second); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	n, _, err := rx.RecvFrom(make([]byte, 10))
	if err != nil {
		t.Fatalf("RecvFrom() error = %v", err)
	}
	if n != 10 {
		t.Errorf("RecvFrom() n = %d, want 10", n)
	}
}

func TestUDPSocket_BindTwice(t *testing.T) {
	s := openBound(t)
	if err := s.Bind(netip.AddrPortFrom(loopback, 0)); !errors.Is(err, ErrAlreadyBound) {
		t.Errorf("second Bind() error = %v, want ErrAlreadyBound", err)
	}
}

func TestUDPSocket_BindInUse(t *testing.T) {
	first := openBound(t)

	second, err := Open()
	if err != nil {
		t.Skipf("UDP sockets unavailable: %v", err)
	}
	defer second.Close()

	if err := second.Bind(first.LocalAddr()); err == nil {
		t.Error("Bind() to a port already in use should fail")
	}
	if second.bound {
		t.Error("failed Bind() must leave the socket unbound")
	}
}

func TestUDPSocket_SetBroadcast(t *testing.T) {
	s, err := Open()
	if err != nil {
		t.Skipf("UDP sockets unavailable: %v", err)
	}
	defer s.Close()

	if err := s.SetBroadcast(true); err != nil {
		t.Errorf("SetBroadcast(true) error = %v", err)
	}
}

func TestUDPSocket_SendToRejectsIPv6(t *testing.T) {
	s, err := Open()
	if err != nil {
		t.Skipf("UDP sockets unavailable: %v", err)
	}
	defer s.Close()

	err = s.SendTo([]byte{1}, netip.MustParseAddrPort("[::1]:9"))
	if !errors.Is(err, ErrNotIPv4) {
		t.Errorf("SendTo(ipv6) error = %v, want ErrNotIPv4", err)
	}
}

func TestUDPSocket_CloseIdempotent(t *testing.T) {
	s, err := Open()
	if err != nil {
		t.Skipf("UDP sockets unavailable: %v", err)
	}
	if !s.Valid() {
		t.Fatal("freshly opened socket should be valid")
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if s.Valid() {
		t.Error("closed socket reports valid")
	}

	ops := map[string]error{
		"Bind":         s.Bind(Wildcard(0)),
		"SetBroadcast": s.SetBroadcast(true),
		"SendTo":       s.SendTo(nil, netip.AddrPortFrom(loopback, 9)),
		"Wait":         s.Wait(time.Millisecond),
	}
	for name, err := range ops {
		if !errors.Is(err, ErrClosed) {
			t.Errorf("%s on closed socket error = %v, want ErrClosed", name, err)
		}
	}
	if got := s.LocalAddr(); got.IsValid() {
		t.Errorf("LocalAddr() on closed socket = %s, want zero", got)
	}
}

func TestUDPSocket_NilIsInvalid(t *testing.T) {
	var s *UDPSocket
	if s.Valid() {
		t.Error("nil socket reports valid")
	}
}
