//go:build !(linux || darwin || freebsd || netbsd || openbsd || dragonfly)

package netsock

import (
	"errors"
	"net"
	"net/netip"
	"os"
	"time"
)

// maxDatagram is large enough for any IPv4 UDP payload.
const maxDatagram = 65535

// UDPSocket is the portable fallback built on *net.UDPConn. The net package
// cannot create an unbound socket, so the connection is created lazily by Bind
// or by the first call that needs one.
//
// Wait cannot peek through the net package; it reads the next datagram into
// a private slot that the following RecvFrom hands out.
//
// UDPSocket is not safe for concurrent use.
type UDPSocket struct {
	open bool
	conn *net.UDPConn

	slot        []byte
	slotN       int
	slotFrom    netip.AddrPort
	slotErr     error
	slotPending bool
}

// Open creates an unbound IPv4 UDP socket.
func Open() (*UDPSocket, error) {
	return &UDPSocket{open: true}, nil
}

// Valid reports whether the socket is open.
func (s *UDPSocket) Valid() bool {
	return s != nil && s.open
}

// Bind attaches the socket to a local address. Rebinding is not supported.
func (s *UDPSocket) Bind(addr netip.AddrPort) error {
	if !s.Valid() {
		return ErrClosed
	}
	if s.conn != nil {
		return ErrAlreadyBound
	}
	if _, err := checkIPv4(addr); err != nil {
		return err
	}
	conn, err := net.ListenUDP("udp4", net.UDPAddrFromAddrPort(addr))
	if err != nil {
		return err
	}
	s.conn = conn
	return nil
}

func (s *UDPSocket) ensureConn() error {
	if !s.Valid() {
		return ErrClosed
	}
	if s.conn != nil {
		return nil
	}
	return s.Bind(Wildcard(0))
}

// SetBroadcast toggles SO_BROADCAST. The net package already enables it on
// every UDP socket, so only turning it off is unsupported here.
func (s *UDPSocket) SetBroadcast(on bool) error {
	if err := s.ensureConn(); err != nil {
		return err
	}
	if !on {
		return errors.New("netsock: disabling SO_BROADCAST is not supported on this platform")
	}
	return nil
}

// SendTo sends one datagram.
func (s *UDPSocket) SendTo(b []byte, to netip.AddrPort) error {
	if err := s.ensureConn(); err != nil {
		return err
	}
	if _, err := checkIPv4(to); err != nil {
		return err
	}
	_, err := s.conn.WriteToUDPAddrPort(b, to)
	return err
}

// Wait blocks until a datagram is readable or timeout elapses, in which case
// it returns ErrTimeout.
func (s *UDPSocket) Wait(timeout time.Duration) error {
	if err := s.ensureConn(); err != nil {
		return err
	}
	if s.slotPending {
		return nil
	}
	if s.slot == nil {
		s.slot = make([]byte, maxDatagram)
	}

	if err := s.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return err
	}
	n, from, err := s.conn.ReadFromUDPAddrPort(s.slot)
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return ErrTimeout
	}
	if errors.Is(err, net.ErrClosed) {
		return ErrClosed
	}

	// Other read errors are parked for RecvFrom, matching the unix
	// implementation where they surface on the read rather than the wait.
	s.slotN, s.slotFrom, s.slotErr = n, unmapAddrPort(from), err
	s.slotPending = true
	return nil
}

// RecvFrom reads one datagram into b. Datagrams longer than b are truncated.
func (s *UDPSocket) RecvFrom(b []byte) (int, netip.AddrPort, error) {
	if err := s.ensureConn(); err != nil {
		return 0, netip.AddrPort{}, err
	}
	if s.slotPending {
		s.slotPending = false
		if s.slotErr != nil {
			return 0, netip.AddrPort{}, s.slotErr
		}
		n := copy(b, s.slot[:s.slotN])
		return n, s.slotFrom, nil
	}

	if err := s.conn.SetReadDeadline(time.Time{}); err != nil {
		return 0, netip.AddrPort{}, err
	}
	n, from, err := s.conn.ReadFromUDPAddrPort(b)
	if err != nil {
		return 0, netip.AddrPort{}, err
	}
	return n, unmapAddrPort(from), nil
}

// LocalAddr returns the bound address.
func (s *UDPSocket) LocalAddr() netip.AddrPort {
	if !s.Valid() || s.conn == nil {
		return netip.AddrPort{}
	}
	if ua, ok := s.conn.LocalAddr().(*net.UDPAddr); ok {
		return unmapAddrPort(ua.AddrPort())
	}
	return netip.AddrPort{}
}

// Close releases the connection. Calling Close again is a no-op.
func (s *UDPSocket) Close() error {
	if !s.Valid() {
		return nil
	}
	s.open = false
	s.slotPending = false
	if s.conn == nil {
		return nil
	}
	conn := s.conn
	s.conn = nil
	return conn.Close()
}

func unmapAddrPort(ap netip.AddrPort) netip.AddrPort {
	return netip.AddrPortFrom(ap.Addr().Unmap(), ap.Port())
}
