//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package netsock

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// UDPSocket is an IPv4 datagram socket driven directly through its file
// descriptor. The descriptor is non-blocking; Wait is the only call that
// suspends the caller.
//
// UDPSocket is not safe for concurrent use.
type UDPSocket struct {
	fd    int
	bound bool
	local netip.AddrPort
}

// Open creates an unbound IPv4 UDP socket.
func Open() (*UDPSocket, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_DGRAM, unix.IPPROTO_UDP)
	if err != nil {
		return &UDPSocket{fd: -1}, os.NewSyscallError("socket", err)
	}
	unix.CloseOnExec(fd)
	if err := unix.SetNonblock(fd, true); err != nil {
		_ = unix.Close(fd)
		return &UDPSocket{fd: -1}, os.NewSyscallError("setnonblock", err)
	}
	return &UDPSocket{fd: fd}, nil
}

// Valid reports whether the socket is open.
func (s *UDPSocket) Valid() bool {
	return s != nil && s.fd >= 0
}

// Bind attaches the socket to a local address. Rebinding is not supported.
func (s *UDPSocket) Bind(addr netip.AddrPort) error {
	if !s.Valid() {
		return ErrClosed
	}
	if s.bound {
		return ErrAlreadyBound
	}
	a4, err := checkIPv4(addr)
	if err != nil {
		return err
	}

	if err := unix.Bind(s.fd, &unix.SockaddrInet4{Port: int(addr.Port()), Addr: a4}); err != nil {
		return os.NewSyscallError("bind", err)
	}

	s.bound = true
	s.local = s.sockname()
	if !s.local.IsValid() {
		s.local = addr
	}
	return nil
}

// SetBroadcast toggles SO_BROADCAST.
func (s *UDPSocket) SetBroadcast(on bool) error {
	if !s.Valid() {
		return ErrClosed
	}
	v := 0
	if on {
		v = 1
	}
	if err := unix.SetsockoptInt(s.fd, unix.SOL_SOCKET, unix.SO_BROADCAST, v); err != nil {
		return os.NewSyscallError("setsockopt", err)
	}
	return nil
}

// SendTo sends one datagram without blocking. A full send buffer is reported
// as an error rather than waited out.
func (s *UDPSocket) SendTo(b []byte, to netip.AddrPort) error {
	if !s.Valid() {
		return ErrClosed
	}
	a4, err := checkIPv4(to)
	if err != nil {
		return err
	}
	for {
		err = unix.Sendto(s.fd, b, 0, &unix.SockaddrInet4{Port: int(to.Port()), Addr: a4})
		if !errors.Is(err, unix.EINTR) {
			break
		}
	}
	if err != nil {
		return os.NewSyscallError("sendto", err)
	}
	return nil
}

// Wait blocks until a datagram is readable or timeout elapses, in which case
// it returns ErrTimeout. Nothing is consumed from the socket.
func (s *UDPSocket) Wait(timeout time.Duration) error {
	if !s.Valid() {
		return ErrClosed
	}

	deadline := time.Now().Add(timeout)
	fds := []unix.PollFd{{Fd: int32(s.fd), Events: unix.POLLIN}}

	for {
		remaining := time.Until(deadline)
		if remaining < 0 {
			remaining = 0
		}
		ms := int((remaining + time.Millisecond - 1) / time.Millisecond)

		n, err := unix.Poll(fds, ms)
		if errors.Is(err, unix.EINTR) {
			// The Go runtime preempts with signals; resume with what is left.
			continue
		}
		if err != nil {
			return os.NewSyscallError("poll", err)
		}
		if n == 0 {
			return ErrTimeout
		}

		re := fds[0].Revents
		if re&unix.POLLNVAL != 0 {
			return ErrClosed
		}
		// POLLERR means a pending socket error (e.g. ICMP unreachable); the
		// following read reports it.
		return nil
	}
}

// RecvFrom reads one datagram into b. Datagrams longer than b are truncated.
func (s *UDPSocket) RecvFrom(b []byte) (int, netip.AddrPort, error) {
	if !s.Valid() {
		return 0, netip.AddrPort{}, ErrClosed
	}

	var (
		n    int
		from unix.Sockaddr
		err  error
	)
	for {
		n, from, err = unix.Recvfrom(s.fd, b, 0)
		if !errors.Is(err, unix.EINTR) {
			break
		}
	}
	if err != nil {
		return 0, netip.AddrPort{}, os.NewSyscallError("recvfrom", err)
	}

	return n, addrPortOf(from), nil
}

// LocalAddr returns the bound address, or the kernel-assigned one for a
// socket that has sent without binding.
func (s *UDPSocket) LocalAddr() netip.AddrPort {
	if !s.Valid() {
		return netip.AddrPort{}
	}
	if s.bound {
		return s.local
	}
	return s.sockname()
}

// Close releases the descriptor. Calling Close again is a no-op.
func (s *UDPSocket) Close() error {
	if !s.Valid() {
		return nil
	}
	fd := s.fd
	s.fd = -1
	s.bound = false
	if err := unix.Close(fd); err != nil {
		return fmt.Errorf("close fd %d: %w", fd, os.NewSyscallError("close", err))
	}
	return nil
}

func (s *UDPSocket) sockname() netip.AddrPort {
	sa, err := unix.Getsockname(s.fd)
	if err != nil {
		return netip.AddrPort{}
	}
	return addrPortOf(sa)
}

func addrPortOf(sa unix.Sockaddr) netip.AddrPort {
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		return netip.AddrPortFrom(netip.AddrFrom4(a.Addr), uint16(a.Port))
	case *unix.SockaddrInet6:
		return netip.AddrPortFrom(netip.AddrFrom16(a.Addr).Unmap(), uint16(a.Port))
	default:
		return netip.AddrPort{}
	}
}
