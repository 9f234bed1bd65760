package discovery

import (
	"errors"
	"net/netip"
	"time"

	"github.com/muurk/lanprobe/internal/netsock"
)

var (
	errAddrInUse = errors.New("bind: address already in use")
	errOpen      = errors.New("socket: too many open files")
)

type datagram struct {
	data []byte
	addr netip.AddrPort
}

// fakeSocket is a scripted Socket. Wait results come from waits, then
// netsock.ErrTimeout forever. Each RecvFrom runs the next entry of reads.
type fakeSocket struct {
	closed bool
	calls  []string

	bindErrs  []error // consumed in order; the last one repeats
	bindCalls int
	bound     netip.AddrPort

	broadcastErr error
	broadcastOn  bool

	sendErr error
	sent    []datagram

	waits        []error
	waitCalls    int
	waitTimeouts []time.Duration

	reads     []func() (datagram, error)
	readCalls int
	bufs      [][]byte

	closeCalls int
}

func (s *fakeSocket) Valid() bool { return !s.closed }

func (s *fakeSocket) Bind(addr netip.AddrPort) error {
	s.calls = append(s.calls, "Bind")
	s.bindCalls++
	if len(s.bindErrs) > 0 {
		err := s.bindErrs[0]
		if len(s.bindErrs) > 1 {
			s.bindErrs = s.bindErrs[1:]
		}
		if err != nil {
			return err
		}
	}
	s.bound = addr
	return nil
}

func (s *fakeSocket) SetBroadcast(on bool) error {
	s.calls = append(s.calls, "SetBroadcast")
	if s.broadcastErr != nil {
		return s.broadcastErr
	}
	s.broadcastOn = on
	return nil
}

func (s *fakeSocket) SendTo(b []byte, to netip.AddrPort) error {
	s.calls = append(s.calls, "SendTo")
	if s.sendErr != nil {
		return s.sendErr
	}
	s.sent = append(s.sent, datagram{data: append([]byte(nil), b...), addr: to})
	return nil
}

func (s *fakeSocket) Wait(timeout time.Duration) error {
	s.calls = append(s.calls, "Wait")
	s.waitCalls++
	s.waitTimeouts = append(s.waitTimeouts, timeout)
	if s.closed {
		return netsock.ErrClosed
	}
	if len(s.waits) == 0 {
		return netsock.ErrTimeout
	}
	err := s.waits[0]
	s.waits = s.waits[1:]
	return err
}

func (s *fakeSocket) RecvFrom(b []byte) (int, netip.AddrPort, error) {
	s.calls = append(s.calls, "RecvFrom")
	s.bufs = append(s.bufs, b)
	if s.readCalls >= len(s.reads) {
		return 0, netip.AddrPort{}, errors.New("recvfrom: no data scripted")
	}
	d, err := s.reads[s.readCalls]()
	s.readCalls++
	if err != nil {
		return 0, netip.AddrPort{}, err
	}
	n := copy(b, d.data)
	return n, d.addr, nil
}

func (s *fakeSocket) LocalAddr() netip.AddrPort { return s.bound }

func (s *fakeSocket) Close() error {
	s.closeCalls++
	s.closed = true
	return nil
}

// timeouts returns n netsock.ErrTimeout wait results.
func timeouts(n int) []error {
	out := make([]error, n)
	for i := range out {
		out[i] = netsock.ErrTimeout
	}
	return out
}

func reply(data []byte, from netip.AddrPort) func() (datagram, error) {
	return func() (datagram, error) {
		return datagram{data: data, addr: from}, nil
	}
}

func readFailure(err error) func() (datagram, error) {
	return func() (datagram, error) {
		return datagram{}, err
	}
}

// openerOf hands out socks in order. A nil entry is a failed open.
func openerOf(socks ...Socket) Opener {
	i := 0
	return func() (Socket, error) {
		if i >= len(socks) {
			return nil, errOpen
		}
		s := socks[i]
		i++
		if s == nil {
			return nil, errOpen
		}
		return s, nil
	}
}

type fakeClock struct {
	sleeps []time.Duration
}

func (c *fakeClock) Sleep(d time.Duration) { c.sleeps = append(c.sleeps, d) }

type countingDispatcher struct {
	breaks int
}

func (d *countingDispatcher) BreakProcessing() { d.breaks++ }
