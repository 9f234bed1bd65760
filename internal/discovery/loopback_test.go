//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package discovery

import (
	"net/netip"
	"testing"
	"time"

	"github.com/muurk/lanprobe/internal/netsock"
	"github.com/muurk/lanprobe/internal/protocol"
)

// loopbackSocket binds to 127.0.0.1 on a kernel-chosen port whatever it is
// asked for, so tests do not fight over the well-known port.
type loopbackSocket struct {
	*netsock.UDPSocket
}

func (s loopbackSocket) Bind(netip.AddrPort) error {
	return s.UDPSocket.Bind(netip.MustParseAddrPort("127.0.0.1:0"))
}

func loopbackOpener() (Socket, error) {
	s, err := netsock.Open()
	return loopbackSocket{s}, err
}

func TestEndpoint_LoopbackRoundTrip(t *testing.T) {
	ep, err := New(Config{ReceiveTimeout: 2 * time.Second, MaxAttempts: 1}, WithOpener(loopbackOpener))
	if err != nil {
		t.Skipf("loopback endpoint unavailable: %v", err)
	}
	defer ep.Close()

	peer, err := netsock.Open()
	if err != nil {
		t.Skipf("UDP sockets unavailable: %v", err)
	}
	defer peer.Close()
	if err := peer.Bind(netip.MustParseAddrPort("127.0.0.1:0")); err != nil {
		t.Skipf("cannot bind loopback: %v", err)
	}

	want := protocol.NewQuery(protocol.ComponentCellApp, 501, "bob", 40001)
	data, err := protocol.Encode(want)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if err := peer.SendTo(data, ep.LocalAddr()); err != nil {
		t.Fatalf("SendTo(%s) error = %v", ep.LocalAddr(), err)
	}

	var (
		got  protocol.Query
		from netip.AddrPort
	)
	if err := ep.ReceiveReply(&got, &from); err != nil {
		t.Fatalf("ReceiveReply() error = %v", err)
	}
	if got != *want {
		t.Errorf("received %s, want %s", &got, want)
	}
	if from != peer.LocalAddr() {
		t.Errorf("from = %s, want %s", from, peer.LocalAddr())
	}
	if ep.LastReceived() != len(data) {
		t.Errorf("LastReceived() = %d, want %d", ep.LastReceived(), len(data))
	}
}

func TestEndpoint_LoopbackTimeout(t *testing.T) {
	ep, err := New(Config{ReceiveTimeout: 20 * time.Millisecond, MaxAttempts: 1}, WithOpener(loopbackOpener))
	if err != nil {
		t.Skipf("loopback endpoint unavailable: %v", err)
	}
	defer ep.Close()

	if err := ep.ReceiveReply(nil, nil); !IsFatal(err) {
		t.Errorf("ReceiveReply() error = %v, want fatal after two empty waits", err)
	}
}
