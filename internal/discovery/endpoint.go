package discovery

import (
	"errors"
	"fmt"
	"net/netip"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/lanprobe/internal/logging"
	"github.com/muurk/lanprobe/internal/netsock"
	"github.com/muurk/lanprobe/internal/protocol"
)

// Endpoint owns a bound listener socket and a broadcast sender socket. It
// broadcasts one discovery datagram and then waits for a single reply.
//
// An Endpoint is meant to be driven by one goroutine:
// New, Compose, Broadcast, ReceiveReply, Close. ReceiveReply refuses to run
// concurrently with itself; nothing else is synchronized.
type Endpoint struct {
	cfg        Config
	open       Opener
	clock      Clock
	dispatcher Dispatcher
	observer   Observer

	listener    Socket
	broadcaster Socket
	// ready is false when either socket failed to open
	ready bool
	bound bool
	local netip.AddrPort

	broadcastIP netip.Addr
	dest        netip.AddrPort
	outgoing    []byte

	// pkt is reused by every read; receiving guards it
	pkt          *protocol.Packet
	receiving    atomic.Bool
	lastReceived int
}

type receiveState int

const (
	stateWait receiveState = iota
	stateRead
	stateDone
	stateFailed
)

// New opens both sockets, binds the listener to 0.0.0.0:cfg.BindPort and
// switches the sender to broadcast mode.
//
// The returned Endpoint is never nil. The error is one of:
//   - *FatalError: a socket could not be opened or broadcast could not be
//     enabled. The dispatcher, if any, has been told to stop.
//   - *BindError: the port stayed busy for every attempt. The endpoint is
//     unbound; ReceiveReply returns ErrNotBound.
func New(cfg Config, opts ...Option) (*Endpoint, error) {
	e := &Endpoint{
		cfg:   cfg.withDefaults(),
		open:  openUDP,
		clock: realClock{},
	}
	for _, opt := range opts {
		opt(e)
	}

	e.pkt = protocol.NewPacket(e.cfg.RecvWindow)
	e.broadcastIP = resolveBroadcast(e.cfg.Interface)

	var lerr, berr error
	e.listener, lerr = e.openSocket()
	e.broadcaster, berr = e.openSocket()
	if lerr != nil || berr != nil {
		err := errors.Join(lerr, berr)
		logging.Error("Failed to open discovery sockets",
			zap.Bool("listener_ok", lerr == nil),
			zap.Bool("broadcaster_ok", berr == nil),
			zap.Error(err))
		return e, e.fatal("open", err)
	}
	e.ready = true

	if err := e.bind(); err != nil {
		return e, err
	}

	if err := e.broadcaster.SetBroadcast(true); err != nil {
		logging.Error("Failed to enable broadcast on sender socket", zap.Error(err))
		return e, e.fatal("setbroadcast", err)
	}

	return e, nil
}

func (e *Endpoint) openSocket() (Socket, error) {
	s, err := e.open()
	if s == nil {
		s = deadSocket{}
	}
	if err == nil && !s.Valid() {
		err = ErrNotInitialized
	}
	return s, err
}

func (e *Endpoint) bind() error {
	addr := netsock.Wildcard(e.cfg.BindPort)

	var err error
	for attempt := 1; attempt <= e.cfg.BindAttempts; attempt++ {
		if err = e.listener.Bind(addr); err == nil {
			e.bound = true
			e.local = e.listener.LocalAddr()
			if !e.local.IsValid() {
				e.local = addr
			}
			logging.Info("Discovery listener bound",
				zap.Stringer("addr", e.local),
				zap.Int("attempt", attempt))
			e.emit(Event{Kind: EventBound, Attempt: attempt, MaxAttempts: e.cfg.BindAttempts, Addr: e.local})
			return nil
		}

		logging.Warn("Bind failed",
			zap.Uint16("port", e.cfg.BindPort),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", e.cfg.BindAttempts),
			zap.Error(err))
		e.emit(Event{Kind: EventBindFailed, Attempt: attempt, MaxAttempts: e.cfg.BindAttempts, Addr: addr, Err: err})

		if attempt < e.cfg.BindAttempts {
			e.clock.Sleep(e.cfg.BindRetryDelay)
		}
	}

	logging.Warn("Giving up on bind, listener left unbound",
		zap.Uint16("port", e.cfg.BindPort),
		zap.Int("attempts", e.cfg.BindAttempts))
	return &BindError{Port: e.cfg.BindPort, Attempts: e.cfg.BindAttempts, Err: err}
}

// Compose encodes msg as the datagram the next Broadcast sends.
func (e *Endpoint) Compose(msg protocol.Message) error {
	data, err := protocol.Encode(msg)
	if err != nil {
		return fmt.Errorf("failed to compose %s: %w", msg, err)
	}
	e.outgoing = data
	return nil
}

// Broadcast sends the composed datagram to the subnet broadcast address on
// port, or on DefaultBroadcastPort when port is 0. The send is attempted once.
func (e *Endpoint) Broadcast(port uint16) error {
	if !e.ready || !e.broadcaster.Valid() {
		return ErrNotInitialized
	}
	if port == 0 {
		port = DefaultBroadcastPort
	}

	e.dest = netip.AddrPortFrom(e.broadcastIP, port)
	if err := e.broadcaster.SendTo(e.outgoing, e.dest); err != nil {
		logging.Warn("Broadcast send failed", zap.Stringer("dest", e.dest), zap.Error(err))
		return &SendError{Dest: e.dest, Err: err}
	}

	logging.LogDatagram(logging.DirSend, e.dest, e.outgoing)
	e.emit(Event{Kind: EventBroadcast, Addr: e.dest, Bytes: len(e.outgoing)})
	return nil
}

// ReceiveReply blocks until one datagram arrives on the listener and decodes
// it into msg. The sender is stored in *from. Either argument may be nil; with
// a nil msg the datagram is read and discarded.
//
// Each wait lasts ReceiveTimeout. After MaxAttempts timed-out waits, one more
// timeout ends the call with a *FatalError wrapping ErrAttemptsExhausted. A
// failed read goes back to waiting without counting as an attempt. A failed
// wait ends the call with a *ReceiveError.
func (e *Endpoint) ReceiveReply(msg protocol.Message, from *netip.AddrPort) error {
	if !e.ready || !e.listener.Valid() {
		return ErrNotInitialized
	}
	if !e.bound {
		return ErrNotBound
	}
	if !e.receiving.CompareAndSwap(false, true) {
		return ErrReceiveBusy
	}
	defer e.receiving.Store(false)

	if from == nil {
		from = new(netip.AddrPort)
	}

	var (
		state   = stateWait
		attempt int
		err     error
	)
	for {
		switch state {
		case stateWait:
			state, err = e.wait(&attempt)
		case stateRead:
			state, err = e.read(msg, from)
		case stateDone:
			return nil
		case stateFailed:
			return err
		}
	}
}

func (e *Endpoint) wait(attempt *int) (receiveState, error) {
	err := e.listener.Wait(e.cfg.ReceiveTimeout)
	switch {
	case err == nil:
		return stateRead, nil

	case errors.Is(err, netsock.ErrTimeout):
		*attempt++
		e.emit(Event{Kind: EventWaitTimeout, Attempt: *attempt, MaxAttempts: e.cfg.MaxAttempts})
		if *attempt > e.cfg.MaxAttempts {
			logging.Error("No discovery reply, giving up",
				zap.Int("attempts", *attempt),
				zap.Duration("waited", time.Duration(*attempt)*e.cfg.ReceiveTimeout))
			e.emit(Event{Kind: EventExhausted, Attempt: *attempt, MaxAttempts: e.cfg.MaxAttempts})
			return stateFailed, e.fatal("receive", ErrAttemptsExhausted)
		}
		logging.Info("No discovery reply yet, waiting again",
			zap.Int("attempt", *attempt),
			zap.Int("max_attempts", e.cfg.MaxAttempts),
			zap.Duration("timeout", e.cfg.ReceiveTimeout))
		return stateWait, nil

	default:
		logging.Error("Wait on discovery listener failed", zap.Error(err))
		return stateFailed, &ReceiveError{Op: "wait", Err: err}
	}
}

func (e *Endpoint) read(msg protocol.Message, from *netip.AddrPort) (receiveState, error) {
	e.pkt.Reset()
	buf := e.pkt.Data()
	if len(buf) > e.cfg.RecvWindow {
		buf = buf[:e.cfg.RecvWindow]
	}

	n, peer, err := e.listener.RecvFrom(buf)
	if err != nil {
		logging.Warn("Read on discovery listener failed, waiting again", zap.Error(err))
		e.emit(Event{Kind: EventReadError, Err: err})
		return stateWait, nil
	}
	if err := e.pkt.SetWpos(n); err != nil {
		return stateFailed, &ReceiveError{Op: "read", Err: err}
	}

	e.lastReceived = n
	*from = peer
	logging.LogDatagram(logging.DirRecv, peer, e.pkt.Bytes())
	e.emit(Event{Kind: EventReceived, Addr: peer, Bytes: n})

	if msg == nil {
		return stateDone, nil
	}
	if err := protocol.ReadFrame(e.pkt, msg); err != nil {
		logging.Warn("Discarding undecodable reply", zap.Stringer("from", peer), zap.Int("bytes", n), zap.Error(err))
		return stateFailed, &DecodeError{From: peer, Len: n, Err: err}
	}
	logging.Debug("Decoded discovery reply", zap.Stringer("from", peer), zap.Stringer("msg", msg))
	return stateDone, nil
}

// Close releases both sockets. It may be called any number of times.
func (e *Endpoint) Close() error {
	var errs []error
	for _, s := range []Socket{e.listener, e.broadcaster} {
		if s == nil {
			continue
		}
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	e.bound = false
	return errors.Join(errs...)
}

// LocalAddr returns the listener's bound address, or the zero value when
// unbound.
func (e *Endpoint) LocalAddr() netip.AddrPort { return e.local }

// Bound reports whether the listener holds its port.
func (e *Endpoint) Bound() bool { return e.bound }

// ListenerValid reports whether the listener socket is open.
func (e *Endpoint) ListenerValid() bool { return e.listener != nil && e.listener.Valid() }

// BroadcasterValid reports whether the sender socket is open.
func (e *Endpoint) BroadcasterValid() bool { return e.broadcaster != nil && e.broadcaster.Valid() }

// LastReceived returns the length of the last datagram read.
func (e *Endpoint) LastReceived() int { return e.lastReceived }

// BroadcastAddr returns the destination of the last Broadcast.
func (e *Endpoint) BroadcastAddr() netip.AddrPort { return e.dest }

// BroadcastIP returns the address broadcasts are sent to.
func (e *Endpoint) BroadcastIP() netip.Addr { return e.broadcastIP }

// Config returns the effective configuration, defaults applied.
func (e *Endpoint) Config() Config { return e.cfg }

func (e *Endpoint) fatal(op string, err error) error {
	if e.dispatcher != nil {
		e.dispatcher.BreakProcessing()
	}
	return &FatalError{Op: op, Err: err}
}

func (e *Endpoint) emit(ev Event) {
	if e.observer != nil {
		e.observer(ev)
	}
}

func resolveBroadcast(iface string) netip.Addr {
	if iface == "" {
		return netsock.LimitedBroadcast
	}
	addr, err := netsock.BroadcastAddr(iface)
	if err != nil {
		logging.Warn("Cannot resolve interface broadcast address, using 255.255.255.255",
			zap.String("interface", iface), zap.Error(err))
		return netsock.LimitedBroadcast
	}
	return addr
}

// deadSocket stands in for a socket an Opener failed to return.
type deadSocket struct{}

func (deadSocket) Valid() bool { return false }
func (deadSocket) Bind(netip.AddrPort) error { return netsock.ErrClosed }
func (deadSocket) SetBroadcast(bool) error { return netsock.ErrClosed }
func (deadSocket) SendTo([]byte, netip.AddrPort) error { return netsock.ErrClosed }
func (deadSocket) Wait(time.Duration) error { return netsock.ErrClosed }
func (deadSocket) RecvFrom([]byte) (int, netip.AddrPort, error) { return 0, netip.AddrPort{}, netsock.ErrClosed }
func (deadSocket) LocalAddr() netip.AddrPort { return netip.AddrPort{} }
func (deadSocket) Close() error { return nil }
