package discovery

import (
	"net/netip"
	"time"

	"github.com/muurk/lanprobe/internal/netsock"
)

const (
	// DefaultBroadcastPort is where peers listen for discovery queries
	DefaultBroadcastPort = 20086

	// DefaultBindPort is where a prober listens for replies
	DefaultBindPort = 20088

	// DefaultRecvWindow fits one unfragmented datagram on Ethernet
	DefaultRecvWindow = 1472

	// DefaultReceiveTimeout bounds a single wait for a reply
	DefaultReceiveTimeout = 10 * time.Second

	// DefaultMaxAttempts is how many timed-out waits are tolerated. The wait
	// after the last tolerated one is fatal.
	DefaultMaxAttempts = 15

	// DefaultBindAttempts counts the first bind plus its retries
	DefaultBindAttempts = 6

	// DefaultBindRetryDelay is the pause between bind attempts
	DefaultBindRetryDelay = 1 * time.Second
)

// Config holds endpoint construction parameters. Zero fields take defaults.
type Config struct {
	// Interface names the network interface whose directed broadcast address
	// is used. Empty means 255.255.255.255.
	Interface string

	// BindPort is the listener port (default: 20088)
	BindPort uint16

	// RecvWindow caps the size of a received datagram (default: 1472)
	RecvWindow int

	// ReceiveTimeout is the per-attempt wait (default: 10s)
	ReceiveTimeout time.Duration

	// MaxAttempts is the number of timed-out waits tolerated (default: 15)
	MaxAttempts int

	// BindAttempts is the total number of bind attempts (default: 6)
	BindAttempts int

	// BindRetryDelay is the pause between bind attempts (default: 1s)
	BindRetryDelay time.Duration
}

// DefaultConfig returns a Config with every default filled in.
func DefaultConfig() Config {
	return Config{}.withDefaults()
}

func (c Config) withDefaults() Config {
	if c.BindPort == 0 {
		c.BindPort = DefaultBindPort
	}
	if c.RecvWindow <= 0 {
		c.RecvWindow = DefaultRecvWindow
	}
	if c.ReceiveTimeout <= 0 {
		c.ReceiveTimeout = DefaultReceiveTimeout
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.BindAttempts <= 0 {
		c.BindAttempts = DefaultBindAttempts
	}
	if c.BindRetryDelay <= 0 {
		c.BindRetryDelay = DefaultBindRetryDelay
	}
	return c
}

// Socket is the datagram primitive the endpoint drives. *netsock.UDPSocket
// implements it.
type Socket interface {
	Valid() bool
	Bind(addr netip.AddrPort) error
	SetBroadcast(on bool) error
	SendTo(b []byte, to netip.AddrPort) error
	// Wait blocks until a datagram is readable. It returns netsock.ErrTimeout
	// when none arrived within timeout.
	Wait(timeout time.Duration) error
	RecvFrom(b []byte) (int, netip.AddrPort, error)
	LocalAddr() netip.AddrPort
	Close() error
}

// Opener creates an unbound socket. On failure it should still return a
// socket, one whose Valid reports false.
type Opener func() (Socket, error)

func openUDP() (Socket, error) {
	return netsock.Open()
}

// Clock supplies the pause between bind attempts.
type Clock interface {
	Sleep(d time.Duration)
}

type realClock struct{}

func (realClock) Sleep(d time.Duration) { time.Sleep(d) }

// Dispatcher is the owner of the process main loop. BreakProcessing asks it
// to stop; the endpoint calls it once per fatal failure.
type Dispatcher interface {
	BreakProcessing()
}

// EventKind identifies an endpoint progress event
type EventKind int

const (
	EventBindFailed EventKind = iota
	EventBound
	EventBroadcast
	EventWaitTimeout
	EventReadError
	EventReceived
	EventExhausted
)

// String returns a short name for the event kind
func (k EventKind) String() string {
	switch k {
	case EventBindFailed:
		return "bind-failed"
	case EventBound:
		return "bound"
	case EventBroadcast:
		return "broadcast"
	case EventWaitTimeout:
		return "wait-timeout"
	case EventReadError:
		return "read-error"
	case EventReceived:
		return "received"
	case EventExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// Event describes one step of bind, broadcast or receive progress.
type Event struct {
	Kind EventKind

	// Attempt is the 1-based bind attempt or timed-out wait count
	Attempt int
	// MaxAttempts is the ceiling Attempt counts towards
	MaxAttempts int

	// Addr is the bound address, broadcast destination or sender
	Addr netip.AddrPort
	// Bytes is the datagram length for EventBroadcast and EventReceived
	Bytes int
	Err   error
}

// Observer receives progress events. It runs on the calling goroutine and
// must not block.
type Observer func(Event)

// Option customizes an Endpoint
type Option func(*Endpoint)

// WithOpener replaces the socket factory, mainly for tests.
func WithOpener(open Opener) Option {
	return func(e *Endpoint) {
		if open != nil {
			e.open = open
		}
	}
}

// WithClock replaces the clock used between bind attempts.
func WithClock(c Clock) Option {
	return func(e *Endpoint) {
		if c != nil {
			e.clock = c
		}
	}
}

// WithDispatcher registers the main-loop owner told about fatal failures.
func WithDispatcher(d Dispatcher) Option {
	return func(e *Endpoint) {
		e.dispatcher = d
	}
}

// WithObserver registers a progress callback.
func WithObserver(fn Observer) Option {
	return func(e *Endpoint) {
		e.observer = fn
	}
}
