package responder

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/muurk/lanprobe/internal/discovery"
	"github.com/muurk/lanprobe/internal/logging"
	"github.com/muurk/lanprobe/internal/mdns"
	"github.com/muurk/lanprobe/internal/netsock"
	"github.com/muurk/lanprobe/internal/protocol"
)

// DefaultPollInterval bounds how long the receive loop goes without
// checking for cancellation.
const DefaultPollInterval = 500 * time.Millisecond

// ErrNotListening is returned by Serve before a successful Listen.
var ErrNotListening = errors.New("responder: not listening")

// Config holds the responder configuration
type Config struct {
	Port        uint16 // Port queries arrive on (0: discovery.DefaultBroadcastPort)
	Component   protocol.ComponentType
	ComponentID uint64
	Hostname    string

	// ServeAddr is announced as the address the component serves on. An
	// unspecified address tells the prober to use the reply's source.
	ServeAddr netip.AddrPort

	// MatchUID drops queries whose UID differs from UID
	MatchUID bool
	UID      int32

	AdvertiseMDNS bool

	RecvWindow   int           // 0: discovery.DefaultRecvWindow
	PollInterval time.Duration // 0: DefaultPollInterval
}

func (c Config) withDefaults() Config {
	if c.Port == 0 {
		c.Port = discovery.DefaultBroadcastPort
	}
	if c.RecvWindow <= 0 {
		c.RecvWindow = discovery.DefaultRecvWindow
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.Hostname == "" {
		c.Hostname = "localhost"
	}
	return c
}

// Stats counts what the responder did with incoming datagrams.
type Stats struct {
	Received uint64 // datagrams read
	Answered uint64 // announcements sent
	Ignored  uint64 // queries filtered by UID
	Dropped  uint64 // undecodable datagrams, or queries without a reply port
	Failed   uint64 // announcements that could not be sent
}

// Responder answers discovery queries with an Announcement.
type Responder struct {
	cfg  Config
	open discovery.Opener
	pid  uint32

	mu    sync.Mutex
	sock  discovery.Socket
	local netip.AddrPort

	received, answered, ignored, dropped, failed atomic.Uint64
}

// Option customizes a Responder
type Option func(*Responder)

// WithOpener replaces the socket factory, mainly for tests.
func WithOpener(open discovery.Opener) Option {
	return func(r *Responder) {
		if open != nil {
			r.open = open
		}
	}
}

// New creates a Responder. Nothing is opened until Listen.
func New(cfg Config, opts ...Option) *Responder {
	r := &Responder{
		cfg: cfg.withDefaults(),
		open: func() (discovery.Socket, error) {
			return netsock.Open()
		},
		pid: uint32(os.Getpid()),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Listen opens the socket and binds it to 0.0.0.0:Port.
func (r *Responder) Listen() error {
	sock, err := r.open()
	if err != nil {
		if sock != nil {
			_ = sock.Close()
		}
		return fmt.Errorf("failed to open socket: %w", err)
	}
	if err := sock.Bind(netsock.Wildcard(r.cfg.Port)); err != nil {
		_ = sock.Close()
		return fmt.Errorf("failed to bind port %d: %w", r.cfg.Port, err)
	}

	local := sock.LocalAddr()
	if !local.IsValid() {
		local = netsock.Wildcard(r.cfg.Port)
	}

	r.mu.Lock()
	r.sock = sock
	r.local = local
	r.mu.Unlock()

	logging.Info("Responder listening",
		zap.Stringer("addr", local),
		zap.Stringer("component", r.cfg.Component),
		zap.Uint64("component_id", r.cfg.ComponentID),
		zap.Bool("match_uid", r.cfg.MatchUID))
	return nil
}

// Serve answers queries until ctx is done, then closes the socket. With
// AdvertiseMDNS set, the service is registered over mDNS for the same
// lifetime. A failure of either task stops both.
func (r *Responder) Serve(ctx context.Context) error {
	r.mu.Lock()
	sock := r.sock
	port := r.local.Port()
	r.mu.Unlock()
	if sock == nil {
		return ErrNotListening
	}
	defer r.close()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return r.serve(gctx, sock)
	})
	if r.cfg.AdvertiseMDNS {
		g.Go(func() error {
			return mdns.Advertise(gctx, mdns.Advertisement{
				Instance:    r.cfg.Hostname,
				Port:        int(port),
				Component:   r.cfg.Component,
				ComponentID: r.cfg.ComponentID,
			})
		})
	}

	err := g.Wait()
	logging.Info("Responder stopped",
		zap.Uint64("received", r.received.Load()),
		zap.Uint64("answered", r.answered.Load()),
		zap.Error(err))
	return err
}

// Run is Listen followed by Serve.
func (r *Responder) Run(ctx context.Context) error {
	if err := r.Listen(); err != nil {
		return err
	}
	return r.Serve(ctx)
}

func (r *Responder) serve(ctx context.Context, sock discovery.Socket) error {
	buf := make([]byte, r.cfg.RecvWindow)

	for ctx.Err() == nil {
		err := sock.Wait(r.cfg.PollInterval)
		if errors.Is(err, netsock.ErrTimeout) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			return fmt.Errorf("responder wait: %w", err)
		}

		n, from, err := sock.RecvFrom(buf)
		if err != nil {
			logging.Warn("Responder read failed", zap.Error(err))
			continue
		}
		r.received.Add(1)
		r.handle(sock, buf[:n], from)
	}
	return nil
}

func (r *Responder) handle(sock discovery.Socket, data []byte, from netip.AddrPort) {
	logging.LogDatagram(logging.DirRecv, from, data)

	var q protocol.Query
	if err := protocol.Decode(data, &q); err != nil {
		r.dropped.Add(1)
		logging.Debug("Dropping datagram that is not a query",
			zap.Stringer("from", from),
			zap.Error(err))
		logging.LogRawBytes("Dropped datagram", data)
		return
	}
	if q.ReplyPort == 0 {
		r.dropped.Add(1)
		logging.Debug("Dropping query without reply port", zap.Stringer("from", from))
		return
	}
	if r.cfg.MatchUID && q.UID != r.cfg.UID {
		r.ignored.Add(1)
		logging.Debug("Ignoring query from another user",
			zap.Stringer("from", from),
			zap.Int32("uid", q.UID))
		return
	}

	out, err := protocol.Encode(r.announcement(q.ProbeID))
	if err != nil {
		r.failed.Add(1)
		logging.Error("Failed to encode announcement", zap.Error(err))
		return
	}

	to := netip.AddrPortFrom(from.Addr(), q.ReplyPort)
	if err := sock.SendTo(out, to); err != nil {
		r.failed.Add(1)
		logging.Warn("Failed to send announcement", zap.Stringer("to", to), zap.Error(err))
		return
	}
	r.answered.Add(1)
	logging.Info("Answered query",
		zap.Stringer("probe_id", q.ProbeID),
		zap.Stringer("from_component", q.ComponentType),
		zap.String("user", q.Username),
		zap.Stringer("to", to))
	logging.LogDatagram(logging.DirSend, to, out)
}

func (r *Responder) announcement(id uuid.UUID) *protocol.Announcement {
	return &protocol.Announcement{
		ProbeID:       id,
		ComponentType: r.cfg.Component,
		ComponentID:   r.cfg.ComponentID,
		PID:           r.pid,
		Hostname:      r.cfg.Hostname,
		Addr:          r.cfg.ServeAddr,
	}
}

func (r *Responder) close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sock != nil {
		if err := r.sock.Close(); err != nil {
			logging.Warn("Error closing responder socket", zap.Error(err))
		}
		r.sock = nil
	}
}

// LocalAddr returns the bound address, or the zero value before Listen.
func (r *Responder) LocalAddr() netip.AddrPort {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.local
}

// Stats returns a snapshot of the datagram counters.
func (r *Responder) Stats() Stats {
	return Stats{
		Received: r.received.Load(),
		Answered: r.answered.Load(),
		Ignored:  r.ignored.Load(),
		Dropped:  r.dropped.Load(),
		Failed:   r.failed.Load(),
	}
}
